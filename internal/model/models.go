package model

import (
	"fmt"
	"math"
	"sort"
)

// Candle 代表一根已完成的 K 线 (时间为 epoch 秒, UTC)
type Candle struct {
	Time   int64   `json:"time"` // K 线开盘时间 (秒)
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Valid 检查 OHLC 不变量: high >= max(open,close), low <= min(open,close)
func (c Candle) Valid() bool {
	return c.High >= math.Max(c.Open, c.Close) &&
		c.Low <= math.Min(c.Open, c.Close) &&
		c.High >= c.Low
}

// Range 返回 high-low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// LowerWickRatio 下影线占整根 K 线的比例，range 为 0 时返回 0
func (c Candle) LowerWickRatio() float64 {
	rng := c.Range()
	if rng <= 0 {
		return 0
	}
	return (math.Min(c.Open, c.Close) - c.Low) / rng
}

// UpperWickRatio 上影线占整根 K 线的比例
func (c Candle) UpperWickRatio() float64 {
	rng := c.Range()
	if rng <= 0 {
		return 0
	}
	return (c.High - math.Max(c.Open, c.Close)) / rng
}

func (c Candle) IsGreen() bool { return c.Close > c.Open }
func (c Candle) IsRed() bool   { return c.Close < c.Open }

// Delta 以 K 线方向近似主动买卖量: 阳线 +volume，阴线 -volume，十字星 0
func (c Candle) Delta() float64 {
	switch {
	case c.IsGreen():
		return c.Volume
	case c.IsRed():
		return -c.Volume
	}
	return 0
}

// Series 按时间升序排列的 K 线序列 (最旧的在前)
type Series []Candle

// Last 返回最后一根 K 线
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Validate 检查时间严格递增以及每根 K 线的 OHLC 不变量
func (s Series) Validate() error {
	for i, c := range s {
		if !c.Valid() {
			return fmt.Errorf("candle %d (t=%d) violates OHLC invariant", i, c.Time)
		}
		if i > 0 && c.Time <= s[i-1].Time {
			return fmt.Errorf("candle %d (t=%d) not after previous (t=%d)", i, c.Time, s[i-1].Time)
		}
	}
	return nil
}

// Normalize 按时间排序并去掉重复时间戳 (保留后出现的那根)，交易所返回倒序数据时使用
func Normalize(candles []Candle) Series {
	out := make(Series, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })

	dedup := out[:0]
	for _, c := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time == c.Time {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

// Bar 是一根 K 线及其派生指标，每个评估周期计算一次，避免并行数组下标错位
type Bar struct {
	Candle
	VolumeMA float64 // 成交量均线
	CVD      float64 // 累计成交量差
}

// Heatmap 价格 -> 聚合的清算金额
type Heatmap map[float64]float64

// Add 累加某价格档位的清算金额
func (h Heatmap) Add(price, amount float64) {
	h[price] += amount
}

// Total 返回全部清算金额
func (h Heatmap) Total() float64 {
	var total float64
	for _, amt := range h {
		total += amt
	}
	return total
}
