package ta

import (
	"whale-footprint-bot/internal/model"

	"github.com/markcheno/go-talib"
)

// MovingAverage 计算滚动均值，输出与输入等长。
// 前 length 个位置取 values[0..i] 的累计均值 (预热期)，之后取最近 length 个值的均值。
// length <= 0 属于调用方错误，配置校验阶段已经拒绝。
func MovingAverage(values []float64, length int) []float64 {
	if length <= 0 {
		panic("ta: moving average length must be positive")
	}

	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= length {
			// 滑出窗口的旧值
			sum -= values[i-length]
			out[i] = sum / float64(length)
		} else {
			out[i] = sum / float64(i+1)
		}
	}
	return out
}

// CumulativeDelta 以 K 线方向近似的累计成交量差 (CVD)。
// 这不是逐笔成交得出的真实主动买卖差，只能作为方向参考。
func CumulativeDelta(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	var sum float64
	for i, c := range candles {
		sum += c.Delta()
		out[i] = sum
	}
	return out
}

// Volumes 抽取成交量序列
func Volumes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// Enrich 把 K 线和派生指标合并成逐根记录，每个评估周期只算一次
func Enrich(series model.Series, volLen int) []model.Bar {
	volMA := MovingAverage(Volumes(series), volLen)
	cvd := CumulativeDelta(series)

	bars := make([]model.Bar, len(series))
	for i, c := range series {
		bars[i] = model.Bar{
			Candle:   c,
			VolumeMA: volMA[i],
			CVD:      cvd[i],
		}
	}
	return bars
}

// ATR 返回最新的平均真实波动范围，历史不足 period+1 根时返回 0
func ATR(series model.Series, period int) float64 {
	if period <= 0 || len(series) <= period {
		return 0
	}

	high := make([]float64, len(series))
	low := make([]float64, len(series))
	closePrices := make([]float64, len(series))
	for i, c := range series {
		high[i] = c.High
		low[i] = c.Low
		closePrices[i] = c.Close
	}

	// talib ATR 需要 High, Low, Previous Close
	atr := talib.Atr(high, low, closePrices, period)
	return atr[len(atr)-1]
}
