package strategy

import (
	"time"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"
)

// DetectFootprints Mode A: 单根 K 线止损猎杀 (足迹) 识别。
// 买入: 放量 + 长下影 + 阳线 + 振幅达标；卖出为镜像 (长上影 + 阴线)。
// 返回按下标升序排列的全部候选。
func DetectFootprints(bars []model.Bar, cfg *service.StrategyConfig) []model.DetectionCandidate {
	var out []model.DetectionCandidate
	for i, b := range bars {
		rng := b.Range()
		if rng <= 0 {
			// 零振幅 K 线无法计算影线比例，跳过
			continue
		}

		volOK := b.Volume > b.VolumeMA*cfg.VolMult
		rangeOK := cfg.MinRange == 0 || rng >= cfg.MinRange
		if !volOK || !rangeOK {
			continue
		}

		delta := b.Delta()
		switch {
		case b.LowerWickRatio() >= cfg.WickRatio && delta > 0:
			out = append(out, model.DetectionCandidate{Index: i, Side: model.SideBuy, Mode: model.ModeFootprint, Sweep: b.Candle})
		case b.UpperWickRatio() >= cfg.WickRatio && delta < 0:
			out = append(out, model.DetectionCandidate{Index: i, Side: model.SideSell, Mode: model.ModeFootprint, Sweep: b.Candle})
		}
	}
	return out
}

// DetectSweep Mode B: 在最近 lookback+1 根 K 线中寻找扫低 K 线 (局部低点 + 长下影)，
// 且紧随其后的 K 线收阳。只返回窗口内最早满足条件的一组。
func DetectSweep(bars []model.Bar, cfg *service.StrategyConfig) (model.DetectionCandidate, bool) {
	n := len(bars)
	start := n - (cfg.SweepLookback + 1)
	if start < 0 {
		start = 0
	}

	// 只看窗口内部的 K 线: 需要左右各一根
	for i := start + 1; i < n-1; i++ {
		cur := bars[i]
		if cur.Range() <= 0 {
			continue
		}
		isLocalLow := cur.Low < bars[i-1].Low && cur.Low < bars[i+1].Low
		if !isLocalLow || cur.LowerWickRatio() <= cfg.SweepWickRatio {
			continue
		}
		next := bars[i+1]
		if !next.IsGreen() {
			continue
		}

		confirm := next.Candle
		return model.DetectionCandidate{
			Index:   i,
			Side:    model.SideBuy,
			Mode:    model.ModeSweep,
			Sweep:   cur.Candle,
			Confirm: &confirm,
		}, true
	}
	return model.DetectionCandidate{}, false
}

// InSession 判断时间戳 (秒) 的 UTC 小时是否落在 [StartHour, EndHour) 内，未启用时恒为 true
func InSession(ts int64, session service.SessionConfig) bool {
	if !session.Enabled {
		return true
	}
	hour := time.Unix(ts, 0).UTC().Hour()
	return hour >= session.StartHour && hour < session.EndHour
}

// IsRecent 只有最近 recency 根 K 线内的候选才可执行
func IsRecent(idx, n, recency int) bool {
	return idx >= n-recency
}
