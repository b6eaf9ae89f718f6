package strategy

import (
	"math"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"
)

// TouchStage 二次回踩确认所处的阶段
type TouchStage string

const (
	StageNoTouch   TouchStage = "no_touch"  // 回踩次数不足，兜底扫描也未找到吞没
	StageTouched   TouchStage = "touched"   // 回踩次数达标但之后没有确认 K 线
	StageConfirmed TouchStage = "confirmed" // 回踩达标 + 吞没/影线拒绝
	StageFallback  TouchStage = "fallback"  // 回踩不足，但最近几根出现强吞没
)

const (
	patternEngulfing     = "engulfing"
	patternWickRejection = "wick_rejection"

	// 影线拒绝 K 线至少收回振幅的一半
	wickRecoveryRatio = 0.5
	// 最后一次回踩之后最多检查的 K 线数
	confirmSearchBars = 2
)

// SecondTouchResult 小周期确认的结果
type SecondTouchResult struct {
	Stage      TouchStage
	Touches    int
	ZoneBottom float64
	ZoneTop    float64
	Pattern    string
	Trigger    *model.Candle
	Entry      float64
}

// Approved 确认通过 (包括兜底路径)
func (r SecondTouchResult) Approved() bool {
	return r.Stage == StageConfirmed || r.Stage == StageFallback
}

// EvaluateSecondTouch 在小周期 K 线上检查扫低区间 [sweep.Low, confirm.High] 的二次回踩。
// 只统计时间 >= after 的 K 线 (确认 K 线收盘之后)。
func EvaluateSecondTouch(sweep, confirm model.Candle, fine model.Series, after int64, cfg *service.SecondTouchConfig) SecondTouchResult {
	res := SecondTouchResult{
		Stage:      StageNoTouch,
		ZoneBottom: sweep.Low,
		ZoneTop:    confirm.High,
	}
	floor := res.ZoneBottom - res.ZoneBottom*cfg.Tolerance

	lastTouch := -1
	for i, c := range fine {
		if c.Time < after {
			continue
		}
		if c.Low >= floor && c.Low <= res.ZoneTop {
			res.Touches++
			lastTouch = i
		}
	}

	if res.Touches >= cfg.MinTouches {
		res.Stage = StageTouched
		end := lastTouch + confirmSearchBars
		for j := lastTouch + 1; j <= end && j < len(fine); j++ {
			if pattern, ok := confirmationPattern(fine, j, cfg.VolumeMult); ok {
				res.Stage = StageConfirmed
				res.Pattern = pattern
				trigger := fine[j]
				res.Trigger = &trigger
				break
			}
		}
	} else {
		// 兜底: 没有二次回踩时，只看最近几根小周期 K 线有没有强吞没
		start := len(fine) - cfg.FallbackBars
		if start < 1 {
			start = 1
		}
		for j := start; j < len(fine); j++ {
			if isBullishEngulfing(fine[j-1], fine[j]) && volumeConfirmed(fine, j, cfg.VolumeMult) {
				res.Stage = StageFallback
				res.Pattern = patternEngulfing
				trigger := fine[j]
				res.Trigger = &trigger
				break
			}
		}
	}

	if res.Approved() {
		res.Entry = math.Max(confirm.Open+cfg.EntryOffset, (confirm.Close+res.ZoneBottom)/2)
	}
	return res
}

// confirmationPattern 检查 fine[j] 是否为吞没或影线拒绝，并满足放量
func confirmationPattern(fine model.Series, j int, volMult float64) (string, bool) {
	if !volumeConfirmed(fine, j, volMult) {
		return "", false
	}
	if j > 0 && isBullishEngulfing(fine[j-1], fine[j]) {
		return patternEngulfing, true
	}
	if isWickRejection(fine[j]) {
		return patternWickRejection, true
	}
	return "", false
}

// isBullishEngulfing 看涨吞没: 前阴后阳，且阳线实体完全覆盖阴线实体
func isBullishEngulfing(prev, cur model.Candle) bool {
	return prev.IsRed() && cur.IsGreen() &&
		cur.Open <= prev.Close && cur.Close >= prev.Open
}

// isWickRejection 收回至少一半振幅的阳线
func isWickRejection(c model.Candle) bool {
	rng := c.Range()
	if rng <= 0 {
		return false
	}
	return (c.Close-c.Low)/rng >= wickRecoveryRatio && c.IsGreen()
}

// volumeConfirmed 成交量 >= 前两根均量 * mult，均量为 0 (或没有前序 K 线) 时跳过检查
func volumeConfirmed(fine model.Series, j int, mult float64) bool {
	var sum float64
	var count int
	for k := j - 1; k >= 0 && k >= j-2; k-- {
		sum += fine[k].Volume
		count++
	}
	if count == 0 {
		return true
	}
	avg := sum / float64(count)
	if avg == 0 {
		return true
	}
	return fine[j].Volume >= avg*mult
}
