package strategy

import (
	"math"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"
)

const (
	oiMinSamples = 12
	oiAvgWindow  = 10
)

// CheckOISpike 持仓量突增检查: 取倒数第 12 到倒数第 3 个样本 (共 10 个) 的均值，
// 与最新样本比较，涨幅 >= thresholdPct 视为通过。样本不足时不通过。
func CheckOISpike(history []float64, thresholdPct float64) (bool, float64) {
	n := len(history)
	if n < oiMinSamples {
		return false, 0
	}

	var sum float64
	for _, v := range history[n-oiMinSamples : n-2] {
		sum += v
	}
	avg := sum / oiAvgWindow
	if avg <= 0 {
		return false, 0
	}

	pct := (history[n-1] - avg) / avg * 100.0
	return pct >= thresholdPct, pct
}

// CheckCVD 候选 K 线之后的 CVD 方向: 买入要求末值 > 首值，卖出要求末值 < 首值。
// 剩余点数不足 2 个时不通过。
func CheckCVD(bars []model.Bar, idx int, side model.Side) bool {
	if idx < 0 || len(bars)-idx < 2 {
		return false
	}
	first := bars[idx].CVD
	last := bars[len(bars)-1].CVD
	if side == model.SideBuy {
		return last > first
	}
	return last < first
}

// LiquidationWindow 价格窗口 = max(WindowFloor, price*WindowFraction)
func LiquidationWindow(price float64, cfg service.LiquidationConfig) float64 {
	return math.Max(cfg.WindowFloor, price*cfg.WindowFraction)
}

// LiquidationMassNear 汇总距离 price 不超过 window 的全部清算金额
func LiquidationMassNear(price float64, heatmap model.Heatmap, window float64) float64 {
	var total float64
	for p, amt := range heatmap {
		if math.Abs(p-price) <= window {
			total += amt
		}
	}
	return total
}
