package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"
	"whale-footprint-bot/pkg/ta"
)

// ErrInvalidPlan 止损在入场价错误的一侧 (风险 <= 0)，这种计划绝不发出
var ErrInvalidPlan = errors.New("invalid trade plan")

// PlanParams 构造交易计划所需的全部输入
type PlanParams struct {
	Symbol     string
	Side       model.Side
	Mode       model.DetectMode
	SignalTime int64
	Entry      float64
	Extreme    float64 // 扫损 K 线极值: 买入取 Low，卖出取 High
	Offset     float64 // 止损缓冲 (价格单位)
	RR         float64
	Passed     []string // 通过的检查说明
	Downgrade  bool     // 兜底确认路径，置信度降一级
}

// BuildTradePlan 计算止损/止盈。止盈 = entry ± (entry-stop)*RR，TP1 固定使用 1R。
func BuildTradePlan(p PlanParams, now time.Time) (model.TradePlan, error) {
	var stop, tp, tp1 float64
	switch p.Side {
	case model.SideBuy:
		stop = p.Extreme - p.Offset
		if p.Entry-stop <= 0 {
			return model.TradePlan{}, fmt.Errorf("%w: buy stop %.8f not below entry %.8f", ErrInvalidPlan, stop, p.Entry)
		}
		tp = p.Entry + (p.Entry-stop)*p.RR
		tp1 = p.Entry + (p.Entry - stop)
	case model.SideSell:
		stop = p.Extreme + p.Offset
		if stop-p.Entry <= 0 {
			return model.TradePlan{}, fmt.Errorf("%w: sell stop %.8f not above entry %.8f", ErrInvalidPlan, stop, p.Entry)
		}
		tp = p.Entry - (stop-p.Entry)*p.RR
		tp1 = p.Entry - (stop - p.Entry)
	default:
		return model.TradePlan{}, fmt.Errorf("%w: unknown side %q", ErrInvalidPlan, p.Side)
	}

	return model.TradePlan{
		Symbol:          p.Symbol,
		Side:            p.Side,
		Mode:            p.Mode,
		Entry:           p.Entry,
		StopLoss:        stop,
		TakeProfit:      tp,
		TakeProfit1:     &tp1,
		RR:              p.RR,
		ConfidenceLabel: confidenceLabel(len(p.Passed), p.Downgrade),
		Rationale:       rationale(p),
		SignalTime:      p.SignalTime,
		CreatedAt:       now,
	}, nil
}

// StopOffset 按品种的止损缓冲策略计算偏移量 (价格单位)
func StopOffset(policy service.StopOffsetConfig, extreme float64, series model.Series) float64 {
	switch policy.Kind {
	case service.StopOffsetAbsolute:
		return policy.Value
	case service.StopOffsetPips:
		return policy.Value * policy.PipSize
	case service.StopOffsetPercent:
		return extreme * policy.Value / 100.0
	case service.StopOffsetATR:
		return policy.Value * ta.ATR(series, policy.ATRPeriod)
	}
	return 0
}

func confidenceLabel(passed int, downgrade bool) string {
	level := 0
	switch {
	case passed >= 3:
		level = 2
	case passed == 2:
		level = 1
	}
	if downgrade && level > 0 {
		level--
	}
	return [...]string{model.ConfidenceLow, model.ConfidenceMedium, model.ConfidenceHigh}[level]
}

func rationale(p PlanParams) string {
	head := fmt.Sprintf("%s %s sweep@%s", p.Mode, p.Side, time.Unix(p.SignalTime, 0).UTC().Format("2006-01-02 15:04"))
	if len(p.Passed) == 0 {
		return head
	}
	return head + " | " + strings.Join(p.Passed, ", ")
}
