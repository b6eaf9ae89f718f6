package model

import (
	"fmt"
	"time"
)

// Side 定义了信号方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) String() string {
	return string(s)
}

// DetectMode 形态识别模式
type DetectMode string

const (
	ModeFootprint DetectMode = "footprint" // 单根 K 线止损猎杀 (Mode A)
	ModeSweep     DetectMode = "sweep"     // 扫低 + 确认 K 线 (Mode B)
)

// DetectionCandidate 形态识别器产出的候选信号，只在单个评估周期内存在
type DetectionCandidate struct {
	Index   int
	Side    Side
	Mode    DetectMode
	Sweep   Candle
	Confirm *Candle // 仅 Mode B 有确认 K 线
}

// SignalIdentity 去重键
type SignalIdentity struct {
	Symbol     string
	CandleTime int64
}

func (id SignalIdentity) String() string {
	return fmt.Sprintf("%s@%d", id.Symbol, id.CandleTime)
}

// 置信度标签
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// TradePlan 是确认通过后生成的交易计划 (只做提醒，不下单)
type TradePlan struct {
	Symbol          string
	Side            Side
	Mode            DetectMode
	Entry           float64
	StopLoss        float64
	TakeProfit      float64
	TakeProfit1     *float64 // 1R 分批止盈参考
	RR              float64
	ConfidenceLabel string
	Rationale       string // 通过了哪些检查 (数据，不是最终排版)
	SignalTime      int64  // 扫损 K 线时间
	CreatedAt       time.Time
}

// Identity 返回该计划的去重键
func (p TradePlan) Identity() SignalIdentity {
	return SignalIdentity{Symbol: p.Symbol, CandleTime: p.SignalTime}
}

// Risk 入场到止损的距离
func (p TradePlan) Risk() float64 {
	if p.Side == SideBuy {
		return p.Entry - p.StopLoss
	}
	return p.StopLoss - p.Entry
}

func (p TradePlan) String() string {
	return fmt.Sprintf("PLAN [%s | %s | %s] @ %.4f | SL: %.4f | TP: %.4f | RR: %.2f | %s",
		p.Symbol, p.Side, p.Mode, p.Entry, p.StopLoss, p.TakeProfit, p.RR, p.ConfidenceLabel)
}
