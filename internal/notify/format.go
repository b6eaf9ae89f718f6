package notify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"whale-footprint-bot/internal/model"

	"github.com/shopspring/decimal"
)

// FormatPrice 按价格量级保留小数位: >=1000 两位，>=1 四位，其余六位
func FormatPrice(v float64) string {
	places := int32(6)
	switch abs := math.Abs(v); {
	case abs >= 1000:
		places = 2
	case abs >= 1:
		places = 4
	}
	return decimal.NewFromFloat(v).Round(places).String()
}

// FormatPlan 交易计划的提醒文本
func FormatPlan(p model.TradePlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🐋 WHALE FOOTPRINT %s - %s\n", p.Side, p.Symbol)
	fmt.Fprintf(&b, "Entry: %s  SL: %s  TP: %s  RR: 1:%s\n",
		FormatPrice(p.Entry), FormatPrice(p.StopLoss), FormatPrice(p.TakeProfit),
		decimal.NewFromFloat(p.RR).Round(2).String())
	if p.TakeProfit1 != nil {
		fmt.Fprintf(&b, "TP1 (1R): %s\n", FormatPrice(*p.TakeProfit1))
	}
	fmt.Fprintf(&b, "Confidence: %s\n", p.ConfidenceLabel)
	if p.Rationale != "" {
		fmt.Fprintf(&b, "Checks: %s", p.Rationale)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatNoSetup 本周期没有合格信号时的提示
func FormatNoSetup(symbol, interval string, at time.Time) string {
	return fmt.Sprintf("ℹ️ %s %s: no qualified setup (%s UTC)",
		symbol, interval, at.UTC().Format("2006-01-02 15:04"))
}
