package strategy

import (
	"fmt"
	"time"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"
	"whale-footprint-bot/pkg/ta"

	"go.uber.org/zap"
)

// Status 单个候选的评估结果
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected" // 某项确认检查未通过
	StatusFiltered Status = "filtered" // 被时段/时效过滤
)

// 未通过的环节
const (
	ReasonRecency     = "recency"
	ReasonSession     = "session"
	ReasonOISpike     = "oi_spike"
	ReasonCVD         = "cvd"
	ReasonLiquidation = "liquidation"
	ReasonSecondTouch = "second_touch"
	ReasonPlan        = "plan"
)

// Input 一个评估周期的全部数据，由编排层准备好传入，核心不做任何 I/O
type Input struct {
	Symbol          string
	Series          model.Series // 信号周期 K 线
	Fine            model.Series // 小周期 K 线 (二次回踩确认)
	OIHistory       []float64
	Heatmap         model.Heatmap
	IntervalSeconds int64
	Now             time.Time
}

// Decision 单个候选的处理结果
type Decision struct {
	Candidate model.DetectionCandidate
	Status    Status
	Reason    string
	Passed    []string
	Touch     *SecondTouchResult
	Plan      *model.TradePlan
}

// Engine 形态识别 + 多重确认 + 交易计划
type Engine struct {
	cfg    *service.InstanceConfig
	logger *zap.Logger
}

// NewEngine 初始化引擎，cfg 必须已经通过 Validate
func NewEngine(cfg *service.InstanceConfig, logger *zap.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger}
}

// Evaluate 对一个 K 线序列做完整评估。空序列返回 nil (没有数据 = 没有结论)。
func (e *Engine) Evaluate(in Input) []Decision {
	if len(in.Series) == 0 {
		return nil
	}

	bars := ta.Enrich(in.Series, e.cfg.Strategy.VolSMALen)

	var candidates []model.DetectionCandidate
	switch e.cfg.Strategy.Mode {
	case service.ModeSweep:
		if c, ok := DetectSweep(bars, &e.cfg.Strategy); ok {
			candidates = append(candidates, c)
		}
	default:
		candidates = DetectFootprints(bars, &e.cfg.Strategy)
	}

	decisions := make([]Decision, 0, len(candidates))
	for _, cand := range candidates {
		d := e.evaluateCandidate(in, bars, cand)
		if d.Status != StatusApproved {
			e.logger.Debug("Candidate not approved",
				zap.String("mode", string(cand.Mode)),
				zap.String("side", cand.Side.String()),
				zap.Int64("candle_time", cand.Sweep.Time),
				zap.String("status", string(d.Status)),
				zap.String("reason", d.Reason))
		}
		decisions = append(decisions, d)
	}
	return decisions
}

// evaluateCandidate 过滤 -> 确认检查 (OI -> CVD -> 清算 -> 二次回踩) -> 交易计划，任一失败立即返回
func (e *Engine) evaluateCandidate(in Input, bars []model.Bar, cand model.DetectionCandidate) Decision {
	d := Decision{Candidate: cand, Status: StatusFiltered}
	st := e.cfg.Strategy
	cf := e.cfg.Confirm

	if !IsRecent(cand.Index, len(bars), st.RecencyBars) {
		d.Reason = ReasonRecency
		return d
	}
	if !InSession(cand.Sweep.Time, st.Session) {
		d.Reason = ReasonSession
		return d
	}

	d.Status = StatusRejected
	bar := bars[cand.Index]
	if cand.Mode == model.ModeFootprint && bar.VolumeMA > 0 {
		d.Passed = append(d.Passed, fmt.Sprintf("volume %.1fx avg", bar.Volume/bar.VolumeMA))
	}

	if cf.OI.Enabled {
		ok, pct := CheckOISpike(in.OIHistory, cf.OI.ThresholdPct)
		if !ok {
			d.Reason = ReasonOISpike
			return d
		}
		d.Passed = append(d.Passed, fmt.Sprintf("OI %+.2f%%", pct))
	}

	if cf.CVD.Enabled {
		if !CheckCVD(bars, cand.Index, cand.Side) {
			d.Reason = ReasonCVD
			return d
		}
		if cand.Side == model.SideBuy {
			d.Passed = append(d.Passed, "CVD rising")
		} else {
			d.Passed = append(d.Passed, "CVD falling")
		}
	}

	if cf.Liquidation.Enabled {
		window := LiquidationWindow(cand.Sweep.Close, cf.Liquidation)
		mass := LiquidationMassNear(cand.Sweep.Close, in.Heatmap, window)
		if mass <= cf.Liquidation.Threshold {
			d.Reason = ReasonLiquidation
			return d
		}
		d.Passed = append(d.Passed, fmt.Sprintf("liq mass %.0f within %.2f", mass, window))
	}

	entry := cand.Sweep.Close
	downgrade := false
	if cand.Confirm != nil {
		entry = cand.Confirm.Close
	}

	if cf.SecondTouch.Enabled && cand.Confirm != nil {
		after := cand.Confirm.Time + in.IntervalSeconds
		if in.IntervalSeconds <= 0 {
			after = cand.Confirm.Time + 1
		}
		touch := EvaluateSecondTouch(cand.Sweep, *cand.Confirm, in.Fine, after, &cf.SecondTouch)
		d.Touch = &touch
		if !touch.Approved() {
			d.Reason = ReasonSecondTouch
			return d
		}
		entry = touch.Entry
		downgrade = touch.Stage == StageFallback
		d.Passed = append(d.Passed, fmt.Sprintf("second touch x%d + %s", touch.Touches, touch.Pattern))
	}

	extreme := cand.Sweep.Low
	if cand.Side == model.SideSell {
		extreme = cand.Sweep.High
	}
	// ATR 只使用扫损 K 线及之前的数据
	offset := StopOffset(e.cfg.Risk.StopOffset, extreme, in.Series[:cand.Index+1])

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	plan, err := BuildTradePlan(PlanParams{
		Symbol:     in.Symbol,
		Side:       cand.Side,
		Mode:       cand.Mode,
		SignalTime: cand.Sweep.Time,
		Entry:      entry,
		Extreme:    extreme,
		Offset:     offset,
		RR:         e.cfg.Risk.RR,
		Passed:     d.Passed,
		Downgrade:  downgrade,
	}, now)
	if err != nil {
		e.logger.Warn("Trade plan rejected", zap.Error(err))
		d.Reason = ReasonPlan
		return d
	}

	d.Status = StatusApproved
	d.Reason = ""
	d.Plan = &plan
	return d
}
