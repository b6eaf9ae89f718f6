package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"whale-footprint-bot/internal/alert"
	"whale-footprint-bot/internal/api"
	"whale-footprint-bot/internal/metrics"
	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/notify"
	"whale-footprint-bot/internal/service"
	"whale-footprint-bot/internal/strategy"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome 单个评估周期的结果
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeNoData Outcome = "no_data" // 没有 K 线，整周期放弃
	OutcomeFailed Outcome = "failed"  // 数据异常或 panic
)

// PassReport 一个评估周期的汇总，供日志、指标和测试使用
type PassReport struct {
	PassID     string
	Outcome    Outcome
	Candles    int
	Decisions  []strategy.Decision
	Alerts     []model.TradePlan
	Duplicates int
}

// Deps 外部依赖。OI / Heatmap 可为 nil (对应检查会因缺数据而不通过)
type Deps struct {
	Candles api.CandleProvider
	OI      api.OpenInterestProvider
	Heatmap api.HeatmapSource
	Sink    notify.Sink
	Alerts  *alert.Cache     // nil 时按实例配置创建
	Metrics *metrics.Metrics // nil 时不记录指标
	Logger  *zap.Logger
}

// Scanner 单个交易实例的编排器: 拉数据 -> 引擎评估 -> 去重 -> 推送。
// 周期严格串行，同一实例的状态 (OI 历史、去重缓存) 只在 Run 的 goroutine 中访问。
type Scanner struct {
	name   string
	cfg    *service.InstanceConfig
	poll   time.Duration
	deps   Deps
	engine *strategy.Engine
	alerts *alert.Cache
	oi     *model.OIHistory
	logger *zap.Logger
	now    func() time.Time

	// 最近一次 "无信号" 提示对应的 K 线时间，同一根 K 线只提示一次
	lastNoSetup int64
}

// New 创建编排器，cfg 必须已经通过 Validate
func New(name string, cfg *service.InstanceConfig, poll time.Duration, deps Deps) (*Scanner, error) {
	if deps.Candles == nil || deps.Sink == nil {
		return nil, errors.New("scanner: candle provider and sink are required")
	}
	if poll <= 0 {
		return nil, fmt.Errorf("scanner: poll interval must be positive, got %s", poll)
	}
	logger := deps.Logger
	if logger == nil {
		logger = service.Logger
	}
	logger = logger.With(zap.String("Instance", name), zap.String("Symbol", cfg.Symbol))

	cache := deps.Alerts
	if cache == nil {
		var err error
		cache, err = alert.New(cfg.Alerts.Capacity, cfg.Alerts.PruneTarget)
		if err != nil {
			return nil, fmt.Errorf("scanner: %w", err)
		}
	}

	return &Scanner{
		name:   name,
		cfg:    cfg,
		poll:   poll,
		deps:   deps,
		engine: strategy.NewEngine(cfg, logger),
		alerts: cache,
		oi:     model.NewOIHistory(model.DefaultOIHistoryLen),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Run 立即执行一个周期，之后每个周期结束后空闲 poll 再执行下一个，直到 ctx 取消
func (s *Scanner) Run(ctx context.Context) {
	s.logger.Info("Starting scanner loop", zap.Duration("Poll", s.poll),
		zap.String("Interval", s.cfg.Interval), zap.String("Mode", s.cfg.Strategy.Mode))

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scanner stopped")
			return
		case <-timer.C:
		}

		report, err := s.RunPass(ctx)
		switch {
		case errors.Is(err, api.ErrNoData):
			s.logger.Warn("No candles available; skipping pass", zap.String("PassID", report.PassID))
		case err != nil:
			s.logger.Error("Pass failed", zap.String("PassID", report.PassID), zap.Error(err))
		}
		timer.Reset(s.poll)
	}
}

// RunPass 执行一个完整的评估周期。没有 K 线时返回包装了 api.ErrNoData 的错误。
func (s *Scanner) RunPass(ctx context.Context) (report PassReport, err error) {
	report.PassID = uuid.NewString()
	log := s.logger.With(zap.String("PassID", report.PassID))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Pass panicked", zap.Any("Panic", r), zap.ByteString("Stack", debug.Stack()))
			report.Outcome = OutcomeFailed
			err = fmt.Errorf("pass %s panicked: %v", report.PassID, r)
		}
		if m := s.deps.Metrics; m != nil {
			m.PassesTotal.WithLabelValues(s.name, string(report.Outcome)).Inc()
			m.PassDuration.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
		}
	}()

	series, err := s.deps.Candles.Candles(ctx, s.cfg.Symbol, s.cfg.Interval, s.cfg.CandleLimit)
	if err != nil {
		s.providerFailure("candles")
		report.Outcome = OutcomeFailed
		if errors.Is(err, api.ErrNoData) {
			report.Outcome = OutcomeNoData
		}
		return report, fmt.Errorf("fetch candles: %w", err)
	}
	if len(series) == 0 {
		report.Outcome = OutcomeNoData
		return report, fmt.Errorf("fetch candles: %w", api.ErrNoData)
	}
	if err := series.Validate(); err != nil {
		report.Outcome = OutcomeFailed
		return report, fmt.Errorf("invalid candle series: %w", err)
	}
	report.Candles = len(series)

	in := strategy.Input{
		Symbol:          s.cfg.Symbol,
		Series:          series,
		IntervalSeconds: service.IntervalSeconds(s.cfg.Interval),
		Now:             s.now(),
	}
	in.OIHistory = s.collectOI(ctx, log)
	in.Heatmap = s.collectHeatmap(ctx, log)
	in.Fine = s.collectFine(ctx, log)

	report.Decisions = s.engine.Evaluate(in)
	for _, d := range report.Decisions {
		if m := s.deps.Metrics; m != nil {
			m.CandidatesTotal.WithLabelValues(s.name, string(d.Status), d.Reason).Inc()
		}
		if d.Status != strategy.StatusApproved {
			continue
		}

		plan := *d.Plan
		if !s.alerts.ShouldAlert(plan.Identity()) {
			report.Duplicates++
			if m := s.deps.Metrics; m != nil {
				m.DuplicatesTotal.WithLabelValues(s.name).Inc()
			}
			log.Debug("Signal already alerted", zap.Stringer("Signal", plan.Identity()))
			continue
		}

		log.Info("!!! NEW WHALE FOOTPRINT SIGNAL !!!", zap.String("Plan", plan.String()))
		if err := s.deps.Sink.Send(ctx, notify.FormatPlan(plan)); err != nil {
			s.providerFailure("notify")
			log.Error("Alert delivery failed", zap.Error(err))
		}
		if m := s.deps.Metrics; m != nil {
			m.AlertsTotal.WithLabelValues(s.name, plan.Side.String()).Inc()
		}
		report.Alerts = append(report.Alerts, plan)
	}

	s.notifyNoSetup(ctx, log, series, report)

	report.Outcome = OutcomeOK
	log.Debug("Pass complete",
		zap.Int("Candles", report.Candles),
		zap.Int("Candidates", len(report.Decisions)),
		zap.Int("Alerts", len(report.Alerts)),
		zap.Int("Duplicates", report.Duplicates))
	return report, nil
}

// collectOI 拉取持仓量并追加到历史，失败时沿用已有历史
func (s *Scanner) collectOI(ctx context.Context, log *zap.Logger) []float64 {
	if !s.cfg.Confirm.OI.Enabled || s.deps.OI == nil {
		return nil
	}
	oi, err := s.deps.OI.OpenInterest(ctx, s.cfg.Symbol)
	if err != nil {
		s.providerFailure("oi")
		log.Warn("Open interest fetch failed", zap.Error(err))
	} else {
		s.oi.Append(oi)
	}
	if m := s.deps.Metrics; m != nil {
		m.OISamples.WithLabelValues(s.name).Set(float64(s.oi.Len()))
	}
	return s.oi.Samples()
}

func (s *Scanner) collectHeatmap(ctx context.Context, log *zap.Logger) model.Heatmap {
	if !s.cfg.Confirm.Liquidation.Enabled || s.deps.Heatmap == nil {
		return nil
	}
	heatmap, err := s.deps.Heatmap.Heatmap(ctx, s.cfg.Symbol)
	if err != nil {
		s.providerFailure("heatmap")
		log.Warn("Liquidation heatmap fetch failed", zap.Error(err))
		return nil
	}
	return heatmap
}

// collectFine 只有二次回踩确认开启时才拉小周期 K 线
func (s *Scanner) collectFine(ctx context.Context, log *zap.Logger) model.Series {
	if !s.cfg.Confirm.SecondTouch.Enabled {
		return nil
	}
	fine, err := s.deps.Candles.Candles(ctx, s.cfg.Symbol, s.cfg.FineInterval, s.cfg.FineLimit)
	if err != nil {
		s.providerFailure("fine")
		log.Warn("Fine candles fetch failed", zap.String("Interval", s.cfg.FineInterval), zap.Error(err))
		return nil
	}
	return fine
}

// notifyNoSetup 开启 NotifyNoSetup 且本周期没有新提醒时，每根新 K 线提示一次
func (s *Scanner) notifyNoSetup(ctx context.Context, log *zap.Logger, series model.Series, report PassReport) {
	if !s.cfg.NotifyNoSetup || len(report.Alerts) > 0 {
		return
	}
	last, ok := series.Last()
	if !ok || last.Time == s.lastNoSetup {
		return
	}
	s.lastNoSetup = last.Time

	text := notify.FormatNoSetup(s.cfg.Symbol, s.cfg.Interval, time.Unix(last.Time, 0))
	if err := s.deps.Sink.Send(ctx, text); err != nil {
		s.providerFailure("notify")
		log.Warn("No-setup message delivery failed", zap.Error(err))
	}
}

func (s *Scanner) providerFailure(source string) {
	if m := s.deps.Metrics; m != nil {
		m.ProviderFailures.WithLabelValues(s.name, source).Inc()
	}
}

// OIHistoryLen 当前持仓量样本数
func (s *Scanner) OIHistoryLen() int {
	return s.oi.Len()
}
