package strategy

import (
	"testing"
	"time"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"

	"go.uber.org/zap/zaptest"
)

func footprintConfig() service.InstanceConfig {
	cfg := service.DefaultInstanceConfig("BTCUSDT")
	cfg.Strategy.Session.Enabled = true
	cfg.Confirm.OI.Enabled = true
	cfg.Confirm.CVD.Enabled = true
	cfg.Confirm.Liquidation.Enabled = true
	return cfg
}

// footprintInput is a 20-candle series with a BUY footprint at index 17
// followed by two green candles, a qualifying OI spike and liquidation mass.
func footprintInput() Input {
	s := flatSeries(20)
	s[17] = candle(s[17].Time, 100, 100.6, 98, 100.5, 1000)
	return Input{
		Symbol:          "BTCUSDT",
		Series:          s,
		OIHistory:       oiSamples(103),
		Heatmap:         model.Heatmap{100.4: 8000, 100.6: 5000},
		IntervalSeconds: 900,
		Now:             time.Unix(s[19].Time, 0),
	}
}

func TestEngine_FootprintEndToEnd(t *testing.T) {
	cfg := footprintConfig()
	engine := NewEngine(&cfg, zaptest.NewLogger(t))

	decisions := engine.Evaluate(footprintInput())
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	d := decisions[0]
	if d.Status != StatusApproved {
		t.Fatalf("expected approval, got %s (%s)", d.Status, d.Reason)
	}

	plan := d.Plan
	if plan.Side != model.SideBuy {
		t.Errorf("expected BUY, got %s", plan.Side)
	}
	if !(plan.StopLoss < plan.Entry && plan.Entry < plan.TakeProfit) {
		t.Errorf("levels out of order: %s", plan)
	}
	if plan.TakeProfit != plan.Entry+(plan.Entry-plan.StopLoss)*cfg.Risk.RR {
		t.Errorf("tp %v != entry + risk*RR", plan.TakeProfit)
	}
	if plan.Entry != 100.5 || plan.StopLoss != 98 {
		t.Errorf("expected entry 100.5 / stop 98, got %v / %v", plan.Entry, plan.StopLoss)
	}
	if plan.ConfidenceLabel != model.ConfidenceHigh {
		t.Errorf("expected HIGH confidence, got %s", plan.ConfidenceLabel)
	}
	if plan.SignalTime != footprintInput().Series[17].Time {
		t.Errorf("signal time should be the sweep candle time")
	}
}

func TestEngine_RejectionReasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*service.InstanceConfig, *Input)
		status Status
		reason string
	}{
		{"no oi spike", func(_ *service.InstanceConfig, in *Input) { in.OIHistory = oiSamples(100) }, StatusRejected, ReasonOISpike},
		{"short oi history", func(_ *service.InstanceConfig, in *Input) { in.OIHistory = in.OIHistory[:5] }, StatusRejected, ReasonOISpike},
		{"cvd falls after signal", func(_ *service.InstanceConfig, in *Input) {
			in.Series[19] = candle(in.Series[19].Time, 100.5, 100.6, 99, 99.2, 5000)
		}, StatusRejected, ReasonCVD},
		{"no liquidation mass", func(_ *service.InstanceConfig, in *Input) { in.Heatmap = model.Heatmap{500: 1e9} }, StatusRejected, ReasonLiquidation},
		{"outside session", func(cfg *service.InstanceConfig, _ *Input) {
			cfg.Strategy.Session.StartHour, cfg.Strategy.Session.EndHour = 0, 6
		}, StatusFiltered, ReasonSession},
		{"stale candidate", func(cfg *service.InstanceConfig, _ *Input) { cfg.Strategy.RecencyBars = 2 }, StatusFiltered, ReasonRecency},
		{"stop offset beyond entry is still a valid buy", func(cfg *service.InstanceConfig, _ *Input) {
			cfg.Risk.StopOffset = service.StopOffsetConfig{Kind: service.StopOffsetAbsolute, Value: 1}
		}, StatusApproved, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := footprintConfig()
			in := footprintInput()
			tc.mutate(&cfg, &in)

			decisions := NewEngine(&cfg, zaptest.NewLogger(t)).Evaluate(in)
			if len(decisions) != 1 {
				t.Fatalf("expected 1 decision, got %d", len(decisions))
			}
			d := decisions[0]
			if d.Status != tc.status || d.Reason != tc.reason {
				t.Errorf("got %s/%q, want %s/%q", d.Status, d.Reason, tc.status, tc.reason)
			}
			if d.Status != StatusApproved && d.Plan != nil {
				t.Error("rejected candidate must not carry a plan")
			}
		})
	}
}

func TestEngine_DisabledChecksAreSkipped(t *testing.T) {
	cfg := service.DefaultInstanceConfig("BTCUSDT")
	in := footprintInput()
	in.OIHistory = nil
	in.Heatmap = nil

	decisions := NewEngine(&cfg, zaptest.NewLogger(t)).Evaluate(in)
	if len(decisions) != 1 || decisions[0].Status != StatusApproved {
		t.Fatalf("expected approval with all checks disabled, got %+v", decisions)
	}
	if decisions[0].Plan.ConfidenceLabel != model.ConfidenceLow {
		t.Errorf("expected LOW confidence, got %s", decisions[0].Plan.ConfidenceLabel)
	}
}

func TestEngine_EmptySeries(t *testing.T) {
	cfg := footprintConfig()
	if got := NewEngine(&cfg, zaptest.NewLogger(t)).Evaluate(Input{Symbol: "BTCUSDT"}); got != nil {
		t.Fatalf("expected nil decisions, got %+v", got)
	}
}

func TestEngine_SweepWithSecondTouch(t *testing.T) {
	cfg := service.DefaultInstanceConfig("BTCUSDT")
	cfg.Strategy.Mode = service.ModeSweep
	cfg.Strategy.Session.Enabled = true
	cfg.Confirm.SecondTouch.Enabled = true

	series := model.Series{stSweep, stConfirm}
	// pad a neutral candle before the sweep so it is an interior local low
	series = append(model.Series{candle(sessionStart-900, 100, 101, 99, 100.5, 100)}, series...)
	series = append(series, candle(stAfter, 100.5, 101.5, 99.5, 101, 110))

	fine := fineSeries(candle(stAfter+240, 101.2, 102.1, 101.1, 102.0, 200))
	// fine candles start after the confirm candle closes
	for i := range fine {
		fine[i].Time += 900
	}

	in := Input{
		Symbol:          "BTCUSDT",
		Series:          series,
		Fine:            fine,
		IntervalSeconds: 900,
	}
	decisions := NewEngine(&cfg, zaptest.NewLogger(t)).Evaluate(in)
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	d := decisions[0]
	if d.Status != StatusApproved {
		t.Fatalf("expected approval, got %s (%s)", d.Status, d.Reason)
	}
	if d.Touch == nil || d.Touch.Stage != StageConfirmed {
		t.Fatalf("expected confirmed second touch, got %+v", d.Touch)
	}
	if d.Plan.Entry != 99.5 || d.Plan.StopLoss != 98 {
		t.Errorf("expected entry 99.5 / stop 98, got %v / %v", d.Plan.Entry, d.Plan.StopLoss)
	}
	if d.Plan.Mode != model.ModeSweep {
		t.Errorf("expected sweep mode plan, got %s", d.Plan.Mode)
	}

	in.Fine = nil
	decisions = NewEngine(&cfg, zaptest.NewLogger(t)).Evaluate(in)
	if decisions[0].Status != StatusRejected || decisions[0].Reason != ReasonSecondTouch {
		t.Fatalf("expected second touch rejection without fine data, got %s/%s", decisions[0].Status, decisions[0].Reason)
	}
}
