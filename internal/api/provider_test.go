package api

import (
	"context"
	"errors"
	"testing"

	"whale-footprint-bot/internal/model"

	"go.uber.org/zap/zaptest"
)

type fakeCandles struct {
	series  model.Series
	err     error
	calls   int
	symbols []string
}

func (f *fakeCandles) Candles(_ context.Context, symbol, _ string, _ int) (model.Series, error) {
	f.calls++
	f.symbols = append(f.symbols, symbol)
	return f.series, f.err
}

func oneCandle(ts int64) model.Series {
	return model.Series{{Time: ts, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}
}

func TestFallbackProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("futures ok", func(t *testing.T) {
		fut := &fakeCandles{series: oneCandle(1)}
		spot := &fakeCandles{series: oneCandle(2)}
		got, err := NewFallbackProvider(fut, spot, "BTCUSDT", zaptest.NewLogger(t)).Candles(ctx, "BTCUSDT", "15m", 10)
		if err != nil || got[0].Time != 1 {
			t.Fatalf("expected futures candles, got %v / %v", got, err)
		}
		if spot.calls != 0 {
			t.Error("spot must not be queried when futures succeed")
		}
	})

	t.Run("futures fail", func(t *testing.T) {
		fut := &fakeCandles{err: errors.New("boom")}
		spot := &fakeCandles{series: oneCandle(2)}
		got, err := NewFallbackProvider(fut, spot, "BTC-USDT", zaptest.NewLogger(t)).Candles(ctx, "BTCUSDT", "15m", 10)
		if err != nil || got[0].Time != 2 {
			t.Fatalf("expected spot candles, got %v / %v", got, err)
		}
		if spot.symbols[0] != "BTC-USDT" {
			t.Errorf("spot should use the spot symbol, got %s", spot.symbols[0])
		}
	})

	t.Run("both empty", func(t *testing.T) {
		fut := &fakeCandles{err: ErrNoData}
		spot := &fakeCandles{}
		_, err := NewFallbackProvider(fut, spot, "", zaptest.NewLogger(t)).Candles(ctx, "BTCUSDT", "15m", 10)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})

	t.Run("no secondary", func(t *testing.T) {
		fut := &fakeCandles{}
		_, err := NewFallbackProvider(fut, nil, "", zaptest.NewLogger(t)).Candles(ctx, "BTCUSDT", "15m", 10)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("expected ErrNoData, got %v", err)
		}
	})
}

func TestSplitSymbol(t *testing.T) {
	cases := []struct {
		in, base, quote string
		ok              bool
	}{
		{"BTCUSDT", "BTC", "USDT", true},
		{"dogeusdt", "DOGE", "USDT", true},
		{"ETH-USDC", "ETH", "USDC", true},
		{"BTCUSD", "BTC", "USD", true},
		{"USDT", "USDT", "", false},
		{"BTCEUR", "BTCEUR", "", false},
	}
	for _, tc := range cases {
		base, quote, ok := SplitSymbol(tc.in)
		if base != tc.base || quote != tc.quote || ok != tc.ok {
			t.Errorf("SplitSymbol(%q) = %q,%q,%v", tc.in, base, quote, ok)
		}
	}
}
