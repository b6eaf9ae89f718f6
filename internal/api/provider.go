package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"whale-footprint-bot/internal/model"

	"go.uber.org/zap"
)

// ErrNoData 数据源没有返回任何 K 线 (或全部失败)，本周期放弃
var ErrNoData = errors.New("provider returned no data")

// CandleProvider 返回按时间升序排列的已完成 K 线，空结果必须返回 ErrNoData
type CandleProvider interface {
	Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error)
}

// OpenInterestProvider 返回合约当前持仓量
type OpenInterestProvider interface {
	OpenInterest(ctx context.Context, symbol string) (float64, error)
}

// HeatmapSource 返回价格 -> 清算金额的聚合快照
type HeatmapSource interface {
	Heatmap(ctx context.Context, symbol string) (model.Heatmap, error)
}

// FallbackProvider 优先使用合约 K 线，失败或为空时回退到现货
type FallbackProvider struct {
	primary    CandleProvider
	secondary  CandleProvider
	spotSymbol string
	logger     *zap.Logger
}

// NewFallbackProvider secondary 为 nil 时等同于 primary; spotSymbol 为空时使用原交易对
func NewFallbackProvider(primary, secondary CandleProvider, spotSymbol string, logger *zap.Logger) *FallbackProvider {
	return &FallbackProvider{
		primary:    primary,
		secondary:  secondary,
		spotSymbol: spotSymbol,
		logger:     logger,
	}
}

func (p *FallbackProvider) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	series, err := p.primary.Candles(ctx, symbol, interval, limit)
	if err == nil && len(series) > 0 {
		return series, nil
	}
	if p.secondary == nil {
		if err == nil {
			err = ErrNoData
		}
		return nil, err
	}

	spot := p.spotSymbol
	if spot == "" {
		spot = symbol
	}
	p.logger.Warn("Futures candles unavailable, falling back to spot",
		zap.String("Symbol", symbol), zap.String("Spot", spot), zap.Error(err))

	series, spotErr := p.secondary.Candles(ctx, spot, interval, limit)
	if spotErr != nil {
		return nil, fmt.Errorf("futures: %v; spot: %w", err, spotErr)
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return series, nil
}

var quoteAssets = []string{"USDT", "USDC", "USD"}

// SplitSymbol 把 BTCUSDT 拆成 BTC / USDT，未识别的计价币返回 ok=false
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	s := strings.ToUpper(strings.NewReplacer("-", "", "_", "", "/", "").Replace(symbol))
	for _, q := range quoteAssets {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q, true
		}
	}
	return s, "", false
}
