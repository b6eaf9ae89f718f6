package api

import (
	"context"
	"fmt"
	"time"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
)

// BinanceKline 合约和现货 K 线的公共字段
type BinanceKline struct {
	OpenTime  int64
	CloseTime int64
	Open      string
	High      string
	Low       string
	Close     string
	Volume    string
}

// BinanceFuturesClient U 本位合约行情 (K 线 + 持仓量)
type BinanceFuturesClient struct {
	client *futures.Client
	now    func() time.Time
}

// NewBinanceFuturesClient baseURL 为空时使用 SDK 默认地址
func NewBinanceFuturesClient(apiKey, secretKey, baseURL string) *BinanceFuturesClient {
	c := futures.NewClient(apiKey, secretKey)
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return &BinanceFuturesClient{client: c, now: time.Now}
}

func (b *BinanceFuturesClient) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	iv, err := binanceInterval(interval)
	if err != nil {
		return nil, err
	}
	klines, err := b.client.NewKlinesService().
		Symbol(binanceSymbol(symbol)).
		Interval(iv).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance futures klines: %w", err)
	}

	rows := make([]BinanceKline, 0, len(klines))
	for _, k := range klines {
		rows = append(rows, BinanceKline{
			OpenTime: k.OpenTime, CloseTime: k.CloseTime,
			Open: k.Open, High: k.High, Low: k.Low, Close: k.Close, Volume: k.Volume,
		})
	}
	return finishBinanceCandles(rows, b.now())
}

func (b *BinanceFuturesClient) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	res, err := b.client.NewGetOpenInterestService().Symbol(binanceSymbol(symbol)).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance open interest: %w", err)
	}
	oi, err := service.StringToFloat(res.OpenInterest)
	if err != nil {
		return 0, fmt.Errorf("binance open interest: bad value %q: %w", res.OpenInterest, err)
	}
	return oi, nil
}

// BinanceSpotClient 现货 K 线，只用于回退
type BinanceSpotClient struct {
	client *binance.Client
	now    func() time.Time
}

func NewBinanceSpotClient(apiKey, secretKey, baseURL string) *BinanceSpotClient {
	c := binance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return &BinanceSpotClient{client: c, now: time.Now}
}

func (b *BinanceSpotClient) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	iv, err := binanceInterval(interval)
	if err != nil {
		return nil, err
	}
	klines, err := b.client.NewKlinesService().
		Symbol(binanceSymbol(symbol)).
		Interval(iv).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance spot klines: %w", err)
	}

	rows := make([]BinanceKline, 0, len(klines))
	for _, k := range klines {
		rows = append(rows, BinanceKline{
			OpenTime: k.OpenTime, CloseTime: k.CloseTime,
			Open: k.Open, High: k.High, Low: k.Low, Close: k.Close, Volume: k.Volume,
		})
	}
	return finishBinanceCandles(rows, b.now())
}

// finishBinanceCandles 转换为 Candle，丢弃尚未收盘 (CloseTime 在 now 之后) 和非法的 K 线
func finishBinanceCandles(rows []BinanceKline, now time.Time) (model.Series, error) {
	out := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		if r.CloseTime > now.UnixMilli() {
			continue
		}
		var vals [5]float64
		for i, s := range []string{r.Open, r.High, r.Low, r.Close, r.Volume} {
			v, err := service.StringToFloat(s)
			if err != nil {
				return nil, fmt.Errorf("binance klines: bad value %q: %w", s, err)
			}
			vals[i] = v
		}
		c := model.Candle{
			Time:   r.OpenTime / 1000,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		}
		if c.Valid() {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return model.Normalize(out), nil
}

// binanceInterval Binance 只接受小写单位，例如 1h / 1d
func binanceInterval(interval string) (string, error) {
	d, err := service.ParseIntervalDuration(interval)
	if err != nil {
		return "", err
	}
	return service.FormatInterval(d), nil
}

func binanceSymbol(symbol string) string {
	base, quote, ok := SplitSymbol(symbol)
	if !ok {
		return symbol
	}
	return base + quote
}
