package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"
)

const (
	okxInstSwap = "SWAP"
	okxInstSpot = "SPOT"

	// OKX 单次最多返回 300 根
	okxMaxCandles = 300
)

// OkxRestResp OKX V5 REST 通用响应
type OkxRestResp struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// OkxOpenInterest public/open-interest 返回的单条记录
type OkxOpenInterest struct {
	InstId string `json:"instId"`
	OI     string `json:"oi"`
	OICcy  string `json:"oiCcy"`
	Ts     string `json:"ts"`
}

// OkxClient OKX 公共行情 REST 客户端，instType 决定拉合约 (SWAP) 还是现货 (SPOT)
type OkxClient struct {
	baseURL    string
	instType   string
	httpClient *http.Client
}

// NewOkxClient 创建合约行情客户端
func NewOkxClient(baseURL string, timeout time.Duration) *OkxClient {
	return newOkxClient(baseURL, okxInstSwap, timeout)
}

// NewOkxSpotClient 创建现货行情客户端 (只用于 K 线回退)
func NewOkxSpotClient(baseURL string, timeout time.Duration) *OkxClient {
	return newOkxClient(baseURL, okxInstSpot, timeout)
}

func newOkxClient(baseURL, instType string, timeout time.Duration) *OkxClient {
	return &OkxClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		instType:   instType,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// InstID 映射交易对: BTCUSDT -> BTC-USDT-SWAP (合约) / BTC-USDT (现货)
func (c *OkxClient) InstID(symbol string) string {
	return OkxInstID(symbol, c.instType == okxInstSwap)
}

// OkxInstID 已经是 OKX 格式 (带 "-") 的交易对原样返回
func OkxInstID(symbol string, swap bool) string {
	if strings.Contains(symbol, "-") {
		return symbol
	}
	base, quote, ok := SplitSymbol(symbol)
	if !ok {
		return symbol
	}
	if swap {
		return base + "-" + quote + "-SWAP"
	}
	return base + "-" + quote
}

// OkxBar 把通用周期写法转换成 OKX bar 参数 (小时及以上需要大写)
func OkxBar(interval string) (string, error) {
	d, err := service.ParseIntervalDuration(interval)
	if err != nil {
		return "", err
	}
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dD", int(d/(24*time.Hour))), nil
	case d%time.Hour == 0:
		return fmt.Sprintf("%dH", int(d/time.Hour)), nil
	default:
		return fmt.Sprintf("%dm", int(d/time.Minute)), nil
	}
}

// Candles GET /api/v5/market/candles，过滤未收盘的 K 线并按时间升序返回
func (c *OkxClient) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	bar, err := OkxBar(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > okxMaxCandles {
		limit = okxMaxCandles
	}

	q := url.Values{}
	q.Set("instId", c.InstID(symbol))
	q.Set("bar", bar)
	q.Set("limit", strconv.Itoa(limit))

	data, err := c.get(ctx, "/api/v5/market/candles", q)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("okx candles: decode data: %w", err)
	}
	series, err := ParseOkxCandles(rows)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, ErrNoData
	}
	return series, nil
}

// ParseOkxCandles 解析 [ts,o,h,l,c,vol,volCcy,volCcyQuote,confirm] 数组 (OKX 按时间倒序返回)。
// confirm == "0" 的 K 线尚未收盘，直接丢弃；不满足 OHLC 约束的 K 线同样丢弃。
func ParseOkxCandles(rows [][]string) (model.Series, error) {
	out := make([]model.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("okx candles: short row %v", r)
		}
		if len(r) >= 9 && r[8] == "0" {
			continue
		}

		ts, err := service.StringToInt64(r[0])
		if err != nil {
			return nil, fmt.Errorf("okx candles: bad ts %q: %w", r[0], err)
		}
		var vals [5]float64
		for i := range vals {
			v, err := service.StringToFloat(r[i+1])
			if err != nil {
				return nil, fmt.Errorf("okx candles: bad value %q: %w", r[i+1], err)
			}
			vals[i] = v
		}

		c := model.Candle{
			Time:   ts / 1000,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		}
		if !c.Valid() {
			continue
		}
		out = append(out, c)
	}
	return model.Normalize(out), nil
}

// OpenInterest GET /api/v5/public/open-interest，返回合约张数口径的持仓量
func (c *OkxClient) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("instType", okxInstSwap)
	q.Set("instId", OkxInstID(symbol, true))

	data, err := c.get(ctx, "/api/v5/public/open-interest", q)
	if err != nil {
		return 0, err
	}

	var items []OkxOpenInterest
	if err := json.Unmarshal(data, &items); err != nil {
		return 0, fmt.Errorf("okx open interest: decode data: %w", err)
	}
	if len(items) == 0 {
		return 0, ErrNoData
	}
	oi, err := service.StringToFloat(items[0].OI)
	if err != nil {
		return 0, fmt.Errorf("okx open interest: bad oi %q: %w", items[0].OI, err)
	}
	return oi, nil
}

// ContractValue GET /api/v5/public/instruments，返回合约面值 (ctVal)，用于把强平张数换算成名义价值
func (c *OkxClient) ContractValue(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("instType", okxInstSwap)
	q.Set("instId", OkxInstID(symbol, true))

	data, err := c.get(ctx, "/api/v5/public/instruments", q)
	if err != nil {
		return 0, err
	}

	var items []struct {
		CtVal string `json:"ctVal"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return 0, fmt.Errorf("okx instruments: decode data: %w", err)
	}
	if len(items) == 0 {
		return 0, ErrNoData
	}
	return service.StringToFloat(items[0].CtVal)
}

func (c *OkxClient) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("okx: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("okx %s: read body: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("okx %s: unexpected status %d", path, resp.StatusCode)
	}

	var r OkxRestResp
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("okx %s: decode: %w", path, err)
	}
	if r.Code != "0" {
		return nil, fmt.Errorf("okx %s: code %s: %s", path, r.Code, r.Msg)
	}
	return r.Data, nil
}
