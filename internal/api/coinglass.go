package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"whale-footprint-bot/internal/model"

	"github.com/tidwall/gjson"
)

// CoinGlassClient 公共 liquidation_info 接口。返回结构不稳定，用 gjson 按路径宽松解析。
type CoinGlassClient struct {
	baseURL    string
	apiKey     string
	timeType   string
	httpClient *http.Client
}

func NewCoinGlassClient(baseURL, apiKey, timeType string, timeout time.Duration) *CoinGlassClient {
	if timeType == "" {
		timeType = "h1"
	}
	return &CoinGlassClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeType:   timeType,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CoinGlassSymbol BTCUSDT -> BTC (最多 6 个字符)
func CoinGlassSymbol(symbol string) string {
	base, _, _ := SplitSymbol(symbol)
	if len(base) > 6 {
		base = base[:6]
	}
	return base
}

func (c *CoinGlassClient) Heatmap(ctx context.Context, symbol string) (model.Heatmap, error) {
	q := url.Values{}
	q.Set("time_type", c.timeType)
	q.Set("symbol", CoinGlassSymbol(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/liquidation_info?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("coinglass: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("coinglassSecret", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coinglass: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coinglass: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coinglass: read body: %w", err)
	}
	return ParseCoinGlassHeatmap(body), nil
}

// ParseCoinGlassHeatmap 从 data.items (或 data.list) 中取 price / liquidation，
// 零值条目跳过，相同价格累加。结构不符时返回空热力图。
func ParseCoinGlassHeatmap(body []byte) model.Heatmap {
	heatmap := model.Heatmap{}

	items := gjson.GetBytes(body, "data.items")
	if !items.IsArray() || len(items.Array()) == 0 {
		items = gjson.GetBytes(body, "data.list")
	}
	if !items.IsArray() {
		return heatmap
	}

	items.ForEach(func(_, it gjson.Result) bool {
		if !it.IsObject() {
			return true
		}
		price := it.Get("price").Float()
		amount := it.Get("liquidation").Float()
		if price != 0 && amount != 0 {
			heatmap.Add(price, amount)
		}
		return true
	})
	return heatmap
}
