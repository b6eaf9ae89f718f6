package api

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"whale-footprint-bot/internal/model"
	"whale-footprint-bot/internal/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	okxLiquidationChannel = "liquidation-orders"

	// OKX 30 秒无消息会断开连接
	wsPingInterval = 25 * time.Second
	wsMaxRetry     = 60 * time.Second
)

// OkxWsData 适用于 Okx V5 的通用推送结构
type OkxWsData struct {
	Arg struct {
		Channel  string `json:"channel"`
		InstType string `json:"instType"`
	} `json:"arg"`
	Data  json.RawMessage `json:"data"` // 延迟解析
	Event string          `json:"event"`
	Msg   string          `json:"msg"`
}

// OkxLiquidationData liquidation-orders 频道的单个合约
type OkxLiquidationData struct {
	InstId  string                 `json:"instId"`
	Details []OkxLiquidationDetail `json:"details"`
}

// OkxLiquidationDetail 单笔强平
type OkxLiquidationDetail struct {
	Side    string `json:"side"`
	PosSide string `json:"posSide"`
	BkPx    string `json:"bkPx"` // 破产价格
	Sz      string `json:"sz"`   // 张数
	Ts      string `json:"ts"`
}

// InstMap 映射 InstId 到 Symbol (例如 BTC-USDT-SWAP -> BTCUSDT)
type InstMap map[string]string

// LiquidationWatcher 订阅 OKX 全市场强平推送，按交易对聚合成滑动窗口热力图。
// 所有实例共享一个连接，Heatmap 可以并发调用。
type LiquidationWatcher struct {
	wsURL        string
	instToSymbol InstMap
	ctVal        map[string]float64 // InstId -> 合约面值
	agg          *LiquidationAggregator
}

// NewLiquidationWatcher contracts 为 Symbol -> 合约面值，面值未知 (<=0) 时按 1 计算
func NewLiquidationWatcher(wsURL string, contracts map[string]float64, window time.Duration, bucket float64) *LiquidationWatcher {
	instToSymbol := make(InstMap, len(contracts))
	ctVal := make(map[string]float64, len(contracts))
	symbols := make([]string, 0, len(contracts))
	for symbol, v := range contracts {
		instID := OkxInstID(symbol, true)
		instToSymbol[instID] = symbol
		if v <= 0 {
			v = 1
		}
		ctVal[instID] = v
		symbols = append(symbols, symbol)
	}

	service.Logger.Info("Liquidation watcher initialized", zap.Strings("Symbols", symbols))

	return &LiquidationWatcher{
		wsURL:        wsURL,
		instToSymbol: instToSymbol,
		ctVal:        ctVal,
		agg:          NewLiquidationAggregator(window, bucket),
	}
}

// Heatmap 返回当前窗口内的清算热力图快照
func (w *LiquidationWatcher) Heatmap(_ context.Context, symbol string) (model.Heatmap, error) {
	return w.agg.Snapshot(symbol, time.Now()), nil
}

// Start 阻塞运行，断线后指数退避重连，直到 ctx 取消
func (w *LiquidationWatcher) Start(ctx context.Context) {
	retry := 2 * time.Second
	for {
		err := w.runConnection(ctx)
		if ctx.Err() != nil {
			service.Logger.Info("Liquidation watcher stopped")
			return
		}
		service.Logger.Warn("Liquidation stream dropped, reconnecting...",
			zap.Error(err), zap.Duration("Retry", retry))

		select {
		case <-time.After(retry):
		case <-ctx.Done():
			return
		}
		retry = min(retry*2, wsMaxRetry)
	}
}

// runConnection 建立一次连接并持续读取，返回即代表连接已断开
func (w *LiquidationWatcher) runConnection(ctx context.Context) error {
	service.Logger.Info("Connecting to Okx WS...", zap.String("URL", w.wsURL))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	subscribeMsg := map[string]interface{}{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": okxLiquidationChannel, "instType": okxInstSwap},
		},
	}
	if err := conn.WriteJSON(subscribeMsg); err != nil {
		return err
	}
	service.Logger.Info("Subscribed to Okx liquidation stream")

	// ctx 取消时关闭连接，让 ReadMessage 退出
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					return
				}
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		w.handleMessage(message)
	}
}

// handleMessage 解析推送并写入聚合器，无关消息 (pong、订阅回执、未关注的合约) 直接忽略
func (w *LiquidationWatcher) handleMessage(message []byte) {
	var wsResp OkxWsData
	if err := json.Unmarshal(message, &wsResp); err != nil {
		return
	}
	if wsResp.Event != "" {
		if wsResp.Event == "error" {
			service.Logger.Error("Okx WS error event", zap.String("Msg", wsResp.Msg))
		}
		return
	}
	if wsResp.Arg.Channel != okxLiquidationChannel || len(wsResp.Data) == 0 {
		return
	}

	var items []OkxLiquidationData
	if err := json.Unmarshal(wsResp.Data, &items); err != nil {
		service.Logger.Error("Liquidation data unmarshal error", zap.Error(err))
		return
	}

	for _, item := range items {
		symbol, ok := w.instToSymbol[item.InstId]
		if !ok {
			continue
		}
		for _, d := range item.Details {
			price, err := service.StringToFloat(d.BkPx)
			if err != nil || price <= 0 {
				continue
			}
			size, err := service.StringToFloat(d.Sz)
			if err != nil || size <= 0 {
				continue
			}
			ts, err := service.StringToInt64(d.Ts)
			if err != nil {
				continue
			}

			// 名义价值 = 张数 * 面值 * 价格
			w.agg.Add(symbol, price, size*w.ctVal[item.InstId]*price, time.UnixMilli(ts))
		}
	}
}

// liqEvent 窗口内的一笔强平
type liqEvent struct {
	price  float64
	amount float64
	ts     time.Time
}

// LiquidationAggregator 按交易对保存滑动窗口内的强平，快照时按价格档位聚合
type LiquidationAggregator struct {
	mu     sync.Mutex
	events map[string][]liqEvent
	window time.Duration
	bucket float64
}

// NewLiquidationAggregator bucket <= 0 时不分档，直接使用原始价格
func NewLiquidationAggregator(window time.Duration, bucket float64) *LiquidationAggregator {
	return &LiquidationAggregator{
		events: make(map[string][]liqEvent),
		window: window,
		bucket: bucket,
	}
}

func (a *LiquidationAggregator) Add(symbol string, price, amount float64, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	events := append(a.events[symbol], liqEvent{price: price, amount: amount, ts: ts})

	// 没有实例读取的交易对也不能无限增长，按推送顺序丢弃过期的头部
	cutoff := ts.Add(-a.window)
	i := 0
	for i < len(events)-1 && !events[i].ts.After(cutoff) {
		i++
	}
	a.events[symbol] = events[i:]
}

// Snapshot 丢弃窗口外的事件并返回聚合结果 (调用方独占返回的 map)
func (a *LiquidationAggregator) Snapshot(symbol string, now time.Time) model.Heatmap {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := now.Add(-a.window)
	events := a.events[symbol]
	kept := events[:0]
	for _, ev := range events {
		if ev.ts.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	a.events[symbol] = kept

	heatmap := make(model.Heatmap, len(kept))
	for _, ev := range kept {
		heatmap.Add(a.bucketPrice(ev.price), ev.amount)
	}
	return heatmap
}

func (a *LiquidationAggregator) bucketPrice(price float64) float64 {
	if a.bucket <= 0 {
		return price
	}
	return math.Round(price/a.bucket) * a.bucket
}
