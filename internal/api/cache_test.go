package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap/zaptest"
)

// 指向一个不可达的地址: 缓存必须降级为直连数据源
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestCachedProvider_BypassesUnavailableRedis(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()

	next := &fakeCandles{series: oneCandle(42)}
	p := NewCachedProvider(next, client, 10*time.Second, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		series, err := p.Candles(context.Background(), "BTCUSDT", "15m", 300)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if len(series) != 1 || series[0].Time != 42 {
			t.Fatalf("call %d: unexpected series %+v", i, series)
		}
	}
	if next.calls != 2 {
		t.Errorf("expected every call to reach the provider, got %d", next.calls)
	}
}

func TestCachedProvider_PropagatesErrors(t *testing.T) {
	client := unreachableRedis()
	defer client.Close()

	p := NewCachedProvider(&fakeCandles{err: ErrNoData}, client, time.Second, zaptest.NewLogger(t))
	if _, err := p.Candles(context.Background(), "BTCUSDT", "15m", 300); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCandleKey(t *testing.T) {
	if got := candleKey("BTCUSDT", "15m", 300); got != "whalebot:candles:BTCUSDT:15m:300" {
		t.Errorf("unexpected key %s", got)
	}
}
