package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"whale-footprint-bot/internal/model"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const candleKeyPrefix = "whalebot:candles:"

// CachedProvider 在 REST 数据源前加一层短 TTL 的 Redis 缓存，
// 多个实例扫描同一交易对/周期时只请求一次交易所。Redis 故障时直接穿透到数据源。
type CachedProvider struct {
	next   CandleProvider
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisClient 按配置创建 Redis 客户端 (不在这里 Ping，连接失败时缓存自动降级)
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewCachedProvider(next CandleProvider, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	return &CachedProvider{next: next, client: client, ttl: ttl, logger: logger}
}

func candleKey(symbol, interval string, limit int) string {
	return fmt.Sprintf("%s%s:%s:%d", candleKeyPrefix, symbol, interval, limit)
}

func (c *CachedProvider) Candles(ctx context.Context, symbol, interval string, limit int) (model.Series, error) {
	key := candleKey(symbol, interval, limit)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var series model.Series
		if err := json.Unmarshal(data, &series); err == nil && len(series) > 0 {
			return series, nil
		}
		c.logger.Warn("Discarding undecodable cached candles", zap.String("Key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Redis get failed, bypassing cache", zap.String("Key", key), zap.Error(err))
	}

	series, err := c.next.Candles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(series); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Redis set failed", zap.String("Key", key), zap.Error(err))
		}
	}
	return series, nil
}
