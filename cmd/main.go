package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"whale-footprint-bot/internal/api"
	"whale-footprint-bot/internal/metrics"
	"whale-footprint-bot/internal/notify"
	"whale-footprint-bot/internal/scanner"
	"whale-footprint-bot/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	if err := service.InitLogger("info"); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	configPath := "config"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		service.Logger.Fatal("Configuration directory 'config/' not found. Please create it.")
	}
	cfg, err := service.LoadConfig(configPath)
	if err != nil {
		service.Logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := service.InitLogger(cfg.Log.Level); err != nil {
		service.Logger.Fatal("Invalid log level", zap.String("Level", cfg.Log.Level), zap.Error(err))
	}
	defer service.Logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second

	// 1. 指标 (所有实例共享一个 registry)
	m := metrics.New()
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, service.Logger); err != nil {
				service.Logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// 2. 推送渠道
	var sink notify.Sink = notify.NewLogNotifier(service.Logger)
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		sink = notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
	} else {
		service.Logger.Warn("Telegram credentials missing, alerts will only be logged")
	}

	// 3. 持仓量与清算热力图
	oi := newOpenInterestProvider(cfg, timeout)
	heatmap := newHeatmapSource(ctx, cfg, timeout)

	// 4. K 线短期缓存
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = api.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer redisClient.Close()
	}

	// 5. 为每个交易实例启动一个隔离的扫描 Goroutine
	poll := time.Duration(cfg.PollSeconds) * time.Second
	var wg sync.WaitGroup
	for instanceName, instanceCfg := range cfg.Instances {
		service.Logger.Info(fmt.Sprintf("Instance: %s, Symbol: %s", instanceName, instanceCfg.Symbol))

		instanceLogger := service.Logger.With(zap.String("Instance", instanceName), zap.String("Symbol", instanceCfg.Symbol))
		instance := instanceCfg
		s, err := scanner.New(instanceName, &instance, poll, scanner.Deps{
			Candles: newCandleProvider(cfg, &instance, timeout, redisClient, instanceLogger),
			OI:      oi,
			Heatmap: heatmap,
			Sink:    sink,
			Metrics: m,
			Logger:  service.Logger,
		})
		if err != nil {
			service.Logger.Fatal("Failed to create scanner", zap.String("Instance", instanceName), zap.Error(err))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run(ctx)
		}()
	}

	service.Logger.Info("All scanners started. Waiting for signals...")
	<-ctx.Done()
	service.Logger.Info("Shutdown signal received, waiting for scanners to stop")
	wg.Wait()
}

// newCandleProvider 合约 K 线 (可选现货回退) + 可选 Redis 缓存
func newCandleProvider(cfg *service.Config, inst *service.InstanceConfig, timeout time.Duration,
	redisClient *redis.Client, logger *zap.Logger) api.CandleProvider {

	var primary, secondary api.CandleProvider
	switch cfg.Exchange.Name {
	case "binance":
		primary = api.NewBinanceFuturesClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.RESTURL)
		if cfg.Exchange.SpotFallback {
			secondary = api.NewBinanceSpotClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, "")
		}
	default:
		primary = api.NewOkxClient(cfg.Exchange.RESTURL, timeout)
		if cfg.Exchange.SpotFallback {
			secondary = api.NewOkxSpotClient(cfg.Exchange.RESTURL, timeout)
		}
	}

	var provider api.CandleProvider = api.NewFallbackProvider(primary, secondary, inst.SpotSymbol, logger)
	if redisClient != nil {
		provider = api.NewCachedProvider(provider, redisClient, time.Duration(cfg.Redis.TTLSeconds)*time.Second, logger)
	}
	return provider
}

func newOpenInterestProvider(cfg *service.Config, timeout time.Duration) api.OpenInterestProvider {
	if cfg.Exchange.Name == "binance" {
		return api.NewBinanceFuturesClient(cfg.Exchange.APIKey, cfg.Exchange.SecretKey, cfg.Exchange.RESTURL)
	}
	return api.NewOkxClient(cfg.Exchange.RESTURL, timeout)
}

// newHeatmapSource okx 来源会启动后台 WS 订阅，ctx 取消时退出
func newHeatmapSource(ctx context.Context, cfg *service.Config, timeout time.Duration) api.HeatmapSource {
	hc := cfg.Heatmap
	switch hc.Source {
	case service.HeatmapCoinGlass:
		return api.NewCoinGlassClient(hc.CoinGlassURL, hc.CoinGlassAPIKey, hc.TimeType, timeout)

	case service.HeatmapOKX:
		restURL := cfg.Exchange.RESTURL
		if cfg.Exchange.Name != "okx" || restURL == "" {
			restURL = service.OkxRESTURL
		}
		okx := api.NewOkxClient(restURL, timeout)

		// 合约面值用于把强平张数换算成名义价值，查询失败时按 1 处理
		contracts := make(map[string]float64, len(cfg.Instances))
		for _, inst := range cfg.Instances {
			ctVal, err := okx.ContractValue(ctx, inst.Symbol)
			if err != nil {
				service.Logger.Warn("Contract value lookup failed, assuming 1",
					zap.String("Symbol", inst.Symbol), zap.Error(err))
			}
			contracts[inst.Symbol] = ctVal
		}

		watcher := api.NewLiquidationWatcher(cfg.Exchange.WSURL, contracts,
			time.Duration(hc.WindowMinutes)*time.Minute, hc.BucketSize)
		go watcher.Start(ctx)
		return watcher
	}
	return nil
}
