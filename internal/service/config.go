// internal/service/config.go
package service

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig 配置校验失败，在任何评估周期开始前返回
var ErrInvalidConfig = errors.New("invalid configuration")

// 识别模式
const (
	ModeFootprint = "footprint"
	ModeSweep     = "sweep"
)

// 止损偏移策略
const (
	StopOffsetNone     = "none"
	StopOffsetAbsolute = "absolute"
	StopOffsetPips     = "pips"
	StopOffsetPercent  = "percent"
	StopOffsetATR      = "atr"
)

// OKX 公共地址，清算流总是来自 OKX
const (
	OkxRESTURL     = "https://www.okx.com"
	OkxPublicWSURL = "wss://ws.okx.com:8443/ws/v5/public"
)

// 清算热力图来源
const (
	HeatmapOKX       = "okx"
	HeatmapCoinGlass = "coinglass"
	HeatmapNone      = "none"
)

type Config struct {
	Exchange    ExchangeConfig            `mapstructure:"Exchange"`
	Heatmap     HeatmapConfig             `mapstructure:"Heatmap"`
	Redis       RedisConfig               `mapstructure:"Redis"`
	Metrics     MetricsConfig             `mapstructure:"Metrics"`
	Telegram    TelegramConfig            `mapstructure:"Telegram"`
	Log         LogConfig                 `mapstructure:"Log"`
	PollSeconds int                       `mapstructure:"PollSeconds"`
	Instances   map[string]InstanceConfig `mapstructure:"Instances"`
}

// ExchangeConfig 定义了交易所的连接信息
type ExchangeConfig struct {
	Name           string // okx 或 binance
	APIKey         string
	SecretKey      string
	Passphrase     string // Okx 独有
	WSURL          string
	RESTURL        string
	SpotFallback   bool // 合约 K 线拉取失败时回退到现货
	TimeoutSeconds int
}

// HeatmapConfig 清算热力图数据源
type HeatmapConfig struct {
	Source          string // okx (WS 清算流) / coinglass / none
	CoinGlassURL    string
	CoinGlassAPIKey string
	TimeType        string  // coinglass time_type，例如 h1
	BucketSize      float64 // WS 清算聚合的价格档位宽度
	WindowMinutes   int     // WS 清算滑动窗口
}

// RedisConfig K 线短期缓存
type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	TTLSeconds int
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

type TelegramConfig struct {
	Token  string
	ChatID string
}

type LogConfig struct {
	Level string
}

type InstanceConfig struct {
	Symbol        string
	SpotSymbol    string // 现货回退使用的交易对，默认同 Symbol
	Interval      string // 信号周期，例如 15m
	FineInterval  string // 二次回踩确认使用的小周期，例如 1m
	CandleLimit   int
	FineLimit     int
	NotifyNoSetup bool // 每个周期没有合格信号时也推送提示
	Strategy      StrategyConfig
	Confirm       ConfirmConfig
	Risk          RiskConfig
	Alerts        AlertConfig
}

// StrategyConfig 形态识别参数
type StrategyConfig struct {
	Mode           string  // footprint (Mode A) / sweep (Mode B)
	VolSMALen      int     // 成交量均线长度
	VolMult        float64 // 放量倍数
	WickRatio      float64 // Mode A 影线比例阈值 (>=)
	MinRange       float64 // 最小振幅，0 表示不限制
	SweepLookback  int     // Mode B 回看根数
	SweepWickRatio float64 // Mode B 下影线比例阈值 (>)
	RecencyBars    int     // 只处理最近 N 根内的候选
	Session        SessionConfig
}

// SessionConfig 交易时段过滤，UTC 小时 [StartHour, EndHour)
type SessionConfig struct {
	Enabled   bool
	StartHour int
	EndHour   int
}

type ConfirmConfig struct {
	OI          OIConfig
	CVD         CVDConfig
	Liquidation LiquidationConfig
	SecondTouch SecondTouchConfig
}

type OIConfig struct {
	Enabled      bool
	ThresholdPct float64
}

type CVDConfig struct {
	Enabled bool
}

type LiquidationConfig struct {
	Enabled        bool
	Threshold      float64
	WindowFloor    float64 // 价格窗口下限
	WindowFraction float64 // 价格窗口 = max(WindowFloor, price*WindowFraction)
}

type SecondTouchConfig struct {
	Enabled      bool
	MinTouches   int
	Tolerance    float64 // 区间下沿容差 (占下沿价格的比例)
	VolumeMult   float64
	EntryOffset  float64
	FallbackBars int
}

// RiskConfig 风险回报与止损偏移
type RiskConfig struct {
	RR         float64
	StopOffset StopOffsetConfig
}

// StopOffsetConfig 不同品种的止损缓冲，绝对值在不同资产间差异很大
type StopOffsetConfig struct {
	Kind      string  // none / absolute / pips / percent / atr
	Value     float64 // absolute: 价格; pips: 点数; percent: 百分比; atr: ATR 倍数
	PipSize   float64
	ATRPeriod int
}

type AlertConfig struct {
	Capacity    int
	PruneTarget int
}

// LoadConfig 读取 .env 与 config/config.yaml，补全默认值并校验
func LoadConfig(configPath string) (*Config, error) {
	// .env 只用于本地调试，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	setDefaults(v)

	// 敏感信息从环境变量注入
	_ = v.BindEnv("Telegram.Token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("Telegram.ChatID", "TELEGRAM_CHAT_ID")
	_ = v.BindEnv("Exchange.APIKey", "EXCHANGE_API_KEY")
	_ = v.BindEnv("Exchange.SecretKey", "EXCHANGE_API_SECRET")
	_ = v.BindEnv("Exchange.Passphrase", "EXCHANGE_PASSPHRASE")
	_ = v.BindEnv("Heatmap.CoinGlassAPIKey", "COINGLASS_API_KEY")
	_ = v.BindEnv("Redis.Password", "REDIS_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file not found in %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Exchange.Name", "okx")
	v.SetDefault("Exchange.WSURL", OkxPublicWSURL)
	v.SetDefault("Exchange.TimeoutSeconds", 12)
	v.SetDefault("Heatmap.Source", HeatmapOKX)
	v.SetDefault("Heatmap.CoinGlassURL", "https://open-api.coinglass.com/public/v2")
	v.SetDefault("Heatmap.TimeType", "h1")
	v.SetDefault("Heatmap.WindowMinutes", 60)
	v.SetDefault("Redis.Addr", "localhost:6379")
	v.SetDefault("Redis.TTLSeconds", 10)
	v.SetDefault("Metrics.Addr", ":9090")
	v.SetDefault("Log.Level", "info")
	v.SetDefault("PollSeconds", 60)
}

// ApplyDefaults 为实例中未填写的数值参数补默认值
func (c *Config) ApplyDefaults() {
	// binance 留空使用 SDK 自带地址
	if c.Exchange.Name == "okx" && c.Exchange.RESTURL == "" {
		c.Exchange.RESTURL = OkxRESTURL
	}
	for name, inst := range c.Instances {
		inst.applyDefaults()
		c.Instances[name] = inst
	}
}

// DefaultInstanceConfig 返回填好默认参数的实例配置 (所有确认检查默认关闭)
func DefaultInstanceConfig(symbol string) InstanceConfig {
	ic := InstanceConfig{Symbol: symbol}
	ic.applyDefaults()
	return ic
}

func (ic *InstanceConfig) applyDefaults() {
	if ic.SpotSymbol == "" {
		ic.SpotSymbol = ic.Symbol
	}
	if ic.Interval == "" {
		ic.Interval = "15m"
	}
	if ic.FineInterval == "" {
		ic.FineInterval = "1m"
	}
	if ic.CandleLimit == 0 {
		ic.CandleLimit = 300
	}
	if ic.FineLimit == 0 {
		ic.FineLimit = 120
	}

	s := &ic.Strategy
	if s.Mode == "" {
		s.Mode = ModeFootprint
	}
	if s.VolSMALen == 0 {
		s.VolSMALen = 20
	}
	if s.VolMult == 0 {
		s.VolMult = 2.2
	}
	if s.WickRatio == 0 {
		s.WickRatio = 0.35
	}
	if s.SweepLookback == 0 {
		s.SweepLookback = 20
	}
	if s.SweepWickRatio == 0 {
		s.SweepWickRatio = 0.35
	}
	if s.RecencyBars == 0 {
		s.RecencyBars = 4
	}
	if s.Session.StartHour == 0 && s.Session.EndHour == 0 {
		// 纽约时段
		s.Session.StartHour, s.Session.EndHour = 12, 17
	}

	cf := &ic.Confirm
	if cf.OI.ThresholdPct == 0 {
		cf.OI.ThresholdPct = 1.5
	}
	if cf.Liquidation.Threshold == 0 {
		cf.Liquidation.Threshold = 10000
	}
	if cf.Liquidation.WindowFloor == 0 {
		cf.Liquidation.WindowFloor = 50
	}
	if cf.Liquidation.WindowFraction == 0 {
		cf.Liquidation.WindowFraction = 0.005
	}
	if cf.SecondTouch.MinTouches == 0 {
		cf.SecondTouch.MinTouches = 2
	}
	if cf.SecondTouch.Tolerance == 0 {
		cf.SecondTouch.Tolerance = 0.0005
	}
	if cf.SecondTouch.VolumeMult == 0 {
		cf.SecondTouch.VolumeMult = 1.0
	}
	if cf.SecondTouch.FallbackBars == 0 {
		cf.SecondTouch.FallbackBars = 6
	}

	r := &ic.Risk
	if r.RR == 0 {
		r.RR = 4
	}
	if r.StopOffset.Kind == "" {
		r.StopOffset.Kind = StopOffsetNone
	}
	if r.StopOffset.ATRPeriod == 0 {
		r.StopOffset.ATRPeriod = 14
	}

	if ic.Alerts.Capacity == 0 {
		ic.Alerts.Capacity = 2000
	}
	if ic.Alerts.PruneTarget == 0 {
		ic.Alerts.PruneTarget = 1000
	}
}

// Validate 拒绝非法阈值，核心逻辑假定配置已经校验过
func (c *Config) Validate() error {
	var errs []error
	if c.PollSeconds <= 0 {
		errs = append(errs, fmt.Errorf("PollSeconds must be positive, got %d", c.PollSeconds))
	}
	switch c.Exchange.Name {
	case "okx", "binance":
	default:
		errs = append(errs, fmt.Errorf("unsupported exchange %q", c.Exchange.Name))
	}
	switch c.Heatmap.Source {
	case HeatmapOKX, HeatmapCoinGlass, HeatmapNone:
	default:
		errs = append(errs, fmt.Errorf("unsupported heatmap source %q", c.Heatmap.Source))
	}
	if len(c.Instances) == 0 {
		errs = append(errs, errors.New("no instances configured"))
	}
	for name, inst := range c.Instances {
		if err := inst.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("instance %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Validate 校验单个交易实例
func (ic InstanceConfig) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if ic.Symbol == "" {
		add("Symbol is required")
	}
	if _, err := ParseIntervalDuration(ic.Interval); err != nil {
		add("Interval: %v", err)
	}
	if _, err := ParseIntervalDuration(ic.FineInterval); err != nil {
		add("FineInterval: %v", err)
	}
	if ic.CandleLimit <= 0 || ic.FineLimit <= 0 {
		add("CandleLimit and FineLimit must be positive")
	}

	s := ic.Strategy
	if s.Mode != ModeFootprint && s.Mode != ModeSweep {
		add("Strategy.Mode must be %q or %q, got %q", ModeFootprint, ModeSweep, s.Mode)
	}
	if s.VolSMALen <= 0 {
		add("Strategy.VolSMALen must be positive")
	}
	if s.VolMult <= 0 {
		add("Strategy.VolMult must be positive")
	}
	if s.WickRatio <= 0 || s.WickRatio >= 1 {
		add("Strategy.WickRatio must be in (0,1)")
	}
	if s.SweepWickRatio <= 0 || s.SweepWickRatio >= 1 {
		add("Strategy.SweepWickRatio must be in (0,1)")
	}
	if s.MinRange < 0 {
		add("Strategy.MinRange must not be negative")
	}
	if s.SweepLookback < 2 {
		add("Strategy.SweepLookback must be at least 2")
	}
	if s.RecencyBars <= 0 {
		add("Strategy.RecencyBars must be positive")
	}
	if s.Session.Enabled {
		if s.Session.StartHour < 0 || s.Session.StartHour > 23 || s.Session.EndHour < 1 || s.Session.EndHour > 24 {
			add("Strategy.Session hours out of range")
		} else if s.Session.StartHour >= s.Session.EndHour {
			add("Strategy.Session wraparound windows are not supported (start %d >= end %d)",
				s.Session.StartHour, s.Session.EndHour)
		}
	}

	cf := ic.Confirm
	if cf.OI.ThresholdPct < 0 {
		add("Confirm.OI.ThresholdPct must not be negative")
	}
	if cf.Liquidation.Threshold < 0 || cf.Liquidation.WindowFloor < 0 || cf.Liquidation.WindowFraction < 0 {
		add("Confirm.Liquidation values must not be negative")
	}
	if cf.SecondTouch.MinTouches <= 0 || cf.SecondTouch.FallbackBars <= 0 {
		add("Confirm.SecondTouch.MinTouches and FallbackBars must be positive")
	}
	if cf.SecondTouch.Tolerance < 0 || cf.SecondTouch.VolumeMult < 0 {
		add("Confirm.SecondTouch tolerances must not be negative")
	}
	if s.Mode == ModeFootprint && cf.SecondTouch.Enabled {
		add("Confirm.SecondTouch requires Strategy.Mode %q", ModeSweep)
	}

	if ic.Risk.RR <= 0 {
		add("Risk.RR must be positive")
	}
	so := ic.Risk.StopOffset
	switch so.Kind {
	case StopOffsetNone:
	case StopOffsetAbsolute, StopOffsetPercent:
		if so.Value < 0 {
			add("Risk.StopOffset.Value must not be negative")
		}
	case StopOffsetPips:
		if so.Value < 0 || so.PipSize <= 0 {
			add("Risk.StopOffset pips policy needs Value >= 0 and PipSize > 0")
		}
	case StopOffsetATR:
		if so.Value < 0 || so.ATRPeriod <= 0 {
			add("Risk.StopOffset atr policy needs Value >= 0 and ATRPeriod > 0")
		}
	default:
		add("Risk.StopOffset.Kind %q is unknown", so.Kind)
	}

	if ic.Alerts.PruneTarget <= 0 || ic.Alerts.PruneTarget >= ic.Alerts.Capacity {
		add("Alerts.PruneTarget must be in (0, Capacity)")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
