package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics 扫描周期相关的 Prometheus 指标，所有实例共享，按 instance 标签区分
type Metrics struct {
	Registry *prometheus.Registry

	PassesTotal      *prometheus.CounterVec   // labels: instance, outcome
	PassDuration     *prometheus.HistogramVec // labels: instance
	CandidatesTotal  *prometheus.CounterVec   // labels: instance, status, reason
	AlertsTotal      *prometheus.CounterVec   // labels: instance, side
	DuplicatesTotal  *prometheus.CounterVec   // labels: instance
	ProviderFailures *prometheus.CounterVec   // labels: instance, source
	OISamples        *prometheus.GaugeVec     // labels: instance
}

// New 创建独立 registry 并注册全部指标 (不使用全局 registry，测试可以重复创建)
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		PassesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalebot_passes_total",
			Help: "Evaluation passes by outcome (ok, no_data, failed)",
		}, []string{"instance", "outcome"}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "whalebot_pass_duration_seconds",
			Help:    "Wall time of one evaluation pass including provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"instance"}),
		CandidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalebot_candidates_total",
			Help: "Detected candidates by evaluation status and failing check",
		}, []string{"instance", "status", "reason"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalebot_alerts_total",
			Help: "Trade plans delivered to the sink",
		}, []string{"instance", "side"}),
		DuplicatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalebot_duplicate_signals_total",
			Help: "Approved plans suppressed by the alert cache",
		}, []string{"instance"}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "whalebot_provider_failures_total",
			Help: "Failed upstream calls by data source (candles, fine, oi, heatmap, notify)",
		}, []string{"instance", "source"}),
		OISamples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "whalebot_oi_history_samples",
			Help: "Open interest samples currently held per instance",
		}, []string{"instance"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PassesTotal,
		m.PassDuration,
		m.CandidatesTotal,
		m.AlertsTotal,
		m.DuplicatesTotal,
		m.ProviderFailures,
		m.OISamples,
	)
	return m
}

// Handler /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve 在 addr 上提供 /metrics，ctx 取消后优雅关闭
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server listening", zap.String("Addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
