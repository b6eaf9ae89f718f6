package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New()
	m.PassesTotal.WithLabelValues("btc", "ok").Inc()
	m.PassesTotal.WithLabelValues("btc", "ok").Inc()
	m.AlertsTotal.WithLabelValues("btc", "BUY").Inc()
	m.OISamples.WithLabelValues("btc").Set(12)

	if got := testutil.ToFloat64(m.PassesTotal.WithLabelValues("btc", "ok")); got != 2 {
		t.Errorf("expected 2 passes, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`whalebot_passes_total{instance="btc",outcome="ok"} 2`,
		`whalebot_alerts_total{instance="btc",side="BUY"} 1`,
		`whalebot_oi_history_samples{instance="btc"} 12`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	// 各自的 registry，重复创建不会 panic
	a, b := New(), New()
	a.DuplicatesTotal.WithLabelValues("x").Inc()
	if got := testutil.ToFloat64(b.DuplicatesTotal.WithLabelValues("x")); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}
