package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashflow/internal/ledger"
	"cashflow/internal/log"
)

// value returns the sample of name whose labels include want.
func value(t *testing.T, m *Metrics, name string, want map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabels(metric, want) {
				switch {
				case metric.Counter != nil:
					return metric.GetCounter().GetValue()
				case metric.Gauge != nil:
					return metric.GetGauge().GetValue()
				case metric.Histogram != nil:
					return float64(metric.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, want)
	return 0
}

func hasLabels(metric *dto.Metric, want map[string]string) bool {
	found := 0
	for _, lp := range metric.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
			found++
		}
	}
	return found == len(want)
}

func TestObserveStore(t *testing.T) {
	m := New()
	s := ledger.New(ledger.WithLogger(log.Discard()))
	unsubscribe := m.ObserveStore(s)

	_, err := s.AddStatus(ledger.NameInput{Name: "Savings"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteEntry("1"))
	require.NoError(t, s.DeleteEntry("2"))

	assert.Equal(t, 1.0, value(t, m, "cashflow_ledger_mutations_total", map[string]string{"collection": "statuses", "kind": "added"}))
	assert.Equal(t, 2.0, value(t, m, "cashflow_ledger_mutations_total", map[string]string{"collection": "entries", "kind": "deleted"}))
	assert.Equal(t, 3.0, value(t, m, "cashflow_ledger_records", map[string]string{"collection": "entries"}))
	assert.Equal(t, 4.0, value(t, m, "cashflow_ledger_records", map[string]string{"collection": "statuses"}))

	unsubscribe()
	require.NoError(t, s.DeleteEntry("3"))
	assert.Equal(t, 2.0, value(t, m, "cashflow_ledger_mutations_total", map[string]string{"collection": "entries", "kind": "deleted"}))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/entries/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/entries/a", "/api/entries/b", "/ok"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, value(t, m, "cashflow_http_requests_total", map[string]string{"route": "/api/entries/{id}", "status": "404"}))
	assert.Equal(t, 1.0, value(t, m, "cashflow_http_requests_total", map[string]string{"route": "/ok", "status": "200"}))
	assert.Equal(t, 2.0, value(t, m, "cashflow_http_request_duration_seconds", map[string]string{"route": "/api/entries/{id}"}))
}

func TestFuncCollectorsAndHandler(t *testing.T) {
	m := New()
	hits := 0.0
	m.CounterFunc("rate_limit", "rejected_total", "Requests rejected by the rate limiter.", func() float64 { return hits })
	m.GaugeFunc("amqp", "pending_messages", "Change messages waiting to be published.", func() float64 { return 7 })
	m.ObserveSummary(true)
	m.ObserveSummary(false)
	m.ObserveSummary(false)

	hits = 3
	assert.Equal(t, 3.0, value(t, m, "cashflow_rate_limit_rejected_total", nil))
	assert.Equal(t, 7.0, value(t, m, "cashflow_amqp_pending_messages", nil))
	assert.Equal(t, 2.0, value(t, m, "cashflow_summary_requests_total", map[string]string{"result": "miss"}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(string(body), "cashflow_summary_requests_total"))
}
