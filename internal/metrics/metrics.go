// Package metrics exposes Prometheus collectors for the ledger store, the HTTP
// API and the background components that report their own counters.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cashflow/internal/ledger"
)

const namespace = "cashflow"

// Metrics owns a private registry so tests and multiple servers never collide
// on the global one.
type Metrics struct {
	registry *prometheus.Registry
	factory  promauto.Factory

	mutations       *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	summaryRequests *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		factory:  f,
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "mutations_total",
			Help:      "Applied store mutations by collection and kind.",
		}, []string{"collection", "kind"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),
		summaryRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "requests_total",
			Help:      "Summary lookups by cache result (hit or miss).",
		}, []string{"result"}),
	}
}

// Registry is the gatherer behind Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveEvent is a ledger.Listener.
func (m *Metrics) ObserveEvent(ev ledger.Event) {
	m.mutations.WithLabelValues(string(ev.Collection), string(ev.Kind)).Inc()
}

// ObserveStore subscribes to s and exports its record counts.
func (m *Metrics) ObserveStore(s *ledger.Store) (unsubscribe func()) {
	for _, c := range []ledger.Collection{
		ledger.CollectionEntries,
		ledger.CollectionStatuses,
		ledger.CollectionTypes,
		ledger.CollectionCategories,
		ledger.CollectionSubcategories,
	} {
		c := c // per-iteration copy; go.mod targets go1.21 loop semantics
		m.factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "ledger",
			Name:        "records",
			Help:        "Current number of records per collection.",
			ConstLabels: prometheus.Labels{"collection": string(c)},
		}, func() float64 { return float64(recordCount(s, c)) })
	}
	return s.Subscribe(m.ObserveEvent)
}

func recordCount(s *ledger.Store, c ledger.Collection) int {
	entries, rd := s.Snapshot()
	switch c {
	case ledger.CollectionEntries:
		return len(entries)
	case ledger.CollectionStatuses:
		return len(rd.Statuses)
	case ledger.CollectionTypes:
		return len(rd.Types)
	case ledger.CollectionCategories:
		return len(rd.Categories)
	default:
		return len(rd.Subcategories)
	}
}

// ObserveSummary records whether a summary came from the cache.
func (m *Metrics) ObserveSummary(cached bool) {
	result := "miss"
	if cached {
		result = "hit"
	}
	m.summaryRequests.WithLabelValues(result).Inc()
}

// CounterFunc exports a monotonically increasing value read on every scrape.
func (m *Metrics) CounterFunc(subsystem, name, help string, fn func() float64) {
	m.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

// GaugeFunc exports a value read on every scrape.
func (m *Metrics) GaugeFunc(subsystem, name, help string, fn func() float64) {
	m.factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, fn)
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so ids in paths do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
