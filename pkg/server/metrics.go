package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/deciduous/pkg/observability"
)

// Metrics holds the collectors exported on /metrics. Each Metrics owns its
// own registry so several servers (or tests) never collide.
//
// Metrics also implements the pipeline and cache hooks of package
// observability; once registered there, runs that do not pass through
// HTTP (a watch loop, say) are counted too.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	CompilesTotal  *prometheus.CounterVec
	CompiledNodes  prometheus.Histogram
	SnapshotSeq    prometheus.Gauge
	RenderDuration *prometheus.HistogramVec

	GraphvizDuration  *prometheus.HistogramVec
	CacheLookupsTotal *prometheus.CounterVec
	CacheStoredBytes  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a registry with the HTTP, compile and Go runtime
// collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := &Metrics{registry: reg}

	m.HTTPRequestsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "deciduous_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	m.HTTPRequestDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deciduous_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.HTTPRequestsInFlight = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "deciduous_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	m.CompilesTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "deciduous_compiles_total",
			Help: "Documents compiled, by outcome code (ok on success)",
		},
		[]string{"result"},
	)
	m.CompiledNodes = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deciduous_compiled_nodes",
			Help:    "Nodes kept per compiled document",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)
	m.RenderDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deciduous_render_duration_seconds",
			Help:    "Time spent producing the artifacts of one run, including cache lookups",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"cached"},
	)
	m.GraphvizDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deciduous_graphviz_duration_seconds",
			Help:    "Duration of Graphviz layouts",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"format", "result"},
	)
	m.CacheLookupsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "deciduous_cache_lookups_total",
			Help: "Layout cache lookups by format and result (hit or miss)",
		},
		[]string{"format", "result"},
	)
	m.CacheStoredBytes = promauto.With(reg).NewCounter(
		prometheus.CounterOpts{
			Name: "deciduous_cache_stored_bytes_total",
			Help: "Bytes of layout written to the cache",
		},
	)
	m.SnapshotSeq = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "deciduous_snapshot_seq",
			Help: "Sequence number of the most recently published snapshot",
		},
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCompile records one compile outcome. result is "ok" or an error code.
func (m *Metrics) RecordCompile(result string, nodes int) {
	m.CompilesTotal.WithLabelValues(result).Inc()
	if result == resultOK {
		m.CompiledNodes.Observe(float64(nodes))
	}
}

// OnLayout records one Graphviz invocation.
func (m *Metrics) OnLayout(_ context.Context, format string, d time.Duration, err error) {
	m.GraphvizDuration.WithLabelValues(format, outcome(err)).Observe(d.Seconds())
}

// OnRender records the render stage of one run.
func (m *Metrics) OnRender(_ context.Context, _ []string, cached bool, d time.Duration, err error) {
	if err != nil {
		return
	}
	m.RenderDuration.WithLabelValues(strconv.FormatBool(cached)).Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, format string) {
	m.CacheLookupsTotal.WithLabelValues(format, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, format string) {
	m.CacheLookupsTotal.WithLabelValues(format, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, _ string, size int) {
	m.CacheStoredBytes.Add(float64(size))
}

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
)

const resultOK = "ok"

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return resultOK
}
