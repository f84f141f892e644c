package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	fetches       *prometheus.CounterVec
	swept         prometheus.Counter
}

// NewMetrics registers the pptxd collectors plus the Go and process
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pptxd_builds_total",
			Help: "Deck builds by outcome.",
		}, []string{"outcome"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pptxd_build_duration_seconds",
			Help:    "Wall time of a deck build, fetches included.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pptxd_asset_fetches_total",
			Help: "Image fetches by outcome.",
		}, []string{"outcome"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pptxd_artifacts_swept_total",
			Help: "Expired artifacts removed by the sweeper.",
		}),
	}
	m.registry.MustRegister(
		m.builds, m.buildDuration, m.fetches, m.swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveBuild records one build. A nil receiver is a no-op.
func (m *Metrics) ObserveBuild(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(outcome).Inc()
	m.buildDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveFetch(outcome string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSweep(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
