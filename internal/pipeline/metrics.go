package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mediaguard/internal/store"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	FilesProcessed   *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	FileDuration     prometheus.Histogram
}

// NewMetrics registers the pipeline collectors with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		FilesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaguard_files_processed_total",
				Help: "Files processed by the pipeline, by resulting status",
			},
			[]string{"status"},
		),
		ProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaguard_provider_requests_total",
				Help: "Lookup provider request attempts, by outcome",
			},
			[]string{"provider", "outcome"},
		),
		FileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mediaguard_file_duration_seconds",
				Help:    "Wall time spent processing one file",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
	}
}

// ProviderRequest implements lookup.Observer.
func (m *Metrics) ProviderRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) fileProcessed(status store.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := string(status)
	if label == "" {
		label = "error"
	}
	m.FilesProcessed.WithLabelValues(label).Inc()
	m.FileDuration.Observe(elapsed.Seconds())
}
