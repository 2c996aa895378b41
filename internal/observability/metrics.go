// Package observability provides Prometheus metrics for the sample
// processing pipeline.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metric collectors for the pipeline.
type Metrics struct {
	SamplesProcessed *prometheus.CounterVec
	SequencesParsed  prometheus.Counter
	Detections       prometheus.Counter
	Alerts           *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	ActivePipelines  prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with all collectors registered
// on a fresh registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.SamplesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edna_samples_processed_total",
		Help: "Total number of samples that reached a terminal status",
	}, []string{"status"})

	m.SequencesParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edna_sequences_parsed_total",
		Help: "Total number of sequence records parsed from processed samples",
	})

	m.Detections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edna_detections_total",
		Help: "Total number of species detections recorded",
	})

	m.Alerts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edna_alerts_total",
		Help: "Total number of conservation alerts raised",
	}, []string{"type"})

	m.PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edna_pipeline_duration_seconds",
		Help:    "Duration of sample pipeline runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	m.ActivePipelines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "edna_active_pipelines",
		Help: "Number of sample pipelines currently processing",
	})

	collectors := []prometheus.Collector{
		m.SamplesProcessed,
		m.SequencesParsed,
		m.Detections,
		m.Alerts,
		m.PipelineDuration,
		m.ActivePipelines,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
		}
	}

	return m, nil
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
