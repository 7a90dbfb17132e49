// Package observability exposes prometheus metrics for the ingestion pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters updated by the ingestion pipeline.
type Metrics struct {
	registry *prometheus.Registry

	ImagesProcessed    prometheus.Counter
	DetectionsRecorded prometheus.Counter
	DuplicatesSkipped  prometheus.Counter
	IngestFailures     prometheus.Counter
}

// NewMetrics creates and registers the pipeline counters on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ImagesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildwatch_images_processed_total",
			Help: "Number of uploaded images fully processed and stored",
		}),
		DetectionsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildwatch_detections_recorded_total",
			Help: "Number of detection rows written to the datastore",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildwatch_duplicates_skipped_total",
			Help: "Number of uploads skipped as duplicate content",
		}),
		IngestFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildwatch_ingest_failures_total",
			Help: "Number of ingestion batches that failed",
		}),
	}

	registry.MustRegister(
		m.ImagesProcessed,
		m.DetectionsRecorded,
		m.DuplicatesSkipped,
		m.IngestFailures,
	)
	return m
}

// Handler returns an HTTP handler serving the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
