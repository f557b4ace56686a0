// Package metrics defines the Prometheus collectors for the indexing and
// extraction stages and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a labelmine process.
type Metrics struct {
	ResourcesStoredTotal    prometheus.Counter
	CollectionsCreatedTotal prometheus.Counter
	FilesSkippedTotal       *prometheus.CounterVec
	StageRunsTotal          *prometheus.CounterVec
	StageDuration           *prometheus.HistogramVec
	LabelOccurrencesTotal   prometheus.Counter
	VocabularySize          prometheus.Gauge
	EventsPublishedTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResourcesStoredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "labelmine_resources_stored_total",
				Help: "Annotation files stored as resources.",
			},
		),
		CollectionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "labelmine_collections_created_total",
				Help: "Collections created while mirroring dataset directories.",
			},
		),
		FilesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelmine_files_skipped_total",
				Help: "Files not stored, by reason (suffix, unreadable, write_failed).",
			},
			[]string{"reason"},
		),
		StageRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelmine_stage_runs_total",
				Help: "Pipeline stage runs by stage and status.",
			},
			[]string{"stage", "status"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labelmine_stage_duration_seconds",
				Help:    "Wall time of a pipeline stage run.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"stage"},
		),
		LabelOccurrencesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "labelmine_label_occurrences_total",
				Help: "Label values read by the extractor.",
			},
		),
		VocabularySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "labelmine_vocabulary_size",
				Help: "Distinct normalised labels in the last extracted vocabulary.",
			},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labelmine_events_published_total",
				Help: "Pipeline events published to Kafka by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.ResourcesStoredTotal,
		m.CollectionsCreatedTotal,
		m.FilesSkippedTotal,
		m.StageRunsTotal,
		m.StageDuration,
		m.LabelOccurrencesTotal,
		m.VocabularySize,
		m.EventsPublishedTotal,
	)

	return m
}

// Handler returns the scrape handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
