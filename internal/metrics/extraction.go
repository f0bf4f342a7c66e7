package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Extraction pipeline Prometheus metrics.
var (
	DocumentsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Name:      "documents_processed_total",
			Help:      "Documents run through the extraction orchestrator",
		},
		[]string{"method"}, // processing method
	)

	LineItemSourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Name:      "line_item_source_total",
			Help:      "Where extracted line items came from",
		},
		[]string{"source"},
	)

	OCRDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "invoice",
			Name:      "ocr_duration_seconds",
			Help:      "Text extraction duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method"},
	)

	OCRFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Name:      "ocr_fallback_total",
			Help:      "Documents whose OCR failed and were replaced by canned text",
		},
	)

	StructuredRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Name:      "structured_requests_total",
			Help:      "Structured extraction service calls",
		},
		[]string{"result"}, // "ok" / "fallback"
	)

	ExtractorPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Name:      "extractor_panics_total",
			Help:      "Recovered panics inside field or line-item extraction",
		},
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Name:      "result_cache_total",
			Help:      "Extraction result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "invoice",
			Name:      "queue_depth",
			Help:      "Processing jobs waiting for a worker",
		},
	)

	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "invoice",
			Name:      "jobs_total",
			Help:      "Processing jobs finished by workers",
		},
		[]string{"status"}, // "ok" / "error" / "rejected"
	)
)

var registerOnce sync.Once

// Register registers the extraction metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DocumentsProcessedTotal,
			LineItemSourceTotal,
			OCRDuration,
			OCRFallbackTotal,
			StructuredRequestsTotal,
			ExtractorPanicsTotal,
			ResultCacheTotal,
			QueueDepth,
			JobsTotal,
		)
	})
}
