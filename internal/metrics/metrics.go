package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxstream_events_ingested_total",
		Help: "Total number of events accepted at the ingest boundary.",
	})

	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxstream_events_rejected_total",
		Help: "Total number of events rejected as malformed at ingestion.",
	})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxstream_events_dropped_total",
		Help: "Total number of events shed by backpressure, labelled by pipeline.",
	}, []string{"pipeline"})

	BatchesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxstream_batches_processed_total",
		Help: "Total number of event batches fully processed by the engine.",
	})

	BatchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxstream_batches_rejected_total",
		Help: "Total number of batches rejected due to a full queue.",
	})

	WindowsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxstream_windows_computed_total",
		Help: "Total number of windows aggregated, labelled by pipeline.",
	}, []string{"pipeline"})

	PatternMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxstream_pattern_matches_total",
		Help: "Total number of CEP pattern matches, labelled by pattern ID.",
	}, []string{"pattern_id"})

	AnomaliesFlagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxstream_anomalies_flagged_total",
		Help: "Total number of anomalies flagged, labelled by pipeline and severity.",
	}, []string{"pipeline", "severity"})

	BufferUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fluxstream_buffer_utilization_ratio",
		Help: "Current backpressure buffer utilization (0–1), labelled by pipeline.",
	}, []string{"pipeline"})

	ConsumerInstances = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fluxstream_consumer_instances",
		Help: "Advisory downstream consumer instance count, labelled by pipeline.",
	}, []string{"pipeline"})

	BatchProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fluxstream_batch_processing_duration_ms",
		Help:    "End-to-end batch processing latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fluxstream_queue_utilization_ratio",
		Help: "Current batch queue utilization (0–1).",
	})
)
