package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	CapabilityClassifier = "classifier"
	CapabilityEmbedder   = "embedder"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	BackendAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_backend_attempts_total",
			Help: "Classifier and embedder backend attempts by outcome",
		},
		[]string{"capability", "backend", "outcome"},
	)

	BackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brain_backend_duration_seconds",
			Help:    "Latency of a single backend attempt",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"capability", "backend"},
	)

	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_ingest_total",
			Help: "Ingested notes by result",
		},
		[]string{"result", "category"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "brain_classification_confidence",
			Help:    "Confidence reported by the classifier",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	Inconsistencies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brain_index_inconsistencies_total",
			Help: "Record and similarity index disagreements seen during dedup",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		BackendAttempts,
		BackendDuration,
		IngestTotal,
		ConfidenceScore,
		Inconsistencies,
	)
}
