package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "twitoff"

var (
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of author comparisons by outcome",
		},
		[]string{"status"},
	)

	PredictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "End-to-end comparison duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	FitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_fit_duration_seconds",
			Help:      "Logistic regression fit duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	TrainingRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_training_rows",
			Help:      "Number of rows in each classifier training matrix",
			Buckets:   prometheus.ExponentialBuckets(2, 2, 10),
		},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.0005, 0.005, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"provider"},
	)

	IngestedTextsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_texts_total",
			Help:      "Total number of texts embedded and stored",
		},
	)

	AuthorUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "author_updates_total",
			Help:      "Total number of author add/update runs by outcome",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Must be called from main.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PredictionsTotal,
			PredictionDuration,
			FitDuration,
			TrainingRows,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			IngestedTextsTotal,
			AuthorUpdatesTotal,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}

// Status maps an error onto a low-cardinality outcome label.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
