package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rodovia_records_ingested_total",
			Help: "Total DATATRAN records accepted into the store",
		},
		[]string{"source"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rodovia_records_dropped_total",
			Help: "Total records dropped during aggregation",
		},
		[]string{"reason"},
	)

	PredictionsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rodovia_predictions_served_total",
			Help: "Total prediction rows served",
		},
	)

	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rodovia_training_duration_seconds",
			Help:    "Wall time of a full training run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	ModelTestR2 = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rodovia_model_test_r2",
			Help: "R-squared of the current model on the held-out slice",
		},
	)

	SeriesDays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rodovia_series_days",
			Help: "Number of days in the aggregated series of the current model",
		},
	)
)
