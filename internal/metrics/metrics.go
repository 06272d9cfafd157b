// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation serving

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_predictions_total",
			Help: "Total prediction requests by backend and outcome",
		},
		[]string{"backend", "outcome"}, // outcome: ok, cold_start, unavailable, invalid, error
	)

	PredictDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_predict_duration_seconds",
			Help:    "Time spent scoring one prediction request",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"backend"},
	)

	BatchRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommend_batch_rows_total",
			Help: "Total rows scored through batch prediction",
		},
	)

	// Training

	TrainingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommend_training_duration_seconds",
			Help:    "Duration of each training pipeline stage",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		},
		[]string{"stage"}, // load, interactions, fit, save, evaluate, total
	)

	TrainingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_training_runs_total",
			Help: "Total training runs by status",
		},
		[]string{"status"}, // success, failure
	)

	TrainingLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_training_last_success_timestamp",
			Help: "Unix time of the last successful training run",
		},
	)

	InteractionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_interactions_total",
			Help: "Non-zero customer/product pairs in the last training set",
		},
	)

	CooccurrencePairs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_cooccurrence_pairs",
			Help: "Directed item pairs in the last co-occurrence table",
		},
	)

	// Model quality, set after each training run

	CatalogCoverage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_catalog_coverage",
			Help: "Share of the catalog that appears in at least one top-k list",
		},
	)

	Novelty = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_novelty",
			Help: "Mean inverse popularity of recommended items",
		},
	)

	// Serving model lifecycle

	ModelVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommend_model_version",
			Help: "Registry version of the model currently served (0 when none)",
		},
	)

	ModelReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommend_model_reloads_total",
			Help: "Total model reload attempts by status",
		},
		[]string{"status"}, // loaded, unchanged, failed, throttled
	)

	// Circuit breaker

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Events

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total model events published by status",
		},
		[]string{"topic", "status"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total model events handled by status",
		},
		[]string{"topic", "status"},
	)

	// DuckDB

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB reads and exports in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of failed DuckDB operations",
		},
		[]string{"operation"},
	)

	// API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordPrediction counts one prediction and its latency.
func RecordPrediction(backend, outcome string, duration time.Duration) {
	if backend == "" {
		backend = "none"
	}
	PredictionsTotal.WithLabelValues(backend, outcome).Inc()
	PredictDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordTrainingStage observes the duration of one pipeline stage.
func RecordTrainingStage(stage string, duration time.Duration) {
	TrainingDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTrainingRun counts a finished training run.
func RecordTrainingRun(err error) {
	if err != nil {
		TrainingRunsTotal.WithLabelValues("failure").Inc()
		return
	}
	TrainingRunsTotal.WithLabelValues("success").Inc()
	TrainingLastSuccess.Set(float64(time.Now().Unix()))
}

// SetQuality publishes the latest coverage and novelty.
func SetQuality(coverage, novelty float64) {
	CatalogCoverage.Set(coverage)
	Novelty.Set(novelty)
}

// RecordModelReload counts a reload attempt.
func RecordModelReload(status string) {
	ModelReloadsTotal.WithLabelValues(status).Inc()
}

// RecordDBQuery observes a DuckDB operation.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordEventPublished counts a publish attempt on topic.
func RecordEventPublished(topic string, err error) {
	EventsPublished.WithLabelValues(topic, status(err)).Inc()
}

// RecordEventConsumed counts a handled message on topic.
func RecordEventConsumed(topic string, err error) {
	EventsConsumed.WithLabelValues(topic, status(err)).Inc()
}

// RecordAPIRequest records an API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
