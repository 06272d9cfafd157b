// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

/*
Package metrics declares the Prometheus collectors exposed on /metrics.

All collectors register with the default registry at package init via
promauto. Callers use the Record* helpers rather than touching label values
directly.

Recommendation metrics:
  - recommend_predictions_total{backend,outcome}
  - recommend_predict_duration_seconds{backend}
  - recommend_training_duration_seconds{stage}
  - recommend_training_runs_total{status}
  - recommend_model_version, recommend_model_reloads_total{status}
  - recommend_catalog_coverage, recommend_novelty
  - recommend_interactions_total, recommend_cooccurrence_pairs

Infrastructure metrics:
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - events_published_total, events_consumed_total
  - duckdb_query_duration_seconds{operation}
  - api_requests_total, api_request_duration_seconds, api_active_requests
*/
package metrics
