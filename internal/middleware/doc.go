// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

/*
Package middleware provides HTTP middleware components for the API server.

Key Components:

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request count, latency and in-flight gauges
  - PerformanceMonitor: sliding-window latency percentiles per route
  - Compression: gzip for large bodies when the client accepts it

All components have the func(http.Handler) http.Handler shape and are
installed with chi's r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(monitor.Middleware)

Metrics and the monitor label requests by chi route pattern
("/api/v1/recommend/{customerID}") so customer IDs never become label
values.
*/
package middleware
