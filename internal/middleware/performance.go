// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/shopsignal/internal/logging"
)

// RequestSample is one observed request.
type RequestSample struct {
	Route      string
	Method     string
	Duration   time.Duration
	StatusCode int
	Timestamp  time.Time
}

// RouteStats aggregates the samples of one route.
type RouteStats struct {
	Route        string  `json:"route"`
	RequestCount int64   `json:"request_count"`
	ErrorCount   int64   `json:"error_count"`
	AvgMS        float64 `json:"avg_ms"`
	P50MS        float64 `json:"p50_ms"`
	P95MS        float64 `json:"p95_ms"`
	P99MS        float64 `json:"p99_ms"`
	MaxMS        float64 `json:"max_ms"`
}

// PerformanceMonitor keeps a sliding window of recent requests and
// reports per-route latency percentiles over it.
type PerformanceMonitor struct {
	mu         sync.RWMutex
	samples    []RequestSample
	next       int
	full       bool
	slowAfter  time.Duration
	totalCount map[string]int64
}

// NewPerformanceMonitor keeps the last window samples. Requests slower than
// slowAfter are logged; zero disables the log.
func NewPerformanceMonitor(window int, slowAfter time.Duration) *PerformanceMonitor {
	if window <= 0 {
		window = 1000
	}
	return &PerformanceMonitor{
		samples:    make([]RequestSample, window),
		slowAfter:  slowAfter,
		totalCount: make(map[string]int64),
	}
}

// Record adds a sample, overwriting the oldest once the window is full.
func (pm *PerformanceMonitor) Record(s RequestSample) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.samples[pm.next] = s
	pm.next++
	if pm.next == len(pm.samples) {
		pm.next = 0
		pm.full = true
	}
	pm.totalCount[s.Method+" "+s.Route]++
}

func (pm *PerformanceMonitor) window() []RequestSample {
	if pm.full {
		return pm.samples
	}
	return pm.samples[:pm.next]
}

// Stats returns per-route statistics over the window, busiest first.
func (pm *PerformanceMonitor) Stats() []RouteStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	byRoute := make(map[string][]time.Duration)
	errs := make(map[string]int64)
	for _, s := range pm.window() {
		key := s.Method + " " + s.Route
		byRoute[key] = append(byRoute[key], s.Duration)
		if s.StatusCode >= http.StatusInternalServerError {
			errs[key]++
		}
	}

	stats := make([]RouteStats, 0, len(byRoute))
	for route, durations := range byRoute {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		var sum time.Duration
		for _, d := range durations {
			sum += d
		}
		stats = append(stats, RouteStats{
			Route:        route,
			RequestCount: int64(len(durations)),
			ErrorCount:   errs[route],
			AvgMS:        ms(sum) / float64(len(durations)),
			P50MS:        ms(percentile(durations, 0.50)),
			P95MS:        ms(percentile(durations, 0.95)),
			P99MS:        ms(percentile(durations, 0.99)),
			MaxMS:        ms(durations[len(durations)-1]),
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].RequestCount != stats[j].RequestCount {
			return stats[i].RequestCount > stats[j].RequestCount
		}
		return stats[i].Route < stats[j].Route
	})
	return stats
}

// TotalRequests returns how many requests were ever recorded for
// "METHOD route", including those that fell out of the window.
func (pm *PerformanceMonitor) TotalRequests(method, route string) int64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.totalCount[method+" "+route]
}

// Middleware records every request routed through it.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := newStatusWriter(w)
		next.ServeHTTP(wrapper, r)
		duration := time.Since(start)

		route := RoutePattern(r)
		pm.Record(RequestSample{
			Route:      route,
			Method:     r.Method,
			Duration:   duration,
			StatusCode: wrapper.statusCode,
			Timestamp:  start,
		})

		if pm.slowAfter > 0 && duration > pm.slowAfter {
			logging.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("route", route).
				Dur("duration", duration).
				Dur("threshold", pm.slowAfter).
				Msg("Slow request detected")
		}
	})
}

// percentile calculates the percentile value from a sorted slice
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
