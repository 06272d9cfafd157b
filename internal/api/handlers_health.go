// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/shopsignal/internal/middleware"
)

// HealthStatus is the data of GET /health.
type HealthStatus struct {
	Status            string  `json:"status"` // ok or degraded
	Version           string  `json:"version,omitempty"`
	ModelLoaded       bool    `json:"model_loaded"`
	ModelVersion      int     `json:"model_version,omitempty"`
	DatabaseConnected *bool   `json:"database_connected,omitempty"`
	Uptime            float64 `json:"uptime"`
}

// Health handles GET /health. It always answers 200; the status field
// reports degradation.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:       "ok",
		Version:      h.opts.Version,
		ModelLoaded:  h.handle.Ready(),
		ModelVersion: h.handle.Version(),
		Uptime:       time.Since(h.startTime).Seconds(),
	}
	if !status.ModelLoaded {
		status.Status = "degraded"
	}
	if h.db != nil {
		ok := h.pingDB(r.Context()) == nil
		status.DatabaseConnected = &ok
		if !ok {
			status.Status = "degraded"
		}
	}
	respondJSON(w, r, http.StatusOK, status, Metadata{ModelVersion: status.ModelVersion})
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, Metadata{})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only once a model is served and the database, when
// configured, answers; 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.handle.Ready() {
		respondError(w, r, http.StatusServiceUnavailable, CodeNotReady, "No model loaded", nil)
		return
	}
	if h.db != nil {
		if err := h.pingDB(r.Context()); err != nil {
			respondError(w, r, http.StatusServiceUnavailable, CodeNotReady, "Database unavailable", err)
			return
		}
	}
	respondJSON(w, r, http.StatusOK, map[string]interface{}{
		"ready":         true,
		"model_version": h.handle.Version(),
	}, Metadata{ModelVersion: h.handle.Version()})
}

// LatencyStats handles GET /api/v1/stats/latency.
func (h *Handler) LatencyStats(w http.ResponseWriter, r *http.Request) {
	stats := []middleware.RouteStats{}
	if h.monitor != nil {
		stats = h.monitor.Stats()
	}
	respondJSON(w, r, http.StatusOK, stats, Metadata{})
}

func (h *Handler) pingDB(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.Ping(ctx)
}
