// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package api

import (
	"context"
	"time"

	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/middleware"
	"github.com/tomtom215/shopsignal/internal/recommend"
)

// ModelLoader moves registry versions into the served handle.
// *pipeline.Loader satisfies it.
type ModelLoader interface {
	LoadProduction(ctx context.Context) (*recommend.Loaded, bool, error)
	LoadVersion(ctx context.Context, version int) (*recommend.Loaded, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes request handling.
type Options struct {
	// DefaultK applies when a request omits k.
	DefaultK int
	// MaxK rejects larger k with invalid_argument.
	MaxK int
	// MaxBatchSize caps rows per batch request.
	MaxBatchSize int
	// BatchWorkers bounds goroutines per batch request.
	BatchWorkers int
	// Version is reported by the health endpoint.
	Version string
}

// OptionsFrom maps application configuration onto handler Options.
func OptionsFrom(cfg *config.Config, version string) Options {
	return Options{
		DefaultK:     cfg.Recommend.DefaultK,
		MaxK:         cfg.Recommend.MaxK,
		MaxBatchSize: cfg.Server.MaxBatchSize,
		BatchWorkers: cfg.Recommend.BatchWorkers,
		Version:      version,
	}
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers_recommend.go: single and batch prediction
//   - handlers_model.go: served model metadata and reload
//   - handlers_health.go: health probes and latency stats
type Handler struct {
	handle    *recommend.Handle
	loader    ModelLoader
	db        Pinger
	monitor   *middleware.PerformanceMonitor
	opts      Options
	startTime time.Time
}

// NewHandler creates a handler serving from handle. loader, db and
// monitor are optional; the endpoints that need them report 503 when
// they are missing.
func NewHandler(handle *recommend.Handle, loader ModelLoader, db Pinger, monitor *middleware.PerformanceMonitor, opts Options) *Handler {
	if opts.DefaultK <= 0 {
		opts.DefaultK = 5
	}
	if opts.MaxK <= 0 {
		opts.MaxK = 100
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 1000
	}
	if opts.BatchWorkers <= 0 {
		opts.BatchWorkers = 4
	}
	if handle == nil {
		handle = recommend.NewHandle()
	}
	return &Handler{
		handle:    handle,
		loader:    loader,
		db:        db,
		monitor:   monitor,
		opts:      opts,
		startTime: time.Now(),
	}
}

// Handle returns the served model handle.
func (h *Handler) Handle() *recommend.Handle { return h.handle }
