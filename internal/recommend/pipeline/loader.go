// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/metrics"
	"github.com/tomtom215/shopsignal/internal/recommend"
	"github.com/tomtom215/shopsignal/internal/recommend/storage"
)

// ErrNoProductionModel is returned when the registry has no Production
// version of the model.
var ErrNoProductionModel = errors.New("no production model")

// LoaderConfig tunes a Loader.
type LoaderConfig struct {
	ModelName    string
	ExcludeOwned bool

	// BreakerFailures consecutive load failures open the breaker.
	BreakerFailures uint32

	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
}

// LoaderConfigFrom maps application configuration onto a LoaderConfig.
func LoaderConfigFrom(cfg *config.Config) LoaderConfig {
	return LoaderConfig{
		ModelName:       cfg.Recommend.ModelName,
		ExcludeOwned:    cfg.Recommend.ExcludeOwned,
		BreakerFailures: uint32(cfg.Reload.BreakerFailures), //nolint:gosec // validated min=1
		BreakerTimeout:  cfg.Reload.BreakerTimeout,
	}
}

// Loader moves the registry's Production version into a Handle. Loads
// that fail leave the previously served model in place; repeated
// failures open a circuit breaker so a broken artifact is not re-read on
// every trigger.
type Loader struct {
	cfg      LoaderConfig
	store    *storage.Store
	registry *storage.Registry
	handle   *recommend.Handle
	breaker  *gobreaker.CircuitBreaker[*recommend.Loaded]
	logger   zerolog.Logger

	// mu serializes loads so two triggers cannot race a stale version
	// over a newer one.
	mu sync.Mutex
}

// NewLoader creates a loader that swaps models into handle.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLoader(cfg LoaderConfig, store *storage.Store, registry *storage.Registry, handle *recommend.Handle, logger zerolog.Logger) *Loader {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	name := "model_loader"
	log := logger.With().Str("component", "loader").Str("model", cfg.ModelName).Logger()

	// Initialize circuit breaker state metric (0 = closed)
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Model loader circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	}

	return &Loader{
		cfg:      cfg,
		store:    store,
		registry: registry,
		handle:   handle,
		breaker:  gobreaker.NewCircuitBreaker[*recommend.Loaded](settings),
		logger:   log,
	}
}

// Handle returns the handle the loader publishes into.
func (l *Loader) Handle() *recommend.Handle { return l.handle }

// BreakerState reports the circuit breaker state.
func (l *Loader) BreakerState() gobreaker.State { return l.breaker.State() }

// LoadProduction serves the current Production version. It returns the
// loaded model and whether a swap happened; a version that is already
// being served is not reloaded.
func (l *Loader) LoadProduction(ctx context.Context) (*recommend.Loaded, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mv, err := l.registry.InStage(ctx, l.cfg.ModelName, storage.StageProduction)
	if errors.Is(err, storage.ErrVersionNotFound) {
		return l.handle.Current(), false, ErrNoProductionModel
	}
	if err != nil {
		metrics.RecordModelReload("error")
		return l.handle.Current(), false, fmt.Errorf("lookup production model: %w", err)
	}
	if cur := l.handle.Current(); cur != nil && cur.Info.Name == mv.Name && cur.Info.Version == mv.Version {
		metrics.RecordModelReload("unchanged")
		return cur, false, nil
	}
	return l.load(ctx, mv)
}

// LoadVersion serves name/version regardless of its stage.
func (l *Loader) LoadVersion(ctx context.Context, version int) (*recommend.Loaded, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mv, err := l.registry.Get(ctx, l.cfg.ModelName, version)
	if err != nil {
		return nil, err
	}
	loaded, _, err := l.load(ctx, mv)
	return loaded, err
}

func (l *Loader) load(ctx context.Context, mv *storage.ModelVersion) (*recommend.Loaded, bool, error) {
	start := time.Now()
	loaded, err := l.breaker.Execute(func() (*recommend.Loaded, error) {
		art, meta, err := l.store.Load(ctx, mv.Name, mv.Version)
		if err != nil {
			return nil, err
		}
		rec, err := art.Recommender(recommend.FactorOptions{ExcludeOwned: l.cfg.ExcludeOwned})
		if err != nil {
			return nil, err
		}
		l.handle.Swap(rec, recommend.ModelInfo{
			Name:      meta.Name,
			Version:   meta.Version,
			Backend:   meta.Backend,
			Stage:     string(mv.Stage),
			TrainedAt: meta.TrainedAt,
		})
		return l.handle.Current(), nil
	})
	if err != nil {
		status := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = "rejected"
		}
		metrics.RecordModelReload(status)
		l.logger.Error().Err(err).Int("version", mv.Version).Msg("Failed to load model; keeping current model")
		return l.handle.Current(), false, fmt.Errorf("load %s v%d: %w", mv.Name, mv.Version, err)
	}

	metrics.RecordModelReload("success")
	metrics.ModelVersion.Set(float64(loaded.Info.Version))
	l.logger.Info().
		Int("version", loaded.Info.Version).
		Str("backend", string(loaded.Info.Backend)).
		Int("users", loaded.Info.Stats.Users).
		Int("items", loaded.Info.Stats.Items).
		Dur("duration", time.Since(start)).
		Msg("Model loaded")
	return loaded, true, nil
}
