// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package app opens the stateful components shared by the server and the
// command line tool: DuckDB, the artifact store, the model registry, the
// event bus, the training pipeline and the model loader.
package app

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/database"
	"github.com/tomtom215/shopsignal/internal/events"
	"github.com/tomtom215/shopsignal/internal/recommend"
	"github.com/tomtom215/shopsignal/internal/recommend/pipeline"
	"github.com/tomtom215/shopsignal/internal/recommend/storage"
)

// App holds opened components. Close releases them in reverse order.
type App struct {
	Config   *config.Config
	DB       *database.DB
	Store    *storage.Store
	Registry *storage.Registry
	Bus      *events.Bus
	Pipeline *pipeline.Pipeline
	Handle   *recommend.Handle
	Loader   *pipeline.Loader

	closers []func() error
}

// Open wires every component from cfg. On error, whatever was already
// opened is closed again.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg *config.Config, logger zerolog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Handle: recommend.NewHandle()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.DB, err = database.New(&cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)

	a.Store, err = storage.NewStore(cfg.Storage.ModelDir)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}

	a.Registry, err = storage.OpenRegistry(cfg.Storage.RegistryDir)
	if err != nil {
		return nil, fmt.Errorf("open model registry: %w", err)
	}
	a.closers = append(a.closers, a.Registry.Close)
	if cfg.Storage.RegistryDir == "" {
		logger.Warn().Msg("Model registry is in memory; stages are lost on restart (set REGISTRY_DIR)")
	}

	a.Bus, err = events.Open(&cfg.Events, logger)
	if err != nil {
		return nil, fmt.Errorf("open event bus: %w", err)
	}
	a.closers = append(a.closers, a.Bus.Close)

	a.Pipeline = pipeline.New(pipeline.ConfigFrom(cfg), a.DB, a.Store, a.Registry, a.Bus, logger)
	a.Loader = pipeline.NewLoader(pipeline.LoaderConfigFrom(cfg), a.Store, a.Registry, a.Handle, logger)

	logger.Info().
		Str("model", cfg.Recommend.ModelName).
		Str("backend", cfg.Recommend.Backend).
		Str("model_dir", cfg.Storage.ModelDir).
		Str("events", a.Bus.Transport()).
		Msg("Components opened")
	return a, nil
}

// Close releases every opened component and joins their errors.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
