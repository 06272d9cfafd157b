// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shopsignal/internal/api"
	"github.com/tomtom215/shopsignal/internal/app"
	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/middleware"
	"github.com/tomtom215/shopsignal/internal/supervisor"
	"github.com/tomtom215/shopsignal/internal/supervisor/services"
)

// Latency window for /api/v1/stats/latency.
const (
	latencyWindow    = 2048
	latencySlowAfter = 500 * time.Millisecond
)

// initServices adds the training, reload and HTTP services to tree.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initServices(tree *supervisor.SupervisorTree, a *app.App, version string, logger zerolog.Logger) error {
	cfg := a.Config

	if training, err := newTrainingService(cfg, a, logger); err != nil {
		return err
	} else if training != nil {
		tree.AddTrainingService(training)
	} else {
		logger.Info().Msg("Scheduled training disabled; train with the shopsignal CLI")
	}

	tree.AddServingService(services.NewReloadService(a.Loader, a.Bus, services.ReloadServiceConfig{
		ModelName:    cfg.Recommend.ModelName,
		PollInterval: cfg.Reload.PollInterval,
		MinInterval:  cfg.Reload.MinInterval,
	}, logger))

	monitor := middleware.NewPerformanceMonitor(latencyWindow, latencySlowAfter)
	handler := api.NewHandler(a.Handle, a.Loader, a.DB, monitor, api.OptionsFrom(cfg, version))
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFrom(&cfg.Server))
	httpSvc := services.NewHTTPServerService(newHTTPServer(&cfg.Server, router.SetupChi()), cfg.Server.ShutdownTimeout).
		WithLogger(logger)
	tree.AddAPIService(httpSvc)

	if cfg.Server.RateLimitDisabled {
		logger.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	return nil
}

// newTrainingService returns nil when nothing would ever trigger a run.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func newTrainingService(cfg *config.Config, a *app.App, logger zerolog.Logger) (*services.TrainingService, error) {
	rc := cfg.Recommend
	if !rc.TrainOnStartup && rc.TrainInterval <= 0 && rc.TrainSchedule == "" {
		return nil, nil
	}
	svc, err := services.NewTrainingService(a.Pipeline, services.TrainingServiceConfig{
		TrainOnStartup: rc.TrainOnStartup,
		Interval:       rc.TrainInterval,
		Schedule:       rc.TrainSchedule,
		Timeout:        rc.TrainTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("training service: %w", err)
	}
	return svc, nil
}

func newHTTPServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
