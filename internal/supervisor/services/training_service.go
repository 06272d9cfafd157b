// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/shopsignal/internal/recommend/pipeline"
)

// Trainer runs one training pipeline pass. *pipeline.Pipeline satisfies it.
type Trainer interface {
	Run(ctx context.Context) (*pipeline.Result, error)
}

// TrainingServiceConfig holds configuration for the training service.
type TrainingServiceConfig struct {
	// TrainOnStartup runs the pipeline once when the service starts.
	TrainOnStartup bool

	// Interval between scheduled runs. Ignored when Schedule is set.
	Interval time.Duration

	// Schedule is a standard 5-field cron expression.
	Schedule string

	// Timeout bounds a single run. Default: 30m
	Timeout time.Duration
}

// TrainingService retrains the model on a fixed interval or cron schedule.
// Failed runs are logged and retried at the next tick; the service itself
// only returns when its context ends.
type TrainingService struct {
	trainer  Trainer
	config   TrainingServiceConfig
	schedule cron.Schedule
	logger   zerolog.Logger
	now      func() time.Time
	name     string
}

// NewTrainingService validates the schedule and builds the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewTrainingService(trainer Trainer, cfg TrainingServiceConfig, logger zerolog.Logger) (*TrainingService, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	s := &TrainingService{
		trainer: trainer,
		config:  cfg,
		logger:  logger.With().Str("service", "training").Logger(),
		now:     time.Now,
		name:    "training-service",
	}
	if cfg.Schedule != "" {
		sched, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("parse train schedule %q: %w", cfg.Schedule, err)
		}
		s.schedule = sched
	}
	return s, nil
}

// Serve implements suture.Service.
func (s *TrainingService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("train_on_startup", s.config.TrainOnStartup).
		Dur("interval", s.config.Interval).
		Str("schedule", s.config.Schedule).
		Msg("Training service starting")

	if s.config.TrainOnStartup {
		s.train(ctx, "startup")
	}

	for {
		wait, ok := s.nextWait()
		if !ok {
			// Nothing scheduled: stay up so startup training and manual
			// runs share the supervisor lifecycle.
			<-ctx.Done()
			return ctx.Err()
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("Training service shutting down")
			return ctx.Err()
		case <-timer.C:
			s.train(ctx, "scheduled")
		}
	}
}

// nextWait returns how long to sleep until the next run.
func (s *TrainingService) nextWait() (time.Duration, bool) {
	if s.schedule != nil {
		now := s.now()
		next := s.schedule.Next(now)
		if next.IsZero() {
			return 0, false
		}
		return next.Sub(now), true
	}
	if s.config.Interval > 0 {
		return s.config.Interval, true
	}
	return 0, false
}

func (s *TrainingService) train(ctx context.Context, trigger string) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	res, err := s.trainer.Run(runCtx)
	switch {
	case err == nil:
		s.logger.Info().
			Str("trigger", trigger).
			Int("version", res.Version).
			Bool("promoted", res.Promoted).
			Dur("duration", res.Duration).
			Msg("Training run complete")
	case errors.Is(err, pipeline.ErrRunInProgress), errors.Is(err, pipeline.ErrNoTransactions):
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("Training run skipped")
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// Shutting down.
	default:
		s.logger.Error().Err(err).Str("trigger", trigger).Msg("Training run failed")
	}
}

// String implements fmt.Stringer.
func (s *TrainingService) String() string {
	return s.name
}
