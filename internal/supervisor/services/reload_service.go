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

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/shopsignal/internal/events"
	"github.com/tomtom215/shopsignal/internal/recommend"
	"github.com/tomtom215/shopsignal/internal/recommend/pipeline"
	"github.com/tomtom215/shopsignal/internal/recommend/storage"
)

// ErrSubscriptionClosed is returned by ReloadService.Serve when the event
// subscription ends while the service is still running. The supervisor
// restarts the service, which subscribes again.
var ErrSubscriptionClosed = errors.New("model event subscription closed")

// ModelLoader swaps the Production model into the serving handle.
// *pipeline.Loader satisfies it.
type ModelLoader interface {
	LoadProduction(ctx context.Context) (*recommend.Loaded, bool, error)
}

// PromotionSubscriber delivers model promotion events. *events.Bus
// satisfies it.
type PromotionSubscriber interface {
	Subscribe(ctx context.Context) (<-chan events.ModelPromoted, error)
}

// ReloadServiceConfig holds configuration for the reload service.
type ReloadServiceConfig struct {
	// ModelName filters promotion events.
	ModelName string

	// PollInterval re-checks the registry even without events. Zero
	// disables polling.
	PollInterval time.Duration

	// MinInterval is the minimum spacing between reloads.
	MinInterval time.Duration
}

// ReloadService keeps the served model in step with the registry's
// Production stage. It loads once on start, then reloads on promotion
// events and on a polling interval so a missed event only delays a swap.
type ReloadService struct {
	loader     ModelLoader
	subscriber PromotionSubscriber
	config     ReloadServiceConfig
	limiter    *rate.Limiter
	logger     zerolog.Logger
	name       string
}

// NewReloadService builds the service. subscriber may be nil, in which
// case only polling triggers reloads.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewReloadService(loader ModelLoader, subscriber PromotionSubscriber, cfg ReloadServiceConfig, logger zerolog.Logger) *ReloadService {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &ReloadService{
		loader:     loader,
		subscriber: subscriber,
		config:     cfg,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.With().Str("service", "reload").Str("model", cfg.ModelName).Logger(),
		name:       "reload-service",
	}
}

// Serve implements suture.Service.
func (s *ReloadService) Serve(ctx context.Context) error {
	var evCh <-chan events.ModelPromoted
	if s.subscriber != nil {
		ch, err := s.subscriber.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe to model events: %w", err)
		}
		evCh = ch
	}

	s.reload(ctx, "startup")

	var tick <-chan time.Time
	if s.config.PollInterval > 0 {
		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-evCh:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrSubscriptionClosed
			}
			if !s.relevant(&ev) {
				continue
			}
			s.logger.Debug().
				Str("event_id", ev.EventID).
				Int("version", ev.Version).
				Msg("Production promotion received")
			if err := s.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			// Promotions that queued up while throttled collapse into
			// the one reload below.
			if !s.drain(evCh) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrSubscriptionClosed
			}
			s.reload(ctx, "event")

		case <-tick:
			if !s.limiter.Allow() {
				continue
			}
			s.reload(ctx, "poll")
		}
	}
}

func (s *ReloadService) relevant(ev *events.ModelPromoted) bool {
	return ev.Name == s.config.ModelName && ev.Stage == string(storage.StageProduction)
}

// drain discards pending events. It reports false when the channel closed.
func (s *ReloadService) drain(ch <-chan events.ModelPromoted) bool {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}

func (s *ReloadService) reload(ctx context.Context, trigger string) {
	loaded, swapped, err := s.loader.LoadProduction(ctx)
	switch {
	case err == nil && swapped:
		s.logger.Info().
			Str("trigger", trigger).
			Int("version", loaded.Info.Version).
			Str("backend", string(loaded.Info.Backend)).
			Msg("Model reloaded")
	case err == nil:
		// Already serving the Production version.
	case errors.Is(err, pipeline.ErrNoProductionModel):
		s.logger.Debug().Str("trigger", trigger).Msg("No production model registered")
	case ctx.Err() != nil:
	default:
		s.logger.Warn().Err(err).Str("trigger", trigger).Msg("Model reload failed")
	}
}

// String implements fmt.Stringer.
func (s *ReloadService) String() string {
	return s.name
}
