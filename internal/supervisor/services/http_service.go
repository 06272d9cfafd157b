// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultHTTPShutdownTimeout = 10 * time.Second

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the recommendation API under supervision. When
// the supervisor cancels it, in-flight requests get shutdownTimeout to
// finish before Serve returns.
//
//	server := &http.Server{Addr: cfg.Server.Addr(), Handler: router}
//	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	logger          zerolog.Logger
	starts          atomic.Int64
}

// NewHTTPServerService wraps server. A non-positive timeout becomes 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultHTTPShutdownTimeout
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          zerolog.Nop(),
	}
}

// WithLogger sets the logger used for start and stop events.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func (h *HTTPServerService) WithLogger(logger zerolog.Logger) *HTTPServerService {
	h.logger = logger.With().Str("service", h.String()).Logger()
	return h
}

// Starts reports how many times Serve has been entered, restarts included.
func (h *HTTPServerService) Starts() int64 {
	return h.starts.Load()
}

// Serve implements suture.Service. A clean http.ErrServerClosed is not an
// error; a listen failure is returned so the supervisor restarts us.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	if n := h.starts.Add(1); n > 1 {
		h.logger.Warn().Int64("start", n).Msg("HTTP server restarting")
	}

	listenErr := h.listen()
	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	if err := h.drain(); err != nil {
		return err
	}
	// The listener goroutine exits once Shutdown closes it.
	<-listenErr
	h.logger.Info().Msg("HTTP server stopped")
	return ctx.Err()
}

// listen starts ListenAndServe and reports its outcome on the returned
// channel, which always receives exactly one value.
func (h *HTTPServerService) listen() <-chan error {
	out := make(chan error, 1)
	go func() {
		err := h.server.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			out <- nil
			return
		}
		h.logger.Error().Err(err).Msg("HTTP server failed")
		out <- fmt.Errorf("http server failed: %w", err)
	}()
	return out
}

// drain runs Shutdown on a fresh deadline; the serve context is already
// done by the time it is called.
func (h *HTTPServerService) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}

// String implements fmt.Stringer.
func (h *HTTPServerService) String() string {
	return "http-server"
}
