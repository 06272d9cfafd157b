// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/shopsignal/internal/config"
)

// RateLimitConfig is a request budget per client over a window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// ChiMiddlewareConfig configures CORS and the per-route-class limiters.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	// RateLimitRequests per RateLimitWindow applies to /api/v1.
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
	RateLimitKeyFunc  httprate.KeyFunc

	// HealthLimit is loose so probes and scrapers never trip it.
	HealthLimit RateLimitConfig
	// ReloadLimit guards the forced reload, which reads a model artifact
	// from disk on every call.
	ReloadLimit RateLimitConfig
}

// DefaultChiMiddlewareConfig returns no CORS origins and 100 API requests
// per minute per IP.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:         86400,

		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		HealthLimit:       RateLimitConfig{Requests: 1000, Window: time.Minute},
		ReloadLimit:       RateLimitConfig{Requests: 10, Window: time.Minute},
	}
}

// ChiMiddlewareConfigFrom maps server configuration onto the middleware
// config.
func ChiMiddlewareConfigFrom(cfg *config.ServerConfig) *ChiMiddlewareConfig {
	mc := DefaultChiMiddlewareConfig()
	mc.CORSAllowedOrigins = cfg.CORSOrigins
	mc.RateLimitDisabled = cfg.RateLimitDisabled
	if cfg.RateLimitReqs > 0 {
		mc.RateLimitRequests = cfg.RateLimitReqs
	}
	if cfg.RateLimitWindow > 0 {
		mc.RateLimitWindow = cfg.RateLimitWindow
	}
	return mc
}

// ChiMiddleware builds the CORS handler and one limiter per route class.
// Each class keeps its own counters, so health probes never eat into the
// API budget of the same client.
type ChiMiddleware struct {
	cors   func(http.Handler) http.Handler
	api    func(http.Handler) http.Handler
	health func(http.Handler) http.Handler
	reload func(http.Handler) http.Handler
}

// NewChiMiddleware builds the middleware set. A nil config uses the
// defaults.
func NewChiMiddleware(cfg *ChiMiddlewareConfig) *ChiMiddleware {
	if cfg == nil {
		cfg = DefaultChiMiddlewareConfig()
	}
	limiter := newLimiterFactory(cfg)
	return &ChiMiddleware{
		cors: cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: cfg.CORSAllowedMethods,
			AllowedHeaders: cfg.CORSAllowedHeaders,
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         cfg.CORSMaxAge,
		}),
		api:    limiter(RateLimitConfig{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}),
		health: limiter(cfg.HealthLimit),
		reload: limiter(cfg.ReloadLimit),
	}
}

// newLimiterFactory returns a constructor for httprate limiters that share
// the key function and the 429 body. Disabled or empty budgets yield a
// pass-through.
func newLimiterFactory(cfg *ChiMiddlewareConfig) func(RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.RateLimitKeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	onLimit := httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", nil)
	})

	return func(rl RateLimitConfig) func(http.Handler) http.Handler {
		if cfg.RateLimitDisabled || rl.Requests <= 0 || rl.Window <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		return httprate.Limit(rl.Requests, rl.Window, httprate.WithKeyFuncs(keyFunc), onLimit)
	}
}

// CORS returns the go-chi/cors middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler { return m.cors }

// RateLimit limits /api/v1 per client IP.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler { return m.api }

// RateLimitHealth limits the health and metrics endpoints.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler { return m.health }

// RateLimitReload limits the forced model reload.
func (m *ChiMiddleware) RateLimitReload() func(http.Handler) http.Handler { return m.reload }

// APISecurityHeaders sets the response headers every JSON endpoint carries.
// HSTS is only sent when the request arrived over TLS, directly or through
// a proxy that says so.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}
