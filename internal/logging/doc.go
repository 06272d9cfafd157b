// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package logging provides the process-wide zerolog logger.
//
// Call Init once from main with the configured level and format, then log
// through the package helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json", Timestamp: true})
//	logging.Info().Str("model", name).Int("version", v).Msg("Model promoted")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Reload failed")
//
// Ctx adds correlation_id and request_id when the context carries them.
// NewSlogLogger bridges to log/slog for the supervisor tree.
//
// Always finish an event with Msg or Send; an unfinished event is dropped.
package logging
