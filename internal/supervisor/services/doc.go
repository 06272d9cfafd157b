// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package services adapts the server's components to suture.Service:
// the HTTP server, the scheduled training pipeline and the model reloader.
package services
