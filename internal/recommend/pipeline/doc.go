// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

/*
Package pipeline runs offline training and moves trained models into serving.

A Pipeline reads raw transactions through DuckDB, aggregates them into an
interaction matrix, fits the configured backend, writes the tabular
artifacts and a versioned model file, registers the version and, when
configured, promotes it to Production and announces the promotion on the
event bus.

A Loader watches the registry side: it resolves the Production version,
rebuilds a recommender from the stored artifact and swaps it into a
recommend.Handle. Failed loads keep the previous model and feed a circuit
breaker.
*/
package pipeline
