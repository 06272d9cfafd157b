// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package recommend is the recommender core: interaction aggregation, the
// two servable backends, and the serving contract.
//
// # Data Flow
//
//	[]Transaction --BuildInteractions--> *InteractionMatrix
//	    --algorithms.ALSTrainer-----------> *FactorRecommender
//	    --algorithms.CooccurrenceTrainer--> *CooccurrenceRecommender
//
// Refunded lines are dropped and quantities are summed per
// (customer, product) pair. An empty transaction list fails with
// ErrEmptyInput.
//
// # Ranking
//
// Every list is ordered by score descending, then product id ascending,
// and holds at most k items. Predict with k < 0 fails with
// ErrInvalidArgument; k == 0 returns an empty list. A customer missing from
// the model is a cold start: an empty list with ColdStart set, not an
// error.
//
// The co-occurrence backend scores a candidate by the sum of its
// intersection counts with the customer's owned products and never
// recommends an owned product.
//
// # Serving
//
// Serve turns a Request into a Response without returning errors or
// panicking. The served model lives in a Handle, which is swapped
// atomically when a new version is loaded; there is no package level
// model. An empty Handle answers with ok=false and error
// "model_not_loaded".
//
// # Errors
//
// Failures are *Error values carrying a Kind. Use errors.Is with the
// sentinels (ErrEmptyInput, ErrInvalidArgument, ErrConvergence,
// ErrModelUnavailable) or KindOf to branch; Kind.Code gives the wire code.
package recommend
