// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

// Package algorithms trains the models behind the recommender backends.
//
// Two trainers are provided:
//
//   - BuildCooccurrence: counts, for every pair of distinct items, the
//     users who interacted with both. Counting walks each user's item list
//     (an inverted posting list) so the cost is O(sum of deg(u)^2) rather
//     than O(items^2).
//   - ALSTrainer: implicit-feedback alternating least squares producing
//     user and item latent factors.
//
// Both read an immutable recommend.InteractionMatrix and return immutable
// results; the serving side lives in package recommend.
//
// # Concurrency
//
// A training run is a single logical thread of control. ALS iterations
// run strictly in order; within one half-iteration the independent row
// solves are spread over a bounded worker pool and joined before the next
// half-iteration starts.
package algorithms
