// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package algorithms

import (
	"context"

	"github.com/tomtom215/shopsignal/internal/recommend"
)

// Trainer is implemented by anything that turns an interaction matrix into
// a servable recommender.
type Trainer interface {
	Name() recommend.Backend
	Train(ctx context.Context, m *recommend.InteractionMatrix) (recommend.Recommender, error)
}

// ContextCancelled checks if the context has been cancelled.
// Use this in long-running loops to enable early termination.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
