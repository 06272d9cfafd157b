// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package algorithms

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shopsignal/internal/recommend"
)

// cancelCheckEvery is how many users are processed between context checks.
const cancelCheckEvery = 1024

// BuildCooccurrence counts, for every ordered pair of distinct items, the
// users who interacted with both.
//
// Rather than intersecting every pair of item columns (O(items^2) set
// intersections), it walks each user's item list once and increments every
// pair inside it. Cost is O(sum_u deg(u)^2) time and O(pairs) memory, which
// is far smaller on sparse retail data. A user holding the whole catalog
// still costs O(items^2), matching the naive bound.
//
// The result is symmetric, has no self pairs and keeps only positive
// counts.
func BuildCooccurrence(ctx context.Context, m *recommend.InteractionMatrix) (*recommend.CooccurrenceTable, error) {
	nItems := m.NumItems()
	counts := make([]map[int]int, nItems)

	for u := 0; u < m.NumUsers(); u++ {
		if u%cancelCheckEvery == 0 && ContextCancelled(ctx) {
			return nil, ctx.Err()
		}
		items, _ := m.UserRow(u)
		for x := 0; x < len(items); x++ {
			a := items[x]
			for y := x + 1; y < len(items); y++ {
				// items is ascending, so a < b and only the upper
				// triangle is stored.
				if counts[a] == nil {
					counts[a] = make(map[int]int)
				}
				counts[a][items[y]]++
			}
		}
	}

	rows := make([]recommend.CooccurrenceRow, 0)
	for a, row := range counts {
		for b, c := range row {
			ia, ib := m.ItemID(a), m.ItemID(b)
			rows = append(rows,
				recommend.CooccurrenceRow{Item: ia, ItemRec: ib, Score: c},
				recommend.CooccurrenceRow{Item: ib, ItemRec: ia, Score: c},
			)
		}
	}
	return recommend.NewCooccurrenceTable(rows), nil
}

// CooccurrenceTrainer adapts BuildCooccurrence to the Trainer interface.
type CooccurrenceTrainer struct {
	logger zerolog.Logger
}

// NewCooccurrenceTrainer creates a co-occurrence trainer.
func NewCooccurrenceTrainer(logger zerolog.Logger) *CooccurrenceTrainer {
	return &CooccurrenceTrainer{logger: logger.With().Str("component", "cooccurrence").Logger()}
}

// Name implements Trainer.
func (t *CooccurrenceTrainer) Name() recommend.Backend { return recommend.BackendCooccurrence }

// Train implements Trainer.
func (t *CooccurrenceTrainer) Train(ctx context.Context, m *recommend.InteractionMatrix) (recommend.Recommender, error) {
	start := time.Now()
	table, err := BuildCooccurrence(ctx, m)
	if err != nil {
		return nil, err
	}
	t.logger.Info().
		Int("items", m.NumItems()).
		Int("pairs", table.Len()).
		Dur("duration", time.Since(start)).
		Msg("co-occurrence table built")
	return recommend.NewCooccurrenceRecommender(table, m.OwnedItems()), nil
}

var (
	_ Trainer = (*ALSTrainer)(nil)
	_ Trainer = (*CooccurrenceTrainer)(nil)
)
