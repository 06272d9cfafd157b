// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"fmt"
)

// FactorModel is the output of latent factor training. Row u of
// UserFactors belongs to UserIDs[u] and row i of ItemFactors belongs to
// ItemIDs[i]. Fields are exported for gob persistence; treat the value as
// immutable once built.
type FactorModel struct {
	Factors     int
	UserIDs     []string
	ItemIDs     []string
	UserFactors [][]float64
	ItemFactors [][]float64

	// UserItems lists, per user index, the item indices the user
	// interacted with during training (ascending).
	UserItems [][]int
}

// Validate checks that the dimensions are mutually consistent.
func (m *FactorModel) Validate() error {
	if m == nil {
		return fmt.Errorf("factor model is nil")
	}
	if len(m.UserFactors) != len(m.UserIDs) {
		return fmt.Errorf("user factors: %d rows for %d users", len(m.UserFactors), len(m.UserIDs))
	}
	if len(m.ItemFactors) != len(m.ItemIDs) {
		return fmt.Errorf("item factors: %d rows for %d items", len(m.ItemFactors), len(m.ItemIDs))
	}
	if m.UserItems != nil && len(m.UserItems) != len(m.UserIDs) {
		return fmt.Errorf("user items: %d rows for %d users", len(m.UserItems), len(m.UserIDs))
	}
	for u, row := range m.UserFactors {
		if len(row) != m.Factors {
			return fmt.Errorf("user %d: %d factors, want %d", u, len(row), m.Factors)
		}
	}
	for i, row := range m.ItemFactors {
		if len(row) != m.Factors {
			return fmt.Errorf("item %d: %d factors, want %d", i, len(row), m.Factors)
		}
	}
	for u, items := range m.UserItems {
		for _, i := range items {
			if i < 0 || i >= len(m.ItemIDs) {
				return fmt.Errorf("user %d: item index %d out of range", u, i)
			}
		}
	}
	return nil
}

// FactorOptions tunes a FactorRecommender.
type FactorOptions struct {
	// ExcludeOwned drops items the user interacted with during training.
	ExcludeOwned bool
}

// FactorRecommender scores items by the dot product of user and item
// factors.
type FactorRecommender struct {
	model   *FactorModel
	userIdx map[string]int
	opts    FactorOptions
}

// NewFactorRecommender validates m and indexes its users.
func NewFactorRecommender(m *FactorModel, opts FactorOptions) (*FactorRecommender, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid factor model: %w", err)
	}
	return &FactorRecommender{
		model:   m,
		userIdx: indexOf(m.UserIDs),
		opts:    opts,
	}, nil
}

// Backend implements Recommender.
func (r *FactorRecommender) Backend() Backend { return BackendALS }

// Model returns the underlying factor model.
func (r *FactorRecommender) Model() *FactorModel { return r.model }

// Predict implements Recommender.
func (r *FactorRecommender) Predict(userID string, k int) (Prediction, error) {
	if k < 0 {
		return Prediction{}, InvalidArgument("predict", "k must be >= 0, got %d", k)
	}
	u, ok := r.userIdx[userID]
	if !ok {
		return Prediction{Items: []RecItem{}, ColdStart: true}, nil
	}
	if k == 0 {
		return Prediction{Items: []RecItem{}}, nil
	}

	var owned []int
	if r.opts.ExcludeOwned && r.model.UserItems != nil {
		owned = r.model.UserItems[u]
	}

	x := r.model.UserFactors[u]
	top := newTopK(k)
	o := 0
	for i, y := range r.model.ItemFactors {
		// owned is ascending, so a single cursor skips it in step.
		for o < len(owned) && owned[o] < i {
			o++
		}
		if o < len(owned) && owned[o] == i {
			continue
		}
		top.Offer(r.model.ItemIDs[i], dot(x, y))
	}
	return Prediction{Items: top.Result()}, nil
}

func dot(a, b []float64) float64 {
	var s float64
	for f := range a {
		s += a[f] * b[f]
	}
	return s
}

// CooccurrenceModel is the persisted form of a co-occurrence backend: the
// table rows plus each known user's owned items.
type CooccurrenceModel struct {
	Rows  []CooccurrenceRow
	Owned map[string][]string
}

// CooccurrenceRecommender ranks by summed co-occurrence with the user's
// owned items.
type CooccurrenceRecommender struct {
	table *CooccurrenceTable
	owned map[string][]string
}

// NewCooccurrenceRecommender builds a recommender over table for the users
// in owned.
func NewCooccurrenceRecommender(table *CooccurrenceTable, owned map[string][]string) *CooccurrenceRecommender {
	if owned == nil {
		owned = map[string][]string{}
	}
	return &CooccurrenceRecommender{table: table, owned: owned}
}

// NewCooccurrenceRecommenderFromModel rebuilds a recommender from its
// persisted form.
func NewCooccurrenceRecommenderFromModel(m *CooccurrenceModel) *CooccurrenceRecommender {
	return NewCooccurrenceRecommender(NewCooccurrenceTable(m.Rows), m.Owned)
}

// Backend implements Recommender.
func (r *CooccurrenceRecommender) Backend() Backend { return BackendCooccurrence }

// Table returns the backing table.
func (r *CooccurrenceRecommender) Table() *CooccurrenceTable { return r.table }

// Model returns the persisted form of the recommender.
func (r *CooccurrenceRecommender) Model() *CooccurrenceModel {
	return &CooccurrenceModel{Rows: r.table.Rows(), Owned: r.owned}
}

// Predict implements Recommender. Users without history are a cold start.
func (r *CooccurrenceRecommender) Predict(userID string, k int) (Prediction, error) {
	if k < 0 {
		return Prediction{}, InvalidArgument("predict", "k must be >= 0, got %d", k)
	}
	owned, ok := r.owned[userID]
	if !ok || len(owned) == 0 {
		return Prediction{Items: []RecItem{}, ColdStart: true}, nil
	}
	items, err := Rank(r.table, owned, k)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Items: items}, nil
}

// ModelStats summarizes a recommender for logs and the model endpoint.
type ModelStats struct {
	Users   int `json:"users"`
	Items   int `json:"items"`
	Factors int `json:"factors,omitempty"`
	Pairs   int `json:"pairs,omitempty"`
}

// Stats reports the size of r when it is one of the built-in backends.
func Stats(r Recommender) ModelStats {
	switch v := r.(type) {
	case *FactorRecommender:
		return ModelStats{Users: len(v.model.UserIDs), Items: len(v.model.ItemIDs), Factors: v.model.Factors}
	case *CooccurrenceRecommender:
		return ModelStats{Users: len(v.owned), Items: len(v.table.Items()), Pairs: v.table.Len()}
	default:
		return ModelStats{}
	}
}
