// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"math"
	"sort"
)

// InteractionMatrix is a sparse user x item strength matrix with dense,
// contiguous indices for both axes. It stores the same entries twice: row
// major (by user) and column major (by item), so both ALS half-steps and
// the co-occurrence posting lists read contiguous memory.
//
// The matrix is immutable once built. Slices returned by accessors alias
// internal storage and must not be modified.
type InteractionMatrix struct {
	userIDs []string
	itemIDs []string
	userIdx map[string]int
	itemIdx map[string]int

	// CSR: row u spans rowPtr[u]:rowPtr[u+1] in rowCols/rowVals.
	rowPtr  []int
	rowCols []int
	rowVals []float64

	// CSC: column i spans colPtr[i]:colPtr[i+1] in colRows/colVals.
	colPtr  []int
	colRows []int
	colVals []float64
}

type pairKey struct {
	user string
	item string
}

// BuildInteractions aggregates raw transactions into an InteractionMatrix.
//
// Refunded lines are dropped. Lines with an empty id or a negative or
// non-finite quantity are ignored. The remaining quantities are summed per
// (customer, product) pair and pairs summing to zero are dropped, so a user
// or item whose every line was filtered is absent from the matrix.
//
// An empty transaction slice fails with ErrEmptyInput. Input that filters
// down to nothing produces an empty matrix.
func BuildInteractions(txns []Transaction) (*InteractionMatrix, error) {
	if len(txns) == 0 {
		return nil, &Error{Kind: KindEmptyInput, Op: "build interactions"}
	}

	sums := make(map[pairKey]float64, len(txns))
	for i := range txns {
		t := &txns[i]
		if t.Refund || t.CustomerID == "" || t.ProductID == "" {
			continue
		}
		if t.Quantity < 0 || math.IsNaN(t.Quantity) || math.IsInf(t.Quantity, 0) {
			continue
		}
		sums[pairKey{user: t.CustomerID, item: t.ProductID}] += t.Quantity
	}

	return newInteractionMatrix(sums), nil
}

// FromInteractions rebuilds a matrix from persisted interaction rows.
// Duplicate pairs are summed and invalid rows are skipped, as in
// BuildInteractions. An empty table yields an empty matrix.
func FromInteractions(rows []Interaction) *InteractionMatrix {
	sums := make(map[pairKey]float64, len(rows))
	for _, r := range rows {
		if r.CustomerID == "" || r.ProductID == "" {
			continue
		}
		if r.Strength < 0 || math.IsNaN(r.Strength) || math.IsInf(r.Strength, 0) {
			continue
		}
		sums[pairKey{user: r.CustomerID, item: r.ProductID}] += r.Strength
	}
	return newInteractionMatrix(sums)
}

func newInteractionMatrix(sums map[pairKey]float64) *InteractionMatrix {
	userSet := make(map[string]struct{})
	itemSet := make(map[string]struct{})
	for k, v := range sums {
		if v <= 0 {
			delete(sums, k)
			continue
		}
		userSet[k.user] = struct{}{}
		itemSet[k.item] = struct{}{}
	}

	m := &InteractionMatrix{
		userIDs: sortedKeys(userSet),
		itemIDs: sortedKeys(itemSet),
	}
	m.userIdx = indexOf(m.userIDs)
	m.itemIdx = indexOf(m.itemIDs)

	type cell struct {
		u, i int
		v    float64
	}
	cells := make([]cell, 0, len(sums))
	for k, v := range sums {
		cells = append(cells, cell{u: m.userIdx[k.user], i: m.itemIdx[k.item], v: v})
	}
	sort.Slice(cells, func(a, b int) bool {
		if cells[a].u != cells[b].u {
			return cells[a].u < cells[b].u
		}
		return cells[a].i < cells[b].i
	})

	nUsers, nItems, nnz := len(m.userIDs), len(m.itemIDs), len(cells)

	m.rowPtr = make([]int, nUsers+1)
	m.rowCols = make([]int, nnz)
	m.rowVals = make([]float64, nnz)
	m.colPtr = make([]int, nItems+1)
	m.colRows = make([]int, nnz)
	m.colVals = make([]float64, nnz)

	for n, c := range cells {
		m.rowPtr[c.u+1]++
		m.colPtr[c.i+1]++
		m.rowCols[n] = c.i
		m.rowVals[n] = c.v
	}
	for u := 0; u < nUsers; u++ {
		m.rowPtr[u+1] += m.rowPtr[u]
	}
	for i := 0; i < nItems; i++ {
		m.colPtr[i+1] += m.colPtr[i]
	}

	// Cells are user-major, so filling columns in order keeps each column's
	// user indices ascending.
	next := make([]int, nItems)
	copy(next, m.colPtr[:nItems])
	for _, c := range cells {
		p := next[c.i]
		m.colRows[p] = c.u
		m.colVals[p] = c.v
		next[c.i]++
	}

	return m
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexOf(ids []string) map[string]int {
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}

// NumUsers returns the number of users with at least one interaction.
func (m *InteractionMatrix) NumUsers() int { return len(m.userIDs) }

// NumItems returns the number of items with at least one interaction.
func (m *InteractionMatrix) NumItems() int { return len(m.itemIDs) }

// NNZ returns the number of stored (user, item) pairs.
func (m *InteractionMatrix) NNZ() int { return len(m.rowCols) }

// UserIndex returns the dense index of a user id.
func (m *InteractionMatrix) UserIndex(id string) (int, bool) {
	u, ok := m.userIdx[id]
	return u, ok
}

// ItemIndex returns the dense index of an item id.
func (m *InteractionMatrix) ItemIndex(id string) (int, bool) {
	i, ok := m.itemIdx[id]
	return i, ok
}

// UserID returns the id for user index u.
func (m *InteractionMatrix) UserID(u int) string { return m.userIDs[u] }

// ItemID returns the id for item index i.
func (m *InteractionMatrix) ItemID(i int) string { return m.itemIDs[i] }

// UserIDs returns a copy of the user ids in index order.
func (m *InteractionMatrix) UserIDs() []string { return append([]string(nil), m.userIDs...) }

// ItemIDs returns a copy of the item ids in index order.
func (m *InteractionMatrix) ItemIDs() []string { return append([]string(nil), m.itemIDs...) }

// UserRow returns the item indices (ascending) and strengths for user u.
func (m *InteractionMatrix) UserRow(u int) (items []int, strengths []float64) {
	lo, hi := m.rowPtr[u], m.rowPtr[u+1]
	return m.rowCols[lo:hi], m.rowVals[lo:hi]
}

// ItemColumn returns the user indices (ascending) and strengths for item i.
func (m *InteractionMatrix) ItemColumn(i int) (users []int, strengths []float64) {
	lo, hi := m.colPtr[i], m.colPtr[i+1]
	return m.colRows[lo:hi], m.colVals[lo:hi]
}

// Strength returns the aggregated strength for (u, i), or 0 if absent.
func (m *InteractionMatrix) Strength(u, i int) float64 {
	items, vals := m.UserRow(u)
	n := sort.SearchInts(items, i)
	if n < len(items) && items[n] == i {
		return vals[n]
	}
	return 0
}

// Interactions returns one row per stored pair, ordered by user then item.
func (m *InteractionMatrix) Interactions() []Interaction {
	out := make([]Interaction, 0, m.NNZ())
	for u := range m.userIDs {
		items, vals := m.UserRow(u)
		for n, i := range items {
			out = append(out, Interaction{
				CustomerID: m.userIDs[u],
				ProductID:  m.itemIDs[i],
				Strength:   vals[n],
			})
		}
	}
	return out
}

// OwnedItems returns, for every user, the ids of the items they interacted
// with in ascending order.
func (m *InteractionMatrix) OwnedItems() map[string][]string {
	out := make(map[string][]string, len(m.userIDs))
	for u, id := range m.userIDs {
		items, _ := m.UserRow(u)
		owned := make([]string, len(items))
		for n, i := range items {
			owned[n] = m.itemIDs[i]
		}
		out[id] = owned
	}
	return out
}

// ItemStrengthTotals returns the summed strength of each item, by index.
func (m *InteractionMatrix) ItemStrengthTotals() []float64 {
	totals := make([]float64, len(m.itemIDs))
	for i := range m.itemIDs {
		_, vals := m.ItemColumn(i)
		for _, v := range vals {
			totals[i] += v
		}
	}
	return totals
}
