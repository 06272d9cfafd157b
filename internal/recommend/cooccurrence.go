// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"sort"
)

// Neighbor is an item that co-occurs with another, with the number of
// users who interacted with both.
type Neighbor struct {
	ItemID string
	Score  int
}

// CooccurrenceTable maps an item to the items that share at least one user
// with it. It never holds self pairs or zero scores. It is immutable after
// construction.
type CooccurrenceTable struct {
	items     []string
	neighbors map[string][]Neighbor
	pairs     int
}

// NewCooccurrenceTable builds a table from artifact rows. Self pairs and
// non-positive scores are dropped and duplicate pairs are summed.
func NewCooccurrenceTable(rows []CooccurrenceRow) *CooccurrenceTable {
	acc := make(map[string]map[string]int)
	for _, r := range rows {
		if r.Item == "" || r.ItemRec == "" || r.Item == r.ItemRec || r.Score <= 0 {
			continue
		}
		m := acc[r.Item]
		if m == nil {
			m = make(map[string]int)
			acc[r.Item] = m
		}
		m[r.ItemRec] += r.Score
	}

	t := &CooccurrenceTable{
		items:     make([]string, 0, len(acc)),
		neighbors: make(map[string][]Neighbor, len(acc)),
	}
	for item, m := range acc {
		ns := make([]Neighbor, 0, len(m))
		for rec, score := range m {
			ns = append(ns, Neighbor{ItemID: rec, Score: score})
		}
		sort.Slice(ns, func(a, b int) bool { return ns[a].ItemID < ns[b].ItemID })
		t.neighbors[item] = ns
		t.items = append(t.items, item)
		t.pairs += len(ns)
	}
	sort.Strings(t.items)
	return t
}

// Score returns the co-occurrence count of (a, b), or 0 if absent.
func (t *CooccurrenceTable) Score(a, b string) int {
	if t == nil {
		return 0
	}
	ns := t.neighbors[a]
	n := sort.Search(len(ns), func(i int) bool { return ns[i].ItemID >= b })
	if n < len(ns) && ns[n].ItemID == b {
		return ns[n].Score
	}
	return 0
}

// Neighbors returns the items co-occurring with a, ordered by item id.
// The returned slice must not be modified.
func (t *CooccurrenceTable) Neighbors(a string) []Neighbor {
	if t == nil {
		return nil
	}
	return t.neighbors[a]
}

// Items returns the items that have at least one neighbor, sorted.
func (t *CooccurrenceTable) Items() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.items...)
}

// Len returns the number of ordered pairs held.
func (t *CooccurrenceTable) Len() int {
	if t == nil {
		return 0
	}
	return t.pairs
}

// Rows flattens the table into artifact rows ordered by (item, item_rec).
func (t *CooccurrenceTable) Rows() []CooccurrenceRow {
	if t == nil {
		return nil
	}
	out := make([]CooccurrenceRow, 0, t.pairs)
	for _, item := range t.items {
		for _, n := range t.neighbors[item] {
			out = append(out, CooccurrenceRow{Item: item, ItemRec: n.ItemID, Score: n.Score})
		}
	}
	return out
}

// Rank scores every item co-occurring with any owned item by the sum of its
// co-occurrence counts, drops the owned items themselves, and returns the
// best k. Ties go to the smaller item id.
//
// An empty owned set is a cold start and yields an empty list, not an error.
func Rank(t *CooccurrenceTable, owned []string, k int) ([]RecItem, error) {
	if k < 0 {
		return nil, InvalidArgument("rank", "k must be >= 0, got %d", k)
	}
	if k == 0 || len(owned) == 0 || t == nil {
		return []RecItem{}, nil
	}

	ownedSet := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}

	sums := make(map[string]int)
	for id := range ownedSet {
		for _, n := range t.neighbors[id] {
			if _, mine := ownedSet[n.ItemID]; mine {
				continue
			}
			sums[n.ItemID] += n.Score
		}
	}

	top := newTopK(k)
	for id, s := range sums {
		top.Offer(id, float64(s))
	}
	return top.Result(), nil
}
