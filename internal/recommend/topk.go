// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"container/heap"
	"math"
)

// ranksBefore is the total order used for every recommendation list:
// higher score first, then item id ascending.
func ranksBefore(a, b RecItem) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ItemID < b.ItemID
}

// worstFirst is a min-heap under ranksBefore: the root is the candidate
// that would be evicted next.
type worstFirst []RecItem

func (h worstFirst) Len() int            { return len(h) }
func (h worstFirst) Less(i, j int) bool  { return ranksBefore(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x interface{}) { *h = append(*h, x.(RecItem)) }
func (h *worstFirst) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// topK keeps the best k items seen so far in O(log k) per offer. Only the
// survivors are sorted at the end, so a catalog of n items costs
// O(n log k) instead of a full O(n log n) sort.
type topK struct {
	k int
	h worstFirst
}

func newTopK(k int) *topK {
	capacity := k
	if capacity > 1024 {
		capacity = 1024
	}
	return &topK{k: k, h: make(worstFirst, 0, capacity)}
}

// Offer considers one candidate. NaN scores rank below everything.
func (t *topK) Offer(id string, score float64) {
	if t.k <= 0 {
		return
	}
	if math.IsNaN(score) {
		score = math.Inf(-1)
	}
	it := RecItem{ItemID: id, Score: score}
	if len(t.h) < t.k {
		heap.Push(&t.h, it)
		return
	}
	if ranksBefore(it, t.h[0]) {
		t.h[0] = it
		heap.Fix(&t.h, 0)
	}
}

// Result drains the heap into best-first order.
func (t *topK) Result() []RecItem {
	out := make([]RecItem, len(t.h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(RecItem)
	}
	return out
}
