// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

// Quality summarizes how a recommender behaves across a user population.
type Quality struct {
	// Coverage is distinct recommended items over catalog size (0..1).
	Coverage float64 `json:"coverage"`

	// Novelty is the mean inverse popularity of recommended items, where
	// popularity is an item's share of total interaction strength.
	Novelty float64 `json:"novelty"`

	Users       int `json:"users"`
	Recommended int `json:"recommended"`
	K           int `json:"k"`
}

// unseenPopularity stands in for items missing from the catalog so their
// inverse popularity stays finite.
const unseenPopularity = 1e-9

// Evaluate requests k items for every user in m and measures coverage and
// novelty against m's catalog. Users counts every user asked, including
// those who got nothing back; only returned items feed coverage and
// novelty. An empty catalog yields a zero report.
func Evaluate(r Recommender, m *InteractionMatrix, k int) (Quality, error) {
	q := Quality{K: k}
	if k < 0 {
		return q, InvalidArgument("evaluate", "k must be >= 0, got %d", k)
	}
	if r == nil || m == nil || m.NumItems() == 0 {
		return q, nil
	}

	totals := m.ItemStrengthTotals()
	var sum float64
	for _, v := range totals {
		sum += v
	}

	seen := make(map[string]struct{})
	var inv float64
	for u := 0; u < m.NumUsers(); u++ {
		pred, err := r.Predict(m.UserID(u), k)
		if err != nil {
			return q, err
		}
		q.Users++
		for _, it := range pred.Items {
			seen[it.ItemID] = struct{}{}
			pop := unseenPopularity
			if i, ok := m.ItemIndex(it.ItemID); ok && sum > 0 && totals[i] > 0 {
				pop = totals[i] / sum
			}
			inv += 1 / pop
			q.Recommended++
		}
	}

	q.Coverage = float64(len(seen)) / float64(m.NumItems())
	if q.Recommended > 0 {
		q.Novelty = inv / float64(q.Recommended)
	}
	return q, nil
}
