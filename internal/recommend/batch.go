// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// DefaultBatchK is applied to batch rows that omit k.
const DefaultBatchK = 5

// PredictRow is one input row of a batch prediction.
type PredictRow struct {
	CustomerID string `json:"customer_id" validate:"required,max=256"`
	K          *int   `json:"k,omitempty" validate:"omitempty,gte=0"`
}

// BatchResult is one output row of a batch prediction, in input order.
type BatchResult struct {
	CustomerID string    `json:"customer_id"`
	RecList    []RecItem `json:"rec_list"`
	ColdStart  bool      `json:"cold_start,omitempty"`
}

// BatchPredict runs Predict for every row, fanning out over at most workers
// goroutines. Results keep the input order. A row with k < 0 fails the
// whole batch with ErrInvalidArgument before any prediction runs.
func BatchPredict(r Recommender, rows []PredictRow, workers int) ([]BatchResult, error) {
	for n, row := range rows {
		if row.K != nil && *row.K < 0 {
			return nil, InvalidArgument("batch predict", "row %d: k must be >= 0, got %d", n, *row.K)
		}
	}
	if workers <= 0 {
		workers = 1
	}

	out := make([]BatchResult, len(rows))
	p := pool.New().WithErrors().WithMaxGoroutines(workers)
	for n := range rows {
		n := n
		p.Go(func() error {
			k := DefaultBatchK
			if rows[n].K != nil {
				k = *rows[n].K
			}
			pred, err := r.Predict(rows[n].CustomerID, k)
			if err != nil {
				return fmt.Errorf("row %d (%s): %w", n, rows[n].CustomerID, err)
			}
			out[n] = BatchResult{
				CustomerID: rows[n].CustomerID,
				RecList:    pred.Items,
				ColdStart:  pred.ColdStart,
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("batch predict: %w", err)
	}
	return out, nil
}
