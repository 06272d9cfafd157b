// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/shopsignal/internal/metrics"
	"github.com/tomtom215/shopsignal/internal/recommend"
)

// ReadPredictRows loads batch prediction input: a customer_id column and
// an optional integer k column. Rows keep file order; a NULL or missing k
// is left nil so the batch default applies.
func (db *DB) ReadPredictRows(ctx context.Context, path string) (out []recommend.PredictRow, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("read_predict_rows", time.Since(start), err) }()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	src, err := scanExpr(path)
	if err != nil {
		return nil, err
	}
	cols, err := db.columns(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !cols[colCustomerID] {
		return nil, fmt.Errorf("read %s: missing required column %q", path, colCustomerID)
	}
	k := "NULL"
	if cols["k"] {
		k = "CAST(k AS BIGINT)"
	}

	// DuckDB keeps file order for a plain scan (preserve_insertion_order).
	stmt := fmt.Sprintf(`
		SELECT CAST(customer_id AS VARCHAR), %s
		FROM %s
		WHERE customer_id IS NOT NULL`, k, src)
	rows, err := db.conn.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to query predict rows: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var (
			row recommend.PredictRow
			kv  sql.NullInt64
		)
		if err := rows.Scan(&row.CustomerID, &kv); err != nil {
			return nil, fmt.Errorf("failed to scan predict row: %w", err)
		}
		if kv.Valid {
			v := int(kv.Int64)
			row.K = &v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predict rows: %w", err)
	}
	return out, nil
}

// WritePredictions exports batch results in long form: one row per
// recommended item (customer_id, rank, product_id, score). Customers with
// an empty list get a single row with rank 0 and NULL product so every
// input customer appears in the output.
func (db *DB) WritePredictions(ctx context.Context, path string, results []recommend.BatchResult) error {
	type flat struct {
		customer  string
		rank      int
		product   interface{}
		score     interface{}
		coldStart bool
	}
	var rows []flat
	for _, r := range results {
		if len(r.RecList) == 0 {
			rows = append(rows, flat{customer: r.CustomerID, coldStart: r.ColdStart})
			continue
		}
		for i, it := range r.RecList {
			rows = append(rows, flat{customer: r.CustomerID, rank: i + 1, product: it.ItemID, score: it.Score})
		}
	}
	return db.writeTable(ctx, path, tableSpec{
		columns: "customer_id VARCHAR, rank INTEGER, product_id VARCHAR, score DOUBLE, cold_start BOOLEAN",
		n:       len(rows),
		row: func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.customer, r.rank, r.product, r.score, r.coldStart}
		},
	})
}
