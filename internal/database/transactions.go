// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/shopsignal/internal/database/query"
	"github.com/tomtom215/shopsignal/internal/metrics"
	"github.com/tomtom215/shopsignal/internal/recommend"
)

// Transaction file columns. refund_flag is optional.
const (
	colCustomerID = "customer_id"
	colProductID  = "product_id"
	colQuantity   = "quantity"
	colRefundFlag = "refund_flag"
)

// TransactionSummary describes a transaction file.
type TransactionSummary struct {
	Rows      int64   `json:"rows"`
	Refunds   int64   `json:"refunds"`
	Customers int64   `json:"customers"`
	Products  int64   `json:"products"`
	Quantity  float64 `json:"quantity"`
}

// TransactionFilter narrows SummarizeTransactions. Empty fields match
// everything.
type TransactionFilter struct {
	Customers   []string
	Products    []string
	MinQuantity *float64
}

func (f TransactionFilter) where() (string, []any) {
	return query.Where(
		query.In(colCustomerID, f.Customers),
		query.In(colProductID, f.Products),
		query.AtLeast(colQuantity, f.MinQuantity),
	).SQL()
}

// columns lists the lower-cased column names of src.
func (db *DB) columns(ctx context.Context, src string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT * FROM "+src+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer closeRows(rows)

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[strings.ToLower(n)] = true
	}
	return out, nil
}

// transactionSelect returns a SELECT over path yielding customer_id,
// product_id, quantity and refund columns in that order.
func (db *DB) transactionSelect(ctx context.Context, path string) (string, error) {
	src, err := scanExpr(path)
	if err != nil {
		return "", err
	}
	cols, err := db.columns(ctx, src)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	for _, c := range []string{colCustomerID, colProductID, colQuantity} {
		if !cols[c] {
			return "", fmt.Errorf("read %s: missing required column %q", path, c)
		}
	}

	refund := "FALSE"
	if cols[colRefundFlag] {
		refund = "COALESCE(TRY_CAST(refund_flag AS BOOLEAN), FALSE)"
	}
	return fmt.Sprintf(`
		SELECT
			CAST(customer_id AS VARCHAR) AS customer_id,
			CAST(product_id AS VARCHAR) AS product_id,
			CAST(quantity AS DOUBLE) AS quantity,
			%s AS refund_flag
		FROM %s
		WHERE customer_id IS NOT NULL
		  AND product_id IS NOT NULL
		  AND quantity IS NOT NULL`, refund, src), nil
}

// ReadTransactions loads every transaction in the CSV or Parquet file at
// path. Rows missing an id or quantity are skipped; refunds are kept and
// flagged so the interaction builder can drop them.
func (db *DB) ReadTransactions(ctx context.Context, path string) (out []recommend.Transaction, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("read_transactions", time.Since(start), err) }()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query, err := db.transactionSelect(ctx, path)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var t recommend.Transaction
		if err := rows.Scan(&t.CustomerID, &t.ProductID, &t.Quantity, &t.Refund); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return out, nil
}

// SummarizeTransactions reports row, refund and distinct id counts for
// the rows of the file at path that match filter, without loading the file
// into memory.
func (db *DB) SummarizeTransactions(ctx context.Context, path string, filter TransactionFilter) (_ *TransactionSummary, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("summarize_transactions", time.Since(start), err) }()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	inner, err := db.transactionSelect(ctx, path)
	if err != nil {
		return nil, err
	}
	where, args := filter.where()
	stmt := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE refund_flag),
			COUNT(DISTINCT customer_id),
			COUNT(DISTINCT product_id),
			COALESCE(SUM(quantity) FILTER (WHERE NOT refund_flag), 0)
		FROM (` + inner + `) t ` + where

	var s TransactionSummary
	if err := db.conn.QueryRowContext(ctx, stmt, args...).Scan(&s.Rows, &s.Refunds, &s.Customers, &s.Products, &s.Quantity); err != nil {
		return nil, fmt.Errorf("failed to summarize transactions: %w", err)
	}
	return &s, nil
}

// WriteTransactions writes txns to path. It is used to materialize
// fixtures and to convert between CSV and Parquet.
func (db *DB) WriteTransactions(ctx context.Context, path string, txns []recommend.Transaction) error {
	return db.writeTable(ctx, path, tableSpec{
		columns: "customer_id VARCHAR, product_id VARCHAR, quantity DOUBLE, refund_flag BOOLEAN",
		n:       len(txns),
		row: func(i int) []interface{} {
			t := txns[i]
			return []interface{}{t.CustomerID, t.ProductID, t.Quantity, t.Refund}
		},
	})
}
