// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/shopsignal/internal/logging"
	"github.com/tomtom215/shopsignal/internal/metrics"
	"github.com/tomtom215/shopsignal/internal/recommend"
)

// Artifact table names, used as file stems under the artifacts dir.
const (
	InteractionsArtifact = "interactions"
	CooccurrenceArtifact = "cooccurrence"
)

type tableSpec struct {
	columns string
	n       int
	row     func(i int) []interface{}
}

// writeTable stages rows in a scratch table and exports it with COPY.
// The target directory is created when missing; an existing file is
// replaced.
func (db *DB) writeTable(ctx context.Context, path string, spec tableSpec) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("export", time.Since(start), err) }()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	opts, err := copyOptions(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
	}

	table := "staging_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	if _, err := db.conn.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, spec.columns)); err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}
	defer func() {
		if _, err := db.conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+table); err != nil {
			logging.Warn().Err(err).Str("table", table).Msg("Failed to drop staging table")
		}
	}()

	if spec.n > 0 {
		if err := db.insertRows(ctx, table, spec); err != nil {
			return err
		}
	}

	query := fmt.Sprintf("COPY %s TO %s %s", table, quoteLiteral(path), opts)
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	return nil
}

func (db *DB) insertRows(ctx context.Context, table string, spec tableSpec) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	first := spec.row(0)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(first)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, marks))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer closeQuietly(stmt)

	for i := 0; i < spec.n; i++ {
		if _, err := stmt.ExecContext(ctx, spec.row(i)...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rows: %w", err)
	}
	return nil
}

// WriteInteractions exports the interaction table (customer_id,
// product_id, strength).
func (db *DB) WriteInteractions(ctx context.Context, path string, rows []recommend.Interaction) error {
	return db.writeTable(ctx, path, tableSpec{
		columns: "customer_id VARCHAR, product_id VARCHAR, strength DOUBLE",
		n:       len(rows),
		row: func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.CustomerID, r.ProductID, r.Strength}
		},
	})
}

// ReadInteractions loads an interaction table written by WriteInteractions
// or produced elsewhere with the same columns.
func (db *DB) ReadInteractions(ctx context.Context, path string) (out []recommend.Interaction, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("read_interactions", time.Since(start), err) }()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	src, err := scanExpr(path)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT CAST(customer_id AS VARCHAR), CAST(product_id AS VARCHAR), CAST(strength AS DOUBLE)
		FROM ` + src + `
		ORDER BY 1, 2`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var r recommend.Interaction
		if err := rows.Scan(&r.CustomerID, &r.ProductID, &r.Strength); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interactions: %w", err)
	}
	return out, nil
}

// WriteCooccurrence exports the co-occurrence table (item, item_rec,
// score).
func (db *DB) WriteCooccurrence(ctx context.Context, path string, rows []recommend.CooccurrenceRow) error {
	return db.writeTable(ctx, path, tableSpec{
		columns: "item VARCHAR, item_rec VARCHAR, score BIGINT",
		n:       len(rows),
		row: func(i int) []interface{} {
			r := rows[i]
			return []interface{}{r.Item, r.ItemRec, int64(r.Score)}
		},
	})
}

// ReadCooccurrence loads a co-occurrence table.
func (db *DB) ReadCooccurrence(ctx context.Context, path string) (out []recommend.CooccurrenceRow, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("read_cooccurrence", time.Since(start), err) }()
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	src, err := scanExpr(path)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT CAST(item AS VARCHAR), CAST(item_rec AS VARCHAR), CAST(score AS BIGINT)
		FROM ` + src + `
		ORDER BY 1, 2`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query co-occurrence: %w", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var (
			r     recommend.CooccurrenceRow
			score int64
		)
		if err := rows.Scan(&r.Item, &r.ItemRec, &score); err != nil {
			return nil, fmt.Errorf("failed to scan co-occurrence row: %w", err)
		}
		r.Score = int(score)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating co-occurrence: %w", err)
	}
	return out, nil
}
