// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/logging"
)

// defaultQueryTimeout bounds queries whose context has no deadline.
const defaultQueryTimeout = 5 * time.Minute

// DB wraps a DuckDB connection used for reading transaction files and
// writing tabular artifacts.
type DB struct {
	conn *sql.DB
	cfg  config.DataConfig
}

// New opens the DuckDB database configured by cfg. An empty path or
// ":memory:" opens an in-memory database.
func New(cfg *config.DataConfig) (*DB, error) {
	path := cfg.DuckDBPath
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	params := []string{fmt.Sprintf("threads=%d", threads)}
	if cfg.MaxMemory != "" {
		params = append(params, "max_memory="+cfg.MaxMemory)
	}
	dsn := path
	if path == ":memory:" {
		dsn = ""
	}
	dsn += "?" + strings.Join(params, "&")

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Debug().Str("path", path).Int("threads", threads).Msg("DuckDB opened")
	return &DB{conn: conn, cfg: *cfg}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping checks that the database answers.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Conn exposes the underlying pool for ad hoc queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
