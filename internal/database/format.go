// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package database

import (
	"database/sql"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tomtom215/shopsignal/internal/logging"
)

// Format is a tabular file format DuckDB reads and writes natively.
type Format string

// Supported formats.
const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return FormatParquet, nil
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported file type %q (want .parquet or .csv)", filepath.Ext(path))
	}
}

// ArtifactPath joins dir, name and the extension for format.
func ArtifactPath(dir, name string, format Format) string {
	return filepath.Join(dir, name+"."+string(format))
}

// scanExpr returns the table function that reads path.
func scanExpr(path string) (string, error) {
	f, err := FormatOf(path)
	if err != nil {
		return "", err
	}
	if f == FormatParquet {
		return "read_parquet(" + quoteLiteral(path) + ")", nil
	}
	return "read_csv_auto(" + quoteLiteral(path) + ", header = true)", nil
}

// copyOptions returns the COPY ... TO options for path.
func copyOptions(path string) (string, error) {
	f, err := FormatOf(path)
	if err != nil {
		return "", err
	}
	if f == FormatParquet {
		return "(FORMAT PARQUET, COMPRESSION 'ZSTD')", nil
	}
	return "(FORMAT CSV, HEADER true)", nil
}

// quoteLiteral renders s as a SQL string literal. Table functions and COPY
// targets take file names as literals.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close result set")
	}
}
