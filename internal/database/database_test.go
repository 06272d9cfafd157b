// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/recommend"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DataConfig{DuckDBPath: ":memory:", Threads: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shop.duckdb")
	db, err := New(&config.DataConfig{DuckDBPath: path, MaxMemory: "256MB"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a/b.parquet", FormatParquet, false},
		{"a/b.PARQUET", FormatParquet, false},
		{"b.csv", FormatCSV, false},
		{"b.json", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FormatOf(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FormatOf(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestQuoteLiteral(t *testing.T) {
	if got := quoteLiteral("it's.csv"); got != "'it''s.csv'" {
		t.Errorf("quoteLiteral() = %s, want 'it''s.csv'", got)
	}
}

func sampleTransactions() []recommend.Transaction {
	return []recommend.Transaction{
		{CustomerID: "c1", ProductID: "p1", Quantity: 2},
		{CustomerID: "c1", ProductID: "p2", Quantity: 1},
		{CustomerID: "c2", ProductID: "p1", Quantity: 3, Refund: true},
		{CustomerID: "c2", ProductID: "p3", Quantity: 1.5},
	}
}

func TestTransactions_RoundTrip(t *testing.T) {
	for _, ext := range []string{".csv", ".parquet"} {
		t.Run(ext, func(t *testing.T) {
			db := setupTestDB(t)
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "tx"+ext)

			want := sampleTransactions()
			if err := db.WriteTransactions(ctx, path, want); err != nil {
				t.Fatalf("WriteTransactions() error = %v", err)
			}
			got, err := db.ReadTransactions(ctx, path)
			if err != nil {
				t.Fatalf("ReadTransactions() error = %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("ReadTransactions() returned %d rows, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestReadTransactions_OptionalRefundColumn(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()

	noRefund := filepath.Join(dir, "plain.csv")
	writeFile(t, noRefund, "customer_id,product_id,quantity\nc1,p1,2\nc2,p2,1\n")
	got, err := db.ReadTransactions(context.Background(), noRefund)
	if err != nil {
		t.Fatalf("ReadTransactions() error = %v", err)
	}
	if len(got) != 2 || got[0].Refund || got[1].Refund {
		t.Errorf("ReadTransactions() = %+v, want 2 non-refund rows", got)
	}

	intFlags := filepath.Join(dir, "flags.csv")
	writeFile(t, intFlags, "customer_id,product_id,quantity,refund_flag\nc1,p1,2,0\nc1,p2,1,1\nc2,p1,1,\n")
	got, err = db.ReadTransactions(context.Background(), intFlags)
	if err != nil {
		t.Fatalf("ReadTransactions() error = %v", err)
	}
	wantRefund := []bool{false, true, false}
	for i, w := range wantRefund {
		if got[i].Refund != w {
			t.Errorf("row %d Refund = %v, want %v", i, got[i].Refund, w)
		}
	}
}

func TestReadTransactions_Errors(t *testing.T) {
	db := setupTestDB(t)
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing_qty.csv")
	writeFile(t, missing, "customer_id,product_id\nc1,p1\n")

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing column", missing, `missing required column "quantity"`},
		{"unsupported type", filepath.Join(dir, "tx.json"), "unsupported file type"},
		{"missing file", filepath.Join(dir, "nope.csv"), "nope.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.ReadTransactions(context.Background(), tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ReadTransactions() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSummarizeTransactions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tx.parquet")
	if err := db.WriteTransactions(ctx, path, sampleTransactions()); err != nil {
		t.Fatal(err)
	}

	two := 2.0
	tests := []struct {
		name   string
		filter TransactionFilter
		want   TransactionSummary
	}{
		{name: "all", want: TransactionSummary{Rows: 4, Refunds: 1, Customers: 2, Products: 3, Quantity: 4.5}},
		{name: "customer", filter: TransactionFilter{Customers: []string{"c2"}}, want: TransactionSummary{Rows: 2, Refunds: 1, Customers: 1, Products: 2, Quantity: 1.5}},
		{name: "product", filter: TransactionFilter{Products: []string{"p1"}}, want: TransactionSummary{Rows: 2, Refunds: 1, Customers: 2, Products: 1, Quantity: 2}},
		{name: "min quantity", filter: TransactionFilter{MinQuantity: &two}, want: TransactionSummary{Rows: 2, Refunds: 1, Customers: 2, Products: 1, Quantity: 2}},
		{name: "no match", filter: TransactionFilter{Customers: []string{"nobody"}}, want: TransactionSummary{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := db.SummarizeTransactions(ctx, path, tt.filter)
			if err != nil {
				t.Fatalf("SummarizeTransactions() error = %v", err)
			}
			if *s != tt.want {
				t.Errorf("SummarizeTransactions() = %+v, want %+v", *s, tt.want)
			}
		})
	}
}

func TestReadPredictRows(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	withK := filepath.Join(dir, "with_k.csv")
	writeFile(t, withK, "customer_id,k\nc2,3\nc1,\nc3,0\n")
	rows, err := db.ReadPredictRows(ctx, withK)
	if err != nil {
		t.Fatalf("ReadPredictRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].CustomerID != "c2" || rows[0].K == nil || *rows[0].K != 3 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].CustomerID != "c1" || rows[1].K != nil {
		t.Errorf("row 1 = %+v, want nil k", rows[1])
	}
	if rows[2].K == nil || *rows[2].K != 0 {
		t.Errorf("row 2 = %+v, want k=0", rows[2])
	}

	idsOnly := filepath.Join(dir, "ids.csv")
	writeFile(t, idsOnly, "customer_id\nc1\n")
	rows, err = db.ReadPredictRows(ctx, idsOnly)
	if err != nil {
		t.Fatalf("ReadPredictRows() error = %v", err)
	}
	if len(rows) != 1 || rows[0].K != nil {
		t.Errorf("rows = %+v", rows)
	}

	noID := filepath.Join(dir, "bad.csv")
	writeFile(t, noID, "user,k\nc1,2\n")
	if _, err := db.ReadPredictRows(ctx, noID); err == nil || !strings.Contains(err.Error(), "customer_id") {
		t.Errorf("ReadPredictRows() error = %v, want missing customer_id", err)
	}
}

func TestWritePredictions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "predictions.csv")

	results := []recommend.BatchResult{
		{CustomerID: "c1", RecList: []recommend.RecItem{{ItemID: "bread", Score: 3}, {ItemID: "cheese", Score: 1}}},
		{CustomerID: "ghost", RecList: []recommend.RecItem{}, ColdStart: true},
	}
	if err := db.WritePredictions(ctx, path, results); err != nil {
		t.Fatalf("WritePredictions() error = %v", err)
	}

	var n, cold int
	if err := db.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(*) FILTER (WHERE cold_start) FROM read_csv_auto("+quoteLiteral(path)+", header = true)",
	).Scan(&n, &cold); err != nil {
		t.Fatal(err)
	}
	if n != 3 || cold != 1 {
		t.Errorf("rows=%d cold=%d, want 3 and 1", n, cold)
	}

	var product string
	var score float64
	if err := db.Conn().QueryRowContext(ctx,
		"SELECT product_id, score FROM read_csv_auto("+quoteLiteral(path)+", header = true) WHERE customer_id = 'c1' AND rank = 1",
	).Scan(&product, &score); err != nil {
		t.Fatal(err)
	}
	if product != "bread" || score != 3 {
		t.Errorf("top row = %s/%v, want bread/3", product, score)
	}
}

func TestInteractions_RoundTrip(t *testing.T) {
	want := []recommend.Interaction{
		{CustomerID: "c1", ProductID: "p1", Strength: 2},
		{CustomerID: "c1", ProductID: "p2", Strength: 1},
		{CustomerID: "c2", ProductID: "p3", Strength: 1.5},
	}
	for _, format := range []Format{FormatParquet, FormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			db := setupTestDB(t)
			ctx := context.Background()
			path := ArtifactPath(filepath.Join(t.TempDir(), "artifacts"), InteractionsArtifact, format)

			if err := db.WriteInteractions(ctx, path, want); err != nil {
				t.Fatalf("WriteInteractions() error = %v", err)
			}
			got, err := db.ReadInteractions(ctx, path)
			if err != nil {
				t.Fatalf("ReadInteractions() error = %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("ReadInteractions() returned %d rows, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestInteractions_Empty(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "empty.parquet")

	if err := db.WriteInteractions(ctx, path, nil); err != nil {
		t.Fatalf("WriteInteractions(nil) error = %v", err)
	}
	got, err := db.ReadInteractions(ctx, path)
	if err != nil {
		t.Fatalf("ReadInteractions() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadInteractions() = %v, want empty", got)
	}
}

func TestCooccurrence_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cooccurrence.parquet")

	want := []recommend.CooccurrenceRow{
		{Item: "i1", ItemRec: "i2", Score: 2},
		{Item: "i1", ItemRec: "i3", Score: 1},
		{Item: "i2", ItemRec: "i1", Score: 2},
		{Item: "i3", ItemRec: "i1", Score: 1},
	}
	if err := db.WriteCooccurrence(ctx, path, want); err != nil {
		t.Fatalf("WriteCooccurrence() error = %v", err)
	}
	// Overwriting the same path must succeed.
	if err := db.WriteCooccurrence(ctx, path, want); err != nil {
		t.Fatalf("WriteCooccurrence() overwrite error = %v", err)
	}

	got, err := db.ReadCooccurrence(ctx, path)
	if err != nil {
		t.Fatalf("ReadCooccurrence() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("ReadCooccurrence() returned %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
