// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"errors"
	"reflect"
	"testing"
)

func symmetric(pairs ...CooccurrenceRow) []CooccurrenceRow {
	out := make([]CooccurrenceRow, 0, 2*len(pairs))
	for _, p := range pairs {
		out = append(out, p, CooccurrenceRow{Item: p.ItemRec, ItemRec: p.Item, Score: p.Score})
	}
	return out
}

func TestNewCooccurrenceTable(t *testing.T) {
	table := NewCooccurrenceTable([]CooccurrenceRow{
		{Item: "a", ItemRec: "b", Score: 2},
		{Item: "a", ItemRec: "b", Score: 1},
		{Item: "a", ItemRec: "a", Score: 9},
		{Item: "a", ItemRec: "c", Score: 0},
		{Item: "", ItemRec: "c", Score: 1},
		{Item: "b", ItemRec: "a", Score: 3},
	})

	if got := table.Score("a", "b"); got != 3 {
		t.Errorf("Score(a, b) = %d, want 3", got)
	}
	if got := table.Score("a", "a"); got != 0 {
		t.Errorf("self pair kept: %d", got)
	}
	if got := table.Score("a", "c"); got != 0 {
		t.Errorf("zero score kept: %d", got)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	want := []CooccurrenceRow{
		{Item: "a", ItemRec: "b", Score: 3},
		{Item: "b", ItemRec: "a", Score: 3},
	}
	if got := table.Rows(); !reflect.DeepEqual(got, want) {
		t.Errorf("Rows() = %+v, want %+v", got, want)
	}

	var nilTable *CooccurrenceTable
	if nilTable.Len() != 0 || nilTable.Score("a", "b") != 0 || nilTable.Items() != nil {
		t.Error("nil table should behave as empty")
	}
}

func TestRank(t *testing.T) {
	table := NewCooccurrenceTable(symmetric(
		CooccurrenceRow{Item: "apple", ItemRec: "bread", Score: 3},
		CooccurrenceRow{Item: "apple", ItemRec: "milk", Score: 2},
		CooccurrenceRow{Item: "bread", ItemRec: "milk", Score: 1},
		CooccurrenceRow{Item: "bread", ItemRec: "jam", Score: 3},
		CooccurrenceRow{Item: "apple", ItemRec: "eggs", Score: 3},
	))

	tests := []struct {
		name  string
		owned []string
		k     int
		want  []RecItem
	}{
		{
			name:  "single owned item",
			owned: []string{"apple"},
			k:     5,
			want: []RecItem{
				{ItemID: "bread", Score: 3},
				{ItemID: "eggs", Score: 3},
				{ItemID: "milk", Score: 2},
			},
		},
		{
			name:  "scores sum across owned items and owned are excluded",
			owned: []string{"apple", "bread"},
			k:     5,
			want: []RecItem{
				{ItemID: "eggs", Score: 3},
				{ItemID: "jam", Score: 3},
				{ItemID: "milk", Score: 3},
			},
		},
		{
			name:  "k truncates after tie break",
			owned: []string{"apple"},
			k:     1,
			want:  []RecItem{{ItemID: "bread", Score: 3}},
		},
		{
			name:  "duplicate owned ids count once",
			owned: []string{"apple", "apple"},
			k:     1,
			want:  []RecItem{{ItemID: "bread", Score: 3}},
		},
		{
			name:  "empty owned set",
			owned: nil,
			k:     5,
			want:  []RecItem{},
		},
		{
			name:  "unknown owned item",
			owned: []string{"caviar"},
			k:     5,
			want:  []RecItem{},
		},
		{
			name:  "k zero",
			owned: []string{"apple"},
			k:     0,
			want:  []RecItem{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Rank(table, tt.owned, tt.k)
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Rank() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRank_NegativeK(t *testing.T) {
	_, err := Rank(NewCooccurrenceTable(nil), []string{"a"}, -1)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Rank(k=-1) error = %v, want ErrInvalidArgument", err)
	}
}

func TestCooccurrenceRecommender(t *testing.T) {
	table := NewCooccurrenceTable(symmetric(CooccurrenceRow{Item: "a", ItemRec: "b", Score: 1}))
	r := NewCooccurrenceRecommender(table, map[string][]string{"u1": {"a"}, "u0": {}})

	pred, err := r.Predict("u1", 3)
	if err != nil || pred.ColdStart || !reflect.DeepEqual(pred.Items, []RecItem{{ItemID: "b", Score: 1}}) {
		t.Errorf("Predict(u1) = %+v, %v", pred, err)
	}
	for _, user := range []string{"nobody", "u0"} {
		pred, err = r.Predict(user, 3)
		if err != nil || !pred.ColdStart || len(pred.Items) != 0 {
			t.Errorf("Predict(%s) = %+v, %v; want cold start", user, pred, err)
		}
	}
	if _, err := r.Predict("u1", -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Predict(k=-1) error = %v", err)
	}

	rebuilt := NewCooccurrenceRecommenderFromModel(r.Model())
	if !reflect.DeepEqual(rebuilt.Table().Rows(), table.Rows()) {
		t.Error("model round trip changed the table")
	}
	if s := Stats(rebuilt); s.Users != 2 || s.Items != 2 || s.Pairs != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}
