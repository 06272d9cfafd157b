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

// twoByThree scores u1 as x=3 > y=2 > z=2 and u2 as z > y > x.
func twoByThree() *FactorModel {
	return &FactorModel{
		Factors:     2,
		UserIDs:     []string{"u1", "u2"},
		ItemIDs:     []string{"x", "y", "z"},
		UserFactors: [][]float64{{1, 0}, {0, 1}},
		ItemFactors: [][]float64{{3, 0}, {2, 1}, {2, 2}},
		UserItems:   [][]int{{0}, {1, 2}},
	}
}

func TestFactorModel_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *FactorModel)
	}{
		{"user rows", func(m *FactorModel) { m.UserFactors = m.UserFactors[:1] }},
		{"item rows", func(m *FactorModel) { m.ItemFactors = m.ItemFactors[:2] }},
		{"factor width", func(m *FactorModel) { m.ItemFactors[1] = []float64{1} }},
		{"user items rows", func(m *FactorModel) { m.UserItems = [][]int{{0}} }},
		{"user item index", func(m *FactorModel) { m.UserItems[0] = []int{7} }},
	}
	if err := twoByThree().Validate(); err != nil {
		t.Fatalf("valid model: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := twoByThree()
			tt.mutate(m)
			if err := m.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
			if _, err := NewFactorRecommender(m, FactorOptions{}); err == nil {
				t.Error("NewFactorRecommender() accepted an invalid model")
			}
		})
	}
}

func TestFactorRecommender_Predict(t *testing.T) {
	r, err := NewFactorRecommender(twoByThree(), FactorOptions{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		user      string
		k         int
		want      []RecItem
		coldStart bool
	}{
		{
			name: "ties break by item id",
			user: "u1",
			k:    3,
			want: []RecItem{{ItemID: "x", Score: 3}, {ItemID: "y", Score: 2}, {ItemID: "z", Score: 2}},
		},
		{
			name: "k larger than catalog",
			user: "u2",
			k:    10,
			want: []RecItem{{ItemID: "z", Score: 2}, {ItemID: "y", Score: 1}, {ItemID: "x", Score: 0}},
		},
		{
			name: "k truncates",
			user: "u2",
			k:    1,
			want: []RecItem{{ItemID: "z", Score: 2}},
		},
		{
			name: "k zero",
			user: "u1",
			k:    0,
			want: []RecItem{},
		},
		{
			name:      "unknown user",
			user:      "ghost",
			k:         3,
			want:      []RecItem{},
			coldStart: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := r.Predict(tt.user, tt.k)
			if err != nil {
				t.Fatalf("Predict() error = %v", err)
			}
			if pred.ColdStart != tt.coldStart {
				t.Errorf("ColdStart = %v, want %v", pred.ColdStart, tt.coldStart)
			}
			if !reflect.DeepEqual(pred.Items, tt.want) {
				t.Errorf("Items = %+v, want %+v", pred.Items, tt.want)
			}
		})
	}

	if _, err := r.Predict("u1", -1); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Predict(k=-1) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFactorRecommender_ExcludeOwned(t *testing.T) {
	r, err := NewFactorRecommender(twoByThree(), FactorOptions{ExcludeOwned: true})
	if err != nil {
		t.Fatal(err)
	}
	pred, err := r.Predict("u2", 3)
	if err != nil {
		t.Fatal(err)
	}
	if want := []RecItem{{ItemID: "x", Score: 0}}; !reflect.DeepEqual(pred.Items, want) {
		t.Errorf("Items = %+v, want %+v", pred.Items, want)
	}
	if s := Stats(r); s.Users != 2 || s.Items != 3 || s.Factors != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestTopK_NaNRanksLast(t *testing.T) {
	top := newTopK(2)
	top.Offer("nan", nanScore())
	top.Offer("b", 1)
	top.Offer("a", 1)
	got := top.Result()
	want := []RecItem{{ItemID: "a", Score: 1}, {ItemID: "b", Score: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Result() = %+v, want %+v", got, want)
	}
}

func nanScore() float64 {
	zero := 0.0
	return zero / zero
}
