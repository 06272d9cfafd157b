// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package storage

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tomtom215/shopsignal/internal/recommend"
)

func factorArtifact(t *testing.T) *Artifact {
	t.Helper()
	fm := &recommend.FactorModel{
		Factors:     3,
		UserIDs:     []string{"c1", "c2"},
		ItemIDs:     []string{"apple", "bread", "milk"},
		UserFactors: [][]float64{{0.123456789, -0.5, 1e-7}, {0.3333333333, 0.25, -0.75}},
		ItemFactors: [][]float64{{1, 0.5, 0.1}, {-0.2, 0.9, 0.4}, {0.7, -0.3, 0.05}},
		UserItems:   [][]int{{0}, {1, 2}},
	}
	r, err := recommend.NewFactorRecommender(fm, recommend.FactorOptions{})
	if err != nil {
		t.Fatal(err)
	}
	art, err := ArtifactFor(r)
	if err != nil {
		t.Fatal(err)
	}
	return art
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "models"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestStore_SaveLoadFactorModel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	art := factorArtifact(t)

	trainedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta, err := s.Save(ctx, "recs", 1, art, ModelMetadata{TrainedAt: trainedAt, Params: map[string]string{"factors": "3"}})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if meta.Backend != recommend.BackendALS || meta.Checksum == "" || meta.SizeBytes == 0 {
		t.Errorf("meta = %+v", meta)
	}

	loaded, gotMeta, err := s.Load(ctx, "recs", 1)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !gotMeta.TrainedAt.Equal(trainedAt) || gotMeta.Params["factors"] != "3" {
		t.Errorf("metadata = %+v", gotMeta)
	}

	before, _ := art.Recommender(recommend.FactorOptions{})
	after, err := loaded.Recommender(recommend.FactorOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, user := range []string{"c1", "c2", "ghost"} {
		want, _ := before.Predict(user, 3)
		got, _ := after.Predict(user, 3)
		if got.ColdStart != want.ColdStart || len(got.Items) != len(want.Items) {
			t.Fatalf("%s: got %+v, want %+v", user, got, want)
		}
		for i := range want.Items {
			if got.Items[i].ItemID != want.Items[i].ItemID || math.Abs(got.Items[i].Score-want.Items[i].Score) > 1e-6 {
				t.Errorf("%s rank %d: got %+v, want %+v", user, i, got.Items[i], want.Items[i])
			}
		}
	}
}

func TestStore_SaveLoadCooccurrence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	table := recommend.NewCooccurrenceTable([]recommend.CooccurrenceRow{
		{Item: "a", ItemRec: "b", Score: 2},
		{Item: "b", ItemRec: "a", Score: 2},
	})
	r := recommend.NewCooccurrenceRecommender(table, map[string][]string{"u1": {"a"}})
	art, err := ArtifactFor(r)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(ctx, "co", 1, art, ModelMetadata{}); err != nil {
		t.Fatal(err)
	}

	loaded, _, err := s.Load(ctx, "co", 0)
	if err != nil {
		t.Fatalf("Load(latest) error = %v", err)
	}
	got, err := loaded.Recommender(recommend.FactorOptions{})
	if err != nil {
		t.Fatal(err)
	}
	pred, _ := got.Predict("u1", 5)
	if want := []recommend.RecItem{{ItemID: "b", Score: 2}}; !reflect.DeepEqual(pred.Items, want) {
		t.Errorf("Predict(u1) = %+v, want %+v", pred.Items, want)
	}
}

func TestStore_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	art := factorArtifact(t)

	tests := []struct {
		name    string
		model   string
		version int
	}{
		{"zero version", "recs", 0},
		{"empty name", "", 1},
		{"path separator", "../evil", 1},
		{"hidden", ".recs", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Save(ctx, tt.model, tt.version, art, ModelMetadata{}); err == nil {
				t.Error("Save() = nil error")
			}
		})
	}

	if _, err := s.Save(ctx, "recs", 1, art, ModelMetadata{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save(ctx, "recs", 1, art, ModelMetadata{}); err == nil {
		t.Error("saving an existing version should fail")
	}
	if _, _, err := s.Load(ctx, "recs", 9); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Load(missing) error = %v", err)
	}
	if _, _, err := s.Load(ctx, "other", 0); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Load(unknown latest) error = %v", err)
	}
	if err := s.Delete(ctx, "recs", 9); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Delete(missing) error = %v", err)
	}

	// Truncated file.
	path := s.modelPath("recs", 1)
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Load(ctx, "recs", 1); err == nil {
		t.Error("Load() of a corrupt file succeeded")
	}
}

func TestStore_VersionsAndPrune(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	s, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	art := factorArtifact(t)

	if v := s.NextVersion("recs"); v != 1 {
		t.Errorf("NextVersion() = %d, want 1", v)
	}
	for v := 1; v <= 5; v++ {
		if _, err := s.Save(ctx, "recs", v, art, ModelMetadata{}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Save(ctx, "other", 1, art, ModelMetadata{}); err != nil {
		t.Fatal(err)
	}

	// A fresh store recovers versions from disk.
	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := reopened.GetLatestVersion("recs"); !ok || v != 5 {
		t.Errorf("GetLatestVersion() = %d, %v", v, ok)
	}

	metas, err := reopened.ListModels(ctx, "recs")
	if err != nil || len(metas) != 5 || metas[0].Version != 5 {
		t.Fatalf("ListModels() = %d entries, %v", len(metas), err)
	}
	all, _ := reopened.ListModels(ctx, "")
	if len(all) != 6 {
		t.Errorf("ListModels(all) = %d entries, want 6", len(all))
	}

	removed, err := reopened.Prune(ctx, "recs", 2, 1)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if !reflect.DeepEqual(removed, []int{3, 2}) {
		t.Errorf("removed = %v, want [3 2]", removed)
	}
	metas, _ = reopened.ListModels(ctx, "recs")
	var kept []int
	for _, m := range metas {
		kept = append(kept, m.Version)
	}
	if !reflect.DeepEqual(kept, []int{5, 4, 1}) {
		t.Errorf("kept = %v, want [5 4 1]", kept)
	}

	if err := reopened.Delete(ctx, "recs", 5); err != nil {
		t.Fatal(err)
	}
	if v, _ := reopened.GetLatestVersion("recs"); v != 4 {
		t.Errorf("latest after delete = %d, want 4", v)
	}
}

func TestParseModelFilename(t *testing.T) {
	tests := []struct {
		base    string
		name    string
		version int
	}{
		{"recommender_als_model_v12", "recommender_als_model", 12},
		{"a_v1", "a", 1},
		{"a_v0", "", 0},
		{"a_vx", "", 0},
		{"_v3", "", 0},
		{"noversion", "", 0},
	}
	for _, tt := range tests {
		name, version := parseModelFilename(tt.base)
		if name != tt.name || version != tt.version {
			t.Errorf("parseModelFilename(%q) = %q, %d; want %q, %d", tt.base, name, version, tt.name, tt.version)
		}
	}
}
