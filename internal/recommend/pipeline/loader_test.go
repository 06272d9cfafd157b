// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/recommend"
)

func newLoader(f *fixture, failures uint32) *Loader {
	return NewLoader(LoaderConfig{
		ModelName:       "test_model",
		BreakerFailures: failures,
		BreakerTimeout:  time.Hour,
	}, f.store, f.registry, recommend.NewHandle(), zerolog.Nop())
}

func TestLoader_NoProductionModel(t *testing.T) {
	f := newFixture(t)
	l := newLoader(f, 3)

	loaded, swapped, err := l.LoadProduction(context.Background())
	if !errors.Is(err, ErrNoProductionModel) {
		t.Fatalf("LoadProduction() error = %v, want ErrNoProductionModel", err)
	}
	if loaded != nil || swapped {
		t.Errorf("LoadProduction() = %v, %v; want nil, false", loaded, swapped)
	}

	resp := recommend.Serve(l.Handle(), recommend.Request{CustomerID: "c1", K: 3})
	if resp.OK || resp.Error == nil || *resp.Error != recommend.KindModelUnavailable.Code() {
		t.Errorf("Serve() = %+v, want model_not_loaded", resp)
	}
}

func TestLoader_LoadProduction(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(testConfig(f, recommend.BackendALS))
	l := newLoader(f, 3)
	ctx := context.Background()

	if _, err := p.RunTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatalf("RunTransactions() error = %v", err)
	}

	loaded, swapped, err := l.LoadProduction(ctx)
	if err != nil {
		t.Fatalf("LoadProduction() error = %v", err)
	}
	if !swapped || loaded.Info.Version != 1 || loaded.Info.Stage != "Production" {
		t.Fatalf("LoadProduction() = %+v, swapped=%v", loaded.Info, swapped)
	}
	if loaded.Info.Stats.Users != 4 || loaded.Info.Stats.Factors != 4 {
		t.Errorf("Stats = %+v, want 4 users and 4 factors", loaded.Info.Stats)
	}

	resp := recommend.Serve(l.Handle(), recommend.Request{CustomerID: "c1", K: 2})
	if !resp.OK || len(resp.RecList) != 2 {
		t.Errorf("Serve() = %+v, want two items", resp)
	}

	// Same Production version: no reload.
	_, swapped, err = l.LoadProduction(ctx)
	if err != nil || swapped {
		t.Errorf("second LoadProduction() swapped=%v err=%v, want no swap", swapped, err)
	}

	if _, err := p.RunTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatalf("RunTransactions() error = %v", err)
	}
	loaded, swapped, err = l.LoadProduction(ctx)
	if err != nil || !swapped || loaded.Info.Version != 2 {
		t.Errorf("LoadProduction() after v2 = v%d swapped=%v err=%v", loaded.Info.Version, swapped, err)
	}
}

func TestLoader_MatchesTrainedModel(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(testConfig(f, recommend.BackendALS))
	l := newLoader(f, 3)
	ctx := context.Background()

	m, err := recommend.BuildInteractions(sampleTransactions())
	if err != nil {
		t.Fatal(err)
	}
	trainer, err := p.Trainer()
	if err != nil {
		t.Fatal(err)
	}
	trained, err := trainer.Train(ctx, m)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.RunTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatalf("RunTransactions() error = %v", err)
	}
	loaded, _, err := l.LoadProduction(ctx)
	if err != nil {
		t.Fatalf("LoadProduction() error = %v", err)
	}

	for _, user := range m.UserIDs() {
		want, err := trained.Predict(user, 4)
		if err != nil {
			t.Fatal(err)
		}
		got, err := loaded.Recommender.Predict(user, 4)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Items) != len(want.Items) {
			t.Fatalf("%s: %d items, want %d", user, len(got.Items), len(want.Items))
		}
		for i := range want.Items {
			d := got.Items[i].Score - want.Items[i].Score
			if got.Items[i].ItemID != want.Items[i].ItemID || d > 1e-6 || d < -1e-6 {
				t.Errorf("%s[%d] = %+v, want %+v", user, i, got.Items[i], want.Items[i])
			}
		}
	}
}

func TestLoader_ExcludeOwned(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(testConfig(f, recommend.BackendALS))
	ctx := context.Background()

	if _, err := p.RunTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(LoaderConfig{ModelName: "test_model", ExcludeOwned: true}, f.store, f.registry, recommend.NewHandle(), zerolog.Nop())
	loaded, _, err := l.LoadProduction(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pred, err := loaded.Recommender.Predict("c1", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range pred.Items {
		if it.ItemID == "apple" || it.ItemID == "bread" {
			t.Errorf("owned item %s recommended", it.ItemID)
		}
	}
	if len(pred.Items) != 2 {
		t.Errorf("got %d items, want 2 unowned", len(pred.Items))
	}
}

func TestLoader_FailureKeepsCurrentModel(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(testConfig(f, recommend.BackendALS))
	l := newLoader(f, 2)
	ctx := context.Background()

	if _, err := p.RunTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.LoadProduction(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.RunTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatal(err)
	}
	corrupt(t, f, 2)

	for i := 0; i < 2; i++ {
		loaded, swapped, err := l.LoadProduction(ctx)
		if err == nil || swapped {
			t.Fatalf("attempt %d: swapped=%v err=%v, want failure", i, swapped, err)
		}
		if loaded == nil || loaded.Info.Version != 1 {
			t.Fatalf("attempt %d: current model = %+v, want v1", i, loaded)
		}
	}

	if got := l.BreakerState(); got != gobreaker.StateOpen {
		t.Fatalf("BreakerState() = %v, want open", got)
	}
	_, _, err := l.LoadProduction(ctx)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("LoadProduction() with open breaker error = %v, want ErrOpenState", err)
	}
	if l.Handle().Version() != 1 {
		t.Errorf("served version = %d, want 1", l.Handle().Version())
	}
}

func TestLoader_LoadVersion(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig(f, recommend.BackendCooccurrence)
	cfg.AutoPromote = false
	p := f.pipeline(cfg)
	l := newLoader(f, 3)
	ctx := context.Background()

	if _, err := p.RunTransactions(ctx, sampleTransactions()); err != nil {
		t.Fatal(err)
	}
	loaded, err := l.LoadVersion(ctx, 1)
	if err != nil {
		t.Fatalf("LoadVersion(1) error = %v", err)
	}
	if loaded.Info.Backend != recommend.BackendCooccurrence || loaded.Info.Stage != "None" {
		t.Errorf("LoadVersion(1) = %+v", loaded.Info)
	}

	pred, err := loaded.Recommender.Predict("c2", 5)
	if err != nil {
		t.Fatal(err)
	}
	// c2 owns apple and cheese; bread co-occurs with both.
	if len(pred.Items) == 0 || pred.Items[0].ItemID != "bread" {
		t.Errorf("Predict(c2) = %+v, want bread first", pred.Items)
	}
}

func TestLoaderConfigFrom(t *testing.T) {
	cfg := &config.Config{}
	cfg.Recommend.ModelName = "m"
	cfg.Recommend.ExcludeOwned = true
	cfg.Reload.BreakerFailures = 4
	cfg.Reload.BreakerTimeout = time.Minute

	got := LoaderConfigFrom(cfg)
	want := LoaderConfig{ModelName: "m", ExcludeOwned: true, BreakerFailures: 4, BreakerTimeout: time.Minute}
	if got != want {
		t.Errorf("LoaderConfigFrom() = %+v, want %+v", got, want)
	}
}
