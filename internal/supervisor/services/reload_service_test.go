// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/shopsignal/internal/events"
	"github.com/tomtom215/shopsignal/internal/recommend"
	"github.com/tomtom215/shopsignal/internal/recommend/pipeline"
)

type fakeLoader struct {
	loads  atomic.Int32
	err    error
	loaded chan struct{}
}

func newFakeLoader(err error) *fakeLoader {
	return &fakeLoader{err: err, loaded: make(chan struct{}, 16)}
}

func (f *fakeLoader) LoadProduction(context.Context) (*recommend.Loaded, bool, error) {
	n := f.loads.Add(1)
	select {
	case f.loaded <- struct{}{}:
	default:
	}
	if f.err != nil {
		return nil, false, f.err
	}
	return &recommend.Loaded{Info: recommend.ModelInfo{Name: "test", Version: int(n), Backend: recommend.BackendALS}}, true, nil
}

func (f *fakeLoader) waitLoads(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-f.loaded:
		case <-deadline:
			t.Fatalf("saw %d loads, want %d", f.loads.Load(), n)
		}
	}
}

type chanSubscriber struct {
	ch  chan events.ModelPromoted
	err error
}

func (s *chanSubscriber) Subscribe(context.Context) (<-chan events.ModelPromoted, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ch, nil
}

func promotion(name, stage string) events.ModelPromoted {
	return events.NewModelPromoted(name, 2, string(recommend.BackendALS), stage)
}

func TestReloadService_Interface(t *testing.T) {
	var _ suture.Service = (*ReloadService)(nil)
	var _ ModelLoader = (*pipeline.Loader)(nil)
	var _ PromotionSubscriber = (*events.Bus)(nil)
}

func TestReloadService_StartupWithoutProductionModel(t *testing.T) {
	ld := newFakeLoader(pipeline.ErrNoProductionModel)
	svc := NewReloadService(ld, nil, ReloadServiceConfig{ModelName: "test"}, zerolog.Nop())
	cancel, errCh := runService(t, svc)
	ld.waitLoads(t, 1)

	select {
	case err := <-errCh:
		t.Fatalf("service exited without a production model: %v", err)
	case <-time.After(30 * time.Millisecond):
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestReloadService_Events(t *testing.T) {
	ld := newFakeLoader(nil)
	sub := &chanSubscriber{ch: make(chan events.ModelPromoted)}
	svc := NewReloadService(ld, sub, ReloadServiceConfig{ModelName: "test"}, zerolog.Nop())
	_, _ = runService(t, svc)
	ld.waitLoads(t, 1)

	// Unbuffered sends return once the service has taken each event.
	sub.ch <- promotion("other", "Production")
	sub.ch <- promotion("test", "Staging")
	sub.ch <- promotion("test", "Production")
	ld.waitLoads(t, 1)

	time.Sleep(20 * time.Millisecond)
	if got := ld.loads.Load(); got != 2 {
		t.Errorf("loads = %d, want 2 (startup + one production promotion)", got)
	}
}

func TestReloadService_Throttled(t *testing.T) {
	ld := newFakeLoader(nil)
	sub := &chanSubscriber{ch: make(chan events.ModelPromoted, 4)}
	svc := NewReloadService(ld, sub, ReloadServiceConfig{ModelName: "test", MinInterval: time.Hour}, zerolog.Nop())
	cancel, errCh := runService(t, svc)
	ld.waitLoads(t, 1)

	sub.ch <- promotion("test", "Production")
	ld.waitLoads(t, 1)
	sub.ch <- promotion("test", "Production")
	time.Sleep(30 * time.Millisecond)
	if got := ld.loads.Load(); got != 2 {
		t.Errorf("loads = %d, want 2 while throttled", got)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestReloadService_SubscriptionClosed(t *testing.T) {
	ld := newFakeLoader(nil)
	sub := &chanSubscriber{ch: make(chan events.ModelPromoted)}
	svc := NewReloadService(ld, sub, ReloadServiceConfig{ModelName: "test"}, zerolog.Nop())
	_, errCh := runService(t, svc)
	ld.waitLoads(t, 1)
	close(sub.ch)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSubscriptionClosed) {
			t.Errorf("Serve() = %v, want ErrSubscriptionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after the subscription closed")
	}
}

func TestReloadService_SubscribeError(t *testing.T) {
	subErr := errors.New("bus closed")
	svc := NewReloadService(newFakeLoader(nil), &chanSubscriber{err: subErr}, ReloadServiceConfig{}, zerolog.Nop())
	if err := svc.Serve(context.Background()); !errors.Is(err, subErr) {
		t.Errorf("Serve() = %v, want %v", err, subErr)
	}
}

func TestReloadService_Polling(t *testing.T) {
	ld := newFakeLoader(nil)
	svc := NewReloadService(ld, nil, ReloadServiceConfig{PollInterval: 10 * time.Millisecond}, zerolog.Nop())
	_, _ = runService(t, svc)
	ld.waitLoads(t, 3)
}

func TestReloadService_InProcessBus(t *testing.T) {
	bus := events.NewInProcessBus("model.promoted", zerolog.Nop())
	defer bus.Close()

	ld := newFakeLoader(nil)
	svc := NewReloadService(ld, bus, ReloadServiceConfig{ModelName: "test"}, zerolog.Nop())
	_, _ = runService(t, svc)
	// The subscription exists before the startup load runs.
	ld.waitLoads(t, 1)

	ev := promotion("test", "Production")
	if err := bus.PublishModelPromoted(context.Background(), &ev); err != nil {
		t.Fatalf("PublishModelPromoted() error = %v", err)
	}
	ld.waitLoads(t, 1)
}
