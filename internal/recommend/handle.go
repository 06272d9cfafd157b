// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package recommend

import (
	"sync/atomic"
	"time"
)

// ModelInfo describes the model currently served.
type ModelInfo struct {
	Name      string     `json:"name"`
	Version   int        `json:"version"`
	Backend   Backend    `json:"backend"`
	Stage     string     `json:"stage,omitempty"`
	TrainedAt time.Time  `json:"trained_at"`
	LoadedAt  time.Time  `json:"loaded_at"`
	Stats     ModelStats `json:"stats"`
}

// Loaded pairs a recommender with its metadata. A Loaded value is never
// mutated after it is published through a Handle.
type Loaded struct {
	Recommender Recommender
	Info        ModelInfo
}

// Handle holds the model being served. Readers take a snapshot with
// Current and use it for the whole request, so a concurrent Swap is seen
// either entirely or not at all. There is one Handle per server and it is
// passed to whatever needs it.
type Handle struct {
	cur atomic.Pointer[Loaded]
}

// NewHandle returns an empty handle. Serving from it reports
// model_not_loaded until the first Swap.
func NewHandle() *Handle {
	return &Handle{}
}

// Swap publishes r as the served model and returns the previous one, if
// any. LoadedAt is stamped here.
func (h *Handle) Swap(r Recommender, info ModelInfo) *Loaded {
	if info.Backend == "" && r != nil {
		info.Backend = r.Backend()
	}
	if r != nil {
		info.Stats = Stats(r)
	}
	info.LoadedAt = time.Now().UTC()
	return h.cur.Swap(&Loaded{Recommender: r, Info: info})
}

// Clear unloads the model.
func (h *Handle) Clear() *Loaded {
	return h.cur.Swap(nil)
}

// Current returns the served model, or nil.
func (h *Handle) Current() *Loaded {
	l := h.cur.Load()
	if l == nil || l.Recommender == nil {
		return nil
	}
	return l
}

// Version returns the served version, or 0 when nothing is loaded.
func (h *Handle) Version() int {
	if l := h.Current(); l != nil {
		return l.Info.Version
	}
	return 0
}

// Ready reports whether a model is loaded.
func (h *Handle) Ready() bool {
	return h.Current() != nil
}
