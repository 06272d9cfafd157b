// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ModelPromoted announces that a model version entered a registry stage.
// Serving processes reload when a Production promotion arrives.
type ModelPromoted struct {
	EventID    string    `json:"event_id"`
	Name       string    `json:"name"`
	Version    int       `json:"version"`
	Backend    string    `json:"backend"`
	Stage      string    `json:"stage"`
	PromotedAt time.Time `json:"promoted_at"`
}

// NewModelPromoted stamps a fresh event id and time.
func NewModelPromoted(name string, version int, backend, stage string) ModelPromoted {
	return ModelPromoted{
		EventID:    uuid.New().String(),
		Name:       name,
		Version:    version,
		Backend:    backend,
		Stage:      stage,
		PromotedAt: time.Now().UTC(),
	}
}

// Validate rejects events that cannot identify a model version.
func (e *ModelPromoted) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	if e.Version <= 0 {
		return fmt.Errorf("version must be positive, got %d", e.Version)
	}
	return nil
}

func encode(e *ModelPromoted) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return json.Marshal(e)
}

func decode(data []byte) (ModelPromoted, error) {
	var e ModelPromoted
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("invalid event: %w", err)
	}
	return e, nil
}
