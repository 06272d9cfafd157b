// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/shopsignal/internal/recommend"
)

// Stage is the lifecycle stage of a registered model version.
type Stage string

// Registry stages.
const (
	StageNone       Stage = "None"
	StageStaging    Stage = "Staging"
	StageProduction Stage = "Production"
	StageArchived   Stage = "Archived"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageNone, StageStaging, StageProduction, StageArchived:
		return true
	}
	return false
}

// ErrVersionNotFound is returned when a registry lookup misses.
var ErrVersionNotFound = errors.New("model version not found")

// Key prefixes for BadgerDB storage
const (
	versionKeyPrefix = "model_version:"
)

// ModelVersion is one registry entry.
type ModelVersion struct {
	Name      string             `json:"name"`
	Version   int                `json:"version"`
	Backend   recommend.Backend  `json:"backend"`
	Stage     Stage              `json:"stage"`
	TrainedAt time.Time          `json:"trained_at"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Params    map[string]string  `json:"params,omitempty"`
	Checksum  string             `json:"checksum,omitempty"`
}

// VersionFromMetadata builds an unstaged registry entry for a saved
// artifact.
func VersionFromMetadata(meta *ModelMetadata) ModelVersion {
	return ModelVersion{
		Name:      meta.Name,
		Version:   meta.Version,
		Backend:   meta.Backend,
		Stage:     StageNone,
		TrainedAt: meta.TrainedAt,
		Params:    meta.Params,
		Checksum:  meta.Checksum,
	}
}

// Registry tracks model versions and their stages in BadgerDB.
type Registry struct {
	db    *badger.DB
	owned bool
	now   func() time.Time
}

// NewRegistry wraps an already-open database. The caller keeps ownership.
func NewRegistry(db *badger.DB) *Registry {
	return &Registry{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// OpenRegistry opens (or creates) a registry database in dir. An empty
// dir opens an in-memory registry.
func OpenRegistry(dir string) (*Registry, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	r := NewRegistry(db)
	r.owned = true
	return r, nil
}

// Close closes the database if the registry opened it.
func (r *Registry) Close() error {
	if !r.owned {
		return nil
	}
	return r.db.Close()
}

func versionKey(name string, version int) []byte {
	// Zero padding keeps badger's byte order equal to version order.
	return []byte(fmt.Sprintf("%s%s:%010d", versionKeyPrefix, name, version))
}

func versionPrefix(name string) []byte {
	return []byte(versionKeyPrefix + name + ":")
}

// Register adds mv. Registering an existing version fails.
//
//nolint:gocritic // mv passed by value is acceptable for this write operation
func (r *Registry) Register(ctx context.Context, mv ModelVersion) error {
	if mv.Name == "" || mv.Version <= 0 {
		return fmt.Errorf("register: name and positive version required")
	}
	if mv.Stage == "" {
		mv.Stage = StageNone
	}
	if !mv.Stage.Valid() {
		return fmt.Errorf("register: invalid stage %q", mv.Stage)
	}
	now := r.now()
	mv.CreatedAt, mv.UpdatedAt = now, now

	return r.db.Update(func(txn *badger.Txn) error {
		key := versionKey(mv.Name, mv.Version)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("register %s v%d: already registered", mv.Name, mv.Version)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get version: %w", err)
		}
		return putVersion(txn, &mv)
	})
}

func putVersion(txn *badger.Txn, mv *ModelVersion) error {
	data, err := json.Marshal(mv)
	if err != nil {
		return fmt.Errorf("marshal model version: %w", err)
	}
	if err := txn.Set(versionKey(mv.Name, mv.Version), data); err != nil {
		return fmt.Errorf("set model version: %w", err)
	}
	return nil
}

func getVersion(txn *badger.Txn, name string, version int) (*ModelVersion, error) {
	item, err := txn.Get(versionKey(name, version))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s v%d: %w", name, version, ErrVersionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get model version: %w", err)
	}
	var mv ModelVersion
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &mv)
	}); err != nil {
		return nil, fmt.Errorf("decode model version: %w", err)
	}
	return &mv, nil
}

func listVersions(txn *badger.Txn, name string) ([]ModelVersion, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []ModelVersion
	prefix := versionPrefix(name)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var mv ModelVersion
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &mv)
		}); err != nil {
			return nil, fmt.Errorf("decode model version: %w", err)
		}
		out = append(out, mv)
	}
	return out, nil
}

// Get returns one version.
func (r *Registry) Get(ctx context.Context, name string, version int) (*ModelVersion, error) {
	var mv *ModelVersion
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		mv, err = getVersion(txn, name, version)
		return err
	})
	return mv, err
}

// List returns every version of name in ascending version order.
func (r *Registry) List(ctx context.Context, name string) ([]ModelVersion, error) {
	var out []ModelVersion
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = listVersions(txn, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Version < out[b].Version })
	return out, nil
}

// Latest returns the highest registered version of name.
func (r *Registry) Latest(ctx context.Context, name string) (*ModelVersion, error) {
	vs, err := r.List(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrVersionNotFound)
	}
	return &vs[len(vs)-1], nil
}

// InStage returns the highest version of name currently in stage.
func (r *Registry) InStage(ctx context.Context, name string, stage Stage) (*ModelVersion, error) {
	vs, err := r.List(ctx, name)
	if err != nil {
		return nil, err
	}
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].Stage == stage {
			return &vs[i], nil
		}
	}
	return nil, fmt.Errorf("%s in %s: %w", name, stage, ErrVersionNotFound)
}

// Promote moves name/version into stage. With archiveExisting, every other
// version currently in that stage moves to Archived in the same
// transaction, so readers never observe two versions in Production.
func (r *Registry) Promote(ctx context.Context, name string, version int, stage Stage, archiveExisting bool) (*ModelVersion, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("promote: invalid stage %q", stage)
	}

	var promoted *ModelVersion
	err := r.db.Update(func(txn *badger.Txn) error {
		mv, err := getVersion(txn, name, version)
		if err != nil {
			return err
		}
		now := r.now()

		if archiveExisting && stage != StageArchived && stage != StageNone {
			others, err := listVersions(txn, name)
			if err != nil {
				return err
			}
			for i := range others {
				o := &others[i]
				if o.Version == version || o.Stage != stage {
					continue
				}
				o.Stage = StageArchived
				o.UpdatedAt = now
				if err := putVersion(txn, o); err != nil {
					return err
				}
			}
		}

		mv.Stage = stage
		mv.UpdatedAt = now
		promoted = mv
		return putVersion(txn, mv)
	})
	if err != nil {
		return nil, fmt.Errorf("promote %s v%d to %s: %w", name, version, stage, err)
	}
	return promoted, nil
}

// PromoteLatest promotes the highest registered version of name. It
// returns ErrVersionNotFound when nothing is registered.
func (r *Registry) PromoteLatest(ctx context.Context, name string, stage Stage, archiveExisting bool) (*ModelVersion, error) {
	latest, err := r.Latest(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.Promote(ctx, name, latest.Version, stage, archiveExisting)
}

// SetMetrics merges metrics into name/version.
func (r *Registry) SetMetrics(ctx context.Context, name string, version int, metrics map[string]float64) error {
	return r.db.Update(func(txn *badger.Txn) error {
		mv, err := getVersion(txn, name, version)
		if err != nil {
			return err
		}
		if mv.Metrics == nil {
			mv.Metrics = make(map[string]float64, len(metrics))
		}
		for k, v := range metrics {
			mv.Metrics[k] = v
		}
		mv.UpdatedAt = r.now()
		return putVersion(txn, mv)
	})
}

// Delete removes name/version from the registry. Deleting a missing
// version is not an error.
func (r *Registry) Delete(ctx context.Context, name string, version int) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(versionKey(name, version)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete model version: %w", err)
		}
		return nil
	})
}
