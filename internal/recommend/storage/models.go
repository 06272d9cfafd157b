// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/shopsignal/internal/recommend"
)

// ErrModelNotFound is returned when no artifact exists for a name/version.
var ErrModelNotFound = errors.New("model not found")

const modelExt = ".gob.gz"

// ModelMetadata contains information about a stored model.
type ModelMetadata struct {
	// Name is the registered model name (e.g. "recommender_als_model").
	Name string `json:"name"`

	// Version is the model version (monotonically increasing per name).
	Version int `json:"version"`

	// Backend is the model family stored in the artifact.
	Backend recommend.Backend `json:"backend"`

	// TrainedAt is when training finished.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the artifact was written.
	SavedAt time.Time `json:"saved_at"`

	InteractionCount int `json:"interaction_count"`
	ItemCount        int `json:"item_count"`
	UserCount        int `json:"user_count"`

	// Params records the training hyperparameters.
	Params map[string]string `json:"params,omitempty"`

	// Checksum is the SHA-256 of the uncompressed gob payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`

	TrainingDurationMS int64 `json:"training_duration_ms"`
}

// Artifact is the gob payload of a model file. Exactly one of Factor and
// Cooccurrence is set, matching Backend.
type Artifact struct {
	Backend      recommend.Backend
	Factor       *recommend.FactorModel
	Cooccurrence *recommend.CooccurrenceModel
}

// ArtifactFor captures the persisted form of a built-in recommender.
func ArtifactFor(r recommend.Recommender) (*Artifact, error) {
	switch v := r.(type) {
	case *recommend.FactorRecommender:
		return &Artifact{Backend: recommend.BackendALS, Factor: v.Model()}, nil
	case *recommend.CooccurrenceRecommender:
		return &Artifact{Backend: recommend.BackendCooccurrence, Cooccurrence: v.Model()}, nil
	default:
		return nil, fmt.Errorf("unsupported recommender %T", r)
	}
}

// Recommender rebuilds a servable recommender from the artifact.
func (a *Artifact) Recommender(opts recommend.FactorOptions) (recommend.Recommender, error) {
	switch a.Backend {
	case recommend.BackendALS:
		if a.Factor == nil {
			return nil, fmt.Errorf("als artifact has no factor model")
		}
		return recommend.NewFactorRecommender(a.Factor, opts)
	case recommend.BackendCooccurrence:
		if a.Cooccurrence == nil {
			return nil, fmt.Errorf("cooccurrence artifact has no table")
		}
		return recommend.NewCooccurrenceRecommenderFromModel(a.Cooccurrence), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", a.Backend)
	}
}

// Store persists model artifacts as {name}_v{version}.gob.gz files. Each
// file holds the metadata plus a gzip-compressed, checksummed gob payload.
// Writes go to a temp file and are renamed into place, so a failed save
// never leaves a partial artifact behind.
type Store struct {
	baseDir string
	mu      sync.RWMutex

	// latest version per model name
	versions map[string]int
}

// NewStore creates a store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	s := &Store{
		baseDir:  baseDir,
		versions: make(map[string]int),
	}

	all, err := s.scan()
	if err != nil {
		return nil, fmt.Errorf("scan existing models: %w", err)
	}
	for name, vs := range all {
		s.versions[name] = vs[0]
	}

	return s, nil
}

// scan returns every stored version per name, newest first.
func (s *Store) scan() (map[string][]int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]int)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), modelExt) {
			continue
		}
		name, version := parseModelFilename(strings.TrimSuffix(entry.Name(), modelExt))
		if name == "" {
			continue
		}
		out[name] = append(out[name], version)
	}
	for _, vs := range out {
		sort.Sort(sort.Reverse(sort.IntSlice(vs)))
	}
	return out, nil
}

// parseModelFilename splits "recommender_als_v12" into its name and
// version. It returns "" when the suffix is not _v<digits>.
func parseModelFilename(base string) (name string, version int) {
	i := strings.LastIndex(base, "_v")
	if i <= 0 {
		return "", 0
	}
	v, err := strconv.Atoi(base[i+2:])
	if err != nil || v <= 0 {
		return "", 0
	}
	return base[:i], v
}

// storedFile is the on-disk format for model files.
type storedFile struct {
	Metadata       ModelMetadata
	CompressedData []byte
}

// NextVersion returns the version a new save of name should use.
func (s *Store) NextVersion(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[name] + 1
}

// Save writes art as name/version. Saving an existing version fails.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, version int, art *Artifact, meta ModelMetadata) (*ModelMetadata, error) {
	if version <= 0 {
		return nil, fmt.Errorf("version must be positive, got %d", version)
	}
	if err := validName(name); err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(art); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}

	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.Version = version
	meta.Backend = art.Backend
	meta.Checksum = hex.EncodeToString(hash[:])
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.modelPath(name, version)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("model %s v%d already exists", name, version)
	}

	tmp, err := os.CreateTemp(s.baseDir, ".tmp-"+name+"-*")
	if err != nil {
		return nil, fmt.Errorf("create model file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op once renamed

	sf := storedFile{Metadata: meta, CompressedData: compressed.Bytes()}
	if err := gob.NewEncoder(tmp).Encode(sf); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return nil, fmt.Errorf("write model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("publish model file: %w", err)
	}

	if version > s.versions[name] {
		s.versions[name] = version
	}
	return &meta, nil
}

// Load reads name/version. Version 0 means the latest.
func (s *Store) Load(ctx context.Context, name string, version int) (*Artifact, *ModelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		version, ok = s.versions[name]
		if !ok {
			return nil, nil, fmt.Errorf("%s: %w", name, ErrModelNotFound)
		}
	}

	sf, err := s.readFile(name, version)
	if err != nil {
		return nil, nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(raw)
	if got := hex.EncodeToString(hash[:]); got != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sf.Metadata.Checksum, got)
	}

	var art Artifact
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&art); err != nil {
		return nil, nil, fmt.Errorf("decode model: %w", err)
	}

	return &art, &sf.Metadata, nil
}

func (s *Store) readFile(name string, version int) (*storedFile, error) {
	f, err := os.Open(s.modelPath(name, version)) //nolint:gosec // path is built from a validated name
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s v%d: %w", name, version, ErrModelNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return &sf, nil
}

// GetLatestVersion returns the latest version number for a model.
func (s *Store) GetLatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.versions[name]
	return version, ok
}

// ListModels returns metadata for every stored version of name, newest
// first. An empty name lists every model.
func (s *Store) ListModels(ctx context.Context, name string) ([]ModelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.scan()
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	names := make([]string, 0, len(all))
	for n := range all {
		if name == "" || n == name {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	var out []ModelMetadata
	for _, n := range names {
		for _, v := range all[n] {
			sf, err := s.readFile(n, v)
			if err != nil {
				continue
			}
			out = append(out, sf.Metadata)
		}
	}
	return out, nil
}

// Delete removes a specific model version.
func (s *Store) Delete(ctx context.Context, name string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.modelPath(name, version)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s v%d: %w", name, version, ErrModelNotFound)
		}
		return fmt.Errorf("delete model: %w", err)
	}
	return s.refreshLatest(name)
}

// Prune removes old versions of name, keeping the newest keepVersions plus
// any version listed in protect (e.g. the one currently in Production).
// It returns the removed versions.
func (s *Store) Prune(ctx context.Context, name string, keepVersions int, protect ...int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keepVersions < 1 {
		keepVersions = 1
	}

	all, err := s.scan()
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	keep := make(map[int]bool, len(protect))
	for _, v := range protect {
		keep[v] = true
	}

	var removed []int
	for i, v := range all[name] {
		if i < keepVersions || keep[v] {
			continue
		}
		if err := os.Remove(s.modelPath(name, v)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove %s v%d: %w", name, v, err)
		}
		removed = append(removed, v)
	}
	return removed, s.refreshLatest(name)
}

// refreshLatest recomputes the latest version of name (must hold mu).
func (s *Store) refreshLatest(name string) error {
	all, err := s.scan()
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}
	if vs := all[name]; len(vs) > 0 {
		s.versions[name] = vs[0]
	} else {
		delete(s.versions, name)
	}
	return nil
}

// modelPath returns the file path for a model.
func (s *Store) modelPath(name string, version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, modelExt))
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("model name is required")
	}
	if strings.ContainsAny(name, `/\:`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid model name %q", name)
	}
	return nil
}
