// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/shopsignal/internal/config"
	"github.com/tomtom215/shopsignal/internal/database"
	"github.com/tomtom215/shopsignal/internal/events"
	"github.com/tomtom215/shopsignal/internal/logging"
	"github.com/tomtom215/shopsignal/internal/metrics"
	"github.com/tomtom215/shopsignal/internal/recommend"
	"github.com/tomtom215/shopsignal/internal/recommend/algorithms"
	"github.com/tomtom215/shopsignal/internal/recommend/storage"
)

// ErrRunInProgress is returned when a training run is already active.
var ErrRunInProgress = errors.New("training run already in progress")

// ErrNoTransactions is returned when no transaction source is configured.
var ErrNoTransactions = errors.New("no transactions path configured")

// Config controls one training pipeline.
type Config struct {
	Backend   recommend.Backend
	ModelName string
	ALS       algorithms.ALSConfig

	// EvalK is the list length used for coverage and novelty.
	EvalK int

	// KeepVersions bounds how many artifacts are kept per model name.
	// Zero keeps everything.
	KeepVersions int

	// AutoPromote moves every new version to Production.
	AutoPromote bool

	TransactionsPath string

	// ArtifactsDir receives the interaction and co-occurrence tables.
	// Empty skips tabular artifacts.
	ArtifactsDir   string
	ArtifactFormat database.Format
}

// ConfigFrom maps application configuration onto a pipeline Config.
func ConfigFrom(cfg *config.Config) Config {
	r := &cfg.Recommend
	return Config{
		Backend:   recommend.Backend(r.Backend),
		ModelName: r.ModelName,
		ALS: algorithms.ALSConfig{
			Factors:        r.ALS.Factors,
			Iterations:     r.ALS.Iterations,
			Regularization: r.ALS.Regularization,
			Alpha:          r.ALS.Alpha,
			Seed:           r.ALS.Seed,
			NumWorkers:     r.ALS.NumWorkers,
		},
		EvalK:            r.EvalK,
		KeepVersions:     cfg.Storage.KeepVersions,
		AutoPromote:      r.AutoPromote,
		TransactionsPath: cfg.Data.TransactionsPath,
		ArtifactsDir:     cfg.Data.ArtifactsDir,
		ArtifactFormat:   database.Format(cfg.Data.ArtifactFormat),
	}
}

// Publisher announces promotions. *events.Bus satisfies it.
type Publisher interface {
	PublishModelPromoted(ctx context.Context, ev *events.ModelPromoted) error
}

// Result summarizes a finished run.
type Result struct {
	Name         string            `json:"name"`
	Version      int               `json:"version"`
	Backend      recommend.Backend `json:"backend"`
	Transactions int               `json:"transactions"`
	Interactions int               `json:"interactions"`
	Users        int               `json:"users"`
	Items        int               `json:"items"`
	Quality      recommend.Quality `json:"quality"`
	Promoted     bool              `json:"promoted"`
	Pruned       []int             `json:"pruned,omitempty"`
	Artifacts    []string          `json:"artifacts,omitempty"`
	Duration     time.Duration     `json:"duration"`
}

// Pipeline turns a transaction file into a registered model version:
// load, aggregate, fit, save, register, evaluate, then optionally promote
// and prune.
type Pipeline struct {
	cfg      Config
	db       *database.DB
	store    *storage.Store
	registry *storage.Registry
	pub      Publisher
	logger   zerolog.Logger

	running sync.Mutex
}

// New wires a pipeline. db may be nil when only RunTransactions is used
// and no tabular artifacts are written; pub may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg Config, db *database.DB, store *storage.Store, registry *storage.Registry, pub Publisher, logger zerolog.Logger) *Pipeline {
	if cfg.ModelName == "" {
		cfg.ModelName = config.DefaultModelName
	}
	if cfg.Backend == "" {
		cfg.Backend = recommend.BackendALS
	}
	if cfg.ArtifactFormat == "" {
		cfg.ArtifactFormat = database.FormatParquet
	}
	return &Pipeline{
		cfg:      cfg,
		db:       db,
		store:    store,
		registry: registry,
		pub:      pub,
		logger:   logger.With().Str("component", "training").Str("model", cfg.ModelName).Logger(),
	}
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Trainer returns the trainer for the configured backend.
func (p *Pipeline) Trainer() (algorithms.Trainer, error) {
	switch p.cfg.Backend {
	case recommend.BackendALS:
		return algorithms.NewALSTrainer(p.cfg.ALS, p.logger), nil
	case recommend.BackendCooccurrence:
		return algorithms.NewCooccurrenceTrainer(p.logger), nil
	default:
		return nil, recommend.InvalidArgument("trainer", "unknown backend %q", p.cfg.Backend)
	}
}

// Run trains from the configured transactions file.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	if p.cfg.TransactionsPath == "" {
		return nil, ErrNoTransactions
	}
	if p.db == nil {
		return nil, fmt.Errorf("run: no database configured")
	}
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()

	ctx = logging.ContextWithNewCorrelationID(ctx)
	start := time.Now()

	txns, err := p.db.ReadTransactions(ctx, p.cfg.TransactionsPath)
	metrics.RecordTrainingStage("load", time.Since(start))
	if err != nil {
		metrics.RecordTrainingRun(err)
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return p.train(ctx, txns, start)
}

// RunTransactions trains from txns already in memory.
func (p *Pipeline) RunTransactions(ctx context.Context, txns []recommend.Transaction) (*Result, error) {
	if !p.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.running.Unlock()
	return p.train(logging.ContextWithNewCorrelationID(ctx), txns, time.Now())
}

func (p *Pipeline) train(ctx context.Context, txns []recommend.Transaction, start time.Time) (res *Result, err error) {
	log := p.logger.With().Str("correlation_id", logging.CorrelationIDFromContext(ctx)).Logger()
	defer func() {
		metrics.RecordTrainingRun(err)
		if err != nil {
			log.Error().Err(err).Msg("Training run failed")
		}
	}()

	res = &Result{Name: p.cfg.ModelName, Backend: p.cfg.Backend, Transactions: len(txns)}

	stage := time.Now()
	m, err := recommend.BuildInteractions(txns)
	metrics.RecordTrainingStage("interactions", time.Since(stage))
	if err != nil {
		return nil, err
	}
	res.Interactions, res.Users, res.Items = m.NNZ(), m.NumUsers(), m.NumItems()
	metrics.InteractionsTotal.Set(float64(m.NNZ()))
	// Every line was filtered out. Fitting would still succeed and the
	// empty model would replace the one in Production.
	if m.NNZ() == 0 {
		return nil, &recommend.Error{
			Kind: recommend.KindEmptyInput,
			Op:   "train",
			Err:  fmt.Errorf("no usable interactions in %d transactions", len(txns)),
		}
	}

	trainer, err := p.Trainer()
	if err != nil {
		return nil, err
	}
	stage = time.Now()
	rec, err := trainer.Train(ctx, m)
	fitDur := time.Since(stage)
	metrics.RecordTrainingStage("fit", fitDur)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", trainer.Name(), err)
	}

	if co, ok := rec.(*recommend.CooccurrenceRecommender); ok {
		metrics.CooccurrencePairs.Set(float64(co.Table().Len()))
	}

	stage = time.Now()
	meta, err := p.save(ctx, rec, m, fitDur)
	metrics.RecordTrainingStage("save", time.Since(stage))
	if err != nil {
		return nil, err
	}
	res.Version = meta.Version

	stage = time.Now()
	q, err := recommend.Evaluate(rec, m, p.cfg.EvalK)
	metrics.RecordTrainingStage("evaluate", time.Since(stage))
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	res.Quality = q
	metrics.SetQuality(q.Coverage, q.Novelty)
	if err := p.registry.SetMetrics(ctx, meta.Name, meta.Version, map[string]float64{
		"coverage": q.Coverage,
		"novelty":  q.Novelty,
	}); err != nil {
		return nil, fmt.Errorf("record metrics: %w", err)
	}

	// Tables are only replaced once the model they describe is registered,
	// so a failed run leaves the previous run's tables in place.
	paths, err := p.writeTables(ctx, m, rec)
	if err != nil {
		return nil, err
	}
	res.Artifacts = paths

	if p.cfg.AutoPromote {
		if _, err := p.Promote(ctx, meta.Version); err != nil {
			return nil, err
		}
		res.Promoted = true
	}

	if p.cfg.KeepVersions > 0 {
		res.Pruned = p.prune(ctx)
	}

	res.Duration = time.Since(start)
	metrics.RecordTrainingStage("total", res.Duration)
	log.Info().
		Int("version", res.Version).
		Str("backend", string(res.Backend)).
		Int("users", res.Users).
		Int("items", res.Items).
		Int("interactions", res.Interactions).
		Float64("coverage", q.Coverage).
		Float64("novelty", q.Novelty).
		Bool("promoted", res.Promoted).
		Dur("duration", res.Duration).
		Msg("Training run complete")
	return res, nil
}

func (p *Pipeline) params() map[string]string {
	if p.cfg.Backend != recommend.BackendALS {
		return map[string]string{"backend": string(p.cfg.Backend)}
	}
	als := p.cfg.ALS
	return map[string]string{
		"backend":        string(p.cfg.Backend),
		"factors":        strconv.Itoa(als.Factors),
		"iterations":     strconv.Itoa(als.Iterations),
		"regularization": strconv.FormatFloat(als.Regularization, 'g', -1, 64),
		"alpha":          strconv.FormatFloat(als.Alpha, 'g', -1, 64),
		"seed":           strconv.FormatInt(als.Seed, 10),
	}
}

// save writes the artifact under the next free version and registers it.
func (p *Pipeline) save(ctx context.Context, rec recommend.Recommender, m *recommend.InteractionMatrix, fitDur time.Duration) (*storage.ModelMetadata, error) {
	art, err := storage.ArtifactFor(rec)
	if err != nil {
		return nil, err
	}

	next := p.store.NextVersion(p.cfg.ModelName)
	if latest, err := p.registry.Latest(ctx, p.cfg.ModelName); err == nil && latest.Version >= next {
		next = latest.Version + 1
	}

	meta, err := p.store.Save(ctx, p.cfg.ModelName, next, art, storage.ModelMetadata{
		TrainedAt:          time.Now().UTC(),
		InteractionCount:   m.NNZ(),
		UserCount:          m.NumUsers(),
		ItemCount:          m.NumItems(),
		Params:             p.params(),
		TrainingDurationMS: fitDur.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("save model: %w", err)
	}
	if err := p.registry.Register(ctx, storage.VersionFromMetadata(meta)); err != nil {
		return nil, fmt.Errorf("register model: %w", err)
	}
	return meta, nil
}

// Promote moves version (0 means the latest registered) to Production,
// archives the previous Production version and announces the change.
// A failed announcement is logged; pollers still pick the version up.
func (p *Pipeline) Promote(ctx context.Context, version int) (*storage.ModelVersion, error) {
	var (
		mv  *storage.ModelVersion
		err error
	)
	if version == 0 {
		mv, err = p.registry.PromoteLatest(ctx, p.cfg.ModelName, storage.StageProduction, true)
	} else {
		mv, err = p.registry.Promote(ctx, p.cfg.ModelName, version, storage.StageProduction, true)
	}
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}

	if p.pub != nil {
		ev := events.NewModelPromoted(mv.Name, mv.Version, string(mv.Backend), string(mv.Stage))
		if err := p.pub.PublishModelPromoted(ctx, &ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Int("version", mv.Version).Msg("Failed to announce promotion")
		}
	}
	logging.Ctx(ctx).Info().Str("model", mv.Name).Int("version", mv.Version).Msg("Model promoted to Production")
	return mv, nil
}

// prune drops old artifacts and their registry entries, never touching
// the Production version.
func (p *Pipeline) prune(ctx context.Context) []int {
	var protect []int
	if prod, err := p.registry.InStage(ctx, p.cfg.ModelName, storage.StageProduction); err == nil {
		protect = append(protect, prod.Version)
	}
	removed, err := p.store.Prune(ctx, p.cfg.ModelName, p.cfg.KeepVersions, protect...)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to prune model artifacts")
	}
	for _, v := range removed {
		if err := p.registry.Delete(ctx, p.cfg.ModelName, v); err != nil {
			p.logger.Warn().Err(err).Int("version", v).Msg("Failed to remove pruned version from registry")
		}
	}
	return removed
}

// writeTables exports the interaction table and, for the co-occurrence
// backend, the pair counts.
func (p *Pipeline) writeTables(ctx context.Context, m *recommend.InteractionMatrix, rec recommend.Recommender) ([]string, error) {
	var paths []string
	path, err := p.writeInteractions(ctx, m)
	if err != nil {
		return nil, err
	}
	if path != "" {
		paths = append(paths, path)
	}
	if co, ok := rec.(*recommend.CooccurrenceRecommender); ok {
		path, err := p.writeCooccurrence(ctx, co.Table())
		if err != nil {
			return nil, err
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func (p *Pipeline) writeInteractions(ctx context.Context, m *recommend.InteractionMatrix) (string, error) {
	if p.cfg.ArtifactsDir == "" || p.db == nil {
		return "", nil
	}
	path := database.ArtifactPath(p.cfg.ArtifactsDir, database.InteractionsArtifact, p.cfg.ArtifactFormat)
	if err := p.db.WriteInteractions(ctx, path, m.Interactions()); err != nil {
		return "", fmt.Errorf("write interactions: %w", err)
	}
	return path, nil
}

func (p *Pipeline) writeCooccurrence(ctx context.Context, t *recommend.CooccurrenceTable) (string, error) {
	if p.cfg.ArtifactsDir == "" || p.db == nil {
		return "", nil
	}
	path := database.ArtifactPath(p.cfg.ArtifactsDir, database.CooccurrenceArtifact, p.cfg.ArtifactFormat)
	if err := p.db.WriteCooccurrence(ctx, path, t.Rows()); err != nil {
		return "", fmt.Errorf("write co-occurrence: %w", err)
	}
	return path, nil
}
