// ShopSignal - Customer Analytics and Product Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shopsignal

package algorithms

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/shopsignal/internal/recommend"
)

// ALSConfig contains configuration for implicit-feedback ALS.
type ALSConfig struct {
	// Factors is the dimension of the latent factor vectors.
	Factors int

	// Iterations is the number of full user+item sweeps. Training always
	// runs exactly this many; there is no early stopping.
	Iterations int

	// Regularization is the L2 penalty λ applied to every factor row.
	// Zero is allowed but may leave systems singular.
	Regularization float64

	// Alpha scales strength into confidence: c = 1 + Alpha * r.
	Alpha float64

	// Seed makes factor initialization reproducible.
	Seed int64

	// NumWorkers bounds the goroutines solving rows within one half-step.
	// If <= 0, defaults to 4.
	NumWorkers int
}

// DefaultALSConfig returns the production defaults.
func DefaultALSConfig() ALSConfig {
	return ALSConfig{
		Factors:        64,
		Iterations:     20,
		Regularization: 0.01,
		Alpha:          1.0,
		Seed:           42,
		NumWorkers:     4,
	}
}

// initScale is the standard deviation of the initial factor entries.
const initScale = 0.01

// ALSTrainer fits a FactorModel to an InteractionMatrix with alternating
// least squares for implicit feedback.
// Reference: "Collaborative Filtering for Implicit Feedback Datasets" (Hu, Koren, Volinsky, 2008)
//
// Each strength r > 0 becomes preference p = 1 with confidence c = 1 + αr.
// The objective is
//
//	sum_{u,i} c_ui (p_ui - x_u' y_i)^2 + λ (sum ||x_u||^2 + sum ||y_i||^2)
//
// over all (u, i), including unobserved pairs with c = 1 and p = 0.
//
// A trainer holds no per-run state, so one trainer may run several Fit
// calls concurrently; each call owns its matrices.
type ALSTrainer struct {
	config ALSConfig
	logger zerolog.Logger
}

// NewALSTrainer creates a trainer. Non-positive Factors, Iterations, Alpha
// or NumWorkers fall back to defaults; negative Regularization becomes 0.
func NewALSTrainer(cfg ALSConfig, logger zerolog.Logger) *ALSTrainer {
	def := DefaultALSConfig()
	if cfg.Factors <= 0 {
		cfg.Factors = def.Factors
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	if cfg.Regularization < 0 {
		cfg.Regularization = 0
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = def.Alpha
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = def.NumWorkers
	}
	return &ALSTrainer{
		config: cfg,
		logger: logger.With().Str("component", "als").Logger(),
	}
}

// Config returns the effective configuration.
func (t *ALSTrainer) Config() ALSConfig { return t.config }

// Fit trains a model over m.
//
// The solver works item-major: it factorizes the item x user matrix, so
// its "row" factors are item factors and its "col" factors are user
// factors. That convention stays inside Fit; the returned model is always
// indexed by m's user and item indices.
//
// An empty matrix yields an empty model. NaN or Inf in any factor after
// an iteration fails with recommend.ErrConvergence.
func (t *ALSTrainer) Fit(ctx context.Context, m *recommend.InteractionMatrix) (*recommend.FactorModel, error) {
	if ContextCancelled(ctx) {
		return nil, ctx.Err()
	}

	d := t.config.Factors
	nUsers, nItems := m.NumUsers(), m.NumItems()

	model := &recommend.FactorModel{
		Factors:   d,
		UserIDs:   m.UserIDs(),
		ItemIDs:   m.ItemIDs(),
		UserItems: make([][]int, nUsers),
	}
	for u := 0; u < nUsers; u++ {
		items, _ := m.UserRow(u)
		model.UserItems[u] = append([]int(nil), items...)
	}

	if nUsers == 0 || nItems == 0 {
		model.UserFactors = zeroFactors(nUsers, d)
		model.ItemFactors = zeroFactors(nItems, d)
		return model, nil
	}

	// rows = items, cols = users.
	rowAxis := itemMajor(m)
	colAxis := userMajor(m)

	rng := rand.New(rand.NewSource(t.config.Seed)) //nolint:gosec // reproducibility, not security
	rowFactors := randomFactors(rng, nItems, d)
	colFactors := randomFactors(rng, nUsers, d)

	start := time.Now()
	for iter := 0; iter < t.config.Iterations; iter++ {
		if ContextCancelled(ctx) {
			return nil, ctx.Err()
		}

		// Users given items, then items given users.
		t.sweep(colFactors, colAxis, rowFactors)
		t.sweep(rowFactors, rowAxis, colFactors)

		if bad, idx := firstNonFinite(colFactors); bad {
			return nil, recommend.Convergence("als fit", "user factor row %d is not finite after iteration %d", idx, iter+1)
		}
		if bad, idx := firstNonFinite(rowFactors); bad {
			return nil, recommend.Convergence("als fit", "item factor row %d is not finite after iteration %d", idx, iter+1)
		}

		t.logger.Debug().
			Int("iteration", iter+1).
			Int("of", t.config.Iterations).
			Msg("ALS iteration complete")
	}

	model.UserFactors = colFactors
	model.ItemFactors = rowFactors

	t.logger.Info().
		Int("users", nUsers).
		Int("items", nItems).
		Int("nnz", m.NNZ()).
		Int("factors", d).
		Int("iterations", t.config.Iterations).
		Dur("duration", time.Since(start)).
		Msg("ALS training complete")

	return model, nil
}

// Name implements Trainer.
func (t *ALSTrainer) Name() recommend.Backend { return recommend.BackendALS }

// Train implements Trainer. The recommender scores every item; serving
// options such as owned-item exclusion are applied when a stored model is
// loaded.
func (t *ALSTrainer) Train(ctx context.Context, m *recommend.InteractionMatrix) (recommend.Recommender, error) {
	fm, err := t.Fit(ctx, m)
	if err != nil {
		return nil, err
	}
	return recommend.NewFactorRecommender(fm, recommend.FactorOptions{})
}

// axis is one side of the sparse matrix: entity e's neighbors on the
// other side are idx[ptr[e]:ptr[e+1]] with strengths val[...].
type axis struct {
	ptr []int
	idx []int
	val []float64
}

func (a *axis) len() int { return len(a.ptr) - 1 }

func (a *axis) neighbors(e int) ([]int, []float64) {
	lo, hi := a.ptr[e], a.ptr[e+1]
	return a.idx[lo:hi], a.val[lo:hi]
}

func userMajor(m *recommend.InteractionMatrix) axis {
	return buildAxis(m.NumUsers(), m.NNZ(), m.UserRow)
}

func itemMajor(m *recommend.InteractionMatrix) axis {
	return buildAxis(m.NumItems(), m.NNZ(), m.ItemColumn)
}

func buildAxis(n, nnz int, at func(int) ([]int, []float64)) axis {
	a := axis{
		ptr: make([]int, n+1),
		idx: make([]int, 0, nnz),
		val: make([]float64, 0, nnz),
	}
	for e := 0; e < n; e++ {
		idx, val := at(e)
		a.idx = append(a.idx, idx...)
		a.val = append(a.val, val...)
		a.ptr[e+1] = len(a.idx)
	}
	return a
}

// sweep re-solves every row of target holding fixed constant. Rows are
// independent given fixed, so they are split into contiguous chunks solved
// in parallel; sweep returns only after every row is written.
func (t *ALSTrainer) sweep(target [][]float64, ax axis, fixed [][]float64) {
	d := t.config.Factors
	gram := gramian(fixed, d)
	n := ax.len()

	workers := t.config.NumWorkers
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	p := pool.New().WithMaxGoroutines(workers)
	for start := 0; start < n; start += chunk {
		lo, hi := start, start+chunk
		if hi > n {
			hi = n
		}
		p.Go(func() {
			s := newRowSolver(d)
			for e := lo; e < hi; e++ {
				idx, val := ax.neighbors(e)
				s.solve(target[e], gram, fixed, idx, val, t.config.Alpha, t.config.Regularization)
			}
		})
	}
	p.Wait()
}

// gramian returns F'F for the n x d matrix F.
func gramian(f [][]float64, d int) [][]float64 {
	g := make([][]float64, d)
	for i := range g {
		g[i] = make([]float64, d)
	}
	for _, row := range f {
		for a := 0; a < d; a++ {
			ra := row[a]
			if ra == 0 {
				continue
			}
			for b := a; b < d; b++ {
				g[a][b] += ra * row[b]
			}
		}
	}
	for a := 0; a < d; a++ {
		for b := a + 1; b < d; b++ {
			g[b][a] = g[a][b]
		}
	}
	return g
}

// rowSolver holds per-goroutine scratch space for one d x d system.
type rowSolver struct {
	a [][]float64
	l [][]float64
	b []float64
	z []float64
}

func newRowSolver(d int) *rowSolver {
	s := &rowSolver{
		a: make([][]float64, d),
		l: make([][]float64, d),
		b: make([]float64, d),
		z: make([]float64, d),
	}
	for i := 0; i < d; i++ {
		s.a[i] = make([]float64, d)
		s.l[i] = make([]float64, d)
	}
	return s
}

// solve writes into out the minimizer for one entity:
//
//	A = F'F + λI + sum_j (c_j - 1) f_j f_j'
//	b = sum_j c_j f_j
//	out = A^-1 b
//
// where j ranges over the entity's observed neighbors.
//
//nolint:gocritic // F, A follow standard linear algebra notation
func (s *rowSolver) solve(out []float64, gram, fixed [][]float64, idx []int, val []float64, alpha, lambda float64) {
	d := len(out)
	for i := 0; i < d; i++ {
		copy(s.a[i], gram[i])
		s.a[i][i] += lambda
		s.b[i] = 0
	}

	for n, j := range idx {
		f := fixed[j]
		c := 1 + alpha*val[n]
		cm1 := c - 1
		for p := 0; p < d; p++ {
			fp := f[p]
			w := cm1 * fp
			for q := p; q < d; q++ {
				s.a[p][q] += w * f[q]
			}
			s.b[p] += c * fp
		}
	}
	for p := 0; p < d; p++ {
		for q := p + 1; q < d; q++ {
			s.a[q][p] = s.a[p][q]
		}
	}

	cholesky(s.a, s.l)
	solveCholesky(s.l, s.b, s.z, out)
}

// cholesky factors A = LL'. Non-positive pivots are clamped to a tiny
// value so a singular system degrades instead of aborting; any resulting
// blow-up is caught by the finiteness check after the iteration.
func cholesky(a, l [][]float64) {
	n := len(a)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					sum = 1e-10
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
		for j := i + 1; j < n; j++ {
			l[i][j] = 0
		}
	}
}

// solveCholesky solves LL'x = b by forward then back substitution.
func solveCholesky(l [][]float64, b, z, x []float64) {
	n := len(b)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= l[i][j] * z[j]
		}
		z[i] = sum / l[i][i]
	}
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for j := i + 1; j < n; j++ {
			sum -= l[j][i] * x[j]
		}
		x[i] = sum / l[i][i]
	}
}

func randomFactors(rng *rand.Rand, n, d int) [][]float64 {
	f := make([][]float64, n)
	for i := range f {
		f[i] = make([]float64, d)
		for j := range f[i] {
			f[i][j] = rng.NormFloat64() * initScale
		}
	}
	return f
}

func zeroFactors(n, d int) [][]float64 {
	f := make([][]float64, n)
	for i := range f {
		f[i] = make([]float64, d)
	}
	return f
}

// firstNonFinite reports the first row holding NaN or Inf.
func firstNonFinite(f [][]float64) (bool, int) {
	for i, row := range f {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true, i
			}
		}
	}
	return false, -1
}
