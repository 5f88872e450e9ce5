package graphgp

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/thalesfsp/graphbo"
)

//////
// Const, vars, types.
//////

// DefaultCacheSize is the default number of per-subset Gram matrices kept.
const DefaultCacheSize = 256

// Surrogate is a Gaussian process over categorical inputs whose kernel follows
// a graph decomposition.
//
// Each variable i with c_i levels is a complete graph K_{c_i} whose edges have
// weight beta_i. A subset's kernel is the diffusion kernel on the Cartesian
// product of its members' graphs, which factorizes into a product of
// per-variable terms. The full kernel is the amplitude times the average of
// the subset kernels.
//
// Fields:
// - mu: RWMutex guarding the observations
// - categories: Cardinalities, read-only
// - inputs: Observed level assignments, one row per observation
// - outputs: Observed values
// - grams: LRU of per-subset Gram matrices keyed by members and weights
//
// Thread safety:
// - Likelihood and prediction take the read lock and may run concurrently
// - Update takes the write lock and clears the Gram cache
type Surrogate struct {
	mu sync.RWMutex

	categories graphbo.Categories
	inputs     [][]int
	outputs    []float64

	grams  *lru.Cache[string, *mat.SymDense]
	logger *slog.Logger
}

// Option configures a Surrogate.
type Option func(*options)

type options struct {
	cacheSize int
	logger    *slog.Logger
}

// WithCacheSize sets the number of cached per-subset Gram matrices.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

//////
// Factory.
//////

// New creates a surrogate over the given observations.
//
// Parameters:
// - categories: Cardinalities of the variables
// - inputs: One row per observation, each row holding a level index in
// [0, cardinality) per variable
// - outputs: Observed values, same length as inputs
//
// Returns:
// - *Surrogate: Model ready to score states
// - error: graphbo.ErrInvalidConfiguration for malformed data
//
// Usage example:
//
//	cats, _ := graphbo.NewCategories(2, 2, 3)
//	gp, err := graphgp.New(cats, [][]int{{0, 1, 2}, {1, 1, 0}}, []float64{0.3, -1.2})
func New(categories graphbo.Categories, inputs [][]int, outputs []float64, opts ...Option) (*Surrogate, error) {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	if len(inputs) != len(outputs) {
		return nil, fmt.Errorf("%w: %d inputs but %d outputs", graphbo.ErrInvalidConfiguration, len(inputs), len(outputs))
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no observations", graphbo.ErrInvalidConfiguration)
	}

	grams, err := lru.New[string, *mat.SymDense](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: gram cache: %v", graphbo.ErrInvalidConfiguration, err)
	}

	s := &Surrogate{
		categories: categories,
		grams:      grams,
		logger:     o.logger.With(slog.String("component", "graphgp")),
	}

	for i := range inputs {
		if err := s.checkInput(inputs[i]); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}

		if math.IsNaN(outputs[i]) || math.IsInf(outputs[i], 0) {
			return nil, fmt.Errorf("%w: observation %d has non-finite output", graphbo.ErrInvalidConfiguration, i)
		}

		s.inputs = append(s.inputs, cloneInts(inputs[i]))
	}

	s.outputs = make([]float64, len(outputs))
	copy(s.outputs, outputs)

	return s, nil
}

//////
// Methods.
//////

// Update adds an observation. Cached Gram matrices are dropped since their
// size changes.
func (s *Surrogate) Update(x []int, y float64) error {
	if err := s.checkInput(x); err != nil {
		return err
	}

	if math.IsNaN(y) || math.IsInf(y, 0) {
		return fmt.Errorf("%w: non-finite output", graphbo.ErrInvalidConfiguration)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inputs = append(s.inputs, cloneInts(x))
	s.outputs = append(s.outputs, y)
	s.grams.Purge()

	return nil
}

// Len returns the number of observations.
func (s *Surrogate) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.outputs)
}

// OutputRange returns the smallest and largest observed outputs.
func (s *Surrogate) OutputRange() graphbo.OutputRange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return graphbo.OutputRange{Min: floats.Min(s.outputs), Max: floats.Max(s.outputs)}
}

// LogMarginalLikelihood returns log N(y | m, K + noise*I) for the state.
//
// Returns:
// - float64: -0.5*r'(K+noise I)^-1 r - 0.5*log|K+noise I| - n/2*log(2 pi),
// with r = y - m
// - error: wrapped graphbo.ErrLikelihood when the covariance cannot be
// factorized
func (s *Surrogate) LogMarginalLikelihood(state *graphbo.State) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chol, err := s.factorize(state)
	if err != nil {
		return 0, err
	}

	n := len(s.outputs)
	resid := s.residuals(state.ConstMean)

	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, resid); err != nil {
		return 0, fmt.Errorf("%w: solve: %v", graphbo.ErrLikelihood, err)
	}

	quad := mat.Dot(resid, &alpha)

	return -0.5*quad - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi), nil
}

// Predict returns the posterior mean and latent variance at each point.
func (s *Surrogate) Predict(state *graphbo.State, xs [][]int) (means, variances []float64, err error) {
	for i, x := range xs {
		if err := s.checkInput(x); err != nil {
			return nil, nil, fmt.Errorf("point %d: %w", i, err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chol, err := s.factorize(state)
	if err != nil {
		return nil, nil, err
	}

	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, s.residuals(state.ConstMean)); err != nil {
		return nil, nil, fmt.Errorf("%w: solve: %v", graphbo.ErrLikelihood, err)
	}

	amp := math.Exp(state.LogAmp)
	ratios := s.offDiagonalRatios(state)
	subsets := state.Partition.Subsets()

	means = make([]float64, len(xs))
	variances = make([]float64, len(xs))

	n := len(s.outputs)
	kStar := mat.NewVecDense(n, nil)

	var v mat.VecDense
	for p, x := range xs {
		for i := 0; i < n; i++ {
			kStar.SetVec(i, amp*additiveKernel(subsets, ratios, x, s.inputs[i]))
		}

		means[p] = state.ConstMean + mat.Dot(kStar, &alpha)

		if err := chol.SolveVecTo(&v, kStar); err != nil {
			return nil, nil, fmt.Errorf("%w: solve: %v", graphbo.ErrLikelihood, err)
		}

		variances[p] = math.Max(amp-mat.Dot(kStar, &v), 0)
	}

	return means, variances, nil
}

// PredictPosterior averages predictions over posterior samples, treating them
// as an equally weighted mixture.
func (s *Surrogate) PredictPosterior(samples []graphbo.Sample, xs [][]int) (means, variances []float64, err error) {
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("%w: no samples", graphbo.ErrInvalidConfiguration)
	}

	means = make([]float64, len(xs))
	secondMoments := make([]float64, len(xs))

	for _, sample := range samples {
		m, v, err := s.Predict(sample.State, xs)
		if err != nil {
			return nil, nil, err
		}

		for i := range xs {
			means[i] += m[i]
			secondMoments[i] += v[i] + m[i]*m[i]
		}
	}

	count := float64(len(samples))
	floats.Scale(1/count, means)
	floats.Scale(1/count, secondMoments)

	variances = make([]float64, len(xs))
	for i := range xs {
		variances[i] = math.Max(secondMoments[i]-means[i]*means[i], 0)
	}

	return means, variances, nil
}

//////
// Internals. Callers hold at least the read lock.
//////

// factorize builds amp*mean_S(G_S) + noise*I and its Cholesky factor.
func (s *Surrogate) factorize(state *graphbo.State) (*mat.Cholesky, error) {
	if state == nil || state.Partition == nil {
		return nil, fmt.Errorf("%w: nil state", graphbo.ErrLikelihood)
	}

	if err := state.Validate(s.categories); err != nil {
		return nil, fmt.Errorf("%w: %w", graphbo.ErrLikelihood, err)
	}

	n := len(s.outputs)
	cov := mat.NewSymDense(n, nil)
	subsets := state.Partition.Subsets()

	for _, members := range subsets {
		cov.AddSym(cov, s.subsetGram(members, state.LogBeta))
	}

	scale := math.Exp(state.LogAmp) / float64(len(subsets))
	cov.ScaleSym(scale, cov)

	noise := math.Exp(state.LogNoiseVar)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, cov.At(i, i)+noise)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		s.logger.Debug("covariance not positive definite",
			slog.String("partition", state.Partition.String()),
			slog.Float64("log_noise_var", state.LogNoiseVar),
		)

		return nil, fmt.Errorf("%w: covariance is not positive definite", graphbo.ErrLikelihood)
	}

	return &chol, nil
}

// subsetGram returns the (cached) Gram matrix of one subset's product kernel.
// The returned matrix is shared and must not be modified.
func (s *Surrogate) subsetGram(members []int, logBeta []float64) *mat.SymDense {
	key := gramKey(members, logBeta)
	if g, ok := s.grams.Get(key); ok {
		return g
	}

	ratios := make([]float64, len(members))
	for j, v := range members {
		ratios[j] = offDiagonalRatio(math.Exp(logBeta[v]), s.categories.At(v))
	}

	n := len(s.outputs)
	g := mat.NewSymDense(n, nil)
	for a := 0; a < n; a++ {
		g.SetSym(a, a, 1)
		for b := a + 1; b < n; b++ {
			k := 1.0
			for j, v := range members {
				if s.inputs[a][v] != s.inputs[b][v] {
					k *= ratios[j]
				}
			}

			g.SetSym(a, b, k)
		}
	}

	s.grams.Add(key, g)

	return g
}

func (s *Surrogate) offDiagonalRatios(state *graphbo.State) []float64 {
	ratios := make([]float64, s.categories.Len())
	for v := range ratios {
		ratios[v] = offDiagonalRatio(math.Exp(state.LogBeta[v]), s.categories.At(v))
	}

	return ratios
}

func (s *Surrogate) residuals(mean float64) *mat.VecDense {
	r := make([]float64, len(s.outputs))
	copy(r, s.outputs)
	floats.AddConst(-mean, r)

	return mat.NewVecDense(len(r), r)
}

func (s *Surrogate) checkInput(x []int) error {
	if len(x) != s.categories.Len() {
		return fmt.Errorf("%w: input has %d variables, want %d", graphbo.ErrInvalidConfiguration, len(x), s.categories.Len())
	}

	for v, level := range x {
		if level < 0 || level >= s.categories.At(v) {
			return fmt.Errorf("%w: variable %d level %d out of range [0,%d)", graphbo.ErrInvalidConfiguration, v, level, s.categories.At(v))
		}
	}

	return nil
}

//////
// Kernel.
//////

// offDiagonalRatio is the unit-diagonal diffusion kernel value between two
// distinct vertices of the complete graph K_c with edge weight beta:
// (1 - e^{-beta c}) / (1 + (c-1) e^{-beta c}).
func offDiagonalRatio(beta float64, c int) float64 {
	e := math.Exp(-beta * float64(c))

	return (1 - e) / (1 + float64(c-1)*e)
}

// additiveKernel averages the product kernels of every subset for one pair of
// inputs.
func additiveKernel(subsets [][]int, ratios []float64, x, y []int) float64 {
	var sum float64
	for _, members := range subsets {
		k := 1.0
		for _, v := range members {
			if x[v] != y[v] {
				k *= ratios[v]
			}
		}

		sum += k
	}

	return sum / float64(len(subsets))
}

func gramKey(members []int, logBeta []float64) string {
	var b strings.Builder
	for i, v := range members {
		if i > 0 {
			b.WriteByte(',')
		}

		b.WriteString(strconv.Itoa(v))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(math.Float64bits(logBeta[v]), 16))
	}

	return b.String()
}

func cloneInts(in []int) []int {
	out := make([]int, len(in))
	copy(out, in)

	return out
}
