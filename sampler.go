package graphbo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"
)

//////
// Const, vars, types.
//////

// Likelihood supplies the GP marginal log-likelihood of the observed data
// under a state. Implementations shared by RunChains must be safe for
// concurrent use.
type Likelihood interface {
	LogMarginalLikelihood(state *State) (float64, error)
}

// LikelihoodFunc adapts a function to Likelihood.
type LikelihoodFunc func(state *State) (float64, error)

// LogMarginalLikelihood calls f.
func (f LikelihoodFunc) LogMarginalLikelihood(state *State) (float64, error) {
	return f(state)
}

// MoveKind labels the sampler's proposal types.
type MoveKind int

const (
	MoveReassign MoveKind = iota
	MoveSplitMerge
	MoveEdgeWeight
	MoveKernelAmp
	MoveNoiseVar
	MoveConstMean

	numMoveKinds
)

var moveKindNames = [numMoveKinds]string{
	"reassign",
	"split_merge",
	"edge_weight",
	"kernel_amp",
	"noise_var",
	"const_mean",
}

func (k MoveKind) String() string {
	if k < 0 || k >= numMoveKinds {
		return fmt.Sprintf("MoveKind(%d)", int(k))
	}

	return moveKindNames[k]
}

// MoveStats counts proposals of one kind.
type MoveStats struct {
	// Proposed counts every proposal, including those rejected by the prior.
	Proposed int `json:"proposed"`

	// PriorRejected counts proposals with a -Inf prior; the likelihood was
	// never evaluated for them.
	PriorRejected int `json:"prior_rejected"`

	// Accepted counts proposals that replaced the current state.
	Accepted int `json:"accepted"`
}

// Stats summarizes a chain's activity.
type Stats struct {
	Moves              [numMoveKinds]MoveStats `json:"moves"`
	LikelihoodFailures int                     `json:"likelihood_failures"`
	Sweeps             int                     `json:"sweeps"`
}

// AcceptanceRate returns accepted / proposed over all move kinds.
func (s Stats) AcceptanceRate() float64 {
	proposed, accepted := 0, 0
	for _, m := range s.Moves {
		proposed += m.Proposed
		accepted += m.Accepted
	}

	if proposed == 0 {
		return 0
	}

	return float64(accepted) / float64(proposed)
}

// Sampler is a single Metropolis-Hastings chain over decompositions and GP
// hyperparameters.
//
// Thread safety:
// - A Sampler is owned by one goroutine; run independent chains with separate
// Samplers (see RunChains)
// - Categories are read-only and may be shared
type Sampler struct {
	id          string
	config      Config
	categories  Categories
	likelihood  Likelihood
	outputRange OutputRange
	rng         *rand.Rand
	logger      *slog.Logger

	state         *State
	logPrior      float64
	logLikelihood float64
	stats         Stats

	constMeanStep float64
}

//////
// Factory.
//////

// NewSampler validates the configuration and initial state and scores the
// initial state.
//
// Parameters:
// - config: Sampler configuration (see DefaultConfig)
// - categories: Category model shared by every chain
// - likelihood: GP marginal likelihood collaborator
// - outputRange: Observed output range for the constant-mean prior
// - initial: Starting state; it is cloned, the caller keeps ownership
//
// Returns:
// - *Sampler: Ready-to-run chain
// - error: ErrInvalidConfiguration for malformed inputs or an infeasible
// initial state, ErrLikelihood if the initial likelihood fails
//
// Usage example:
//
//	cats, _ := NewCategories(2, 2, 2, 2)
//	p, _ := NewPartition(4, [][]int{{0, 1}, {2, 3}})
//	init := NewState(p, OutputRange{Min: -1, Max: 1})
//	s, err := NewSampler(DefaultConfig(), cats, surrogate, OutputRange{Min: -1, Max: 1}, init)
//	if err != nil {
//	    return err
//	}
//	samples, err := s.Run(ctx, 500)
func NewSampler(
	config Config,
	categories Categories,
	likelihood Likelihood,
	outputRange OutputRange,
	initial *State,
) (*Sampler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if likelihood == nil {
		return nil, fmt.Errorf("%w: nil likelihood", ErrInvalidConfiguration)
	}

	if math.IsNaN(outputRange.Min) || math.IsNaN(outputRange.Max) || outputRange.Min > outputRange.Max {
		return nil, fmt.Errorf("%w: bad output range [%v, %v]", ErrInvalidConfiguration, outputRange.Min, outputRange.Max)
	}

	if err := initial.Validate(categories); err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	s := &Sampler{
		id:          uuid.NewString(),
		config:      config,
		categories:  categories,
		likelihood:  likelihood,
		outputRange: outputRange,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		state:       initial.Clone(),
	}
	s.logger = config.logger().With(slog.String("chain", s.id))

	s.constMeanStep = config.Steps.ConstMean
	if s.constMeanStep == 0 {
		s.constMeanStep = 0.1 * (outputRange.Max - outputRange.Min)
	}

	s.logPrior = s.state.LogPrior(categories, outputRange)
	if isNegInf(s.logPrior) {
		return nil, fmt.Errorf("%w: initial state has zero prior probability (partition %s)", ErrInvalidConfiguration, s.state.Partition)
	}

	ll, err := likelihood.LogMarginalLikelihood(s.state.Clone())
	if err != nil {
		return nil, fmt.Errorf("%w: initial state: %w", ErrLikelihood, err)
	}
	s.logLikelihood = sanitizeLogLikelihood(ll)

	return s, nil
}

//////
// Methods.
//////

// ID returns the chain's unique id.
func (s *Sampler) ID() string { return s.id }

// State returns a copy of the current state.
func (s *Sampler) State() *State { return s.state.Clone() }

// Stats returns a copy of the chain statistics.
func (s *Sampler) Stats() Stats { return s.stats }

// LogPosterior returns the unnormalized log posterior of the current state.
func (s *Sampler) LogPosterior() float64 { return s.logPrior + s.logLikelihood }

// Sweep runs one proposal of every enabled move kind, in order: variable
// reassignment, split/merge, each edge weight, amplitude, noise, mean.
func (s *Sampler) Sweep() {
	moves := s.config.Moves

	if moves.Partition {
		s.reassignVariable()
		s.splitOrMerge()
	}

	if moves.EdgeWeights {
		for v := range s.state.LogBeta {
			s.perturbEdgeWeight(v)
		}
	}

	if moves.KernelAmp {
		s.perturbScalar(MoveKernelAmp, s.config.Steps.LogAmp, func(st *State) *float64 { return &st.LogAmp })
	}

	if moves.NoiseVar {
		s.perturbScalar(MoveNoiseVar, s.config.Steps.LogNoiseVar, func(st *State) *float64 { return &st.LogNoiseVar })
	}

	if moves.ConstMean && s.constMeanStep > 0 {
		s.perturbScalar(MoveConstMean, s.constMeanStep, func(st *State) *float64 { return &st.ConstMean })
	}

	s.stats.Sweeps++
}

// Run performs config.BurnIn sweeps, then collects n samples keeping one
// every config.Thin sweeps.
//
// Parameters:
// - ctx: Checked between sweeps; cancellation stops the run
// - n: Number of samples to collect
//
// Returns:
// - []Sample: Collected samples, in order
// - error: ctx.Err() if the run was cut short; the samples gathered so far
// are still returned
//
// How it works:
// 1. Burn-in sweeps move the chain away from its starting point
// 2. Every Thin-th subsequent sweep is recorded as a Sample
// 3. Progress is reported on config.ProgressChan without blocking
func (s *Sampler) Run(ctx context.Context, n int) ([]Sample, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: sample count must be >= 0, got %d", ErrInvalidConfiguration, n)
	}

	s.logger.Info("sampling started",
		slog.Int("burn_in", s.config.BurnIn),
		slog.Int("samples", n),
		slog.Int("thin", s.config.Thin),
		slog.String("partition", s.state.Partition.String()),
	)

	for i := 0; i < s.config.BurnIn; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.Sweep()
		s.sendProgress(PhaseBurnIn, i+1, s.config.BurnIn)
	}

	samples := make([]Sample, 0, n)
	total := n * s.config.Thin

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return samples, err
		}

		s.Sweep()

		if (i+1)%s.config.Thin == 0 {
			samples = append(samples, s.sample(i+1))
		}

		s.sendProgress(PhaseSampling, i+1, total)

		s.logger.Debug("sweep done",
			slog.Int("iteration", i+1),
			slog.Float64("log_posterior", s.LogPosterior()),
			slog.Int("subsets", s.state.Partition.NumSubsets()),
		)
	}

	s.logger.Info("sampling finished",
		slog.Int("samples", len(samples)),
		slog.Float64("acceptance_rate", s.stats.AcceptanceRate()),
		slog.Int("likelihood_failures", s.stats.LikelihoodFailures),
		slog.String("partition", s.state.Partition.String()),
	)

	return samples, nil
}

func (s *Sampler) sample(iteration int) Sample {
	return Sample{
		ChainID:       s.id,
		Iteration:     iteration,
		State:         s.state.Clone(),
		LogPrior:      s.logPrior,
		LogLikelihood: s.logLikelihood,
	}
}

// sendProgress sends a progress update, dropping it if the channel is full.
func (s *Sampler) sendProgress(phase string, iteration, total int) {
	if s.config.ProgressChan == nil {
		return
	}

	update := ProgressUpdate{
		ChainID:          s.id,
		Phase:            phase,
		CurrentIteration: iteration,
		TotalIterations:  total,
		NumSubsets:       s.state.Partition.NumSubsets(),
		LogPosterior:     s.LogPosterior(),
		AcceptanceRate:   s.stats.AcceptanceRate(),
	}

	select {
	case s.config.ProgressChan <- update:
	default:
		// Skip update if channel is full.
	}
}

//////
// Proposals.
//////

// consider scores a fully built proposal and swaps it in if accepted. The
// current state is untouched unless every step succeeds.
func (s *Sampler) consider(kind MoveKind, proposal *State, logHastings float64) bool {
	stats := &s.stats.Moves[kind]
	stats.Proposed++

	logPrior := proposal.LogPrior(s.categories, s.outputRange)
	if isNegInf(logPrior) {
		stats.PriorRejected++
		return false
	}

	ll, err := s.likelihood.LogMarginalLikelihood(proposal)
	if err != nil {
		s.stats.LikelihoodFailures++
		s.logger.Debug("likelihood failed, proposal rejected",
			slog.String("move", kind.String()),
			slog.Any("error", errors.Join(ErrLikelihood, err)),
		)

		return false
	}

	ll = sanitizeLogLikelihood(ll)
	if !metropolisAccept(s.rng, s.LogPosterior(), logPrior+ll, logHastings) {
		return false
	}

	s.state = proposal
	s.logPrior = logPrior
	s.logLikelihood = ll
	stats.Accepted++

	return true
}

// reassignDestinations counts where variable v may go: every other subset,
// plus a new singleton when v is not already alone.
func reassignDestinations(p *Partition, v int) int {
	d := p.NumSubsets() - 1
	if p.Size(p.SubsetOf(v)) > 1 {
		d++
	}

	return d
}

// reassignVariable moves one uniformly chosen variable to a uniformly chosen
// destination. The reverse move always exists, so the Hastings term is the
// log ratio of destination counts.
func (s *Sampler) reassignVariable() {
	p := s.state.Partition
	v := s.rng.IntN(p.Len())

	d := reassignDestinations(p, v)
	if d == 0 {
		return
	}

	from := p.SubsetOf(v)
	dest := s.rng.IntN(d)
	switch {
	case dest >= p.NumSubsets()-1:
		dest = NewSubset
	case dest >= from:
		dest++
	}

	moved, err := p.Move(v, dest)
	if err != nil {
		s.logger.Error("reassign produced an invalid partition", slog.Any("error", err))
		return
	}

	proposal := s.state.Clone()
	proposal.Partition = moved

	logHastings := math.Log(float64(d)) - math.Log(float64(reassignDestinations(moved, v)))
	s.consider(MoveReassign, proposal, logHastings)
}

func splittableSubsets(p *Partition) []int {
	out := make([]int, 0, p.NumSubsets())
	for sub := 0; sub < p.NumSubsets(); sub++ {
		if p.Size(sub) > 1 {
			out = append(out, sub)
		}
	}

	return out
}

// splitOrMerge proposes either splitting one subset in two or merging two
// subsets, with the Hastings term computed from both directions.
func (s *Sampler) splitOrMerge() {
	p := s.state.Partition
	k := p.NumSubsets()
	splittable := splittableSubsets(p)

	pSplit := splitProbability(len(splittable) > 0, k > 1)
	if pSplit == 0 && k <= 1 {
		return
	}

	var (
		next        *Partition
		logForward  float64
		logBackward float64
		err         error
	)

	if s.rng.Float64() < pSplit {
		sub := splittable[s.rng.IntN(len(splittable))]
		size := p.Size(sub)

		next, err = p.Split(sub, s.randomBipartition(size))
		if err != nil {
			s.logger.Error("split produced an invalid partition", slog.Any("error", err))
			return
		}

		logForward = math.Log(pSplit) - math.Log(float64(len(splittable))) - logBipartitions(size)

		nextSplittable := len(splittableSubsets(next)) > 0
		logBackward = math.Log(1-splitProbability(nextSplittable, true)) - logPairs(k+1)
	} else {
		a := s.rng.IntN(k)
		b := s.rng.IntN(k - 1)
		if b >= a {
			b++
		}

		size := p.Size(a) + p.Size(b)

		next, err = p.Merge(a, b)
		if err != nil {
			s.logger.Error("merge produced an invalid partition", slog.Any("error", err))
			return
		}

		logForward = math.Log(1-pSplit) - logPairs(k)

		nextSplittable := splittableSubsets(next)
		logBackward = math.Log(splitProbability(true, next.NumSubsets() > 1)) -
			math.Log(float64(len(nextSplittable))) - logBipartitions(size)
	}

	proposal := s.state.Clone()
	proposal.Partition = next
	s.consider(MoveSplitMerge, proposal, logBackward-logForward)
}

// randomBipartition draws a uniform non-trivial two-way split of size items.
// The first item always stays, so each unordered split has one mask.
func (s *Sampler) randomBipartition(size int) []bool {
	mask := make([]bool, size)
	for {
		moved := false
		for i := 1; i < size; i++ {
			mask[i] = s.rng.IntN(2) == 1
			moved = moved || mask[i]
		}

		if moved {
			return mask
		}
	}
}

func (s *Sampler) perturbEdgeWeight(v int) {
	step := distuv.Normal{Mu: 0, Sigma: s.config.Steps.LogBeta, Src: s.rng}

	proposal := s.state.Clone()
	proposal.LogBeta[v] += step.Rand()
	s.consider(MoveEdgeWeight, proposal, 0)
}

func (s *Sampler) perturbScalar(kind MoveKind, sigma float64, field func(*State) *float64) {
	step := distuv.Normal{Mu: 0, Sigma: sigma, Src: s.rng}

	proposal := s.state.Clone()
	*field(proposal) += step.Rand()
	s.consider(kind, proposal, 0)
}
