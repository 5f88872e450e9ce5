package graphbo

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// State is one point of the sampler: a decomposition plus the GP
// hyperparameters that go with it.
type State struct {
	// Partition groups the variables into subgraphs.
	Partition *Partition `json:"partition"`

	// LogBeta holds one log edge weight per variable. In the product graph of
	// a subset, every edge that changes variable i carries exp(LogBeta[i]).
	LogBeta []float64 `json:"log_beta"`

	// LogAmp is the log kernel amplitude.
	LogAmp float64 `json:"log_amp"`

	// LogNoiseVar is the log observation-noise variance.
	LogNoiseVar float64 `json:"log_noise_var"`

	// ConstMean is the constant GP mean.
	ConstMean float64 `json:"const_mean"`
}

// Sample is one retained posterior draw.
type Sample struct {
	ChainID       string  `json:"chain_id"`
	Iteration     int     `json:"iteration"`
	State         *State  `json:"state"`
	LogPrior      float64 `json:"log_prior"`
	LogLikelihood float64 `json:"log_likelihood"`
}

// LogPosterior returns LogPrior + LogLikelihood.
func (s Sample) LogPosterior() float64 { return s.LogPrior + s.LogLikelihood }

//////
// Factory.
//////

// NewState builds a state with neutral hyperparameters: unit edge weights and
// amplitude, noise variance 0.01, and the mean at the output midpoint.
func NewState(partition *Partition, outputRange OutputRange) *State {
	return &State{
		Partition:   partition,
		LogBeta:     make([]float64, partition.Len()),
		LogAmp:      0,
		LogNoiseVar: math.Log(0.01),
		ConstMean:   (outputRange.Min + outputRange.Max) / 2.0,
	}
}

// RandomState draws a feasible starting state: a random tractable partition
// and edge weights from their Gamma prior truncated at EdgeWeightCeiling.
func RandomState(rng *rand.Rand, categories Categories, outputRange OutputRange) (*State, error) {
	partition, err := RandomPartition(rng, categories, 1000)
	if err != nil {
		return nil, err
	}

	state := NewState(partition, outputRange)
	for v := range state.LogBeta {
		dim := partition.Size(partition.SubsetOf(v))
		gamma := distuv.Gamma{Alpha: EdgeWeightShape, Beta: 1.0 / math.Sqrt(float64(dim)), Src: rng}

		beta := gamma.Rand()
		for beta > EdgeWeightCeiling || math.Log(beta) < LogLowerBound {
			beta = gamma.Rand()
		}

		state.LogBeta[v] = math.Log(beta)
	}

	return state, nil
}

//////
// Methods.
//////

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := *s
	out.Partition = s.Partition.Clone()
	out.LogBeta = make([]float64, len(s.LogBeta))
	copy(out.LogBeta, s.LogBeta)

	return &out
}

// Validate checks the structural invariants: the partition covers every
// variable exactly once and there is one edge weight per variable. It does not
// check prior feasibility.
func (s *State) Validate(categories Categories) error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidConfiguration)
	}

	if err := s.Partition.Validate(categories.Len()); err != nil {
		return err
	}

	if len(s.LogBeta) != categories.Len() {
		return fmt.Errorf("%w: %d edge weights for %d variables", ErrInvalidConfiguration, len(s.LogBeta), categories.Len())
	}

	return nil
}

// EdgeDim returns the dimensionality used by the prior of variable v's edge
// weight: the size of the subgraph holding v.
func (s *State) EdgeDim(v int) int {
	return s.Partition.Size(s.Partition.SubsetOf(v))
}

// LogPrior sums every prior term. It stops at the first -Inf term.
func (s *State) LogPrior(categories Categories, outputRange OutputRange) float64 {
	total := LogPriorPartition(s.Partition, categories)
	if isNegInf(total) {
		return total
	}

	for _, term := range []float64{
		LogPriorKernelAmp(s.LogAmp),
		LogPriorNoiseVar(s.LogNoiseVar),
		LogPriorConstMean(s.ConstMean, outputRange.Min, outputRange.Max),
	} {
		if isNegInf(term) {
			return term
		}

		total += term
	}

	for v, logBeta := range s.LogBeta {
		term := LogPriorEdgeWeight(logBeta, s.EdgeDim(v))
		if isNegInf(term) {
			return term
		}

		total += term
	}

	return total
}

//////
// Encoding.
//////

// MarshalJSON encodes the partition as its list of subsets.
func (p *Partition) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.members)
}

// UnmarshalJSON decodes a list of subsets and validates it.
func (p *Partition) UnmarshalJSON(data []byte) error {
	var groups [][]int
	if err := json.Unmarshal(data, &groups); err != nil {
		return err
	}

	n := 0
	for _, g := range groups {
		n += len(g)
	}

	decoded, err := NewPartition(n, groups)
	if err != nil {
		return err
	}

	*p = *decoded

	return nil
}
