package graphbo

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Numeric contract shared with saved runs. Changing any of these changes the
// posterior.
const (
	// LogLowerBound and LogUpperBound bound every log-space hyperparameter so
	// exponentiating it stays well inside float64 range.
	LogLowerBound = -12.0
	LogUpperBound = 20.0

	// StableMeanRange scales the band around the output midpoint in which the
	// constant mean may move.
	StableMeanRange = 1.0

	// GraphSizeLimit is the largest per-subgraph state space accepted.
	GraphSizeLimit = 1024 + 2

	// NoiseVarCeiling is the extra upper bound on the log noise variance.
	NoiseVarCeiling = 16.0

	// EdgeWeightCeiling is the largest exponentiated edge weight.
	EdgeWeightCeiling = 2.0

	// EdgeWeightShape is the Gamma shape of the edge-weight prior.
	EdgeWeightShape = 1.0
)

//////
// Priors. All are pure and return unnormalized log densities; -Inf marks an
// infeasible value.
//////

// LogPriorConstMean is flat inside the stable band around the midpoint of the
// observed outputs and -Inf outside it.
//
// Parameters:
// - mean: Candidate constant mean
// - outMin, outMax: Observed output range
//
// Returns:
// - float64: 0 inside [mid - half, mid + half], -Inf outside, where
// mid = (outMin+outMax)/2 and half = (outMax-outMin)*StableMeanRange/2
func LogPriorConstMean(mean, outMin, outMax float64) float64 {
	mid := (outMin + outMax) / 2.0
	half := (outMax - outMin) * StableMeanRange / 2.0

	if math.IsNaN(mean) || mean < mid-half || mid+half < mean {
		return math.Inf(-1)
	}

	return 0
}

// LogPriorNoiseVar is a half-Cauchy-like prior on the noise standard
// deviation, written in log-variance coordinates.
//
// The inner expression is evaluated as log(1 + x^2) rather than Log1p so the
// result matches previously recorded densities bit for bit.
func LogPriorNoiseVar(logNoiseVar float64) float64 {
	if !withinBounds(logNoiseVar, LogLowerBound, LogUpperBound) || logNoiseVar > NoiseVarCeiling {
		return math.Inf(-1)
	}

	ratio := 0.1 / math.Exp(logNoiseVar)

	return math.Log(math.Log(1.0 + ratio*ratio))
}

// LogPriorKernelAmp is a zero-mean Gaussian with precision 0.25 on the log
// kernel amplitude.
func LogPriorKernelAmp(logAmp float64) float64 {
	if !withinBounds(logAmp, LogLowerBound, LogUpperBound) {
		return math.Inf(-1)
	}

	return -0.5 * 0.25 * logAmp * logAmp
}

// LogPriorEdgeWeight is a Gamma(shape=1, rate=1/sqrt(dim)) prior on
// beta = exp(logBeta), where dim is the dimensionality of the subgraph that
// owns the edge.
//
// Parameters:
// - logBeta: Log edge weight
// - dim: Number of variables in the owning subgraph (>= 1)
//
// Returns:
// - float64: shape*log(rate) - lgamma(shape) + (shape-1)*beta - rate*beta, or
// -Inf when logBeta leaves [LogLowerBound, LogUpperBound], beta exceeds
// EdgeWeightCeiling, or dim < 1
//
// Important notes:
// - The (shape-1) term multiplies beta itself, not log(beta); with shape 1 it
// vanishes either way.
func LogPriorEdgeWeight(logBeta float64, dim int) float64 {
	if dim < 1 || logBeta > LogUpperBound || logBeta < LogLowerBound {
		return math.Inf(-1)
	}

	beta := math.Exp(logBeta)
	if beta > EdgeWeightCeiling {
		return math.Inf(-1)
	}

	shape := EdgeWeightShape
	rate := 1.0 / math.Sqrt(float64(dim))
	lgammaShape, _ := math.Lgamma(shape)

	return shape*math.Log(rate) - lgammaShape + (shape-1.0)*beta - rate*beta
}

// LogPriorPartition scores a decomposition by how evenly it spreads the
// variables: the Shannon entropy (nats) of the per-subset masses
// sum(log cardinality), normalized to one.
//
// Returns -Inf for the trivial single-subset partition and for partitions
// whose GroupSize exceeds GraphSizeLimit.
//
// Usage example:
//
//	cats, _ := NewCategories(2, 2, 2, 2)
//	even, _ := NewPartition(4, [][]int{{0, 1}, {2, 3}})
//	LogPriorPartition(even, cats) // log(2)
func LogPriorPartition(partition *Partition, categories Categories) float64 {
	if partition.NumSubsets() == 1 || GroupSize(partition, categories) > GraphSizeLimit {
		return math.Inf(-1)
	}

	mass := subsetMasses(partition, categories)
	floats.Scale(1/floats.Sum(mass), mass)

	return stat.Entropy(mass)
}

// subsetMasses returns sum(log cardinality) for every subset.
func subsetMasses(partition *Partition, categories Categories) []float64 {
	mass := make([]float64, partition.NumSubsets())
	logs := make([]float64, 0, partition.Len())

	for s, members := range partition.members {
		logs = logs[:0]
		for _, v := range members {
			logs = append(logs, math.Log(float64(categories.At(v))))
		}

		mass[s] = floats.Sum(logs)
	}

	return mass
}
