package graphbo

import (
	"math"
	"math/rand/v2"

	"golang.org/x/exp/constraints"
)

//////
// Helper functions.
//////

// withinBounds reports whether lo <= v <= hi. NaN is never within bounds.
func withinBounds[T constraints.Float](v, lo, hi T) bool {
	return lo <= v && v <= hi
}

func isNegInf(v float64) bool {
	return math.IsInf(v, -1)
}

// saturatingMul multiplies two non-negative ints, clamping at math.MaxInt.
func saturatingMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}

	if a > math.MaxInt/b {
		return math.MaxInt
	}

	return a * b
}

// sanitizeLogLikelihood maps NaN and +Inf to -Inf so they reject instead of
// poisoning the acceptance arithmetic.
func sanitizeLogLikelihood(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 1) {
		return math.Inf(-1)
	}

	return v
}

// metropolisAccept implements the Metropolis-Hastings test on log scale.
//
// Parameters:
// - rng: Random source for the uniform draw
// - current: Log posterior of the current state
// - proposed: Log posterior of the proposed state
// - logHastings: log q(proposed -> current) - log q(current -> proposed)
//
// Returns:
// - bool: true if the proposal should replace the current state
//
// Important notes:
// - A -Inf or NaN proposal is always rejected
// - Any finite proposal is accepted when the current state is -Inf
// - Non-negative log ratios accept without consuming a random draw
func metropolisAccept(rng *rand.Rand, current, proposed, logHastings float64) bool {
	if isNegInf(proposed) || math.IsNaN(proposed) {
		return false
	}

	ratio := proposed - current + logHastings
	if math.IsNaN(ratio) {
		return false
	}

	if ratio >= 0 {
		return true
	}

	return math.Log(rng.Float64()) < ratio
}

// logPairs returns log(k choose 2).
func logPairs(k int) float64 {
	return math.Log(float64(k) * float64(k-1) / 2.0)
}

// logBipartitions returns log(2^(m-1) - 1), the number of ways to split m
// labelled items into two non-empty unlabelled groups.
func logBipartitions(m int) float64 {
	e := float64(m - 1)

	return e*math.Ln2 + math.Log1p(-math.Exp2(-e))
}

// splitProbability is the chance of proposing a split rather than a merge.
func splitProbability(canSplit, canMerge bool) float64 {
	switch {
	case canSplit && canMerge:
		return 0.5
	case canSplit:
		return 1
	default:
		return 0
	}
}
