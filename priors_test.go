package graphbo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func mustCategories(t *testing.T, cards ...int) Categories {
	t.Helper()

	c, err := NewCategories(cards...)
	require.NoError(t, err)

	return c
}

func mustPartition(t *testing.T, n int, groups ...[]int) *Partition {
	t.Helper()

	p, err := NewPartition(n, groups)
	require.NoError(t, err)

	return p
}

func repeatCards(card, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = card
	}

	return out
}

func TestLogPriorConstMean(t *testing.T) {
	assert.Equal(t, 0.0, LogPriorConstMean(0.0, -1.0, 1.0))
	assert.Equal(t, 0.0, LogPriorConstMean(1.0, -1.0, 1.0))
	assert.Equal(t, 0.0, LogPriorConstMean(-1.0, -1.0, 1.0))
	assert.True(t, math.IsInf(LogPriorConstMean(1.5, -1.0, 1.0), -1))
	assert.True(t, math.IsInf(LogPriorConstMean(-2.0, -1.0, 1.0), -1))
	assert.True(t, math.IsInf(LogPriorConstMean(math.NaN(), -1.0, 1.0), -1))

	// Band follows the midpoint.
	assert.Equal(t, 0.0, LogPriorConstMean(15, 10, 20))
	assert.True(t, math.IsInf(LogPriorConstMean(9.9, 10, 20), -1))
}

func TestLogPriorNoiseVar(t *testing.T) {
	t.Run("matches the closed form", func(t *testing.T) {
		for _, v := range []float64{-12, -5, -1, 0, 2.5, 10, 16} {
			ratio := 0.1 / math.Exp(v)
			assert.Equal(t, math.Log(math.Log(1.0+ratio*ratio)), LogPriorNoiseVar(v), "log_noise_var=%v", v)
		}
	})

	t.Run("ceiling at 16", func(t *testing.T) {
		assert.False(t, math.IsInf(LogPriorNoiseVar(16), 0))
		assert.False(t, math.IsNaN(LogPriorNoiseVar(16)))
		assert.True(t, math.IsInf(LogPriorNoiseVar(math.Nextafter(16, 17)), -1))
		assert.True(t, math.IsInf(LogPriorNoiseVar(17), -1))
	})

	t.Run("log bounds", func(t *testing.T) {
		assert.True(t, math.IsInf(LogPriorNoiseVar(-12.01), -1))
		assert.True(t, math.IsInf(LogPriorNoiseVar(math.NaN()), -1))
	})

	t.Run("prefers small noise", func(t *testing.T) {
		assert.Greater(t, LogPriorNoiseVar(-6), LogPriorNoiseVar(0))
	})
}

func TestLogPriorKernelAmp(t *testing.T) {
	assert.Equal(t, 0.0, LogPriorKernelAmp(0.0))
	assert.Equal(t, -0.5*0.25*4.0, LogPriorKernelAmp(2.0))
	assert.Equal(t, LogPriorKernelAmp(-3), LogPriorKernelAmp(3))
	assert.True(t, math.IsInf(LogPriorKernelAmp(20.5), -1))
	assert.True(t, math.IsInf(LogPriorKernelAmp(-12.5), -1))
	assert.False(t, math.IsInf(LogPriorKernelAmp(20), 0))
}

func TestLogPriorEdgeWeight(t *testing.T) {
	t.Run("above upper bound is infeasible for any dim", func(t *testing.T) {
		for _, dim := range []int{1, 2, 5, 100} {
			assert.True(t, math.IsInf(LogPriorEdgeWeight(LogUpperBound+0.1, dim), -1))
			assert.True(t, math.IsInf(LogPriorEdgeWeight(25, dim), -1))
		}
	})

	t.Run("beta above ceiling is infeasible", func(t *testing.T) {
		assert.True(t, math.IsInf(LogPriorEdgeWeight(math.Log(2.0)+1e-9, 3), -1))
		assert.False(t, math.IsInf(LogPriorEdgeWeight(math.Log(1.99), 3), 0))
	})

	t.Run("matches the gamma log density", func(t *testing.T) {
		for _, dim := range []int{1, 4, 9} {
			for _, logBeta := range []float64{-3, -0.5, 0, 0.5} {
				gamma := distuv.Gamma{Alpha: 1, Beta: 1 / math.Sqrt(float64(dim))}
				assert.InDelta(t, gamma.LogProb(math.Exp(logBeta)), LogPriorEdgeWeight(logBeta, dim), 1e-12)
			}
		}
	})

	t.Run("rate shrinks with dimension", func(t *testing.T) {
		// The density ratio between a small and a moderate weight is
		// exp(rate*(b2-b1)), so it falls as dim grows.
		ratio := func(dim int) float64 {
			return LogPriorEdgeWeight(math.Log(0.1), dim) - LogPriorEdgeWeight(math.Log(1.5), dim)
		}

		assert.Greater(t, ratio(1), ratio(4))
		assert.Greater(t, ratio(4), ratio(16))
		assert.InDelta(t, 1.4, ratio(1), 1e-12)
		assert.InDelta(t, 0.7, ratio(4), 1e-12)
	})

	t.Run("bad dim", func(t *testing.T) {
		assert.True(t, math.IsInf(LogPriorEdgeWeight(0, 0), -1))
	})
}

func TestLogPriorPartition(t *testing.T) {
	t.Run("single subset is infeasible", func(t *testing.T) {
		cats := mustCategories(t, 2, 2, 2)
		p := mustPartition(t, 3, []int{0, 1, 2})
		assert.True(t, math.IsInf(LogPriorPartition(p, cats), -1))
	})

	t.Run("oversized subgraph is infeasible", func(t *testing.T) {
		cats := mustCategories(t, repeatCards(4, 7)...)
		p := mustPartition(t, 7, []int{0, 1, 2, 3, 4, 5}, []int{6})
		require.Equal(t, 4096, GroupSize(p, cats))
		assert.True(t, math.IsInf(LogPriorPartition(p, cats), -1))

		within := mustPartition(t, 7, []int{0, 1, 2, 3, 4}, []int{5, 6})
		require.Equal(t, 1024, GroupSize(within, cats))
		assert.False(t, math.IsInf(LogPriorPartition(within, cats), 0))
	})

	t.Run("entropy of subset masses", func(t *testing.T) {
		cats := mustCategories(t, 2, 2, 2, 2)
		even := mustPartition(t, 4, []int{0, 1}, []int{2, 3})
		assert.InDelta(t, math.Log(2), LogPriorPartition(even, cats), 1e-12)

		singletons, err := SingletonPartition(4)
		require.NoError(t, err)
		assert.InDelta(t, math.Log(4), LogPriorPartition(singletons, cats), 1e-12)

		skewed := mustPartition(t, 4, []int{0, 1, 2}, []int{3})
		want := -(0.75*math.Log(0.75) + 0.25*math.Log(0.25))
		assert.InDelta(t, want, LogPriorPartition(skewed, cats), 1e-12)
	})

	t.Run("balanced split maximizes the prior", func(t *testing.T) {
		cats := mustCategories(t, repeatCards(3, 6)...)
		balanced := mustPartition(t, 6, []int{0, 1, 2}, []int{3, 4, 5})

		for _, groups := range [][][]int{
			{{0}, {1, 2, 3, 4, 5}},
			{{0, 1}, {2, 3, 4, 5}},
			{{5, 0}, {1, 2, 3, 4}},
		} {
			unbalanced := mustPartition(t, 6, groups...)
			require.False(t, math.IsInf(LogPriorPartition(unbalanced, cats), 0))
			assert.GreaterOrEqual(t, LogPriorPartition(balanced, cats), LogPriorPartition(unbalanced, cats))
		}
	})

	t.Run("subset order does not matter", func(t *testing.T) {
		cats := mustCategories(t, 2, 3, 5, 7)
		a := mustPartition(t, 4, []int{3, 0}, []int{2}, []int{1})
		b := mustPartition(t, 4, []int{1}, []int{2}, []int{0, 3})
		assert.Equal(t, LogPriorPartition(a, cats), LogPriorPartition(b, cats))
	})
}

func TestStateLogPrior(t *testing.T) {
	cats := mustCategories(t, 2, 2, 3, 3)
	p := mustPartition(t, 4, []int{0, 1}, []int{2, 3})
	state := NewState(p, OutputRange{Min: -1, Max: 1})

	want := LogPriorPartition(p, cats) +
		LogPriorKernelAmp(state.LogAmp) +
		LogPriorNoiseVar(state.LogNoiseVar) +
		LogPriorConstMean(state.ConstMean, -1, 1)
	for range state.LogBeta {
		want += LogPriorEdgeWeight(0, 2)
	}

	assert.InDelta(t, want, state.LogPrior(cats, OutputRange{Min: -1, Max: 1}), 1e-12)

	state.LogNoiseVar = 16.5
	assert.True(t, math.IsInf(state.LogPrior(cats, OutputRange{Min: -1, Max: 1}), -1))
}
