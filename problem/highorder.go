package problem

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/thalesfsp/graphbo"
)

// HighOrderBinary is the synthetic benchmark of binary variables whose output
// is a sparse sum of interaction terms up to a fixed order.
//
// DataType selects the size: 5(1+t) variables, interactions up to order 3+t,
// and 250*2^(t-1) points. TrainScale takes TrainScale tenths of the points for
// training; the rest are test points.
type HighOrderBinary struct {
	DataType   int
	TrainScale int
	Seed       uint64
}

// Kind implements Instance.
func (h HighOrderBinary) Kind() Kind { return KindHighOrderBinary }

// Name implements Instance.
func (h HighOrderBinary) Name() string {
	return fmt.Sprintf("highorder_binary_t%d_s%d_seed%d", h.DataType, h.TrainScale, h.Seed)
}

// Validate checks the instance parameters.
func (h HighOrderBinary) Validate() error {
	if h.DataType < 1 || h.DataType > 3 {
		return fmt.Errorf("%w: data type must be 1..3, got %d", graphbo.ErrInvalidConfiguration, h.DataType)
	}

	if h.TrainScale < 1 || h.TrainScale > 5 {
		return fmt.Errorf("%w: train scale must be 1..5, got %d", graphbo.ErrInvalidConfiguration, h.TrainScale)
	}

	return nil
}

// NumVariables returns 5(1+DataType).
func (h HighOrderBinary) NumVariables() int { return 5 * (1 + h.DataType) }

// HighestOrder returns 3+DataType.
func (h HighOrderBinary) HighestOrder() int { return 3 + h.DataType }

// NumData returns 250*2^(DataType-1).
func (h HighOrderBinary) NumData() int { return 250 << (h.DataType - 1) }

// NumTrain returns TrainScale * floor(0.1 * NumData).
func (h HighOrderBinary) NumTrain() int { return h.TrainScale * (h.NumData() / 10) }

// Categories implements Instance.
func (h HighOrderBinary) Categories() (graphbo.Categories, error) {
	if err := h.Validate(); err != nil {
		return graphbo.Categories{}, err
	}

	cards := make([]int, h.NumVariables())
	for i := range cards {
		cards[i] = 2
	}

	return graphbo.NewCategories(cards...)
}

// Interaction is one term of the synthetic objective.
type Interaction struct {
	Variables   []int
	Coefficient float64
}

// Generate draws unique random binary inputs and evaluates the random
// interaction function on them.
func (h HighOrderBinary) Generate() (Dataset, []Interaction, error) {
	if err := h.Validate(); err != nil {
		return Dataset{}, nil, err
	}

	root := rand.New(rand.NewPCG(h.Seed, h.Seed+1))
	evalRNG := rand.New(rand.NewPCG(root.Uint64(), root.Uint64()))
	dataRNG := rand.New(rand.NewPCG(root.Uint64(), root.Uint64()))

	terms := randomInteractions(evalRNG, h.NumVariables(), h.HighestOrder())
	inputs := uniqueBinaryInputs(dataRNG, h.NumData(), h.NumVariables())

	obs := make([]Observation, len(inputs))
	for i, x := range inputs {
		obs[i] = Observation{Input: x, Output: EvaluateInteractions(terms, x)}
	}

	n := h.NumTrain()

	return Dataset{Train: obs[:n], Test: obs[n:]}, terms, nil
}

// EvaluateInteractions sums coef * prod(+-1 spins) over the terms.
func EvaluateInteractions(terms []Interaction, x []int) float64 {
	var total float64
	for _, term := range terms {
		spin := 1.0
		for _, v := range term.Variables {
			if x[v] == 0 {
				spin = -spin
			}
		}

		total += term.Coefficient * spin
	}

	return total
}

// randomInteractions draws, for every order 1..highest, as many terms as there
// are variables, each over a random set of distinct variables with a standard
// normal coefficient.
func randomInteractions(rng *rand.Rand, n, highest int) []Interaction {
	coef := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	var terms []Interaction
	for order := 1; order <= highest && order <= n; order++ {
		for t := 0; t < n; t++ {
			vars := rng.Perm(n)[:order]
			terms = append(terms, Interaction{Variables: vars, Coefficient: coef.Rand()})
		}
	}

	return terms
}

// uniqueBinaryInputs draws count distinct binary vectors. count must not
// exceed 2^n.
func uniqueBinaryInputs(rng *rand.Rand, count, n int) [][]int {
	seen := make(map[uint64]bool, count)
	out := make([][]int, 0, count)

	for len(out) < count {
		var code uint64
		x := make([]int, n)
		for v := range x {
			x[v] = rng.IntN(2)
			code = code<<1 | uint64(x[v])
		}

		if seen[code] {
			continue
		}

		seen[code] = true
		out = append(out, x)
	}

	return out
}
