package graphbo

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Categories is the read-only cardinality of every categorical variable, in
// variable order. The zero value has no variables.
type Categories struct {
	cards []int
}

// NewCategories validates and copies the cardinalities.
//
// Type Parameter:
//   - T: Any integer type the caller keeps its problem metadata in
//
// Parameters:
// - cards: Number of levels of each variable, in variable order
//
// Returns:
// - Categories: Immutable category model
// - error: ErrInvalidConfiguration if there are no variables or any
// cardinality is below 2
//
// Usage example:
//
//	cats, err := NewCategories(2, 2, 3, 5)
//	if err != nil {
//	    return err
//	}
func NewCategories[T constraints.Integer](cards ...T) (Categories, error) {
	if len(cards) == 0 {
		return Categories{}, fmt.Errorf("%w: no variables", ErrInvalidConfiguration)
	}

	copied := make([]int, len(cards))
	for i, c := range cards {
		if c < 2 {
			return Categories{}, fmt.Errorf("%w: variable %d has %d levels, need at least 2", ErrInvalidConfiguration, i, c)
		}

		if uint64(c) > math.MaxInt32 {
			return Categories{}, fmt.Errorf("%w: variable %d has too many levels (%d)", ErrInvalidConfiguration, i, c)
		}

		copied[i] = int(c)
	}

	return Categories{cards: copied}, nil
}

// Len returns the number of variables.
func (c Categories) Len() int { return len(c.cards) }

// At returns the cardinality of variable i.
func (c Categories) At(i int) int { return c.cards[i] }

// Values returns a copy of all cardinalities.
func (c Categories) Values() []int {
	out := make([]int, len(c.cards))
	copy(out, c.cards)

	return out
}

// SubsetSize returns the size of the Cartesian product state space spanned by
// the given variables. The product saturates at math.MaxInt instead of
// wrapping around.
func SubsetSize(members []int, categories Categories) int {
	size := 1
	for _, v := range members {
		size = saturatingMul(size, categories.At(v))
	}

	return size
}

// GroupSize returns the tractability statistic of a partition: the largest
// per-subset state-space size. Exact inference on a subgraph costs a function
// of its own product only, so the most expensive subgraph decides whether the
// decomposition is tractable.
//
// Parameters:
// - partition: Partition to measure (must cover categories.Len() variables)
// - categories: Cardinalities of the variables
//
// Returns:
// - int: max over subsets of the product of member cardinalities
//
// Usage example:
//
//	cats, _ := NewCategories(4, 4, 4, 4, 4, 4)
//	p, _ := NewPartition(6, [][]int{{0, 1, 2, 3, 4}, {5}})
//	GroupSize(p, cats) // 1024
func GroupSize(partition *Partition, categories Categories) int {
	largest := 0
	for _, subset := range partition.members {
		if size := SubsetSize(subset, categories); size > largest {
			largest = size
		}
	}

	return largest
}

// Tractable reports whether GroupSize stays within GraphSizeLimit.
func Tractable(partition *Partition, categories Categories) bool {
	return GroupSize(partition, categories) <= GraphSizeLimit
}
