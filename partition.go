package graphbo

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// NewSubset is the destination passed to Partition.Move to put a variable
// into a subset of its own.
const NewSubset = -1

// Partition assigns every variable to exactly one subgraph.
//
// The assignment array is the source of truth; the member lists are derived
// from it. Both are kept in canonical form: members ascend, and subset ids are
// ordered by their smallest member. A Partition is never mutated after
// construction; moves return a new value, so a rejected proposal cannot leave
// a half-updated partition behind.
type Partition struct {
	assign  []int
	members [][]int
}

// NewPartition builds a partition of n variables from explicit groups.
//
// Returns ErrInvalidConfiguration if a group is empty, an index is out of
// range or repeated, or some variable is not covered.
func NewPartition(n int, groups [][]int) (*Partition, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: partition needs at least one variable", ErrInvalidConfiguration)
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for g, group := range groups {
		if len(group) == 0 {
			return nil, fmt.Errorf("%w: subset %d is empty", ErrInvalidConfiguration, g)
		}

		for _, v := range group {
			if v < 0 || v >= n {
				return nil, fmt.Errorf("%w: variable %d out of range [0,%d)", ErrInvalidConfiguration, v, n)
			}

			if assign[v] != -1 {
				return nil, fmt.Errorf("%w: variable %d appears in subsets %d and %d", ErrInvalidConfiguration, v, assign[v], g)
			}

			assign[v] = g
		}
	}

	for v, g := range assign {
		if g == -1 {
			return nil, fmt.Errorf("%w: variable %d is not covered", ErrInvalidConfiguration, v)
		}
	}

	return canonical(assign), nil
}

// PartitionFromAssignment builds a partition from a variable -> label array.
// Labels are arbitrary non-negative integers; only equality matters.
func PartitionFromAssignment(assign []int) (*Partition, error) {
	if len(assign) == 0 {
		return nil, fmt.Errorf("%w: partition needs at least one variable", ErrInvalidConfiguration)
	}

	for v, g := range assign {
		if g < 0 {
			return nil, fmt.Errorf("%w: variable %d has negative label %d", ErrInvalidConfiguration, v, g)
		}
	}

	return canonical(assign), nil
}

// SingletonPartition puts every variable into its own subset.
func SingletonPartition(n int) (*Partition, error) {
	assign := make([]int, n)
	for i := range assign {
		assign[i] = i
	}

	return PartitionFromAssignment(assign)
}

// RandomPartition draws partitions with a uniform number of subsets in
// [2, n] and uniform labels until one has a finite partition prior.
//
// Returns ErrInvalidConfiguration when fewer than two variables exist or no
// feasible partition was found within maxTries draws.
func RandomPartition(rng *rand.Rand, categories Categories, maxTries int) (*Partition, error) {
	n := categories.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least two variables to decompose", ErrInvalidConfiguration)
	}

	assign := make([]int, n)
	for try := 0; try < maxTries; try++ {
		k := 2 + rng.IntN(n-1)
		for v := range assign {
			assign[v] = rng.IntN(k)
		}

		p := canonical(assign)
		if !isNegInf(LogPriorPartition(p, categories)) {
			return p, nil
		}
	}

	return nil, fmt.Errorf("%w: no feasible partition found in %d draws", ErrInvalidConfiguration, maxTries)
}

// canonical relabels subsets by first appearance in variable order and
// rebuilds the member lists.
func canonical(labels []int) *Partition {
	relabel := make(map[int]int)
	assign := make([]int, len(labels))
	members := make([][]int, 0)

	for v, label := range labels {
		id, ok := relabel[label]
		if !ok {
			id = len(members)
			relabel[label] = id
			members = append(members, nil)
		}

		assign[v] = id
		members[id] = append(members[id], v)
	}

	return &Partition{assign: assign, members: members}
}

//////
// Accessors.
//////

// Len returns the number of variables.
func (p *Partition) Len() int { return len(p.assign) }

// NumSubsets returns the number of subgraphs.
func (p *Partition) NumSubsets() int { return len(p.members) }

// SubsetOf returns the id of the subset holding variable v.
func (p *Partition) SubsetOf(v int) int { return p.assign[v] }

// Size returns the number of variables in subset s.
func (p *Partition) Size(s int) int { return len(p.members[s]) }

// Members returns a copy of the variables in subset s, ascending.
func (p *Partition) Members(s int) []int {
	out := make([]int, len(p.members[s]))
	copy(out, p.members[s])

	return out
}

// Subsets returns a copy of all subsets in canonical order.
func (p *Partition) Subsets() [][]int {
	out := make([][]int, len(p.members))
	for s := range p.members {
		out[s] = p.Members(s)
	}

	return out
}

// Assignment returns a copy of the variable -> subset id array.
func (p *Partition) Assignment() []int {
	out := make([]int, len(p.assign))
	copy(out, p.assign)

	return out
}

// Key returns a canonical string form, e.g. "0,2|1|3,4". Equal partitions
// have equal keys.
func (p *Partition) Key() string {
	var b strings.Builder
	for s, members := range p.members {
		if s > 0 {
			b.WriteByte('|')
		}

		for i, v := range members {
			if i > 0 {
				b.WriteByte(',')
			}

			b.WriteString(strconv.Itoa(v))
		}
	}

	return b.String()
}

// String implements fmt.Stringer.
func (p *Partition) String() string { return "{" + p.Key() + "}" }

// Clone returns an independent copy.
func (p *Partition) Clone() *Partition {
	return canonical(p.assign)
}

// Validate checks the disjoint-cover invariant against n variables.
func (p *Partition) Validate(n int) error {
	if p == nil {
		return fmt.Errorf("%w: nil partition", ErrInvalidConfiguration)
	}

	if len(p.assign) != n {
		return fmt.Errorf("%w: partition covers %d variables, want %d", ErrInvalidConfiguration, len(p.assign), n)
	}

	seen := make([]bool, n)
	for s, members := range p.members {
		if len(members) == 0 {
			return fmt.Errorf("%w: subset %d is empty", ErrInvalidConfiguration, s)
		}

		for _, v := range members {
			if v < 0 || v >= n || seen[v] || p.assign[v] != s {
				return fmt.Errorf("%w: variable %d is not covered exactly once", ErrInvalidConfiguration, v)
			}

			seen[v] = true
		}
	}

	for v, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: variable %d is not covered", ErrInvalidConfiguration, v)
		}
	}

	return nil
}

//////
// Moves. Each returns a new partition.
//////

// Move reassigns variable v to subset dest, or to a new singleton subset when
// dest is NewSubset.
func (p *Partition) Move(v, dest int) (*Partition, error) {
	if v < 0 || v >= len(p.assign) {
		return nil, fmt.Errorf("%w: variable %d out of range", ErrInvalidConfiguration, v)
	}

	if dest != NewSubset && (dest < 0 || dest >= len(p.members)) {
		return nil, fmt.Errorf("%w: subset %d out of range", ErrInvalidConfiguration, dest)
	}

	labels := p.Assignment()
	if dest == NewSubset {
		dest = len(p.members)
	}

	labels[v] = dest

	return canonical(labels), nil
}

// Merge joins subsets a and b.
func (p *Partition) Merge(a, b int) (*Partition, error) {
	k := len(p.members)
	if a < 0 || a >= k || b < 0 || b >= k || a == b {
		return nil, fmt.Errorf("%w: cannot merge subsets %d and %d of %d", ErrInvalidConfiguration, a, b, k)
	}

	labels := p.Assignment()
	for _, v := range p.members[b] {
		labels[v] = a
	}

	return canonical(labels), nil
}

// Split moves the members of subset s flagged in mask into a new subset.
// mask is aligned with Members(s) and must flag at least one member but not
// all of them.
func (p *Partition) Split(s int, mask []bool) (*Partition, error) {
	if s < 0 || s >= len(p.members) {
		return nil, fmt.Errorf("%w: subset %d out of range", ErrInvalidConfiguration, s)
	}

	members := p.members[s]
	if len(mask) != len(members) {
		return nil, fmt.Errorf("%w: split mask has %d entries, subset has %d", ErrInvalidConfiguration, len(mask), len(members))
	}

	moved := 0
	labels := p.Assignment()
	for i, v := range members {
		if mask[i] {
			labels[v] = len(p.members)
			moved++
		}
	}

	if moved == 0 || moved == len(members) {
		return nil, fmt.Errorf("%w: split of subset %d must leave both sides non-empty", ErrInvalidConfiguration, s)
	}

	return canonical(labels), nil
}
