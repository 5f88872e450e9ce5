// Package problem describes the problem instances whose observations feed the
// graphbo sampler: which categorical space they live in and how their data is
// produced or loaded.
package problem

import (
	"fmt"

	"github.com/thalesfsp/graphbo"
)

// Kind enumerates the supported problem instances.
type Kind int

const (
	KindHighOrderBinary Kind = iota + 1
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindHighOrderBinary:
		return "highorder_binary"
	case KindCustom:
		return "custom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a name back to its Kind.
func ParseKind(name string) (Kind, error) {
	for _, k := range []Kind{KindHighOrderBinary, KindCustom} {
		if k.String() == name {
			return k, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown problem kind %q", graphbo.ErrInvalidConfiguration, name)
}

// Instance is one problem variant, carrying its own parameters.
type Instance interface {
	Kind() Kind
	Name() string
	Categories() (graphbo.Categories, error)
}

// Custom is a problem whose data comes from elsewhere; it only fixes the
// cardinalities.
type Custom struct {
	Label string
	Cards []int
}

// Kind implements Instance.
func (c Custom) Kind() Kind { return KindCustom }

// Name implements Instance.
func (c Custom) Name() string {
	if c.Label == "" {
		return "custom"
	}

	return c.Label
}

// Categories implements Instance.
func (c Custom) Categories() (graphbo.Categories, error) {
	return graphbo.NewCategories(c.Cards...)
}
