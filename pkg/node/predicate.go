package node

import (
	"github.com/sanonone/pubnet/pkg/core/types"
)

// Predicate selects rows of a node collection, returning a mask aligned to
// its rows.
type Predicate func(n *Node) ([]bool, error)

// Equals matches rows whose column equals value.
func Equals(column string, value any) Predicate {
	return func(n *Node) ([]bool, error) {
		return n.data.Match(column, value)
	}
}

// In matches rows whose column equals any of values.
func In(column string, values ...any) Predicate {
	return func(n *Node) ([]bool, error) {
		return n.data.MatchAny(column, values...)
	}
}

// IDIn matches rows whose identifier is in ids.
func IDIn(ids types.IDSet) Predicate {
	return func(n *Node) ([]bool, error) {
		got := n.IDs()
		mask := make([]bool, len(got))
		for i, id := range got {
			mask[i] = ids.Has(id)
		}
		return mask, nil
	}
}
