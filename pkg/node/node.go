// Package node implements the node collection of a PubNet graph: one record
// table per node type with a designated identity column.
package node

import (
	"fmt"
	"slices"

	"github.com/sanonone/pubnet/pkg/core/table"
	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/tidwall/btree"
)

// DefaultIDColumn is the conventional name of the identity column.
const DefaultIDColumn = "id"

// Node is an immutable node collection. Every selection returns a new Node.
type Node struct {
	data  *table.Table
	idCol string
	// id -> row. Built once; Node values are never mutated afterwards.
	index *btree.Map[types.ID, int]
}

// Empty returns a placeholder collection with shape (0, 0).
func Empty() *Node {
	return &Node{data: table.Empty(), idCol: DefaultIDColumn, index: new(btree.Map[types.ID, int])}
}

// New wraps t using the default identity column name.
func New(t *table.Table) (*Node, error) {
	return NewWithID(t, DefaultIDColumn)
}

// NewWithID wraps t, designating idColumn as the identity column.
// A table without columns is accepted as a placeholder.
func NewWithID(t *table.Table, idColumn string) (*Node, error) {
	if t == nil {
		return Empty(), nil
	}
	n := &Node{data: t, idCol: idColumn, index: new(btree.Map[types.ID, int])}
	if _, cols := t.Shape(); cols == 0 {
		return n, nil
	}
	col, err := t.Column(idColumn)
	if err != nil {
		return nil, fmt.Errorf("identity column: %w", err)
	}
	ids, err := table.IDs(col)
	if err != nil {
		return nil, err
	}
	for row, id := range ids {
		if _, dup := n.index.Set(id, row); dup {
			return nil, fmt.Errorf("%w: duplicate id %d in column %q", types.ErrInvalidArgument, id, idColumn)
		}
	}
	return n, nil
}

// FromColumns is a convenience for building a node collection in code.
func FromColumns(columns ...table.Column) (*Node, error) {
	t, err := table.New(columns...)
	if err != nil {
		return nil, err
	}
	return New(t)
}

// Table returns the underlying record table.
func (n *Node) Table() *table.Table { return n.data }

// IDColumn returns the name of the identity column.
func (n *Node) IDColumn() string { return n.idCol }

// Columns returns the column names in order.
func (n *Node) Columns() []string { return n.data.Columns() }

// Get returns a column by name.
func (n *Node) Get(column string) (table.Column, error) {
	return n.data.Column(column)
}

// Shape returns (rows, columns).
func (n *Node) Shape() (int, int) { return n.data.Shape() }

// Len returns the number of rows.
func (n *Node) Len() int { return n.data.Len() }

// IDs returns the identity column in row order. A placeholder has no ids.
func (n *Node) IDs() []types.ID {
	col, err := n.data.Column(n.idCol)
	if err != nil {
		return nil
	}
	ids, _ := table.IDs(col)
	return ids
}

// SortedIDs returns the identifiers in ascending order.
func (n *Node) SortedIDs() []types.ID {
	out := make([]types.ID, 0, n.index.Len())
	n.index.Scan(func(id types.ID, _ int) bool {
		out = append(out, id)
		return true
	})
	return out
}

// Row returns the row holding id.
func (n *Node) Row(id types.ID) (int, bool) {
	return n.index.Get(id)
}

// SelectMask keeps the rows where mask is true.
func (n *Node) SelectMask(mask []bool) (*Node, error) {
	t, err := n.data.SelectMask(mask)
	if err != nil {
		return nil, err
	}
	return n.rewrap(t)
}

// SelectRows keeps the listed rows.
func (n *Node) SelectRows(rows []int) (*Node, error) {
	t, err := n.data.SelectRows(rows)
	if err != nil {
		return nil, err
	}
	return n.rewrap(t)
}

// SelectByIDs keeps rows whose value in column is a member of ids, in row
// order. Selection on the identity column goes through the id index.
// The placeholder collection selects to itself.
func (n *Node) SelectByIDs(column string, ids types.IDSet) (*Node, error) {
	if _, cols := n.data.Shape(); cols == 0 {
		return n, nil
	}
	if column == n.idCol {
		rows := make([]int, 0, len(ids))
		for id := range ids {
			if row, ok := n.Row(id); ok {
				rows = append(rows, row)
			}
		}
		slices.Sort(rows)
		return n.SelectRows(rows)
	}
	col, err := n.data.Column(column)
	if err != nil {
		return nil, err
	}
	values, err := table.IDs(col)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(values))
	for i, v := range values {
		mask[i] = ids.Has(v)
	}
	return n.SelectMask(mask)
}

func (n *Node) rewrap(t *table.Table) (*Node, error) {
	return NewWithID(t, n.idCol)
}

// Equal reports whether both collections have the same columns and values
// in the same order.
func (n *Node) Equal(o *Node) bool {
	if o == nil {
		return false
	}
	return n.idCol == o.idCol && n.data.Equal(o.data)
}
