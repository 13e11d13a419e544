// Package table implements the record table behind every node collection:
// an ordered list of named, typed, equal-length columns.
package table

import (
	"fmt"

	"github.com/sanonone/pubnet/pkg/core/types"
)

// Table is an immutable set of equal-length columns.
// Selection methods return new tables and never touch the receiver.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
}

// New builds a table. All columns must have the same length and unique names.
func New(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d rows, expected %d", types.ErrShapeMismatch, c.Name(), c.Len(), t.rows)
		}
		if _, dup := t.index[c.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", types.ErrInvalidArgument, c.Name())
		}
		t.index[c.Name()] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// Empty returns a table with no rows and no columns.
func Empty() *Table {
	return &Table{index: map[string]int{}}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name()
	}
	return names
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrColumnNotFound, name)
	}
	return t.columns[i], nil
}

// ColumnAt returns the i-th column.
func (t *Table) ColumnAt(i int) Column { return t.columns[i] }

// Shape returns (rows, columns).
func (t *Table) Shape() (int, int) { return t.rows, len(t.columns) }

// Len returns the row count.
func (t *Table) Len() int { return t.rows }

// SelectMask keeps rows where mask is true.
func (t *Table) SelectMask(mask []bool) (*Table, error) {
	if len(mask) != t.rows {
		return nil, fmt.Errorf("%w: mask has %d entries, table has %d rows", types.ErrShapeMismatch, len(mask), t.rows)
	}
	return t.take(MaskToRows(mask)), nil
}

// SelectRows keeps the given rows, in the given order.
func (t *Table) SelectRows(rows []int) (*Table, error) {
	for _, r := range rows {
		if r < 0 || r >= t.rows {
			return nil, fmt.Errorf("%w: row %d out of range [0,%d)", types.ErrShapeMismatch, r, t.rows)
		}
	}
	return t.take(rows), nil
}

func (t *Table) take(rows []int) *Table {
	out := &Table{
		columns: make([]Column, len(t.columns)),
		index:   t.index,
		rows:    len(rows),
	}
	for i, c := range t.columns {
		out.columns[i] = c.Take(rows)
	}
	return out
}

// Match returns a mask of rows whose column equals value.
func (t *Table) Match(column string, value any) ([]bool, error) {
	return t.MatchAny(column, value)
}

// MatchAny returns a mask of rows whose column equals any of values.
func (t *Table) MatchAny(column string, values ...any) ([]bool, error) {
	c, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	want := make(map[any]struct{}, len(values))
	for _, v := range values {
		cv, err := Coerce(c.Kind(), v)
		if err != nil {
			return nil, err
		}
		want[cv] = struct{}{}
	}
	mask := make([]bool, c.Len())
	for i := range mask {
		_, mask[i] = want[c.Value(i)]
	}
	return mask, nil
}

// Equal reports whether both tables have the same columns, in the same
// order, holding the same values row for row.
func (t *Table) Equal(o *Table) bool {
	if o == nil || t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for i, c := range t.columns {
		if !c.Equal(o.columns[i]) {
			return false
		}
	}
	return true
}

// MaskToRows converts a boolean mask into the list of true positions.
func MaskToRows(mask []bool) []int {
	rows := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			rows = append(rows, i)
		}
	}
	return rows
}
