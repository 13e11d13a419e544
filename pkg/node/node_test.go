package node

import (
	"errors"
	"slices"
	"testing"

	"github.com/sanonone/pubnet/pkg/core/table"
	"github.com/sanonone/pubnet/pkg/core/types"
)

func authors(t *testing.T) *Node {
	t.Helper()
	n, err := FromColumns(
		table.NewIDColumn("id", []types.ID{20, 10, 30}),
		table.NewStringColumn("name", []string{"Grace", "Ada", "Edsger"}),
		table.NewIntColumn("born", []int64{1906, 1815, 1930}),
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return n
}

func TestIdentityColumn(t *testing.T) {
	n := authors(t)
	if !slices.Equal(n.IDs(), []types.ID{20, 10, 30}) {
		t.Errorf("IDs = %v", n.IDs())
	}
	if !slices.Equal(n.SortedIDs(), []types.ID{10, 20, 30}) {
		t.Errorf("SortedIDs = %v", n.SortedIDs())
	}
	if row, ok := n.Row(10); !ok || row != 1 {
		t.Errorf("Row(10) = %d, %v", row, ok)
	}
	if _, ok := n.Row(99); ok {
		t.Error("Row(99) should not be found")
	}

	_, err := FromColumns(table.NewIDColumn("id", []types.ID{1, 1}))
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("duplicate ids: expected ErrInvalidArgument, got %v", err)
	}
	_, err = FromColumns(table.NewStringColumn("name", []string{"x"}))
	if !errors.Is(err, types.ErrColumnNotFound) {
		t.Errorf("missing id column: expected ErrColumnNotFound, got %v", err)
	}
	_, err = FromColumns(table.NewStringColumn("id", []string{"x"}))
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("string id column: expected ErrInvalidArgument, got %v", err)
	}
}

func TestPlaceholder(t *testing.T) {
	n := Empty()
	if rows, cols := n.Shape(); rows != 0 || cols != 0 {
		t.Errorf("shape = (%d, %d), want (0, 0)", rows, cols)
	}
	got, err := n.SelectByIDs(DefaultIDColumn, types.NewIDSet(1))
	if err != nil || got != n {
		t.Errorf("placeholder selection = %v, %v", got, err)
	}
	if !n.Equal(Empty()) {
		t.Error("placeholders should be equal")
	}
}

func TestSelectByIDs(t *testing.T) {
	n := authors(t)
	got, err := n.SelectByIDs("id", types.NewIDSet(30, 20, 77))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.IDs(), []types.ID{20, 30}) {
		t.Errorf("selected ids = %v, want row order [20 30]", got.IDs())
	}
	if _, ok := got.Row(10); ok {
		t.Error("index still holds a dropped id")
	}
	if n.Len() != 3 {
		t.Error("selection modified the source")
	}
	if _, err := n.SelectByIDs("name", types.NewIDSet(1)); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("non-id column: expected ErrInvalidArgument, got %v", err)
	}
}

func TestSelectMaskAndPredicates(t *testing.T) {
	n := authors(t)
	if _, err := n.SelectMask([]bool{true}); !errors.Is(err, types.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	tests := []struct {
		name string
		pred Predicate
		want []bool
	}{
		{"equals", Equals("name", "Ada"), []bool{false, true, false}},
		{"in", In("born", 1906, 1930), []bool{true, false, true}},
		{"id in", IDIn(types.NewIDSet(10, 30)), []bool{false, true, true}},
	}
	for _, tt := range tests {
		got, err := tt.pred(n)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
	if _, err := Equals("missing", 1)(n); !errors.Is(err, types.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestEqual(t *testing.T) {
	a, b := authors(t), authors(t)
	if !a.Equal(b) {
		t.Error("identical collections should be equal")
	}
	sub, _ := a.SelectRows([]int{0, 1})
	if a.Equal(sub) {
		t.Error("different row counts should not be equal")
	}
	reordered, _ := a.SelectRows([]int{1, 0, 2})
	if a.Equal(reordered) {
		t.Error("row order matters")
	}
}
