package table

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/sanonone/pubnet/pkg/core/types"
)

func sample(t *testing.T) *Table {
	t.Helper()
	tbl, err := New(
		NewIDColumn("id", []types.ID{5, 3, 9}),
		NewStringColumn("name", []string{"a", "b", "c"}),
		NewFloatColumn("w", []float64{0.5, math.NaN(), 2}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tbl
}

func TestNewValidatesShape(t *testing.T) {
	_, err := New(NewIDColumn("id", []types.ID{1, 2}), NewIntColumn("n", []int64{1}))
	if !errors.Is(err, types.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	_, err = New(NewIDColumn("id", nil), NewIntColumn("id", nil))
	if !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for duplicate names, got %v", err)
	}
	if rows, cols := Empty().Shape(); rows != 0 || cols != 0 {
		t.Errorf("Empty shape = (%d, %d)", rows, cols)
	}
}

func TestColumnLookup(t *testing.T) {
	tbl := sample(t)
	if !slices.Equal(tbl.Columns(), []string{"id", "name", "w"}) {
		t.Errorf("Columns = %v", tbl.Columns())
	}
	if _, err := tbl.Column("year"); !errors.Is(err, types.ErrColumnNotFound) {
		t.Errorf("expected ErrColumnNotFound, got %v", err)
	}
}

func TestSelection(t *testing.T) {
	tbl := sample(t)

	got, err := tbl.SelectMask([]bool{true, false, true})
	if err != nil {
		t.Fatal(err)
	}
	ids, _ := got.Column("id")
	if v, _ := IDs(ids); !slices.Equal(v, []types.ID{5, 9}) {
		t.Errorf("mask selection ids = %v", v)
	}
	if _, err := tbl.SelectMask([]bool{true}); !errors.Is(err, types.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	got, err = tbl.SelectRows([]int{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	names, _ := got.Column("name")
	if names.Value(0) != "c" || names.Value(1) != "a" {
		t.Errorf("row selection order lost: %v, %v", names.Value(0), names.Value(1))
	}
	if _, err := tbl.SelectRows([]int{3}); !errors.Is(err, types.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	// The source table is unchanged.
	if tbl.Len() != 3 {
		t.Errorf("source table has %d rows", tbl.Len())
	}
}

func TestMatch(t *testing.T) {
	tbl := sample(t)
	mask, err := tbl.MatchAny("id", 3, int64(9))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(mask, []bool{false, true, true}) {
		t.Errorf("MatchAny = %v", mask)
	}
	if _, err := tbl.Match("name", 3); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("int against string column: expected ErrInvalidArgument, got %v", err)
	}
	if got := MaskToRows([]bool{false, true, true}); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("MaskToRows = %v", got)
	}
}

func TestEqualTreatsNaNAsEqual(t *testing.T) {
	if !sample(t).Equal(sample(t)) {
		t.Error("identical tables should be equal")
	}
	renamed, _ := New(
		NewIDColumn("id", []types.ID{5, 3, 9}),
		NewStringColumn("label", []string{"a", "b", "c"}),
		NewFloatColumn("w", []float64{0.5, math.NaN(), 2}),
	)
	if sample(t).Equal(renamed) {
		t.Error("different column names should not be equal")
	}
}

func TestBuilder(t *testing.T) {
	b := NewBuilder("n", KindInt)
	if err := b.AppendText("42"); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendText("x"); err == nil {
		t.Error("non-numeric text accepted by int builder")
	}
	if err := b.AppendFloat(1.5); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	c := b.Column()
	if c.Len() != 1 || c.Value(0) != int64(42) || c.Format(0) != "42" {
		t.Errorf("built column %v", c)
	}

	if k, err := ParseKind("double"); err != nil || k != KindFloat {
		t.Errorf("ParseKind(double) = %v, %v", k, err)
	}
	if _, err := ParseKind("blob"); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
