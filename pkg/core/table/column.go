package table

import (
	"fmt"
	"math"
	"strconv"

	"github.com/sanonone/pubnet/pkg/core/types"
)

// Kind is the value type of a column.
type Kind int

const (
	KindID Kind = iota
	KindInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// ParseKind maps a header type token to a Kind. Empty means string.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "id", "ID":
		return KindID, nil
	case "int", "long", "int64":
		return KindInt, nil
	case "float", "double", "float64":
		return KindFloat, nil
	case "", "string", "str":
		return KindString, nil
	}
	return 0, fmt.Errorf("%w: column kind %q", types.ErrInvalidArgument, s)
}

// Column is one named, typed column of a record table.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	// Value returns the cell at row i as ID, int64, float64 or string.
	Value(i int) any
	// Format renders row i for delimited text.
	Format(i int) string
	// Take returns a new column holding rows in the given order.
	Take(rows []int) Column
	// Rename returns the same values under another name.
	Rename(name string) Column
	Equal(other Column) bool
}

// Vector is the concrete Column over a slice of T.
type Vector[T comparable] struct {
	name   string
	kind   Kind
	values []T
}

// NewIDColumn builds an identifier column.
func NewIDColumn(name string, values []types.ID) *Vector[types.ID] {
	return &Vector[types.ID]{name: name, kind: KindID, values: values}
}

// NewIntColumn builds an integer column.
func NewIntColumn(name string, values []int64) *Vector[int64] {
	return &Vector[int64]{name: name, kind: KindInt, values: values}
}

// NewFloatColumn builds a float column.
func NewFloatColumn(name string, values []float64) *Vector[float64] {
	return &Vector[float64]{name: name, kind: KindFloat, values: values}
}

// NewStringColumn builds a string column.
func NewStringColumn(name string, values []string) *Vector[string] {
	return &Vector[string]{name: name, kind: KindString, values: values}
}

func (v *Vector[T]) Name() string { return v.name }
func (v *Vector[T]) Kind() Kind   { return v.kind }
func (v *Vector[T]) Len() int     { return len(v.values) }
func (v *Vector[T]) Value(i int) any {
	return v.values[i]
}

// Values exposes the backing slice. Callers must not modify it.
func (v *Vector[T]) Values() []T { return v.values }

func (v *Vector[T]) Format(i int) string {
	switch x := any(v.values[i]).(type) {
	case types.ID:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	}
	return fmt.Sprint(v.values[i])
}

func (v *Vector[T]) Take(rows []int) Column {
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = v.values[r]
	}
	return &Vector[T]{name: v.name, kind: v.kind, values: out}
}

func (v *Vector[T]) Rename(name string) Column {
	return &Vector[T]{name: name, kind: v.kind, values: v.values}
}

func (v *Vector[T]) Equal(other Column) bool {
	o, ok := other.(*Vector[T])
	if !ok || o.name != v.name || o.kind != v.kind || len(o.values) != len(v.values) {
		return false
	}
	for i := range v.values {
		if !sameValue(v.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

// sameValue treats two NaNs as equal so tables survive a save/load cycle.
func sameValue[T comparable](a, b T) bool {
	if a == b {
		return true
	}
	fa, ok := any(a).(float64)
	if !ok {
		return false
	}
	fb := any(b).(float64)
	return math.IsNaN(fa) && math.IsNaN(fb)
}

// IDs returns the values of an identifier column.
func IDs(c Column) ([]types.ID, error) {
	v, ok := c.(*Vector[types.ID])
	if !ok {
		return nil, fmt.Errorf("%w: column %q is %s, not id", types.ErrInvalidArgument, c.Name(), c.Kind())
	}
	return v.values, nil
}

// Coerce converts a query value to the representation used by columns of kind k.
func Coerce(k Kind, value any) (any, error) {
	switch k {
	case KindID:
		switch x := value.(type) {
		case types.ID:
			return x, nil
		case int:
			return types.ID(x), nil
		case int64:
			return types.ID(x), nil
		case int32:
			return types.ID(x), nil
		}
	case KindInt:
		switch x := value.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case types.ID:
			return int64(x), nil
		}
	case KindFloat:
		switch x := value.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		}
	case KindString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: value %v (%T) does not fit a %s column", types.ErrInvalidArgument, value, value, k)
}

// Parse converts a delimited-text cell into a value of kind k.
func Parse(k Kind, s string) (any, error) {
	switch k {
	case KindID:
		n, err := strconv.ParseInt(s, 10, 64)
		return types.ID(n), err
	case KindInt:
		return strconv.ParseInt(s, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

// Builder accumulates cells of one kind and produces a Column.
type Builder struct {
	name    string
	kind    Kind
	ids     []types.ID
	ints    []int64
	floats  []float64
	strings []string
}

// NewBuilder returns an empty builder for a column named name.
func NewBuilder(name string, kind Kind) *Builder {
	return &Builder{name: name, kind: kind}
}

// AppendText parses s and appends it.
func (b *Builder) AppendText(s string) error {
	v, err := Parse(b.kind, s)
	if err != nil {
		return fmt.Errorf("column %q: %w", b.name, err)
	}
	b.Append(v)
	return nil
}

// Append adds a value that already has the builder's representation.
func (b *Builder) Append(v any) {
	switch b.kind {
	case KindID:
		b.ids = append(b.ids, v.(types.ID))
	case KindInt:
		b.ints = append(b.ints, v.(int64))
	case KindFloat:
		b.floats = append(b.floats, v.(float64))
	default:
		b.strings = append(b.strings, v.(string))
	}
}

// AppendInt appends an integer to an id or int builder.
func (b *Builder) AppendInt(v int64) error {
	switch b.kind {
	case KindID:
		b.ids = append(b.ids, types.ID(v))
	case KindInt:
		b.ints = append(b.ints, v)
	default:
		return fmt.Errorf("%w: integer value in %s column %q", types.ErrInvalidArgument, b.kind, b.name)
	}
	return nil
}

// AppendFloat appends to a float builder.
func (b *Builder) AppendFloat(v float64) error {
	if b.kind != KindFloat {
		return fmt.Errorf("%w: float value in %s column %q", types.ErrInvalidArgument, b.kind, b.name)
	}
	b.floats = append(b.floats, v)
	return nil
}

// AppendString appends to a string builder.
func (b *Builder) AppendString(v string) error {
	if b.kind != KindString {
		return fmt.Errorf("%w: string value in %s column %q", types.ErrInvalidArgument, b.kind, b.name)
	}
	b.strings = append(b.strings, v)
	return nil
}

// Column returns the accumulated column.
func (b *Builder) Column() Column {
	switch b.kind {
	case KindID:
		return NewIDColumn(b.name, orEmpty(b.ids))
	case KindInt:
		return NewIntColumn(b.name, orEmpty(b.ints))
	case KindFloat:
		return NewFloatColumn(b.name, orEmpty(b.floats))
	default:
		return NewStringColumn(b.name, orEmpty(b.strings))
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
