// Package types holds the identifier type and error kinds shared by every
// node and edge collection of a PubNet graph.
package types

import (
	"errors"
	"slices"
)

// ID is the value type of every identity column and of both edge endpoints.
// Sharing one type lets ids from different collections be compared directly.
type ID int64

// IDSet is a membership set of identifiers.
type IDSet map[ID]struct{}

// NewIDSet builds a set from a list of ids. Duplicates collapse.
func NewIDSet(ids ...ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is a member of the set.
func (s IDSet) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s IDSet) Add(id ID) {
	s[id] = struct{}{}
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Unique returns ids with duplicates removed, keeping first occurrences in order.
func Unique(ids []ID) []ID {
	seen := make(IDSet, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if seen.Has(id) {
			continue
		}
		seen.Add(id)
		out = append(out, id)
	}
	return out
}

var (
	// ErrColumnNotFound is returned when a column or edge endpoint name is absent.
	ErrColumnNotFound = errors.New("column not found")
	// ErrShapeMismatch is returned when a mask or index list does not fit the row count.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrKeyNotFound is returned when a node type, edge pair or edge key is absent from a graph.
	ErrKeyNotFound = errors.New("key not found")
	// ErrDuplicateNode is returned when adding a node type that already exists.
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrDuplicateEdge is returned when adding an edge key that already exists.
	ErrDuplicateEdge = errors.New("duplicate edge")
	// ErrInvalidArgument is returned for malformed construction input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrFileNotFound is returned when no file matches the expected name and extensions.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnsupportedFormat is returned for unknown file extensions or format names.
	ErrUnsupportedFormat = errors.New("unsupported format")
)
