// Package edge implements the edge collections of a PubNet graph.
//
// An edge collection holds directed (start, end) id pairs between two node
// types. Two interchangeable backends exist: Dense keeps a flat N×2 array and
// answers everything with array scans; Compressed keeps a typed multigraph and
// additionally supports shortest-path queries over a lazily built
// co-occurrence graph.
package edge

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/sanonone/pubnet/pkg/core/types"
)

// KeyDelim joins the two sorted type names of a canonical edge key.
const KeyDelim = "-"

// Key returns the order-independent key for the pair of node types.
func Key(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + KeyDelim + b
}

// Parts splits a canonical key into its two type names.
func Parts(key string) (string, string, error) {
	a, b, ok := strings.Cut(key, KeyDelim)
	if !ok || a == "" || b == "" || strings.Contains(b, KeyDelim) {
		return "", "", fmt.Errorf("%w: malformed edge key %q", types.ErrInvalidArgument, key)
	}
	return a, b, nil
}

// Backend names an edge representation.
type Backend string

const (
	BackendDense      Backend = "dense"
	BackendCompressed Backend = "compressed"
)

// ParseBackend accepts the backend names used in configuration files.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "", "dense", "numpy":
		return BackendDense, nil
	case "compressed", "igraph":
		return BackendCompressed, nil
	}
	return "", fmt.Errorf("%w: edge backend %q", types.ErrInvalidArgument, s)
}

// Overlap is the number of end-type neighbors shared by two start-type ids.
type Overlap struct {
	A     types.ID
	B     types.ID
	Count int
}

// PathLength is the derived-graph distance between two start-type ids.
type PathLength struct {
	A        types.ID
	B        types.ID
	Distance float64
}

// Collection is the capability shared by both backends. The graph container
// depends only on this interface.
type Collection interface {
	// StartID and EndID name the node types of column 0 and column 1.
	StartID() string
	EndID() string
	Backend() Backend

	// Shape returns (edge count, 2).
	Shape() (int, int)
	Len() int

	// Get returns the ids of one endpoint column in edge order.
	Get(column string) ([]types.ID, error)
	// IsIn reports, per edge, whether the column's id is in ids.
	IsIn(column string, ids types.IDSet) ([]bool, error)
	// Pairs returns every edge as (start, end) in edge order.
	Pairs() [][2]types.ID

	SelectMask(mask []bool) (Collection, error)
	SelectRows(rows []int) (Collection, error)

	// Overlap lists, for every pair of start-type ids sharing at least one
	// end-type neighbor, how many they share.
	Overlap() []Overlap
	// Distribution counts edges per distinct id of column.
	Distribution(column string) (map[types.ID]int, error)

	// Clone returns an independent copy. Cached derived state is not carried over.
	Clone() Collection
	Equal(other Collection) bool
}

// PathFinder is implemented by backends that answer shortest-path queries.
type PathFinder interface {
	ShortestPath(ids []types.ID) []PathLength
}

// New builds a collection of the given backend from (start, end) pairs.
func New(backend Backend, startID, endID string, pairs [][2]types.ID) (Collection, error) {
	switch backend {
	case BackendDense, "":
		return NewDense(startID, endID, pairs)
	case BackendCompressed:
		return NewCompressed(startID, endID, pairs)
	}
	return nil, fmt.Errorf("%w: edge backend %q", types.ErrInvalidArgument, backend)
}

// FromArray builds a collection from a raw N×2 array. names must hold exactly
// the start and end type names.
func FromArray(backend Backend, data [][2]types.ID, names ...string) (Collection, error) {
	if len(names) != 2 {
		return nil, fmt.Errorf("%w: raw edge array needs start and end names, got %d", types.ErrInvalidArgument, len(names))
	}
	return New(backend, names[0], names[1], data)
}

// Convert returns c in the requested backend. It returns c itself when the
// backend already matches.
func Convert(c Collection, backend Backend) (Collection, error) {
	if c.Backend() == backend {
		return c, nil
	}
	return New(backend, c.StartID(), c.EndID(), c.Pairs())
}

// Equal compares two collections of any backend: same endpoint names and the
// same (start, end) rows in the same order.
func Equal(a, b Collection) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.StartID() != b.StartID() || a.EndID() != b.EndID() || a.Len() != b.Len() {
		return false
	}
	return slices.Equal(a.Pairs(), b.Pairs())
}

func checkNames(startID, endID string) error {
	if startID == "" || endID == "" {
		return fmt.Errorf("%w: edge endpoints must be named (start %q, end %q)", types.ErrInvalidArgument, startID, endID)
	}
	return nil
}

// columnIndex resolves an endpoint name. When both endpoints share a type the
// start column wins.
func columnIndex(startID, endID, column string) (int, error) {
	switch column {
	case startID:
		return 0, nil
	case endID:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q is not one of %q or %q", types.ErrColumnNotFound, column, startID, endID)
}

func checkRows(rows []int, n int) error {
	for _, r := range rows {
		if r < 0 || r >= n {
			return fmt.Errorf("%w: row %d out of range [0,%d)", types.ErrShapeMismatch, r, n)
		}
	}
	return nil
}

func checkMask(mask []bool, n int) error {
	if len(mask) != n {
		return fmt.Errorf("%w: mask has %d entries, collection has %d edges", types.ErrShapeMismatch, len(mask), n)
	}
	return nil
}

// pairOverlaps counts shared neighbors for every pair of start ids. order
// fixes the output order; neighbors maps each start id to its distinct end ids.
func pairOverlaps(order []types.ID, neighbors map[types.ID][]types.ID) []Overlap {
	pos := make(map[types.ID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	byEnd := make(map[types.ID][]int)
	for _, s := range order {
		for _, e := range neighbors[s] {
			byEnd[e] = append(byEnd[e], pos[s])
		}
	}

	counts := make(map[[2]int]int)
	for _, starts := range byEnd {
		for i := 0; i < len(starts); i++ {
			for j := i + 1; j < len(starts); j++ {
				a, b := starts[i], starts[j]
				if a > b {
					a, b = b, a
				}
				counts[[2]int{a, b}]++
			}
		}
	}

	keys := make([][2]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	out := make([]Overlap, len(keys))
	for i, k := range keys {
		out[i] = Overlap{A: order[k[0]], B: order[k[1]], Count: counts[k]}
	}
	return out
}
