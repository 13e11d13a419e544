package edge

import (
	"fmt"

	"github.com/sanonone/pubnet/pkg/core/types"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"
)

// Side tells which endpoint type a vertex belongs to.
type Side uint8

const (
	SideStart Side = iota
	SideEnd
)

// Vertex is a node of the compressed graph: a typed wrapper around an
// original identifier.
type Vertex struct {
	id    int64
	Side  Side
	Value types.ID
}

// ID implements graph.Node.
func (v Vertex) ID() int64 { return v.id }

// Compressed stores edges as a typed multigraph. Vertex i of the graph is
// vertices[i]; lines keeps edge order as (start vertex, end vertex) pairs.
// Everything except the derived graph is immutable after construction.
type Compressed struct {
	startID string
	endID   string

	g        *multi.UndirectedGraph
	vertices []Vertex
	lookup   [2]map[types.ID]int64
	lines    [][2]int64

	// Unbuilt while nil. Private to this instance, never shared by Clone.
	derived *derivedGraph
}

// NewCompressed builds the typed graph from (start, end) pairs. Vertex ids are
// assigned in order of first appearance.
func NewCompressed(startID, endID string, pairs [][2]types.ID) (*Compressed, error) {
	if err := checkNames(startID, endID); err != nil {
		return nil, err
	}
	c := newCompressed(startID, endID, len(pairs))
	for _, p := range pairs {
		s := c.vertexFor(SideStart, p[0])
		e := c.vertexFor(SideEnd, p[1])
		c.addLine(s, e)
	}
	return c, nil
}

// NewCompressedGraph rebuilds a collection from a serialized vertex table and
// edge list, keeping vertex numbering.
func NewCompressedGraph(startID, endID string, vertices []Vertex, lines [][2]int64) (*Compressed, error) {
	if err := checkNames(startID, endID); err != nil {
		return nil, err
	}
	c := newCompressed(startID, endID, len(lines))
	for i, v := range vertices {
		if v.Side > SideEnd {
			return nil, fmt.Errorf("%w: vertex %d has unknown side %d", types.ErrInvalidArgument, i, v.Side)
		}
		if _, dup := c.lookup[v.Side][v.Value]; dup {
			return nil, fmt.Errorf("%w: vertex %d repeats id %d", types.ErrInvalidArgument, i, v.Value)
		}
		v.id = int64(i)
		c.vertices = append(c.vertices, v)
		c.lookup[v.Side][v.Value] = v.id
		c.g.AddNode(v)
	}
	for i, l := range lines {
		if l[0] < 0 || l[1] < 0 || l[0] >= int64(len(vertices)) || l[1] >= int64(len(vertices)) {
			return nil, fmt.Errorf("%w: edge %d references a missing vertex", types.ErrInvalidArgument, i)
		}
		if c.vertices[l[0]].Side != SideStart || c.vertices[l[1]].Side != SideEnd {
			return nil, fmt.Errorf("%w: edge %d does not join a start vertex to an end vertex", types.ErrInvalidArgument, i)
		}
		c.addLine(l[0], l[1])
	}
	return c, nil
}

func newCompressed(startID, endID string, edges int) *Compressed {
	return &Compressed{
		startID: startID,
		endID:   endID,
		g:       multi.NewUndirectedGraph(),
		lookup:  [2]map[types.ID]int64{{}, {}},
		lines:   make([][2]int64, 0, edges),
	}
}

func (c *Compressed) vertexFor(side Side, value types.ID) int64 {
	if id, ok := c.lookup[side][value]; ok {
		return id
	}
	v := Vertex{id: int64(len(c.vertices)), Side: side, Value: value}
	c.vertices = append(c.vertices, v)
	c.lookup[side][value] = v.id
	c.g.AddNode(v)
	return v.id
}

func (c *Compressed) addLine(s, e int64) {
	c.g.SetLine(c.g.NewLine(c.vertices[s], c.vertices[e]))
	c.lines = append(c.lines, [2]int64{s, e})
}

func (c *Compressed) StartID() string   { return c.startID }
func (c *Compressed) EndID() string     { return c.endID }
func (c *Compressed) Backend() Backend  { return BackendCompressed }
func (c *Compressed) Len() int          { return len(c.lines) }
func (c *Compressed) Shape() (int, int) { return len(c.lines), 2 }

// Vertices returns the vertex table. Callers must not modify it.
func (c *Compressed) Vertices() []Vertex { return c.vertices }

// Lines returns edges as vertex index pairs. Callers must not modify it.
func (c *Compressed) Lines() [][2]int64 { return c.lines }

func (c *Compressed) Get(column string) ([]types.ID, error) {
	col, err := columnIndex(c.startID, c.endID, column)
	if err != nil {
		return nil, err
	}
	out := make([]types.ID, len(c.lines))
	for i, l := range c.lines {
		out[i] = c.vertices[l[col]].Value
	}
	return out, nil
}

func (c *Compressed) IsIn(column string, ids types.IDSet) ([]bool, error) {
	col, err := columnIndex(c.startID, c.endID, column)
	if err != nil {
		return nil, err
	}
	// Resolve membership once per vertex rather than once per edge.
	member := make([]bool, len(c.vertices))
	for i, v := range c.vertices {
		member[i] = ids.Has(v.Value)
	}
	mask := make([]bool, len(c.lines))
	for i, l := range c.lines {
		mask[i] = member[l[col]]
	}
	return mask, nil
}

func (c *Compressed) Pairs() [][2]types.ID {
	out := make([][2]types.ID, len(c.lines))
	for i, l := range c.lines {
		out[i] = [2]types.ID{c.vertices[l[0]].Value, c.vertices[l[1]].Value}
	}
	return out
}

// SelectMask keeps the chosen edges. Vertices left without edges are dropped.
func (c *Compressed) SelectMask(mask []bool) (Collection, error) {
	if err := checkMask(mask, len(c.lines)); err != nil {
		return nil, err
	}
	pairs := make([][2]types.ID, 0, len(mask))
	for i, keep := range mask {
		if keep {
			l := c.lines[i]
			pairs = append(pairs, [2]types.ID{c.vertices[l[0]].Value, c.vertices[l[1]].Value})
		}
	}
	return NewCompressed(c.startID, c.endID, pairs)
}

func (c *Compressed) SelectRows(rows []int) (Collection, error) {
	if err := checkRows(rows, len(c.lines)); err != nil {
		return nil, err
	}
	pairs := make([][2]types.ID, len(rows))
	for i, r := range rows {
		l := c.lines[r]
		pairs[i] = [2]types.ID{c.vertices[l[0]].Value, c.vertices[l[1]].Value}
	}
	return NewCompressed(c.startID, c.endID, pairs)
}

// neighbors returns the distinct end-type vertices adjacent to v.
func (c *Compressed) neighbors(v int64) map[int64]struct{} {
	it := c.g.From(v)
	out := make(map[int64]struct{}, it.Len())
	for it.Next() {
		out[it.Node().ID()] = struct{}{}
	}
	return out
}

// overlap counts end-type neighbors shared by start vertices u and v.
// nbrs memoizes neighbor sets across calls.
func (c *Compressed) overlap(u, v int64, nbrs map[int64]map[int64]struct{}) int {
	nu, ok := nbrs[u]
	if !ok {
		nu = c.neighbors(u)
		nbrs[u] = nu
	}
	nv, ok := nbrs[v]
	if !ok {
		nv = c.neighbors(v)
		nbrs[v] = nv
	}
	if len(nv) < len(nu) {
		nu, nv = nv, nu
	}
	n := 0
	for x := range nu {
		if _, ok := nv[x]; ok {
			n++
		}
	}
	return n
}

func (c *Compressed) Overlap() []Overlap {
	var order []types.ID
	neighbors := make(map[types.ID][]types.ID)
	for _, v := range c.vertices {
		if v.Side != SideStart {
			continue
		}
		order = append(order, v.Value)
		ends := graph.NodesOf(c.g.From(v.id))
		ids := make([]types.ID, len(ends))
		for i, n := range ends {
			ids[i] = c.vertices[n.ID()].Value
		}
		neighbors[v.Value] = ids
	}
	return pairOverlaps(order, neighbors)
}

func (c *Compressed) Distribution(column string) (map[types.ID]int, error) {
	col, err := columnIndex(c.startID, c.endID, column)
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]int)
	for _, l := range c.lines {
		out[c.vertices[l[col]].Value]++
	}
	return out, nil
}

// Clone shares the immutable graph and starts with an unbuilt derived graph.
func (c *Compressed) Clone() Collection {
	return &Compressed{
		startID:  c.startID,
		endID:    c.endID,
		g:        c.g,
		vertices: c.vertices,
		lookup:   c.lookup,
		lines:    c.lines,
	}
}

func (c *Compressed) Equal(other Collection) bool {
	return Equal(c, other)
}
