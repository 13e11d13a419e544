package edge

import (
	"math"

	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/metrics"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// derivedGraph is the weighted co-occurrence graph over start-type vertices.
// Node ids are the vertex ids of the owning Compressed collection. Two
// vertices are joined with weight 1/overlap when they share at least one
// end-type neighbor.
type derivedGraph struct {
	g *simple.WeightedUndirectedGraph
}

func newDerivedGraph() *derivedGraph {
	return &derivedGraph{g: simple.NewWeightedUndirectedGraph(0, math.Inf(1))}
}

func (d *derivedGraph) has(v int64) bool {
	return d.g.Node(v) != nil
}

// DerivedSize returns the number of start vertices the derived graph covers, or -1
// while it is unbuilt.
func (c *Compressed) DerivedSize() int {
	if c.derived == nil {
		return -1
	}
	return c.derived.g.Nodes().Len()
}

// ShortestPath returns the derived-graph distance for every pair of the
// requested start-type ids that is connected. Pairs are ordered by position
// in ids (duplicates removed); unreachable pairs and ids that are not start
// vertices of this collection are left out.
//
// The derived graph is built on first use from the requested ids and
// extended with any ids it does not cover yet on later calls.
func (c *Compressed) ShortestPath(ids []types.ID) []PathLength {
	var req []int64
	for _, id := range types.Unique(ids) {
		if v, ok := c.lookup[SideStart][id]; ok {
			req = append(req, v)
		}
	}
	if len(req) == 0 {
		return nil
	}

	transition := "reuse"
	if c.derived == nil {
		c.derived = newDerivedGraph()
		transition = "build"
	}
	var fresh []int64
	for _, v := range req {
		if !c.derived.has(v) {
			fresh = append(fresh, v)
		}
	}
	if len(fresh) > 0 {
		if transition == "reuse" {
			transition = "extend"
		}
		c.extendDerived(fresh)
	}
	metrics.ShortestPathQueries.WithLabelValues(transition).Inc()

	var out []PathLength
	for i, u := range req[:len(req)-1] {
		sp := path.DijkstraFrom(c.derived.g.Node(u), c.derived.g)
		for _, v := range req[i+1:] {
			w := sp.WeightTo(v)
			if math.IsInf(w, 1) {
				continue
			}
			out = append(out, PathLength{
				A:        c.vertices[u].Value,
				B:        c.vertices[v].Value,
				Distance: w,
			})
		}
	}
	return out
}

// extendDerived adds fresh vertices and connects each of them to the other
// fresh vertices and to every vertex already present.
func (c *Compressed) extendDerived(fresh []int64) {
	d := c.derived
	var existing []int64
	nodes := d.g.Nodes()
	for nodes.Next() {
		existing = append(existing, nodes.Node().ID())
	}
	for _, v := range fresh {
		d.g.AddNode(simple.Node(v))
	}

	nbrs := make(map[int64]map[int64]struct{})
	connect := func(u, v int64) {
		n := c.overlap(u, v, nbrs)
		if n == 0 {
			return
		}
		d.g.SetWeightedEdge(d.g.NewWeightedEdge(simple.Node(u), simple.Node(v), 1/float64(n)))
		metrics.DerivedEdges.Inc()
	}
	for i, u := range fresh {
		for _, v := range fresh[i+1:] {
			connect(u, v)
		}
		for _, v := range existing {
			connect(u, v)
		}
	}
}
