// Package network implements PubNet, the multi-relational graph container.
//
// A PubNet holds one node collection per node type and one edge collection
// per unordered pair of node types. One node type is the root (by default
// "Publication"); slicing and the id queries are anchored on it.
//
// A PubNet is not safe for concurrent mutation. Slice never modifies its
// receiver, so concurrent slices of an otherwise untouched graph are fine.
package network

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sanonone/pubnet/pkg/core/table"
	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/edge"
	"github.com/sanonone/pubnet/pkg/node"
	"github.com/sanonone/pubnet/pkg/storage"
)

// DefaultRoot is the root node type used when Options.Root is empty.
const DefaultRoot = "Publication"

// Options configures a PubNet.
type Options struct {
	// Root is the node type slicing and id queries are anchored on.
	Root string

	// Backend is used when edges are built from raw pairs or files.
	Backend edge.Backend

	// Logger receives warnings such as a missing root type.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns options rooted at "Publication" with dense edges.
func DefaultOptions() Options {
	return Options{
		Root:    DefaultRoot,
		Backend: edge.BackendDense,
		Logger:  slog.Default(),
	}
}

func (o Options) withDefaults() Options {
	if o.Root == "" {
		o.Root = DefaultRoot
	}
	if o.Backend == "" {
		o.Backend = edge.BackendDense
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// PubNet is the graph container.
type PubNet struct {
	root    string
	backend edge.Backend
	logger  *slog.Logger

	nodeNames []string
	nodes     map[string]*node.Node
	edgeKeys  []string
	edges     map[string]edge.Collection
}

// New builds a graph from named node collections and edge collections. Edge
// collections are keyed by their endpoint names. Node types referenced by an
// edge but not supplied get an empty placeholder. A graph without root nodes
// is allowed but logged as a warning.
func New(nodes map[string]*node.Node, edges []edge.Collection, opts Options) (*PubNet, error) {
	opts = opts.withDefaults()
	p := &PubNet{
		root:    opts.Root,
		backend: opts.Backend,
		logger:  opts.Logger,
		nodes:   make(map[string]*node.Node, len(nodes)),
		edges:   make(map[string]edge.Collection, len(edges)),
	}

	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := p.AddNode(name, nodes[name]); err != nil {
			return nil, err
		}
	}
	for _, c := range edges {
		if err := p.AddEdge(c); err != nil {
			return nil, err
		}
	}

	if n, ok := p.nodes[p.root]; !ok || n.Len() == 0 {
		p.logger.Warn("Graph constructed without root nodes", "root", p.root)
	}
	return p, nil
}

// Root returns the root node type.
func (p *PubNet) Root() string { return p.root }

// Nodes returns the node type names in insertion order.
func (p *PubNet) Nodes() []string { return slices.Clone(p.nodeNames) }

// Edges returns the canonical edge keys in insertion order.
func (p *PubNet) Edges() []string { return slices.Clone(p.edgeKeys) }

// RootIDs returns the identifiers of the root collection.
func (p *PubNet) RootIDs() []types.ID {
	n, ok := p.nodes[p.root]
	if !ok {
		return nil
	}
	return n.IDs()
}

// AddNode adds a node collection. A nil collection adds a placeholder.
func (p *PubNet) AddNode(name string, n *node.Node) error {
	if name == "" {
		return fmt.Errorf("%w: node type name is empty", types.ErrInvalidArgument)
	}
	if _, ok := p.nodes[name]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateNode, name)
	}
	if n == nil {
		n = node.Empty()
	}
	p.nodes[name] = n
	p.nodeNames = append(p.nodeNames, name)
	return nil
}

// AddNodeTable adds a node collection built from a record table with an
// "id" identity column.
func (p *PubNet) AddNodeTable(name string, t *table.Table) error {
	if _, ok := p.nodes[name]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateNode, name)
	}
	n, err := node.New(t)
	if err != nil {
		return fmt.Errorf("node %s: %w", name, err)
	}
	return p.AddNode(name, n)
}

// AddNodeFile loads a node file and adds it.
func (p *PubNet) AddNodeFile(name, path string) error {
	if _, ok := p.nodes[name]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateNode, name)
	}
	n, err := storage.LoadNode(path)
	if err != nil {
		return err
	}
	return p.AddNode(name, n)
}

// AddEdge adds an edge collection under the canonical key of its endpoints
// and inserts placeholders for endpoint types without a node collection.
func (p *PubNet) AddEdge(c edge.Collection) error {
	if c == nil {
		return fmt.Errorf("%w: nil edge collection", types.ErrInvalidArgument)
	}
	key := edge.Key(c.StartID(), c.EndID())
	if _, ok := p.edges[key]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateEdge, key)
	}
	p.edges[key] = c
	p.edgeKeys = append(p.edgeKeys, key)
	p.fillPlaceholders()
	return nil
}

// AddEdgePairs builds an edge collection from raw (start, end) pairs in the
// graph's backend and adds it. names must hold the start and end type names.
func (p *PubNet) AddEdgePairs(pairs [][2]types.ID, names ...string) error {
	if len(names) == 2 {
		if _, ok := p.edges[edge.Key(names[0], names[1])]; ok {
			return fmt.Errorf("%w: %s", types.ErrDuplicateEdge, edge.Key(names[0], names[1]))
		}
	}
	c, err := edge.FromArray(p.backend, pairs, names...)
	if err != nil {
		return err
	}
	return p.AddEdge(c)
}

// AddEdgeFile loads an edge file in the graph's backend and adds it.
func (p *PubNet) AddEdgeFile(path string) error {
	c, err := storage.LoadEdge(path, p.backend)
	if err != nil {
		return err
	}
	return p.AddEdge(c)
}

func (p *PubNet) fillPlaceholders() {
	for _, key := range p.edgeKeys {
		a, b, err := edge.Parts(key)
		if err != nil {
			continue
		}
		for _, name := range []string{a, b} {
			if _, ok := p.nodes[name]; !ok {
				p.nodes[name] = node.Empty()
				p.nodeNames = append(p.nodeNames, name)
			}
		}
	}
}

// Node returns the node collection of a type.
func (p *PubNet) Node(name string) (*node.Node, error) {
	n, ok := p.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", types.ErrKeyNotFound, name)
	}
	return n, nil
}

// Edge returns the edge collection joining two types, in either order.
func (p *PubNet) Edge(a, b string) (edge.Collection, error) {
	return p.EdgeByKey(edge.Key(a, b))
}

// EdgeByKey returns an edge collection by key. The two names of the key may
// come in either order.
func (p *PubNet) EdgeByKey(key string) (edge.Collection, error) {
	key, err := canonicalKey(key)
	if err != nil {
		return nil, err
	}
	c, ok := p.edges[key]
	if !ok {
		return nil, fmt.Errorf("%w: edge %s", types.ErrKeyNotFound, key)
	}
	return c, nil
}

// Get resolves one name to a *node.Node, or a pair of names or an edge key
// to an edge.Collection.
func (p *PubNet) Get(keys ...string) (any, error) {
	switch len(keys) {
	case 1:
		if n, ok := p.nodes[keys[0]]; ok {
			return n, nil
		}
		if strings.Contains(keys[0], edge.KeyDelim) {
			if c, err := p.EdgeByKey(keys[0]); err == nil {
				return c, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", types.ErrKeyNotFound, keys[0])
	case 2:
		return p.Edge(keys[0], keys[1])
	}
	return nil, fmt.Errorf("%w: get takes a name or a pair of names, got %d", types.ErrInvalidArgument, len(keys))
}

func canonicalKey(key string) (string, error) {
	a, b, err := edge.Parts(key)
	if err != nil {
		return "", err
	}
	return edge.Key(a, b), nil
}

// Drop removes node types and edges. Every name is checked before anything
// is removed. A dropped node type still referenced by a remaining edge comes
// back as a placeholder.
func (p *PubNet) Drop(nodes []string, edgeKeys []string) error {
	keys := make([]string, len(edgeKeys))
	for i, k := range edgeKeys {
		ck, err := canonicalKey(k)
		if err != nil {
			return fmt.Errorf("%w: edge %s", types.ErrKeyNotFound, k)
		}
		if _, ok := p.edges[ck]; !ok {
			return fmt.Errorf("%w: edge %s", types.ErrKeyNotFound, k)
		}
		keys[i] = ck
	}
	for _, name := range nodes {
		if _, ok := p.nodes[name]; !ok {
			return fmt.Errorf("%w: node %s", types.ErrKeyNotFound, name)
		}
	}

	for _, k := range keys {
		delete(p.edges, k)
	}
	p.edgeKeys = slices.DeleteFunc(p.edgeKeys, func(k string) bool { return slices.Contains(keys, k) })
	for _, name := range nodes {
		delete(p.nodes, name)
	}
	p.nodeNames = slices.DeleteFunc(p.nodeNames, func(n string) bool { return slices.Contains(nodes, n) })
	p.fillPlaceholders()
	return nil
}

// Update merges other into p. On a name or key collision other wins, except
// that a placeholder in other never replaces a populated collection.
func (p *PubNet) Update(other *PubNet) {
	for _, name := range other.nodeNames {
		n := other.nodes[name]
		cur, exists := p.nodes[name]
		if exists && isPlaceholder(n) && !isPlaceholder(cur) {
			continue
		}
		if !exists {
			p.nodeNames = append(p.nodeNames, name)
		}
		p.nodes[name] = n
	}
	for _, key := range other.edgeKeys {
		if _, exists := p.edges[key]; !exists {
			p.edgeKeys = append(p.edgeKeys, key)
		}
		p.edges[key] = other.edges[key].Clone()
	}
	p.fillPlaceholders()
}

func isPlaceholder(n *node.Node) bool {
	_, cols := n.Shape()
	return cols == 0
}

// Equal reports whether both graphs have the same node types, the same edge
// keys and equal collections under each of them.
func (p *PubNet) Equal(o *PubNet) bool {
	if o == nil || len(p.nodes) != len(o.nodes) || len(p.edges) != len(o.edges) {
		return false
	}
	for name, n := range p.nodes {
		on, ok := o.nodes[name]
		if !ok || !n.Equal(on) {
			return false
		}
	}
	for key, c := range p.edges {
		oc, ok := o.edges[key]
		if !ok || !edge.Equal(c, oc) {
			return false
		}
	}
	return true
}

// Clone returns an independent graph. Node collections are immutable and
// shared; edge collections are cloned so derived graphs are never shared.
func (p *PubNet) Clone() *PubNet {
	c := &PubNet{
		root:      p.root,
		backend:   p.backend,
		logger:    p.logger,
		nodeNames: slices.Clone(p.nodeNames),
		nodes:     make(map[string]*node.Node, len(p.nodes)),
		edgeKeys:  slices.Clone(p.edgeKeys),
		edges:     make(map[string]edge.Collection, len(p.edges)),
	}
	for name, n := range p.nodes {
		c.nodes[name] = n
	}
	for key, e := range p.edges {
		c.edges[key] = e.Clone()
	}
	return c
}

// ShortestPath answers a shortest-path query on the edge collection under
// key. Only the compressed backend supports it.
func (p *PubNet) ShortestPath(key string, ids []types.ID) ([]edge.PathLength, error) {
	c, err := p.EdgeByKey(key)
	if err != nil {
		return nil, err
	}
	pf, ok := c.(edge.PathFinder)
	if !ok {
		return nil, fmt.Errorf("%w: edge %s uses the %s backend, shortest paths need %s",
			types.ErrInvalidArgument, key, c.Backend(), edge.BackendCompressed)
	}
	return pf.ShortestPath(ids), nil
}

// Overlap lists shared-neighbor counts of the edge collection under key.
func (p *PubNet) Overlap(key string) ([]edge.Overlap, error) {
	c, err := p.EdgeByKey(key)
	if err != nil {
		return nil, err
	}
	return c.Overlap(), nil
}

func (p *PubNet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "PubNet (root %s)\n", p.root)
	b.WriteString("Nodes (number of nodes)\n")
	for _, name := range p.nodeNames {
		fmt.Fprintf(&b, "\t%s\t(%s)\n", name, humanize.Comma(int64(p.nodes[name].Len())))
	}
	b.WriteString("\nEdges (number of edges)\n")
	for _, key := range p.edgeKeys {
		c := p.edges[key]
		fmt.Fprintf(&b, "\t%s\t(%s, %s)\n", key, humanize.Comma(int64(c.Len())), c.Backend())
	}
	return b.String()
}
