package network

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/edge"
	"github.com/sanonone/pubnet/pkg/storage"
)

// DirOptions selects what FromDir loads.
type DirOptions struct {
	Options

	// Nodes and Edges name the collections to load; nil means all. See
	// storage.Discover for how the two lists combine.
	Nodes []string
	Edges [][2]string

	// Workers bounds concurrent file loads. Zero means unbounded.
	Workers int
}

// FromDir discovers and loads a graph stored in dir. Any failure aborts the
// whole load.
func FromDir(ctx context.Context, dir string, opts DirOptions) (*PubNet, error) {
	base := opts.Options.withDefaults()
	files, err := storage.Discover(dir, opts.Nodes, opts.Edges)
	if err != nil {
		return nil, err
	}
	nodes, edgeMap, err := storage.LoadDir(ctx, files, base.Backend, opts.Workers, base.Logger)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(edgeMap))
	for key := range edgeMap {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	edges := make([]edge.Collection, len(keys))
	for i, key := range keys {
		edges[i] = edgeMap[key]
	}

	p, err := New(nodes, edges, base)
	if err != nil {
		return nil, err
	}
	base.Logger.Debug("Graph loaded", "dir", dir, "nodes", len(nodes), "edges", len(edges))
	return p, nil
}

// SaveOptions selects what ToDir writes.
type SaveOptions struct {
	// Nodes and Edges name the collections to save; nil means all. With
	// only Nodes listed, every edge touching one of them is saved. With only
	// Edges listed, every node type they mention is saved. An empty non-nil
	// list saves nothing of that kind.
	Nodes []string
	Edges []string

	Format storage.Format

	// Overwrite removes the graph files already in dir that this save did
	// not rewrite. Removal happens only after every collection was written.
	Overwrite bool
}

// ToDir writes the selected collections into dir, creating it if needed, and
// returns the written paths. Empty collections are skipped.
func (p *PubNet) ToDir(dir string, opts SaveOptions) ([]string, error) {
	nodes, keys, err := p.saveSelection(opts)
	if err != nil {
		return nil, err
	}

	var existing []string
	if opts.Overwrite {
		existing, err = graphFiles(dir)
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create graph directory: %w", err)
	}

	var written []string
	for _, name := range nodes {
		n := p.nodes[name]
		if n.Len() == 0 {
			continue
		}
		path, err := storage.SaveNode(n, name, dir, opts.Format)
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	for _, key := range keys {
		c := p.edges[key]
		if c.Len() == 0 {
			continue
		}
		path, err := storage.SaveEdge(c, key, dir, opts.Format)
		if err != nil {
			return written, err
		}
		written = append(written, path)
		if a, b, err := edge.Parts(key); err == nil && opts.Format == storage.FormatBinary {
			written = append(written, filepath.Join(dir, storage.EdgeHeaderName(a, b)))
		}
	}

	for _, path := range existing {
		if slices.Contains(written, path) {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return written, fmt.Errorf("failed to remove stale file: %w", err)
		}
	}
	return written, nil
}

func (p *PubNet) saveSelection(opts SaveOptions) ([]string, []string, error) {
	var nodes, keys []string
	for _, name := range opts.Nodes {
		if _, ok := p.nodes[name]; !ok {
			return nil, nil, fmt.Errorf("%w: node %s", types.ErrKeyNotFound, name)
		}
	}
	for _, k := range opts.Edges {
		ck, err := canonicalKey(k)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := p.edges[ck]; !ok {
			return nil, nil, fmt.Errorf("%w: edge %s", types.ErrKeyNotFound, k)
		}
		keys = append(keys, ck)
	}

	switch {
	case opts.Nodes == nil && opts.Edges == nil:
		return slices.Clone(p.nodeNames), slices.Clone(p.edgeKeys), nil
	case opts.Nodes == nil:
		for _, key := range keys {
			a, b, _ := edge.Parts(key)
			for _, name := range []string{a, b} {
				if !slices.Contains(nodes, name) {
					nodes = append(nodes, name)
				}
			}
		}
		return nodes, keys, nil
	case opts.Edges == nil:
		for _, key := range p.edgeKeys {
			a, b, _ := edge.Parts(key)
			if slices.Contains(opts.Nodes, a) || slices.Contains(opts.Nodes, b) {
				keys = append(keys, key)
			}
		}
		return opts.Nodes, keys, nil
	}
	return opts.Nodes, keys, nil
}

// graphFiles lists the node, edge and edge header files in dir.
func graphFiles(dir string) ([]string, error) {
	var out []string
	for _, pattern := range []string{"*_nodes.*", "*_edges.*", "*_edge_header.tsv"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}
