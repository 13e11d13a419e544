package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"sync"

	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/edge"
	"github.com/sanonone/pubnet/pkg/node"
	"golang.org/x/sync/errgroup"
)

var (
	nodeFilePattern = regexp.MustCompile(`^(\w+)_nodes\.([\w.]+)$`)
	edgeFilePattern = regexp.MustCompile(`^(\w+)_(\w+)_edges\.([\w.]+)$`)
)

// NodeFiles lists the node files of dir grouped by node type. Each group is
// sorted by extension preference. Files with unknown extensions are ignored.
func NodeFiles(dir string) (map[string][]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, name := range entries {
		m := nodeFilePattern.FindStringSubmatch(name)
		if m == nil || !slices.Contains(NodeExtPreference, m[2]) {
			continue
		}
		out[m[1]] = append(out[m[1]], filepath.Join(dir, name))
	}
	for _, paths := range out {
		sortByPreference(paths, NodeExtPreference)
	}
	return out, nil
}

// EdgeFiles lists the edge files of dir grouped by canonical edge key, so
// A_B_edges.tsv and B_A_edges.npy land in the same group.
func EdgeFiles(dir string) (map[string][]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, name := range entries {
		m := edgeFilePattern.FindStringSubmatch(name)
		if m == nil || !slices.Contains(EdgeExtPreference, m[3]) {
			continue
		}
		key := edge.Key(m[1], m[2])
		out[key] = append(out[key], filepath.Join(dir, name))
	}
	for _, paths := range out {
		sortByPreference(paths, EdgeExtPreference)
	}
	return out, nil
}

func readDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: graph directory %s", types.ErrFileNotFound, dir)
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func sortByPreference(paths []string, preference []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return slices.Index(preference, extOf(paths[i])) < slices.Index(preference, extOf(paths[j]))
	})
}

// Files is the result of discovery: one chosen path per node type and per
// canonical edge key.
type Files struct {
	Nodes map[string]string
	Edges map[string]string
}

// Discover picks the files to load from dir. A nil nodes or edges list means
// "all". The four combinations resolve as follows:
//
//	all nodes, all edges     every node and edge file in dir
//	all nodes, listed edges  the listed edges plus the node types they mention
//	listed nodes, all edges  the listed nodes plus edges joining two of them
//	listed nodes and edges   exactly what is listed
//
// Explicitly listed types and pairs without a file fail with ErrFileNotFound.
// Node types that are only implied by an edge are skipped when missing.
func Discover(dir string, nodes []string, edges [][2]string) (*Files, error) {
	nodeFiles, err := NodeFiles(dir)
	if err != nil {
		return nil, err
	}
	edgeFiles, err := EdgeFiles(dir)
	if err != nil {
		return nil, err
	}

	out := &Files{Nodes: make(map[string]string), Edges: make(map[string]string)}

	if edges == nil {
		for key, paths := range edgeFiles {
			if nodes != nil {
				a, b, _ := edge.Parts(key)
				if !slices.Contains(nodes, a) || !slices.Contains(nodes, b) {
					continue
				}
			}
			out.Edges[key] = paths[0]
		}
	} else {
		for _, pair := range edges {
			key := edge.Key(pair[0], pair[1])
			paths, ok := edgeFiles[key]
			if !ok {
				return nil, fmt.Errorf("%w: no edge file for %s in %s", types.ErrFileNotFound, key, dir)
			}
			out.Edges[key] = paths[0]
		}
	}

	switch {
	case nodes == nil && edges == nil:
		for name, paths := range nodeFiles {
			out.Nodes[name] = paths[0]
		}
	case nodes == nil:
		for key := range out.Edges {
			a, b, _ := edge.Parts(key)
			for _, name := range []string{a, b} {
				if paths, ok := nodeFiles[name]; ok {
					out.Nodes[name] = paths[0]
				}
			}
		}
	default:
		for _, name := range nodes {
			paths, ok := nodeFiles[name]
			if !ok {
				return nil, fmt.Errorf("%w: no node file for %s in %s", types.ErrFileNotFound, name, dir)
			}
			out.Nodes[name] = paths[0]
		}
	}
	return out, nil
}

// LoadDir loads every discovered file, running up to workers loads at once.
// The first failure cancels the remaining loads and nothing is returned.
func LoadDir(ctx context.Context, files *Files, backend edge.Backend, workers int, logger *slog.Logger) (map[string]*node.Node, map[string]edge.Collection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		mu    sync.Mutex
		nodes = make(map[string]*node.Node, len(files.Nodes))
		edges = make(map[string]edge.Collection, len(files.Edges))
	)

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for name, path := range files.Nodes {
		name, path := name, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := LoadNode(path)
			if err != nil {
				return err
			}
			logger.Debug("loaded node collection", "type", name, "format", extOf(path), "rows", n.Len())
			mu.Lock()
			nodes[name] = n
			mu.Unlock()
			return nil
		})
	}
	for key, path := range files.Edges {
		key, path := key, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := LoadEdge(path, backend)
			if err != nil {
				return err
			}
			logger.Debug("loaded edge collection", "key", key, "format", extOf(path), "edges", c.Len(), "backend", c.Backend())
			mu.Lock()
			edges[key] = c
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}
