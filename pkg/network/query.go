package network

import (
	"fmt"
	"time"

	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/edge"
	"github.com/sanonone/pubnet/pkg/metrics"
	"github.com/sanonone/pubnet/pkg/node"
)

// Slice returns a new graph restricted to rootIDs. Every edge touching the
// root keeps only rows whose root endpoint is in rootIDs. The root collection
// keeps exactly rootIDs; any other type T keeps the ids left in the filtered
// root-T edge. Types without a direct root edge are not filtered.
func (p *PubNet) Slice(rootIDs []types.ID) (*PubNet, error) {
	start := time.Now()
	defer func() { metrics.SliceDuration.Observe(time.Since(start).Seconds()) }()

	keep := types.NewIDSet(rootIDs...)
	out := p.Clone()

	for _, key := range out.edgeKeys {
		c := out.edges[key]
		if c.StartID() != out.root && c.EndID() != out.root {
			continue
		}
		mask, err := c.IsIn(out.root, keep)
		if err != nil {
			return nil, fmt.Errorf("slice edge %s: %w", key, err)
		}
		filtered, err := c.SelectMask(mask)
		if err != nil {
			return nil, fmt.Errorf("slice edge %s: %w", key, err)
		}
		out.edges[key] = filtered
	}

	for _, name := range out.nodeNames {
		n := out.nodes[name]
		if n.Len() == 0 {
			continue
		}
		ids := keep
		if name != out.root {
			c, ok := out.edges[edge.Key(name, out.root)]
			if !ok {
				continue
			}
			values, err := c.Get(name)
			if err != nil {
				return nil, fmt.Errorf("slice node %s: %w", name, err)
			}
			ids = types.NewIDSet(values...)
		}
		filtered, err := n.SelectByIDs(n.IDColumn(), ids)
		if err != nil {
			return nil, fmt.Errorf("slice node %s: %w", name, err)
		}
		out.nodes[name] = filtered
	}
	return out, nil
}

// IDsWhere returns the sorted, distinct root ids linked to the rows of
// nodeType selected by pred. For the root type itself the selected ids are
// returned directly; any other type is mapped through the root edge.
func (p *PubNet) IDsWhere(nodeType string, pred node.Predicate) ([]types.ID, error) {
	n, ok := p.nodes[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: node %s", types.ErrKeyNotFound, nodeType)
	}
	mask, err := pred(n)
	if err != nil {
		return nil, fmt.Errorf("ids where %s: %w", nodeType, err)
	}
	selected, err := n.SelectMask(mask)
	if err != nil {
		return nil, fmt.Errorf("ids where %s: %w", nodeType, err)
	}
	nodeIDs := types.NewIDSet(selected.IDs()...)

	if nodeType == p.root {
		return nodeIDs.Sorted(), nil
	}
	c, err := p.Edge(p.root, nodeType)
	if err != nil {
		return nil, err
	}
	return rootIDsVia(c, p.root, nodeType, nodeIDs)
}

// rootIDsVia maps ids of nodeType to the root ids they share an edge with.
func rootIDsVia(c edge.Collection, root, nodeType string, ids types.IDSet) ([]types.ID, error) {
	mask, err := c.IsIn(nodeType, ids)
	if err != nil {
		return nil, err
	}
	roots, err := c.Get(root)
	if err != nil {
		return nil, err
	}
	out := make(types.IDSet)
	for i, hit := range mask {
		if hit {
			out.Add(roots[i])
		}
	}
	return out.Sorted(), nil
}

// IDsContaining returns root ids linked to nodeType rows whose feature column
// equals value, or any element of value when it is a slice. With steps > 1
// the result is widened that many times in total: the nodeType ids reachable
// from the current root ids select the next set of root ids.
func (p *PubNet) IDsContaining(nodeType, feature string, value any, steps int) ([]types.ID, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: steps must be at least 1, got %d", types.ErrInvalidArgument, steps)
	}
	rootIDs, err := p.IDsWhere(nodeType, node.In(feature, expand(value)...))
	if err != nil {
		return nil, err
	}
	// Expanding the root through itself reaches the same ids.
	if nodeType == p.root {
		return rootIDs, nil
	}

	for ; steps > 1; steps-- {
		c, err := p.Edge(p.root, nodeType)
		if err != nil {
			return nil, err
		}
		mask, err := c.IsIn(p.root, types.NewIDSet(rootIDs...))
		if err != nil {
			return nil, err
		}
		values, err := c.Get(nodeType)
		if err != nil {
			return nil, err
		}
		reached := make(types.IDSet)
		for i, hit := range mask {
			if hit {
				reached.Add(values[i])
			}
		}
		rootIDs, err = p.IDsWhere(nodeType, node.IDIn(reached))
		if err != nil {
			return nil, err
		}
	}
	return rootIDs, nil
}

// Where is Slice(IDsWhere(nodeType, pred)).
func (p *PubNet) Where(nodeType string, pred node.Predicate) (*PubNet, error) {
	ids, err := p.IDsWhere(nodeType, pred)
	if err != nil {
		return nil, err
	}
	return p.Slice(ids)
}

// Containing is Slice(IDsContaining(nodeType, feature, value, steps)).
func (p *PubNet) Containing(nodeType, feature string, value any, steps int) (*PubNet, error) {
	ids, err := p.IDsContaining(nodeType, feature, value, steps)
	if err != nil {
		return nil, err
	}
	return p.Slice(ids)
}

// expand turns a slice-valued query value into its elements.
func expand(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		return toAny(v)
	case []int:
		return toAny(v)
	case []int64:
		return toAny(v)
	case []float64:
		return toAny(v)
	case []types.ID:
		return toAny(v)
	}
	return []any{value}
}

func toAny[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
