package edge

import (
	"fmt"

	"github.com/sanonone/pubnet/pkg/core/types"
)

// Dense stores edges as a row-major N×2 array: data[2i] is the start id of
// edge i and data[2i+1] its end id. The array is never modified after
// construction.
type Dense struct {
	startID string
	endID   string
	data    []types.ID
}

// NewDense builds a dense collection from (start, end) pairs.
func NewDense(startID, endID string, pairs [][2]types.ID) (*Dense, error) {
	if err := checkNames(startID, endID); err != nil {
		return nil, err
	}
	data := make([]types.ID, 0, 2*len(pairs))
	for _, p := range pairs {
		data = append(data, p[0], p[1])
	}
	return &Dense{startID: startID, endID: endID, data: data}, nil
}

// NewDenseFlat wraps a flat row-major array of even length.
func NewDenseFlat(startID, endID string, data []types.ID) (*Dense, error) {
	if err := checkNames(startID, endID); err != nil {
		return nil, err
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: flat edge array has odd length %d", types.ErrShapeMismatch, len(data))
	}
	return &Dense{startID: startID, endID: endID, data: data}, nil
}

func (d *Dense) StartID() string   { return d.startID }
func (d *Dense) EndID() string     { return d.endID }
func (d *Dense) Backend() Backend  { return BackendDense }
func (d *Dense) Len() int          { return len(d.data) / 2 }
func (d *Dense) Shape() (int, int) { return d.Len(), 2 }

// Flat exposes the row-major array. Callers must not modify it.
func (d *Dense) Flat() []types.ID { return d.data }

func (d *Dense) Get(column string) ([]types.ID, error) {
	col, err := columnIndex(d.startID, d.endID, column)
	if err != nil {
		return nil, err
	}
	out := make([]types.ID, d.Len())
	for i := range out {
		out[i] = d.data[2*i+col]
	}
	return out, nil
}

func (d *Dense) IsIn(column string, ids types.IDSet) ([]bool, error) {
	col, err := columnIndex(d.startID, d.endID, column)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, d.Len())
	for i := range mask {
		mask[i] = ids.Has(d.data[2*i+col])
	}
	return mask, nil
}

func (d *Dense) Pairs() [][2]types.ID {
	out := make([][2]types.ID, d.Len())
	for i := range out {
		out[i] = [2]types.ID{d.data[2*i], d.data[2*i+1]}
	}
	return out
}

func (d *Dense) SelectMask(mask []bool) (Collection, error) {
	if err := checkMask(mask, d.Len()); err != nil {
		return nil, err
	}
	data := make([]types.ID, 0, 2*len(mask))
	for i, keep := range mask {
		if keep {
			data = append(data, d.data[2*i], d.data[2*i+1])
		}
	}
	return &Dense{startID: d.startID, endID: d.endID, data: data}, nil
}

func (d *Dense) SelectRows(rows []int) (Collection, error) {
	if err := checkRows(rows, d.Len()); err != nil {
		return nil, err
	}
	data := make([]types.ID, 0, 2*len(rows))
	for _, r := range rows {
		data = append(data, d.data[2*r], d.data[2*r+1])
	}
	return &Dense{startID: d.startID, endID: d.endID, data: data}, nil
}

func (d *Dense) Overlap() []Overlap {
	var order []types.ID
	neighbors := make(map[types.ID][]types.ID)
	seen := make(map[[2]types.ID]struct{}, d.Len())
	for i := 0; i < d.Len(); i++ {
		s, e := d.data[2*i], d.data[2*i+1]
		if _, ok := neighbors[s]; !ok {
			order = append(order, s)
			neighbors[s] = nil
		}
		if _, dup := seen[[2]types.ID{s, e}]; dup {
			continue
		}
		seen[[2]types.ID{s, e}] = struct{}{}
		neighbors[s] = append(neighbors[s], e)
	}
	return pairOverlaps(order, neighbors)
}

func (d *Dense) Distribution(column string) (map[types.ID]int, error) {
	col, err := columnIndex(d.startID, d.endID, column)
	if err != nil {
		return nil, err
	}
	out := make(map[types.ID]int)
	for i := 0; i < d.Len(); i++ {
		out[d.data[2*i+col]]++
	}
	return out, nil
}

// Clone shares the array, which is immutable.
func (d *Dense) Clone() Collection {
	cp := *d
	return &cp
}

func (d *Dense) Equal(other Collection) bool {
	return Equal(d, other)
}
