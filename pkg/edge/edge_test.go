package edge

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/sanonone/pubnet/pkg/core/types"
)

// co-occurrence fixture: 1->{10,11}, 2->{11,12}, 3->{10,11,12}
var triangle = [][2]types.ID{
	{1, 10}, {1, 11},
	{2, 11}, {2, 12},
	{3, 10}, {3, 11}, {3, 12},
}

func backends() []Backend { return []Backend{BackendDense, BackendCompressed} }

func mustNew(t *testing.T, b Backend, pairs [][2]types.ID) Collection {
	t.Helper()
	c, err := New(b, "Publication", "Author", pairs)
	if err != nil {
		t.Fatalf("New(%s): %v", b, err)
	}
	return c
}

func TestKeyIsOrderIndependent(t *testing.T) {
	if Key("Publication", "Author") != "Author-Publication" {
		t.Errorf("unexpected key %q", Key("Publication", "Author"))
	}
	if Key("Author", "Publication") != Key("Publication", "Author") {
		t.Error("key depends on argument order")
	}
	a, b, err := Parts("Author-Publication")
	if err != nil || a != "Author" || b != "Publication" {
		t.Errorf("Parts = %q, %q, %v", a, b, err)
	}
	if _, _, err := Parts("Author"); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestConstructionErrors(t *testing.T) {
	if _, err := FromArray(BackendDense, triangle, "Publication"); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("one endpoint name: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := New(BackendCompressed, "", "Author", triangle); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("empty endpoint name: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := NewDenseFlat("A", "B", []types.ID{1, 2, 3}); !errors.Is(err, types.ErrShapeMismatch) {
		t.Errorf("odd flat array: expected ErrShapeMismatch, got %v", err)
	}
	if _, err := New("sparse", "A", "B", nil); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("unknown backend: expected ErrInvalidArgument, got %v", err)
	}
}

func TestIsInMatchesMembership(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pairs := make([][2]types.ID, 500)
	for i := range pairs {
		pairs[i] = [2]types.ID{types.ID(rng.Intn(50)), types.ID(1000 + rng.Intn(80))}
	}
	test := types.NewIDSet()
	for i := 0; i < 40; i++ {
		test.Add(types.ID(rng.Intn(50)))
		test.Add(types.ID(1000 + rng.Intn(80)))
	}

	for _, b := range backends() {
		c := mustNew(t, b, pairs)
		for col, name := range []string{"Publication", "Author"} {
			mask, err := c.IsIn(name, test)
			if err != nil {
				t.Fatalf("%s IsIn(%s): %v", b, name, err)
			}
			if len(mask) != len(pairs) {
				t.Fatalf("%s mask length %d, want %d", b, len(mask), len(pairs))
			}
			for i, p := range pairs {
				if mask[i] != test.Has(p[col]) {
					t.Fatalf("%s row %d column %s: got %v", b, i, name, mask[i])
				}
			}
		}
	}
}

func TestBackendEquivalence(t *testing.T) {
	dense := mustNew(t, BackendDense, triangle)
	comp := mustNew(t, BackendCompressed, triangle)

	dr, dc := dense.Shape()
	cr, cc := comp.Shape()
	if dr != cr || dc != cc || dr != len(triangle) || dc != 2 {
		t.Fatalf("shape mismatch: dense (%d,%d) compressed (%d,%d)", dr, dc, cr, cc)
	}
	if !Equal(dense, comp) {
		t.Error("same edges in different backends should compare equal")
	}
	for _, set := range []types.IDSet{types.NewIDSet(), types.NewIDSet(1, 3), types.NewIDSet(11, 12, 99)} {
		for _, col := range []string{"Publication", "Author"} {
			a, _ := dense.IsIn(col, set)
			b, _ := comp.IsIn(col, set)
			if !slices.Equal(a, b) {
				t.Errorf("IsIn(%s, %v) differs: %v vs %v", col, set, a, b)
			}
		}
	}
	if !slices.Equal(dense.Overlap(), comp.Overlap()) {
		t.Errorf("overlap differs: %v vs %v", dense.Overlap(), comp.Overlap())
	}

	converted, err := Convert(dense, BackendCompressed)
	if err != nil {
		t.Fatal(err)
	}
	if converted.Backend() != BackendCompressed || !converted.Equal(dense) {
		t.Error("conversion changed the edge set")
	}
}

func TestGetAndColumnErrors(t *testing.T) {
	for _, b := range backends() {
		c := mustNew(t, b, triangle)
		starts, err := c.Get("Publication")
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(starts, []types.ID{1, 1, 2, 2, 3, 3, 3}) {
			t.Errorf("%s start column = %v", b, starts)
		}
		if _, err := c.Get("Chemical"); !errors.Is(err, types.ErrColumnNotFound) {
			t.Errorf("%s Get: expected ErrColumnNotFound, got %v", b, err)
		}
		if _, err := c.IsIn("Chemical", nil); !errors.Is(err, types.ErrColumnNotFound) {
			t.Errorf("%s IsIn: expected ErrColumnNotFound, got %v", b, err)
		}
		if _, err := c.SelectMask([]bool{true}); !errors.Is(err, types.ErrShapeMismatch) {
			t.Errorf("%s SelectMask: expected ErrShapeMismatch, got %v", b, err)
		}
		if _, err := c.SelectRows([]int{42}); !errors.Is(err, types.ErrShapeMismatch) {
			t.Errorf("%s SelectRows: expected ErrShapeMismatch, got %v", b, err)
		}
	}
}

func TestSelectKeepsNamesAndOrder(t *testing.T) {
	for _, b := range backends() {
		c := mustNew(t, b, triangle)
		mask, _ := c.IsIn("Publication", types.NewIDSet(2, 3))
		sub, err := c.SelectMask(mask)
		if err != nil {
			t.Fatal(err)
		}
		if sub.StartID() != "Publication" || sub.EndID() != "Author" {
			t.Errorf("%s lost endpoint names", b)
		}
		want := [][2]types.ID{{2, 11}, {2, 12}, {3, 10}, {3, 11}, {3, 12}}
		if !slices.Equal(sub.Pairs(), want) {
			t.Errorf("%s SelectMask = %v", b, sub.Pairs())
		}
		rows, err := c.SelectRows([]int{6, 0})
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(rows.Pairs(), [][2]types.ID{{3, 12}, {1, 10}}) {
			t.Errorf("%s SelectRows = %v", b, rows.Pairs())
		}
		if c.Len() != len(triangle) {
			t.Errorf("%s selection modified the source", b)
		}
	}
}

func TestOverlapCounts(t *testing.T) {
	want := []Overlap{{1, 2, 1}, {1, 3, 2}, {2, 3, 2}}
	for _, b := range backends() {
		// duplicate edge must not inflate the count
		c := mustNew(t, b, append(slices.Clone(triangle), [2]types.ID{1, 11}))
		if got := c.Overlap(); !slices.Equal(got, want) {
			t.Errorf("%s overlap = %v, want %v", b, got, want)
		}
	}
}

func TestDistribution(t *testing.T) {
	for _, b := range backends() {
		c := mustNew(t, b, triangle)
		dist, err := c.Distribution("Author")
		if err != nil {
			t.Fatal(err)
		}
		if dist[10] != 2 || dist[11] != 3 || dist[12] != 2 {
			t.Errorf("%s distribution = %v", b, dist)
		}
	}
}

func TestShortestPathTie(t *testing.T) {
	c, err := NewCompressed("Publication", "Author", triangle)
	if err != nil {
		t.Fatal(err)
	}
	if c.DerivedSize() != -1 {
		t.Fatal("derived graph should start unbuilt")
	}
	got := c.ShortestPath([]types.ID{1, 2, 3})
	want := []PathLength{{1, 2, 1}, {1, 3, 0.5}, {2, 3, 0.5}}
	if !slices.Equal(got, want) {
		t.Errorf("ShortestPath = %v, want %v", got, want)
	}
	if c.DerivedSize() != 3 {
		t.Errorf("derived size = %d, want 3", c.DerivedSize())
	}

	// repeat on a subset reuses the graph
	again := c.ShortestPath([]types.ID{2, 1})
	if !slices.Equal(again, []PathLength{{2, 1, 1}}) {
		t.Errorf("reuse = %v", again)
	}
	if c.DerivedSize() != 3 {
		t.Errorf("reuse changed derived size to %d", c.DerivedSize())
	}
}

func TestShortestPathIncrementalConsistency(t *testing.T) {
	pairs := append(slices.Clone(triangle), [2]types.ID{4, 12}, [2]types.ID{4, 13}, [2]types.ID{5, 99})

	incremental, _ := NewCompressed("Publication", "Author", pairs)
	incremental.ShortestPath([]types.ID{1, 2, 3})
	stepwise := incremental.ShortestPath([]types.ID{1, 2, 3, 4})

	direct, _ := NewCompressed("Publication", "Author", pairs)
	oneShot := direct.ShortestPath([]types.ID{1, 2, 3, 4})

	if !slices.Equal(stepwise, oneShot) {
		t.Errorf("incremental %v != direct %v", stepwise, oneShot)
	}
	if incremental.DerivedSize() != 4 {
		t.Errorf("derived size = %d, want 4", incremental.DerivedSize())
	}

	for _, p := range stepwise {
		if p.A == p.B {
			t.Errorf("self pair emitted: %v", p)
		}
	}

	// 5 shares nothing with anyone: its pairs are omitted, and unknown ids are ignored
	withIsolated := direct.ShortestPath([]types.ID{1, 5, 777})
	if len(withIsolated) != 0 {
		t.Errorf("expected no connected pairs, got %v", withIsolated)
	}
}

func TestShortestPathEmptyAndClone(t *testing.T) {
	c, _ := NewCompressed("Publication", "Author", triangle)
	if got := c.ShortestPath(nil); len(got) != 0 {
		t.Errorf("empty request returned %v", got)
	}
	c.ShortestPath([]types.ID{1, 2})
	cp := c.Clone().(*Compressed)
	if cp.DerivedSize() != -1 {
		t.Error("clone must not share the derived graph")
	}
	if !cp.Equal(c) {
		t.Error("clone differs from source")
	}
}

func TestCompressedGraphRebuild(t *testing.T) {
	c, _ := NewCompressed("Publication", "Author", triangle)
	back, err := NewCompressedGraph("Publication", "Author", c.Vertices(), c.Lines())
	if err != nil {
		t.Fatal(err)
	}
	if !back.Equal(c) {
		t.Error("rebuilt graph differs")
	}
	bad := [][2]int64{{1, 0}}
	if _, err := NewCompressedGraph("Publication", "Author", c.Vertices(), bad); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for reversed line, got %v", err)
	}
}
