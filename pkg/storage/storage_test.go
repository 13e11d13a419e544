package storage

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sanonone/pubnet/pkg/core/table"
	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/edge"
	"github.com/sanonone/pubnet/pkg/node"
)

func authors(t *testing.T) *node.Node {
	t.Helper()
	n, err := node.FromColumns(
		table.NewIDColumn("id", []types.ID{10, 20, 30}),
		table.NewStringColumn("name", []string{"Ada", "tab\there", ""}),
		table.NewIntColumn("year", []int64{1990, -4, 0}),
		table.NewFloatColumn("score", []float64{0.5, math.NaN(), 1e-9}),
	)
	if err != nil {
		t.Fatalf("FromColumns: %v", err)
	}
	return n
}

var written = [][2]types.ID{{1, 10}, {1, 20}, {2, 20}, {3, 30}, {3, 30}}

func TestNodeRoundTrip(t *testing.T) {
	withParent, err := node.FromColumns(
		table.NewIDColumn("id", []types.ID{1, 2, 3}),
		table.NewIDColumn("parent", []types.ID{0, 1, 1}),
	)
	if err != nil {
		t.Fatal(err)
	}
	colonNames, err := node.FromColumns(
		table.NewIDColumn("id", []types.ID{4, 5}),
		table.NewStringColumn("date:year", []string{"2001", "1999"}),
		table.NewIntColumn("a:b:int", []int64{1, 2}),
	)
	if err != nil {
		t.Fatal(err)
	}

	tables := []struct {
		name string
		node *node.Node
	}{
		{"mixed kinds", authors(t)},
		{"second id column", withParent},
		{"colons in names", colonNames},
	}
	for _, tt := range tables {
		for _, format := range []Format{FormatTSV, FormatGzip, FormatBinary} {
			t.Run(tt.name+"/"+string(format), func(t *testing.T) {
				path, err := SaveNode(tt.node, "Author", t.TempDir(), format)
				if err != nil {
					t.Fatalf("SaveNode: %v", err)
				}
				got, err := LoadNode(path)
				if err != nil {
					t.Fatalf("LoadNode(%s): %v", path, err)
				}
				if !got.Equal(tt.node) {
					t.Errorf("round trip through %s changed the table: %v", format, got.Columns())
				}
			})
		}
	}
}

func TestNodeIDColumnNameSurvives(t *testing.T) {
	tbl, err := table.New(
		table.NewIDColumn("author_id", []types.ID{7, 8}),
		table.NewStringColumn("name", []string{"x", "y"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	want, err := node.NewWithID(tbl, "author_id")
	if err != nil {
		t.Fatal(err)
	}
	for _, format := range []Format{FormatTSV, FormatBinary} {
		path, err := SaveNode(want, "Author", t.TempDir(), format)
		if err != nil {
			t.Fatal(err)
		}
		got, err := LoadNode(path)
		if err != nil {
			t.Fatal(err)
		}
		if got.IDColumn() != "author_id" || !got.Equal(want) {
			t.Errorf("%s: identity column %q, want author_id", format, got.IDColumn())
		}
	}
}

func TestEdgeRoundTrip(t *testing.T) {
	for _, backend := range []edge.Backend{edge.BackendDense, edge.BackendCompressed} {
		for _, format := range []Format{FormatTSV, FormatGzip, FormatBinary} {
			t.Run(string(backend)+"/"+string(format), func(t *testing.T) {
				want, err := edge.New(backend, "Publication", "Author", written)
				if err != nil {
					t.Fatal(err)
				}
				dir := t.TempDir()
				path, err := SaveEdge(want, edge.Key("Publication", "Author"), dir, format)
				if err != nil {
					t.Fatalf("SaveEdge: %v", err)
				}
				got, err := LoadEdge(path, backend)
				if err != nil {
					t.Fatalf("LoadEdge(%s): %v", path, err)
				}
				if got.Backend() != backend {
					t.Errorf("loaded backend %s, want %s", got.Backend(), backend)
				}
				if !got.Equal(want) {
					t.Errorf("round trip changed edges: %v", got.Pairs())
				}
			})
		}
	}
}

func TestBinaryEdgeFilesWriteHeader(t *testing.T) {
	dense, _ := edge.New(edge.BackendDense, "Publication", "Author", written)
	dir := t.TempDir()
	path, err := SaveEdge(dense, "Author-Publication", dir, FormatBinary)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "Author_Publication_edges.npy" {
		t.Errorf("unexpected file name %s", path)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "Author_Publication_edge_header.tsv"))
	if err != nil {
		t.Fatalf("companion header missing: %v", err)
	}
	if string(raw) != ":START_ID(Publication)\t:END_ID(Author)" {
		t.Errorf("header = %q", raw)
	}

	// An npy file without its header cannot be interpreted.
	os.Remove(filepath.Join(dir, "Author_Publication_edge_header.tsv"))
	if _, err := LoadEdge(path, edge.BackendDense); !errors.Is(err, types.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestEdgeLoadConvertsBackend(t *testing.T) {
	dense, _ := edge.New(edge.BackendDense, "Publication", "Author", written)
	path, err := SaveEdge(dense, "Author-Publication", t.TempDir(), FormatBinary)
	if err != nil {
		t.Fatal(err)
	}
	got, err := LoadEdge(path, edge.BackendCompressed)
	if err != nil {
		t.Fatal(err)
	}
	if got.Backend() != edge.BackendCompressed || !edge.Equal(got, dense) {
		t.Errorf("npy -> compressed: backend %s, pairs %v", got.Backend(), got.Pairs())
	}
}

func TestCorruptGraphFile(t *testing.T) {
	c, _ := edge.New(edge.BackendCompressed, "Publication", "Author", written)
	path, err := SaveEdge(c, "Author-Publication", t.TempDir(), FormatBinary)
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(path)
	raw[len(raw)-1] ^= 0xFF
	os.WriteFile(path, raw, 0o644)

	if _, err := LoadEdge(path, edge.BackendCompressed); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestCorruptNPYShape(t *testing.T) {
	dense, _ := edge.New(edge.BackendDense, "Author", "Publication", written)
	path, err := SaveEdge(dense, "Author-Publication", t.TempDir(), FormatBinary)
	if err != nil {
		t.Fatal(err)
	}

	// Rewrite the array with a row count far beyond the data on disk.
	dict := "{'descr': '<i8', 'fortran_order': False, 'shape': (4611686018427387904, 2), }\n"
	raw := append([]byte(npyMagic), 1, 0, byte(len(dict)), 0)
	raw = append(raw, dict...)
	raw = append(raw, make([]byte, 32)...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEdge(path, edge.BackendDense); !errors.Is(err, types.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestFrameLengthBeyondFile(t *testing.T) {
	// A lone header claiming a 4 GiB payload.
	header := []byte{MagicByte, FrameLines, 0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0}
	path := filepath.Join(t.TempDir(), "Author_Publication_edges.ig")
	if err := os.WriteFile(path, header, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEdge(path, edge.BackendCompressed); !errors.Is(err, ErrIncompleteFrame) {
		t.Errorf("expected ErrIncompleteFrame, got %v", err)
	}
}

func TestUnsupportedFormats(t *testing.T) {
	if _, err := ParseFormat("parquet"); !errors.Is(err, types.ErrUnsupportedFormat) {
		t.Errorf("ParseFormat: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := LoadNode("Author_nodes.csv"); !errors.Is(err, types.ErrUnsupportedFormat) {
		t.Errorf("LoadNode: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := LoadEdge("A_B_edges.parquet", edge.BackendDense); !errors.Is(err, types.ErrUnsupportedFormat) {
		t.Errorf("LoadEdge: expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := LoadNode(filepath.Join(t.TempDir(), "Author_nodes.tsv")); !errors.Is(err, types.ErrFileNotFound) {
		t.Errorf("missing file: expected ErrFileNotFound, got %v", err)
	}
}

func TestEdgeHeaderParsing(t *testing.T) {
	start, end, err := ParseEdgeHeader("pub:START_ID(Publication)\tauth:END_ID(Author)\n")
	if err != nil || start != "Publication" || end != "Author" {
		t.Errorf("ParseEdgeHeader = %q, %q, %v", start, end, err)
	}
	if _, _, err := ParseEdgeHeader(":START_ID(Publication)"); !errors.Is(err, types.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

// graphDir writes a small three-type graph and returns its directory.
func graphDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pubs, _ := node.FromColumns(table.NewIDColumn("id", []types.ID{1, 2, 3}))
	chems, _ := node.FromColumns(table.NewIDColumn("id", []types.ID{100}))

	if _, err := SaveNode(authors(t), "Author", dir, FormatTSV); err != nil {
		t.Fatal(err)
	}
	// Two formats of the same table: the binary one must win.
	if _, err := SaveNode(pubs, "Publication", dir, FormatGzip); err != nil {
		t.Fatal(err)
	}
	if _, err := SaveNode(pubs, "Publication", dir, FormatBinary); err != nil {
		t.Fatal(err)
	}
	if _, err := SaveNode(chems, "Chemical", dir, FormatTSV); err != nil {
		t.Fatal(err)
	}

	ap, _ := edge.New(edge.BackendDense, "Publication", "Author", written)
	if _, err := SaveEdge(ap, "Author-Publication", dir, FormatTSV); err != nil {
		t.Fatal(err)
	}
	if _, err := SaveEdge(ap, "Author-Publication", dir, FormatBinary); err != nil {
		t.Fatal(err)
	}
	// File name pair order is reversed relative to the canonical key.
	if err := os.WriteFile(filepath.Join(dir, "Publication_Chemical_edges.tsv"),
		[]byte(":START_ID(Publication)\t:END_ID(Chemical)\n1\t100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Noise that discovery must ignore.
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "Author_nodes.csv"), []byte("x"), 0o644)
	return dir
}

func TestDiscoveryPreference(t *testing.T) {
	dir := graphDir(t)

	nodes, err := NodeFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 3 {
		t.Fatalf("found node types %v", nodes)
	}
	if got := filepath.Base(nodes["Publication"][0]); got != "Publication_nodes.feather" {
		t.Errorf("preferred publication file %s", got)
	}

	edges, err := EdgeFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := filepath.Base(edges["Author-Publication"][0]); got != "Author_Publication_edges.npy" {
		t.Errorf("preferred edge file %s", got)
	}
	if _, ok := edges["Chemical-Publication"]; !ok {
		t.Errorf("reversed pair order not discovered: %v", edges)
	}
}

func TestDiscoverSelection(t *testing.T) {
	dir := graphDir(t)

	tests := []struct {
		name      string
		nodes     []string
		edges     [][2]string
		wantNodes []string
		wantEdges []string
	}{
		{"all", nil, nil, []string{"Author", "Chemical", "Publication"}, []string{"Author-Publication", "Chemical-Publication"}},
		{"edges listed", nil, [][2]string{{"Publication", "Author"}}, []string{"Author", "Publication"}, []string{"Author-Publication"}},
		{"nodes listed", []string{"Publication", "Chemical"}, nil, []string{"Chemical", "Publication"}, []string{"Chemical-Publication"}},
		{"both listed", []string{"Author"}, [][2]string{{"Chemical", "Publication"}}, []string{"Author"}, []string{"Chemical-Publication"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := Discover(dir, tt.nodes, tt.edges)
			if err != nil {
				t.Fatal(err)
			}
			if len(files.Nodes) != len(tt.wantNodes) {
				t.Errorf("nodes = %v, want %v", files.Nodes, tt.wantNodes)
			}
			for _, n := range tt.wantNodes {
				if _, ok := files.Nodes[n]; !ok {
					t.Errorf("node %s not selected", n)
				}
			}
			if len(files.Edges) != len(tt.wantEdges) {
				t.Errorf("edges = %v, want %v", files.Edges, tt.wantEdges)
			}
			for _, k := range tt.wantEdges {
				if _, ok := files.Edges[k]; !ok {
					t.Errorf("edge %s not selected", k)
				}
			}
		})
	}

	if _, err := Discover(dir, []string{"Gene"}, nil); !errors.Is(err, types.ErrFileNotFound) {
		t.Errorf("missing node: expected ErrFileNotFound, got %v", err)
	}
	if _, err := Discover(dir, nil, [][2]string{{"Gene", "Publication"}}); !errors.Is(err, types.ErrFileNotFound) {
		t.Errorf("missing edge: expected ErrFileNotFound, got %v", err)
	}
	if _, err := Discover(filepath.Join(dir, "nope"), nil, nil); !errors.Is(err, types.ErrFileNotFound) {
		t.Errorf("missing dir: expected ErrFileNotFound, got %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := graphDir(t)
	files, err := Discover(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	nodes, edges, err := LoadDir(context.Background(), files, edge.BackendCompressed, 2, nil)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(nodes) != 3 || len(edges) != 2 {
		t.Fatalf("loaded %d nodes, %d edges", len(nodes), len(edges))
	}
	if !nodes["Author"].Equal(authors(t)) {
		t.Error("author table differs after load")
	}
	ap := edges["Author-Publication"]
	if ap.Backend() != edge.BackendCompressed || ap.Len() != len(written) {
		t.Errorf("Author-Publication: backend %s, %d edges", ap.Backend(), ap.Len())
	}

	// One unreadable file fails the whole load.
	files.Edges["Author-Publication"] = filepath.Join(dir, "Missing_Thing_edges.tsv")
	if _, _, err := LoadDir(context.Background(), files, edge.BackendDense, 2, nil); !errors.Is(err, types.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}
