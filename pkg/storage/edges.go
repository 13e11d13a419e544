package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/edge"
	"github.com/sanonone/pubnet/pkg/metrics"
)

var (
	startToken = regexp.MustCompile(`^[^:]*:START_ID\(([^)]+)\)$`)
	endToken   = regexp.MustCompile(`^[^:]*:END_ID\(([^)]+)\)$`)
)

// EdgeHeader renders the header line naming both endpoint types.
func EdgeHeader(startID, endID string) string {
	return fmt.Sprintf(":START_ID(%s)\t:END_ID(%s)", startID, endID)
}

// ParseEdgeHeader extracts the endpoint type names from a header line.
func ParseEdgeHeader(line string) (string, string, error) {
	tokens := strings.Split(strings.TrimSpace(line), "\t")
	if len(tokens) != 2 {
		return "", "", fmt.Errorf("%w: edge header %q must have two columns", types.ErrInvalidArgument, line)
	}
	s := startToken.FindStringSubmatch(tokens[0])
	e := endToken.FindStringSubmatch(tokens[1])
	if s == nil || e == nil {
		return "", "", fmt.Errorf("%w: edge header %q", types.ErrInvalidArgument, line)
	}
	return s[1], e[1], nil
}

// LoadEdge reads an edge table into the requested backend.
func LoadEdge(path string, backend edge.Backend) (edge.Collection, error) {
	start := time.Now()
	ext := extOf(path)

	var (
		c   edge.Collection
		err error
	)
	switch ext {
	case ExtTSV, ExtGzip:
		c, err = readEdgeTSV(path, backend)
	case ExtNPY:
		c, err = readEdgeNPY(path, backend)
	case ExtGraph:
		c, err = readEdgeGraph(path, backend)
	default:
		return nil, fmt.Errorf("%w: edge file %s", types.ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load edge %s: %w", path, err)
	}
	metrics.LoadDuration.WithLabelValues("edge", ext).Observe(time.Since(start).Seconds())
	return c, nil
}

// SaveEdge writes c under dir using the file name derived from key and
// returns the path. The binary format depends on the backend: npy for dense
// collections, the framed native graph for compressed ones.
func SaveEdge(c edge.Collection, key, dir string, format Format) (string, error) {
	a, b, err := edge.Parts(key)
	if err != nil {
		return "", err
	}

	var ext string
	switch format {
	case FormatTSV, "":
		ext = ExtTSV
	case FormatGzip:
		ext = ExtGzip
	case FormatBinary:
		ext = ExtNPY
		if c.Backend() == edge.BackendCompressed {
			ext = ExtGraph
		}
	default:
		return "", fmt.Errorf("%w: save format %q", types.ErrUnsupportedFormat, format)
	}

	path := filepath.Join(dir, EdgeFileName(a, b, ext))
	header := EdgeHeader(c.StartID(), c.EndID())
	switch ext {
	case ExtTSV, ExtGzip:
		err = writeEdgeTSV(path, ext == ExtGzip, header, c)
	case ExtNPY:
		err = writeEdgeNPY(path, c)
	case ExtGraph:
		err = writeEdgeGraph(path, header, c.(*edge.Compressed))
	}
	if err == nil && (ext == ExtNPY || ext == ExtGraph) {
		err = writeAtomic(filepath.Join(dir, EdgeHeaderName(a, b)), func(w *bufio.Writer) error {
			_, err := w.WriteString(header)
			return err
		})
	}
	if err != nil {
		return "", fmt.Errorf("save edge %s: %w", key, err)
	}
	metrics.SavedCollections.WithLabelValues("edge", ext).Inc()
	return path, nil
}

func writeEdgeTSV(path string, compress bool, header string, c edge.Collection) error {
	return writeText(path, compress, func(w *bufio.Writer) error {
		if _, err := w.WriteString(header + "\n"); err != nil {
			return err
		}
		var num []byte
		for _, p := range c.Pairs() {
			num = strconv.AppendInt(num[:0], int64(p[0]), 10)
			num = append(num, '\t')
			num = strconv.AppendInt(num, int64(p[1]), 10)
			num = append(num, '\n')
			if _, err := w.Write(num); err != nil {
				return err
			}
		}
		return nil
	})
}

func readEdgeTSV(path string, backend edge.Backend) (edge.Collection, error) {
	rc, err := openText(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	sc := newScanner(rc)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: empty edge file without header", types.ErrInvalidArgument)
	}
	startID, endID, err := ParseEdgeHeader(sc.Text())
	if err != nil {
		return nil, err
	}

	var pairs [][2]types.ID
	line := 1
	for sc.Scan() {
		line++
		text := sc.Text()
		if text == "" {
			continue
		}
		a, b, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("%w: line %d needs two columns", types.ErrShapeMismatch, line)
		}
		s, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		e, err := strconv.ParseInt(b, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pairs = append(pairs, [2]types.ID{types.ID(s), types.ID(e)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return edge.New(backend, startID, endID, pairs)
}

// headerPathFor maps an edge file to its companion header file.
func headerPathFor(path string) string {
	dir, base := filepath.Split(path)
	if i := strings.LastIndex(base, "_edges."); i >= 0 {
		base = base[:i]
	}
	return filepath.Join(dir, base+"_edge_header.tsv")
}

func readCompanionHeader(path string) (string, string, error) {
	hp := headerPathFor(path)
	raw, err := os.ReadFile(hp)
	if os.IsNotExist(err) {
		return "", "", fmt.Errorf("%w: edge header %s", types.ErrFileNotFound, hp)
	}
	if err != nil {
		return "", "", err
	}
	line, _, _ := strings.Cut(string(raw), "\n")
	return ParseEdgeHeader(line)
}

// NumPy .npy v1.0 layout for a little-endian int64 array of shape (N, 2).
const npyMagic = "\x93NUMPY"

var (
	npyDescr = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	npyOrder = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	npyShape = regexp.MustCompile(`'shape':\s*\((\d+),\s*(\d+)\s*,?\s*\)`)
)

func writeEdgeNPY(path string, c edge.Collection) error {
	pairs := c.Pairs()
	dict := fmt.Sprintf("{'descr': '<i8', 'fortran_order': False, 'shape': (%d, 2), }", len(pairs))
	// magic(6) + version(2) + header length(2) + dict, padded with spaces and
	// terminated by a newline to a multiple of 64 bytes.
	total := len(npyMagic) + 4 + len(dict) + 1
	if rem := total % 64; rem != 0 {
		dict += strings.Repeat(" ", 64-rem)
	}
	dict += "\n"

	return writeAtomic(path, func(w *bufio.Writer) error {
		w.WriteString(npyMagic)
		w.Write([]byte{1, 0})
		var hl [2]byte
		binary.LittleEndian.PutUint16(hl[:], uint16(len(dict)))
		w.Write(hl[:])
		if _, err := w.WriteString(dict); err != nil {
			return err
		}
		var buf [16]byte
		for _, p := range pairs {
			binary.LittleEndian.PutUint64(buf[0:8], uint64(p[0]))
			binary.LittleEndian.PutUint64(buf[8:16], uint64(p[1]))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

func readEdgeNPY(path string, backend edge.Backend) (edge.Collection, error) {
	startID, endID, err := readCompanionHeader(path)
	if err != nil {
		return nil, err
	}
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)

	prefix := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, prefix); err != nil || string(prefix[:len(npyMagic)]) != npyMagic {
		return nil, fmt.Errorf("%w: %s is not an npy file", types.ErrUnsupportedFormat, path)
	}
	var headerLen, offset int64
	switch major := prefix[len(npyMagic)]; major {
	case 1:
		var hl [2]byte
		if _, err := io.ReadFull(r, hl[:]); err != nil {
			return nil, err
		}
		headerLen = int64(binary.LittleEndian.Uint16(hl[:]))
		offset = int64(len(prefix)) + 2 + headerLen
	case 2, 3:
		var hl [4]byte
		if _, err := io.ReadFull(r, hl[:]); err != nil {
			return nil, err
		}
		headerLen = int64(binary.LittleEndian.Uint32(hl[:]))
		offset = int64(len(prefix)) + 4 + headerLen
	default:
		return nil, fmt.Errorf("%w: npy version %d", types.ErrUnsupportedFormat, major)
	}
	if offset > info.Size() {
		return nil, fmt.Errorf("%w: npy header length %d exceeds file size", types.ErrShapeMismatch, headerLen)
	}
	dict := make([]byte, headerLen)
	if _, err := io.ReadFull(r, dict); err != nil {
		return nil, err
	}

	descr := npyDescr.FindSubmatch(dict)
	order := npyOrder.FindSubmatch(dict)
	shape := npyShape.FindSubmatch(dict)
	if descr == nil || order == nil || shape == nil {
		return nil, fmt.Errorf("%w: npy header %q", types.ErrUnsupportedFormat, bytes.TrimSpace(dict))
	}
	if d := string(descr[1]); d != "<i8" && d != "<u8" {
		return nil, fmt.Errorf("%w: npy dtype %s, want <i8", types.ErrUnsupportedFormat, d)
	}
	if string(order[1]) != "False" {
		return nil, fmt.Errorf("%w: fortran-ordered npy arrays", types.ErrUnsupportedFormat)
	}
	rows, err := strconv.ParseInt(string(shape[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: npy row count %q", types.ErrShapeMismatch, shape[1])
	}
	if cols, err := strconv.Atoi(string(shape[2])); err != nil || cols != 2 {
		return nil, fmt.Errorf("%w: npy shape (%s, %s), want (N, 2)", types.ErrShapeMismatch, shape[1], shape[2])
	}
	// Each row is two int64 values; the data must be on disk before allocating.
	if remaining := info.Size() - offset; rows > remaining/16 {
		return nil, fmt.Errorf("%w: npy declares %d rows, file holds %d", types.ErrShapeMismatch, rows, remaining/16)
	}

	flat := make([]types.ID, 2*rows)
	var buf [8]byte
	for i := range flat {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("%w: npy data ends after %d of %d values", types.ErrShapeMismatch, i, len(flat))
		}
		flat[i] = types.ID(binary.LittleEndian.Uint64(buf[:]))
	}

	dense, err := edge.NewDenseFlat(startID, endID, flat)
	if err != nil {
		return nil, err
	}
	return edge.Convert(dense, backend)
}

func writeEdgeGraph(path, header string, c *edge.Compressed) error {
	vertices := c.Vertices()
	vbuf := make([]byte, 0, 9*len(vertices))
	for _, v := range vertices {
		vbuf = append(vbuf, byte(v.Side))
		vbuf = binary.LittleEndian.AppendUint64(vbuf, uint64(v.Value))
	}
	lines := c.Lines()
	lbuf := make([]byte, 0, 16*len(lines))
	for _, l := range lines {
		lbuf = binary.LittleEndian.AppendUint64(lbuf, uint64(l[0]))
		lbuf = binary.LittleEndian.AppendUint64(lbuf, uint64(l[1]))
	}

	return writeAtomic(path, func(w *bufio.Writer) error {
		fw := NewFrameWriter(w)
		if err := fw.WriteFrame(FrameHeader, []byte(header)); err != nil {
			return err
		}
		if err := fw.WriteFrame(FrameVertices, vbuf); err != nil {
			return err
		}
		return fw.WriteFrame(FrameLines, lbuf)
	})
}

func readEdgeGraph(path string, backend edge.Backend) (edge.Collection, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	r := bufio.NewReader(f)
	remaining := info.Size()

	var (
		startID, endID string
		vertices       []edge.Vertex
		lines          [][2]int64
		seen           = map[byte]bool{}
	)
	for {
		kind, payload, err := ReadFrame(r, remaining)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		remaining -= int64(HeaderSize + len(payload))
		seen[kind] = true
		switch kind {
		case FrameHeader:
			startID, endID, err = ParseEdgeHeader(string(payload))
			if err != nil {
				return nil, err
			}
		case FrameVertices:
			if len(payload)%9 != 0 {
				return nil, fmt.Errorf("%w: vertex frame length %d", types.ErrShapeMismatch, len(payload))
			}
			vertices = make([]edge.Vertex, len(payload)/9)
			for i := range vertices {
				rec := payload[9*i : 9*i+9]
				vertices[i] = edge.Vertex{Side: edge.Side(rec[0]), Value: types.ID(binary.LittleEndian.Uint64(rec[1:]))}
			}
		case FrameLines:
			if len(payload)%16 != 0 {
				return nil, fmt.Errorf("%w: edge frame length %d", types.ErrShapeMismatch, len(payload))
			}
			lines = make([][2]int64, len(payload)/16)
			for i := range lines {
				lines[i][0] = int64(binary.LittleEndian.Uint64(payload[16*i:]))
				lines[i][1] = int64(binary.LittleEndian.Uint64(payload[16*i+8:]))
			}
		default:
			return nil, fmt.Errorf("%w: unknown frame kind %#x", types.ErrUnsupportedFormat, kind)
		}
	}
	if !seen[FrameHeader] || !seen[FrameVertices] || !seen[FrameLines] {
		return nil, fmt.Errorf("%w: %s is missing graph frames", types.ErrInvalidArgument, path)
	}

	c, err := edge.NewCompressedGraph(startID, endID, vertices, lines)
	if err != nil {
		return nil, err
	}
	return edge.Convert(c, backend)
}
