// Package storage loads and saves PubNet node and edge collections.
//
// A graph lives in one directory. Node files are named {Type}_nodes.{ext}
// and edge files {TypeA}_{TypeB}_edges.{ext}; the pair order of an edge
// file name does not matter. Supported extensions:
//
//	nodes: feather (Arrow IPC), tsv, tsv.gz
//	edges: npy (int64 N×2), tsv, tsv.gz, ig (framed native graph)
//
// Binary edge files keep their endpoint names in a companion
// {TypeA}_{TypeB}_edge_header.tsv file.
package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/sanonone/pubnet/pkg/core/types"
)

// File extensions.
const (
	ExtFeather = "feather"
	ExtTSV     = "tsv"
	ExtGzip    = "tsv.gz"
	ExtNPY     = "npy"
	ExtGraph   = "ig"
)

// NodeExtPreference is the order in which node files are picked when several
// formats of the same table exist.
var NodeExtPreference = []string{ExtFeather, ExtTSV, ExtGzip}

// EdgeExtPreference is the equivalent order for edge files.
var EdgeExtPreference = []string{ExtNPY, ExtTSV, ExtGzip, ExtGraph}

// Format is a save format.
type Format string

const (
	FormatTSV    Format = "tsv"
	FormatGzip   Format = "gzip"
	FormatBinary Format = "binary"
)

// ParseFormat validates a format name. Empty means tsv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatTSV:
		return FormatTSV, nil
	case FormatGzip:
		return FormatGzip, nil
	case FormatBinary:
		return FormatBinary, nil
	}
	return "", fmt.Errorf("%w: save format %q", types.ErrUnsupportedFormat, s)
}

// NodeFileName returns the file name of a node table.
func NodeFileName(nodeType, ext string) string {
	return fmt.Sprintf("%s_nodes.%s", nodeType, ext)
}

// EdgeFileName returns the file name of an edge table.
func EdgeFileName(a, b, ext string) string {
	return fmt.Sprintf("%s_%s_edges.%s", a, b, ext)
}

// EdgeHeaderName returns the companion header file name of a binary edge table.
func EdgeHeaderName(a, b string) string {
	return fmt.Sprintf("%s_%s_edge_header.tsv", a, b)
}

// extOf returns the extension after the "_nodes." / "_edges." marker.
func extOf(path string) string {
	base := filepath.Base(path)
	for _, marker := range []string{"_nodes.", "_edges."} {
		if i := strings.LastIndex(base, marker); i >= 0 {
			return base[i+len(marker):]
		}
	}
	if strings.HasSuffix(base, ".tsv.gz") {
		return ExtGzip
	}
	return strings.TrimPrefix(filepath.Ext(base), ".")
}

// writeAtomic writes through a uniquely named temporary file in the target
// directory and renames it into place once fn succeeds.
func writeAtomic(path string, fn func(w *bufio.Writer) error) error {
	return writeAtomicFile(path, func(f *os.File) error {
		buf := bufio.NewWriter(f)
		if err := fn(buf); err != nil {
			return err
		}
		return buf.Flush()
	})
}

// writeAtomicFile is writeAtomic for writers that need the raw file, such as
// the Arrow IPC file writer which seeks.
func writeAtomicFile(path string, fn func(f *os.File) error) error {
	// 1. Create the temporary file next to the target
	tmp := fmt.Sprintf("%s.tmp-%s", path, uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	// 2. Write the content
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	// 3. Swap it into place
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// writeText writes a delimited text file, gzip-compressed when compress is set.
func writeText(path string, compress bool, fn func(w *bufio.Writer) error) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		if !compress {
			return fn(w)
		}
		zw := gzip.NewWriter(w)
		bw := bufio.NewWriter(zw)
		if err := fn(bw); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		return zw.Close()
	})
}

// openText opens a delimited text file, transparently decompressing .gz files.
func openText(path string) (io.ReadCloser, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to read gzip %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", types.ErrFileNotFound, path)
	}
	return f, err
}

// newScanner returns a line scanner that tolerates long rows.
func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 64*1024*1024)
	return s
}

var cellEscaper = strings.NewReplacer(`\`, `\\`, "\t", `\t`, "\n", `\n`, "\r", `\r`)

func escapeCell(s string) string { return cellEscaper.Replace(s) }

func unescapeCell(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
