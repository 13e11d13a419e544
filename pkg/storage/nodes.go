package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/sanonone/pubnet/pkg/core/table"
	"github.com/sanonone/pubnet/pkg/core/types"
	"github.com/sanonone/pubnet/pkg/metrics"
	"github.com/sanonone/pubnet/pkg/node"
)

// Arrow field metadata keys. kindKey records a column's Kind; identityKey
// marks the identity column among the id-typed ones.
const (
	kindKey     = "pubnet.kind"
	identityKey = "pubnet.identity"
)

// identity header token, e.g. "id:ID(Author)". An empty name means "id".
var idToken = regexp.MustCompile(`^(.*):ID\(([^)]*)\)$`)

// LoadNode reads a node table, picking the codec from the file extension.
func LoadNode(path string) (*node.Node, error) {
	start := time.Now()
	ext := extOf(path)

	var (
		n   *node.Node
		err error
	)
	switch ext {
	case ExtFeather:
		n, err = readNodeFeather(path)
	case ExtTSV, ExtGzip:
		n, err = readNodeTSV(path)
	default:
		return nil, fmt.Errorf("%w: node file %s", types.ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load node %s: %w", path, err)
	}
	metrics.LoadDuration.WithLabelValues("node", ext).Observe(time.Since(start).Seconds())
	return n, nil
}

// SaveNode writes n as {nodeType}_nodes.{ext} under dir and returns the path.
func SaveNode(n *node.Node, nodeType, dir string, format Format) (string, error) {
	if _, cols := n.Shape(); cols == 0 {
		return "", fmt.Errorf("%w: node %s has no columns to save", types.ErrInvalidArgument, nodeType)
	}
	var (
		ext string
		err error
	)
	switch format {
	case FormatTSV, "":
		ext = ExtTSV
	case FormatGzip:
		ext = ExtGzip
	case FormatBinary:
		ext = ExtFeather
	default:
		return "", fmt.Errorf("%w: save format %q", types.ErrUnsupportedFormat, format)
	}
	path := filepath.Join(dir, NodeFileName(nodeType, ext))
	if ext == ExtFeather {
		err = writeNodeFeather(path, n)
	} else {
		err = writeNodeTSV(path, ext == ExtGzip, nodeType, n)
	}
	if err != nil {
		return "", fmt.Errorf("save node %s: %w", nodeType, err)
	}
	metrics.SavedCollections.WithLabelValues("node", ext).Inc()
	return path, nil
}

func writeNodeTSV(path string, compress bool, nodeType string, n *node.Node) error {
	t := n.Table()
	rows, cols := t.Shape()
	return writeText(path, compress, func(w *bufio.Writer) error {
		header := make([]string, cols)
		for i := 0; i < cols; i++ {
			c := t.ColumnAt(i)
			if c.Name() == n.IDColumn() {
				header[i] = fmt.Sprintf("%s:ID(%s)", escapeCell(c.Name()), nodeType)
			} else {
				header[i] = fmt.Sprintf("%s:%s", escapeCell(c.Name()), c.Kind())
			}
		}
		if _, err := w.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
			return err
		}
		for r := 0; r < rows; r++ {
			for i := 0; i < cols; i++ {
				if i > 0 {
					w.WriteByte('\t')
				}
				w.WriteString(escapeCell(t.ColumnAt(i).Format(r)))
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
}

func readNodeTSV(path string) (*node.Node, error) {
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
		return node.Empty(), nil
	}

	var (
		builders []*table.Builder
		idCol    = node.DefaultIDColumn
		hasID    bool
	)
	for _, token := range strings.Split(sc.Text(), "\t") {
		if m := idToken.FindStringSubmatch(token); m != nil {
			if hasID {
				return nil, fmt.Errorf("%w: more than one identity column", types.ErrInvalidArgument)
			}
			hasID = true
			if m[1] != "" {
				idCol = unescapeCell(m[1])
			}
			builders = append(builders, table.NewBuilder(idCol, table.KindID))
			continue
		}
		// Names may contain ':'; the kind is always the last token.
		sep := strings.LastIndex(token, ":")
		if sep < 0 {
			return nil, fmt.Errorf("%w: header token %q has no kind", types.ErrInvalidArgument, token)
		}
		name, kindName := token[:sep], token[sep+1:]
		kind, err := table.ParseKind(kindName)
		if err != nil {
			return nil, err
		}
		builders = append(builders, table.NewBuilder(unescapeCell(name), kind))
	}
	if !hasID {
		return nil, fmt.Errorf("%w: header has no :ID(...) column", types.ErrInvalidArgument)
	}

	line := 1
	for sc.Scan() {
		line++
		cells := strings.Split(sc.Text(), "\t")
		if len(cells) != len(builders) {
			return nil, fmt.Errorf("%w: line %d has %d cells, header has %d", types.ErrShapeMismatch, line, len(cells), len(builders))
		}
		for i, cell := range cells {
			if err := builders[i].AppendText(unescapeCell(cell)); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	columns := make([]table.Column, len(builders))
	for i, b := range builders {
		columns[i] = b.Column()
	}
	t, err := table.New(columns...)
	if err != nil {
		return nil, err
	}
	return node.NewWithID(t, idCol)
}

func arrowType(k table.Kind) arrow.DataType {
	switch k {
	case table.KindID, table.KindInt:
		return arrow.PrimitiveTypes.Int64
	case table.KindFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

func writeNodeFeather(path string, n *node.Node) error {
	t := n.Table()
	rows, cols := t.Shape()
	pool := memory.NewGoAllocator()

	fields := make([]arrow.Field, cols)
	arrays := make([]arrow.Array, cols)
	defer func() {
		for _, a := range arrays {
			if a != nil {
				a.Release()
			}
		}
	}()

	for i := 0; i < cols; i++ {
		c := t.ColumnAt(i)
		kind := c.Kind()
		keys, values := []string{kindKey}, []string{kind.String()}
		if c.Name() == n.IDColumn() {
			kind = table.KindID
			keys, values = []string{kindKey, identityKey}, []string{kind.String(), "true"}
		}
		fields[i] = arrow.Field{
			Name:     c.Name(),
			Type:     arrowType(kind),
			Metadata: arrow.NewMetadata(keys, values),
		}

		switch v := c.(type) {
		case *table.Vector[types.ID]:
			b := array.NewInt64Builder(pool)
			for _, id := range v.Values() {
				b.Append(int64(id))
			}
			arrays[i] = b.NewArray()
			b.Release()
		case *table.Vector[int64]:
			b := array.NewInt64Builder(pool)
			b.AppendValues(v.Values(), nil)
			arrays[i] = b.NewArray()
			b.Release()
		case *table.Vector[float64]:
			b := array.NewFloat64Builder(pool)
			b.AppendValues(v.Values(), nil)
			arrays[i] = b.NewArray()
			b.Release()
		case *table.Vector[string]:
			b := array.NewStringBuilder(pool)
			b.AppendValues(v.Values(), nil)
			arrays[i] = b.NewArray()
			b.Release()
		default:
			return fmt.Errorf("%w: column %q of type %T", types.ErrUnsupportedFormat, c.Name(), c)
		}
	}

	schema := arrow.NewSchema(fields, nil)
	record := array.NewRecord(schema, arrays, int64(rows))
	defer record.Release()

	return writeAtomicFile(path, func(f *os.File) error {
		fw, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(pool))
		if err != nil {
			return err
		}
		if err := fw.Write(record); err != nil {
			_ = fw.Close()
			return err
		}
		return fw.Close()
	})
}

func readNodeFeather(path string) (*node.Node, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fr, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, err
	}
	defer fr.Close()

	schema := fr.Schema()
	builders := make([]*table.Builder, len(schema.Fields()))
	idCol := ""
	for i, field := range schema.Fields() {
		kind, err := fieldKind(field)
		if err != nil {
			return nil, err
		}
		if isIdentity(field) {
			if kind != table.KindID {
				return nil, fmt.Errorf("%w: identity field %q has kind %s", types.ErrInvalidArgument, field.Name, kind)
			}
			if idCol != "" {
				return nil, fmt.Errorf("%w: more than one identity column", types.ErrInvalidArgument)
			}
			idCol = field.Name
		}
		builders[i] = table.NewBuilder(field.Name, kind)
	}
	if idCol == "" {
		return nil, fmt.Errorf("%w: no field tagged %s", types.ErrInvalidArgument, identityKey)
	}

	for r := 0; r < fr.NumRecords(); r++ {
		// The record stays owned by the reader and is only valid until the next call.
		rec, err := fr.Record(r)
		if err != nil {
			return nil, err
		}
		for i := range builders {
			if err := appendArrow(builders[i], rec.Column(i)); err != nil {
				return nil, fmt.Errorf("field %q: %w", schema.Field(i).Name, err)
			}
		}
	}

	columns := make([]table.Column, len(builders))
	for i, b := range builders {
		columns[i] = b.Column()
	}
	t, err := table.New(columns...)
	if err != nil {
		return nil, err
	}
	return node.NewWithID(t, idCol)
}

func isIdentity(field arrow.Field) bool {
	i := field.Metadata.FindKey(identityKey)
	return i >= 0 && field.Metadata.Values()[i] == "true"
}

func fieldKind(field arrow.Field) (table.Kind, error) {
	if i := field.Metadata.FindKey(kindKey); i >= 0 {
		return table.ParseKind(field.Metadata.Values()[i])
	}
	switch field.Type.ID() {
	case arrow.INT64, arrow.INT32:
		return table.KindInt, nil
	case arrow.FLOAT64, arrow.FLOAT32:
		return table.KindFloat, nil
	case arrow.STRING:
		return table.KindString, nil
	}
	return 0, fmt.Errorf("%w: arrow type %s", types.ErrUnsupportedFormat, field.Type)
}

func appendArrow(b *table.Builder, col arrow.Array) error {
	switch a := col.(type) {
	case *array.Int64:
		for _, v := range a.Int64Values() {
			if err := b.AppendInt(v); err != nil {
				return err
			}
		}
	case *array.Int32:
		for _, v := range a.Int32Values() {
			if err := b.AppendInt(int64(v)); err != nil {
				return err
			}
		}
	case *array.Float64:
		for _, v := range a.Float64Values() {
			if err := b.AppendFloat(v); err != nil {
				return err
			}
		}
	case *array.Float32:
		for _, v := range a.Float32Values() {
			if err := b.AppendFloat(float64(v)); err != nil {
				return err
			}
		}
	case *array.String:
		for i := 0; i < a.Len(); i++ {
			if err := b.AppendString(a.Value(i)); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: arrow array %T", types.ErrUnsupportedFormat, col)
	}
	return nil
}
