// Package parquet implements the columnar sink on top of the Apache Arrow Go
// Parquet writer.
//
// The physical schema is derived from record.Fields when the sink is opened
// and never changes afterwards. Every WriteChunk call becomes exactly one row
// group: the chunk is converted into column buffers first, then encoded into
// memory, and only a complete row group is written to the file and fsynced.
// A chunk that fails at any step never appears in the finished file: a failed
// write leaves a dead range that the footer does not reference.
package parquet

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/apache/arrow/go/v18/arrow"
	pq "github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/metadata"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"bindingetl/internal/record"
	"bindingetl/internal/storage"
)

// CreatedBy is recorded in the file footer.
const CreatedBy = "bindingetl"

// destination is what the writer needs from the output file.
type destination interface {
	io.WriterAt
	Sync() error
	Close() error
}

// spool sits between the Parquet encoder and the file. Encoded bytes stay in
// memory until commit writes them at their offset. The offset advances even
// when the write fails, so later row groups land where the encoder recorded
// them.
type spool struct {
	dst     destination
	pending bytes.Buffer
	off     int64
}

func (s *spool) Write(p []byte) (int, error) { return s.pending.Write(p) }

func (s *spool) commit() error {
	b := s.pending.Bytes()
	_, err := s.dst.WriteAt(b, s.off)
	s.off += int64(len(b))
	s.pending.Reset()
	if err != nil {
		return err
	}
	return s.dst.Sync()
}

// discard drops pending bytes without writing them, leaving a hole.
func (s *spool) discard() {
	s.off += int64(s.pending.Len())
	s.pending.Reset()
}

// createFile is a test hook.
var createFile = func(path string) (destination, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

// ArrowSchema returns the canonical schema as an Arrow schema. smiles is the
// only non-nullable field.
func ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, record.NumFields)
	for i, f := range record.Fields {
		var typ arrow.DataType = arrow.BinaryTypes.String
		if f.Kind == record.KindFloat {
			typ = arrow.PrimitiveTypes.Float64
		}
		fields[i] = arrow.Field{Name: f.Name, Type: typ, Nullable: !f.Required}
	}
	return arrow.NewSchema(fields, nil)
}

// ParseCompression maps a codec name to a Parquet compression codec.
func ParseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported compression %q (want snappy, zstd, gzip or none)", name)
	}
}

// Writer is a storage.Sink writing one Parquet file.
type Writer struct {
	path     string
	dst      destination
	sp       *spool
	fw       *pqfile.Writer
	rows     int64
	groups   int   // row groups on disk
	appended int   // row groups handed to the encoder
	failed   []int // encoder ordinals excluded from the footer
	broken   error
	closed   bool
}

var _ storage.Sink = (*Writer)(nil)

// Open creates path (and its parent directory) and writes the Parquet header.
// meta is stored as footer key/value metadata.
func Open(path string, codec compress.Compression, meta map[string]string) (*Writer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("parquet: output path must not be empty")
	}
	props := pq.NewWriterProperties(
		pq.WithCompression(codec),
		pq.WithCreatedBy(CreatedBy),
		pq.WithDictionaryDefault(true),
	)
	sc, err := pqarrow.ToParquet(ArrowSchema(), props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("parquet: build schema: %w", err)
	}

	dst, err := createFile(path)
	if err != nil {
		return nil, fmt.Errorf("parquet: create %s: %w", path, err)
	}

	kv := metadata.NewKeyValueMetadata()
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv.Append(k, meta[k])
	}

	sp := &spool{dst: dst}
	fw := pqfile.NewParquetWriter(sp, sc.Root(),
		pqfile.WithWriterProps(props),
		pqfile.WithWriteMetadata(kv),
	)
	if err := sp.commit(); err != nil {
		dst.Close()
		return nil, fmt.Errorf("parquet: write header %s: %w", path, err)
	}
	return &Writer{path: path, dst: dst, sp: sp, fw: fw}, nil
}

// Path returns the output file path.
func (w *Writer) Path() string { return w.path }

// RowGroups returns the number of row groups written so far.
func (w *Writer) RowGroups() int { return w.groups }

// WriteChunk appends recs as one row group and fsyncs the file. Conversion
// errors are returned before anything is encoded. A failed file write or
// fsync is returned as a plain error; the row group is left out of the
// footer and the writer stays usable. Only an encoder failure, after which
// the encoder state is unknown, breaks the writer: that call and every
// further one return storage.ErrSinkBroken.
func (w *Writer) WriteChunk(ctx context.Context, recs []record.Record) (int64, error) {
	if w.closed {
		return 0, fmt.Errorf("parquet: write after close")
	}
	if w.broken != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrSinkBroken, w.broken)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cols, err := buildColumns(recs)
	if err != nil {
		return 0, fmt.Errorf("parquet: convert chunk: %w", err)
	}

	ord := w.appended
	w.appended++
	if err := w.writeRowGroup(cols); err != nil {
		w.sp.discard()
		w.failed = append(w.failed, ord)
		w.broken = err
		return 0, fmt.Errorf("%w: %v", storage.ErrSinkBroken, err)
	}
	if err := w.sp.commit(); err != nil {
		w.failed = append(w.failed, ord)
		return 0, fmt.Errorf("parquet: write row group %d: %w", ord, err)
	}
	w.rows += int64(len(recs))
	w.groups++
	return int64(len(recs)), nil
}

func (w *Writer) writeRowGroup(cols []columnBuf) error {
	rgw := w.fw.AppendRowGroup()
	for i := range cols {
		cw, err := rgw.NextColumn()
		if err != nil {
			return fmt.Errorf("next column %s: %w", record.Fields[i].Name, err)
		}
		if err := cols[i].write(cw); err != nil {
			return fmt.Errorf("write column %s: %w", record.Fields[i].Name, err)
		}
	}
	if err := rgw.Close(); err != nil {
		return fmt.Errorf("close row group: %w", err)
	}
	return nil
}

// Close writes the footer and closes the file. The footer references only
// row groups that reached the disk. It is safe to call more than once; only
// the first call does work.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.writeFooter()
	if cerr := w.dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("parquet: finalize %s: %w", w.path, err)
	}
	if w.broken != nil {
		return fmt.Errorf("parquet: finalize %s: %w", w.path, storage.ErrSinkBroken)
	}
	return nil
}

var magic = []byte("PAR1")

func (w *Writer) writeFooter() error {
	if err := w.fw.Close(); err != nil {
		return err
	}
	if len(w.failed) == 0 {
		return w.sp.commit()
	}

	// Replace the encoder's footer with one that leaves out failed groups.
	w.sp.pending.Reset()
	md, err := w.fw.FileMetadata()
	if err != nil {
		return err
	}
	skip := make(map[int]bool, len(w.failed))
	for _, i := range w.failed {
		skip[i] = true
	}
	keep := make([]int, 0, md.NumRowGroups())
	for i := 0; i < md.NumRowGroups(); i++ {
		if !skip[i] {
			keep = append(keep, i)
		}
	}
	if md, err = md.Subset(keep); err != nil {
		return err
	}
	n, err := md.WriteTo(&w.sp.pending, nil)
	if err != nil {
		return err
	}
	w.sp.pending.Write(binary.LittleEndian.AppendUint32(nil, uint32(n)))
	w.sp.pending.Write(magic)
	return w.sp.commit()
}

// columnBuf holds one column of a chunk in Parquet's leaf representation:
// non-null values packed densely plus one definition level per row (nil for
// required columns).
type columnBuf struct {
	kind   record.Kind
	texts  []pq.ByteArray
	floats []float64
	defs   []int16
}

func (c *columnBuf) write(cw pqfile.ColumnChunkWriter) error {
	switch cw := cw.(type) {
	case *pqfile.ByteArrayColumnChunkWriter:
		if c.kind != record.KindText {
			return fmt.Errorf("physical type mismatch")
		}
		_, err := cw.WriteBatch(c.texts, c.defs, nil)
		return err
	case *pqfile.Float64ColumnChunkWriter:
		if c.kind != record.KindFloat {
			return fmt.Errorf("physical type mismatch")
		}
		_, err := cw.WriteBatch(c.floats, c.defs, nil)
		return err
	default:
		return fmt.Errorf("unexpected column writer %T", cw)
	}
}

// buildColumns converts records to column buffers. It fails on rows that
// would violate the physical schema: an empty required field or text that is
// not valid UTF-8.
func buildColumns(recs []record.Record) ([]columnBuf, error) {
	cols := make([]columnBuf, record.NumFields)
	for i, f := range record.Fields {
		cols[i].kind = f.Kind
		if !f.Required {
			cols[i].defs = make([]int16, 0, len(recs))
		}
		switch f.Kind {
		case record.KindText:
			cols[i].texts = make([]pq.ByteArray, 0, len(recs))
		case record.KindFloat:
			cols[i].floats = make([]float64, 0, len(recs))
		}
	}

	for r := range recs {
		rec := &recs[r]
		for i, f := range record.Fields {
			c := &cols[i]
			valid := false
			switch f.Kind {
			case record.KindText:
				v := rec.Text(i)
				if v.Valid {
					if !utf8.ValidString(v.String) {
						return nil, fmt.Errorf("row %d: %s is not valid UTF-8", r, f.Name)
					}
					c.texts = append(c.texts, pq.ByteArray(v.String))
					valid = true
				}
			case record.KindFloat:
				if v := rec.Float(i); v.Valid {
					c.floats = append(c.floats, v.Float64)
					valid = true
				}
			}
			if f.Required {
				if !valid {
					return nil, fmt.Errorf("row %d: required field %s is empty", r, f.Name)
				}
				continue
			}
			if valid {
				c.defs = append(c.defs, 1)
			} else {
				c.defs = append(c.defs, 0)
			}
		}
	}
	return cols, nil
}

func init() {
	storage.Register("parquet", func(_ context.Context, cfg storage.Config) (storage.Sink, error) {
		codec, err := ParseCompression(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return Open(cfg.Path, codec, cfg.Metadata)
	})
}
