package parquet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"bindingetl/internal/record"
)

// Column is one leaf column as found in a file footer.
type Column struct {
	Name     string
	Physical string
	Required bool
}

// Info summarizes a Parquet file footer.
type Info struct {
	Rows      int64
	RowGroups int
	Columns   []Column
	CreatedBy string
	// Metadata holds the footer values for the requested keys that exist.
	Metadata map[string]string
}

// Stat reads the footer of the file at path. metaKeys selects which
// key/value metadata entries to return.
func Stat(path string, metaKeys ...string) (Info, error) {
	rdr, err := pqfile.OpenParquetFile(path, false)
	if err != nil {
		return Info{}, fmt.Errorf("parquet: open %s: %w", path, err)
	}
	defer rdr.Close()

	md := rdr.MetaData()
	info := Info{
		Rows:      rdr.NumRows(),
		RowGroups: rdr.NumRowGroups(),
		CreatedBy: md.GetCreatedBy(),
		Metadata:  map[string]string{},
	}
	sc := md.Schema
	for i := 0; i < sc.NumColumns(); i++ {
		col := sc.Column(i)
		info.Columns = append(info.Columns, Column{
			Name:     col.Name(),
			Physical: col.PhysicalType().String(),
			Required: col.MaxDefinitionLevel() == 0,
		})
	}
	kv := md.KeyValueMetadata()
	for _, k := range metaKeys {
		if v := kv.FindValue(k); v != nil {
			info.Metadata[k] = *v
		}
	}
	return info, nil
}

// Read loads up to limit records (all when limit <= 0) from a file written
// by this package. It checks the file schema matches the canonical one.
func Read(ctx context.Context, path string, limit int) ([]record.Record, error) {
	rdr, err := pqfile.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("parquet: open %s: %w", path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("parquet: arrow reader: %w", err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("parquet: read table: %w", err)
	}
	defer tbl.Release()

	if int(tbl.NumCols()) != record.NumFields {
		return nil, fmt.Errorf("parquet: %s has %d columns, want %d", path, tbl.NumCols(), record.NumFields)
	}

	n := int(tbl.NumRows())
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]record.Record, n)
	for i, f := range record.Fields {
		col := tbl.Column(i)
		if col.Name() != f.Name {
			return nil, fmt.Errorf("parquet: column %d is %q, want %q", i, col.Name(), f.Name)
		}
		if err := fillColumn(out, i, f.Kind, col.Data()); err != nil {
			return nil, fmt.Errorf("parquet: column %s: %w", f.Name, err)
		}
	}
	return out, nil
}

func fillColumn(out []record.Record, field int, kind record.Kind, data *arrow.Chunked) error {
	row := 0
	for _, chunk := range data.Chunks() {
		for j := 0; j < chunk.Len() && row < len(out); j, row = j+1, row+1 {
			switch kind {
			case record.KindText:
				a, ok := chunk.(*array.String)
				if !ok {
					return fmt.Errorf("unexpected array %T", chunk)
				}
				if !a.IsNull(j) {
					out[row].SetText(field, sql.NullString{String: a.Value(j), Valid: true})
				}
			case record.KindFloat:
				a, ok := chunk.(*array.Float64)
				if !ok {
					return fmt.Errorf("unexpected array %T", chunk)
				}
				if !a.IsNull(j) {
					out[row].SetFloat(field, sql.NullFloat64{Float64: a.Value(j), Valid: true})
				}
			}
		}
	}
	return nil
}
