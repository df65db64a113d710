package ddl

import (
	"strings"

	"bindingetl/internal/record"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, DOUBLE PRECISION)
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the table name in dotted form (e.g. "public.bindings") and
// an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Dialect captures the few rendering differences between SQL backends.
type Dialect struct {
	Name string
	// Types maps a canonical field kind to the backend column type.
	Types map[record.Kind]string
}

// Quote double-quotes an identifier and escapes embedded quotes. Postgres
// and SQLite agree on this form.
func Quote(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteFQN quotes each dotted segment of a table name.
func QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, Quote(p))
	}
	return strings.Join(out, ".")
}

var (
	SQLite = Dialect{
		Name:  "sqlite",
		Types: map[record.Kind]string{record.KindText: "TEXT", record.KindFloat: "REAL"},
	}
	Postgres = Dialect{
		Name:  "postgres",
		Types: map[record.Kind]string{record.KindText: "TEXT", record.KindFloat: "DOUBLE PRECISION"},
	}
)

// CanonicalTable returns the table definition for the canonical record schema
// under d. Required fields are NOT NULL.
func CanonicalTable(fqn string, d Dialect) TableDef {
	t := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, record.NumFields)}
	for _, f := range record.Fields {
		t.Columns = append(t.Columns, ColumnDef{
			Name:     f.Name,
			SQLType:  d.Types[f.Kind],
			Nullable: !f.Required,
		})
	}
	return t
}
