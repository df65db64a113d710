// Package schema reconciles source column names with the canonical record
// schema. It does no I/O: given the columns of one chunk it decides, per
// canonical field, which source columns feed it and in what priority.
package schema

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"bindingetl/internal/parser/csv"
	"bindingetl/internal/record"
)

// Rule maps one source column label to a canonical field name.
type Rule struct {
	Source string
	Target string
}

// DefaultRules is the hand-curated BindingDB mapping, in priority order. When
// two rules share a target, the earlier one wins wherever it has a value.
var DefaultRules = []Rule{
	{"Ligand SMILES", "smiles"},
	{"Ligand InChI", "inchi"},
	{"Ligand InChI Key", "inchikey"},
	{"BindingDB Target Chain Sequence", "target_sequence"},
	{"Target Name Assigned by Curator or DataSource", "target_name"},
	{"Target Name", "target_name"},
	{"Ki (nM)", "ki_nm"},
	{"IC50 (nM)", "ic50_nm"},
	{"Kd (nM)", "kd_nm"},
	{"EC50 (nM)", "ec50_nm"},
	{"kon (1/Ms)", "kon"},
	{"koff (1/s)", "koff"},
	{"pH", "ph"},
	{"Temp (C)", "temp_c"},
	{"PMID", "pubmed_id"},
	{"PubChem CID", "pubchem_cid"},
	{"UniProt (SwissProt) Primary ID of Target Chain", "uniprot_id"},
}

// FallbackSmilesColumn supplies smiles when no rule source for it is present.
const FallbackSmilesColumn = "SMILES"

// Mapper resolves chunks against an ordered rule list.
type Mapper struct {
	byField [record.NumFields][]string
	isNull  func(string) bool
}

// NewMapper validates rules and groups them per canonical field, keeping
// declaration order. isNull decides whether a raw value counts as missing
// during resolution; nil means only the empty string does.
func NewMapper(rules []Rule, isNull func(string) bool) (*Mapper, error) {
	m := &Mapper{isNull: isNull}
	if m.isNull == nil {
		m.isNull = func(s string) bool { return s == "" }
	}
	seen := make(map[Rule]bool, len(rules))
	for i, r := range rules {
		src := norm.NFC.String(strings.TrimSpace(r.Source))
		if src == "" {
			return nil, fmt.Errorf("rule %d: empty source", i)
		}
		f := record.Index(r.Target)
		if f < 0 {
			return nil, fmt.Errorf("rule %d (%q): unknown canonical field %q", i, src, r.Target)
		}
		key := Rule{src, r.Target}
		if seen[key] {
			continue
		}
		seen[key] = true
		m.byField[f] = append(m.byField[f], src)
	}
	return m, nil
}

// Match describes how one canonical field is fed for a given header.
type Match struct {
	Field    string
	Sources  []string // present source columns, priority order
	Fallback bool     // fed by FallbackSmilesColumn
}

// plan computes the ordered present sources for every field.
func (m *Mapper) plan(has func(string) bool) [record.NumFields]Match {
	var out [record.NumFields]Match
	for f := range out {
		out[f].Field = record.Fields[f].Name
		for _, src := range m.byField[f] {
			if has(src) {
				out[f].Sources = append(out[f].Sources, src)
			}
		}
	}
	if len(out[record.Smiles].Sources) == 0 && has(FallbackSmilesColumn) {
		out[record.Smiles].Sources = []string{FallbackSmilesColumn}
		out[record.Smiles].Fallback = true
	}
	return out
}

// Describe reports, per canonical field in schema order, which of columns
// would feed it. Fields with no Sources will be entirely null.
func (m *Mapper) Describe(columns []string) []Match {
	set := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	p := m.plan(func(s string) bool { _, ok := set[s]; return ok })
	return p[:]
}

// Frame is a chunk seen through the canonical schema: exactly NumFields
// columns in schema order, each backed by zero or more source columns.
type Frame struct {
	rows    int
	matches [record.NumFields]Match
	cols    [record.NumFields][][]string
	isNull  func(string) bool
}

// Resolve binds a chunk to the canonical schema. Missing optional columns are
// normal and produce all-null fields.
func (m *Mapper) Resolve(c *csv.Chunk) *Frame {
	fr := &Frame{rows: c.Len(), isNull: m.isNull}
	fr.matches = m.plan(c.Has)
	for f, mt := range fr.matches {
		for _, src := range mt.Sources {
			col, _ := c.Column(src)
			fr.cols[f] = append(fr.cols[f], col)
		}
	}
	return fr
}

// Len returns the number of rows.
func (fr *Frame) Len() int { return fr.rows }

// Matches returns the per-field source binding used for this frame.
func (fr *Frame) Matches() []Match { return fr.matches[:] }

// Value returns the raw value of canonical field f at row, and whether it is
// non-null.
func (fr *Frame) Value(f, row int) (string, bool) {
	return FirstNonNull(fr.cols[f], row, fr.isNull)
}

// Column materializes canonical field f. Null cells are empty strings.
func (fr *Frame) Column(f int) []string {
	out := make([]string, fr.rows)
	for i := range out {
		out[i], _ = fr.Value(f, i)
	}
	return out
}

// FirstNonNull returns the value at row of the first column, in priority
// order, that is not null there. It holds no state between calls.
func FirstNonNull(cols [][]string, row int, isNull func(string) bool) (string, bool) {
	for _, col := range cols {
		if row < len(col) && !isNull(col[row]) {
			return col[row], true
		}
	}
	return "", false
}
