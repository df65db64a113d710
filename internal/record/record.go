// Package record defines the canonical output row of the pipeline and the
// fixed schema every sink writes.
//
// The schema is declared here, once, and is never inferred from data. Sinks
// build their physical schema (Parquet, SQL DDL) from Fields so that every
// chunk of a run lands under the same column set, order and types.
package record

import "database/sql"

// Kind is the semantic type of a canonical field.
type Kind uint8

const (
	KindText Kind = iota
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindFloat:
		return "float64"
	default:
		return "unknown"
	}
}

// Field describes one canonical column.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Field indexes, in schema order.
const (
	Smiles = iota
	InChI
	InChIKey
	TargetSequence
	TargetName
	KiNM
	IC50NM
	KdNM
	EC50NM
	Kon
	Koff
	PH
	TempC
	PubMedID
	PubChemCID
	UniProtID

	NumFields
)

// SchemaVersion is bumped whenever Fields changes. It is written into
// artifact metadata.
const SchemaVersion = "1"

// Fields is the canonical schema, in output order.
var Fields = [NumFields]Field{
	Smiles:         {Name: "smiles", Kind: KindText, Required: true},
	InChI:          {Name: "inchi", Kind: KindText},
	InChIKey:       {Name: "inchikey", Kind: KindText},
	TargetSequence: {Name: "target_sequence", Kind: KindText},
	TargetName:     {Name: "target_name", Kind: KindText},
	KiNM:           {Name: "ki_nm", Kind: KindFloat},
	IC50NM:         {Name: "ic50_nm", Kind: KindFloat},
	KdNM:           {Name: "kd_nm", Kind: KindFloat},
	EC50NM:         {Name: "ec50_nm", Kind: KindFloat},
	Kon:            {Name: "kon", Kind: KindFloat},
	Koff:           {Name: "koff", Kind: KindFloat},
	PH:             {Name: "ph", Kind: KindFloat},
	TempC:          {Name: "temp_c", Kind: KindFloat},
	PubMedID:       {Name: "pubmed_id", Kind: KindText},
	PubChemCID:     {Name: "pubchem_cid", Kind: KindFloat},
	UniProtID:      {Name: "uniprot_id", Kind: KindText},
}

// Columns returns the canonical column names in schema order.
func Columns() []string {
	out := make([]string, NumFields)
	for i, f := range Fields {
		out[i] = f.Name
	}
	return out
}

// Index returns the field index for a canonical name, or -1.
func Index(name string) int {
	for i, f := range Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Record is one normalized output row. Smiles is always non-empty for a
// record produced by the normalizer; every other field may be null.
type Record struct {
	Smiles         string
	InChI          sql.NullString
	InChIKey       sql.NullString
	TargetSequence sql.NullString
	TargetName     sql.NullString
	KiNM           sql.NullFloat64
	IC50NM         sql.NullFloat64
	KdNM           sql.NullFloat64
	EC50NM         sql.NullFloat64
	Kon            sql.NullFloat64
	Koff           sql.NullFloat64
	PH             sql.NullFloat64
	TempC          sql.NullFloat64
	PubMedID       sql.NullString
	PubChemCID     sql.NullFloat64
	UniProtID      sql.NullString
}

// Text returns the value of text field i. It panics if i is not a text field.
func (r *Record) Text(i int) sql.NullString {
	switch i {
	case Smiles:
		return sql.NullString{String: r.Smiles, Valid: r.Smiles != ""}
	case InChI:
		return r.InChI
	case InChIKey:
		return r.InChIKey
	case TargetSequence:
		return r.TargetSequence
	case TargetName:
		return r.TargetName
	case PubMedID:
		return r.PubMedID
	case UniProtID:
		return r.UniProtID
	}
	panic("record: field is not text: " + fieldName(i))
}

// Float returns the value of float field i. It panics if i is not a float field.
func (r *Record) Float(i int) sql.NullFloat64 {
	switch i {
	case KiNM:
		return r.KiNM
	case IC50NM:
		return r.IC50NM
	case KdNM:
		return r.KdNM
	case EC50NM:
		return r.EC50NM
	case Kon:
		return r.Kon
	case Koff:
		return r.Koff
	case PH:
		return r.PH
	case TempC:
		return r.TempC
	case PubChemCID:
		return r.PubChemCID
	}
	panic("record: field is not float: " + fieldName(i))
}

// SetText assigns text field i.
func (r *Record) SetText(i int, v sql.NullString) {
	switch i {
	case Smiles:
		if v.Valid {
			r.Smiles = v.String
		} else {
			r.Smiles = ""
		}
	case InChI:
		r.InChI = v
	case InChIKey:
		r.InChIKey = v
	case TargetSequence:
		r.TargetSequence = v
	case TargetName:
		r.TargetName = v
	case PubMedID:
		r.PubMedID = v
	case UniProtID:
		r.UniProtID = v
	default:
		panic("record: field is not text: " + fieldName(i))
	}
}

// SetFloat assigns float field i.
func (r *Record) SetFloat(i int, v sql.NullFloat64) {
	switch i {
	case KiNM:
		r.KiNM = v
	case IC50NM:
		r.IC50NM = v
	case KdNM:
		r.KdNM = v
	case EC50NM:
		r.EC50NM = v
	case Kon:
		r.Kon = v
	case Koff:
		r.Koff = v
	case PH:
		r.PH = v
	case TempC:
		r.TempC = v
	case PubChemCID:
		r.PubChemCID = v
	default:
		panic("record: field is not float: " + fieldName(i))
	}
}

// Values returns the record positionally in schema order, with nil for
// nulls, ready for database/sql or COPY.
func (r *Record) Values() []any {
	out := make([]any, NumFields)
	for i, f := range Fields {
		switch f.Kind {
		case KindText:
			if v := r.Text(i); v.Valid {
				out[i] = v.String
			}
		case KindFloat:
			if v := r.Float(i); v.Valid {
				out[i] = v.Float64
			}
		}
	}
	return out
}

func fieldName(i int) string {
	if i >= 0 && i < NumFields {
		return Fields[i].Name
	}
	return "<out of range>"
}
