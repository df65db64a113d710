package schema

import (
	"reflect"
	"strings"
	"testing"

	"bindingetl/internal/parser/csv"
	"bindingetl/internal/record"
)

func mustMapper(t *testing.T, isNull func(string) bool) *Mapper {
	t.Helper()
	m, err := NewMapper(DefaultRules, isNull)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	return m
}

/*
TestResolve_AlwaysSixteenColumns: whatever the source carries, the frame
exposes every canonical field, and fields without a source are null.
*/
func TestResolve_AlwaysSixteenColumns(t *testing.T) {
	m := mustMapper(t, nil)
	c := csv.NewChunk(
		[]string{"Ligand SMILES", "Ki (nM)", "Temp (C)", "Unrelated"},
		[][]string{{"CCO", "12.5", "25", "zzz"}},
	)
	fr := m.Resolve(c)

	if got := len(fr.Matches()); got != record.NumFields {
		t.Fatalf("matches=%d; want %d", got, record.NumFields)
	}
	for f := 0; f < record.NumFields; f++ {
		v, ok := fr.Value(f, 0)
		switch f {
		case record.Smiles, record.KiNM, record.TempC:
			if !ok {
				t.Fatalf("%s should be set", record.Fields[f].Name)
			}
		default:
			if ok || v != "" {
				t.Fatalf("%s=%q; want null", record.Fields[f].Name, v)
			}
		}
	}
	if v, _ := fr.Value(record.KiNM, 0); v != "12.5" {
		t.Fatalf("ki_nm=%q", v)
	}
}

/*
TestResolve_CuratorTargetNameWins covers the synonym rules for target_name:
the curator label is preferred, the plain label fills rows where it is null,
and the plain label alone is enough when the curator column is absent.
*/
func TestResolve_CuratorTargetNameWins(t *testing.T) {
	m := mustMapper(t, nil)

	t.Run("curator_only", func(t *testing.T) {
		c := csv.NewChunk(
			[]string{"Ligand SMILES", "Target Name Assigned by Curator or DataSource"},
			[][]string{{"CCO", "Kinase A"}},
		)
		if v, _ := m.Resolve(c).Value(record.TargetName, 0); v != "Kinase A" {
			t.Fatalf("target_name=%q; want Kinase A", v)
		}
	})

	t.Run("both_first_non_null_per_row", func(t *testing.T) {
		c := csv.NewChunk(
			[]string{"Target Name", "Target Name Assigned by Curator or DataSource"},
			[][]string{
				{"plain1", "curated1"},
				{"plain2", ""},
				{"", ""},
			},
		)
		got := m.Resolve(c).Column(record.TargetName)
		if want := []string{"curated1", "plain2", ""}; !reflect.DeepEqual(got, want) {
			t.Fatalf("target_name=%q; want %q", got, want)
		}
	})

	t.Run("plain_only", func(t *testing.T) {
		c := csv.NewChunk([]string{"Target Name"}, [][]string{{"Kinase B"}})
		fr := m.Resolve(c)
		if v, _ := fr.Value(record.TargetName, 0); v != "Kinase B" {
			t.Fatalf("target_name=%q; want Kinase B", v)
		}
		if src := fr.Matches()[record.TargetName].Sources; !reflect.DeepEqual(src, []string{"Target Name"}) {
			t.Fatalf("sources=%q", src)
		}
	})
}

/*
TestResolve_SmilesFallback: a bare SMILES column is used only when no rule
source for smiles exists.
*/
func TestResolve_SmilesFallback(t *testing.T) {
	m := mustMapper(t, nil)

	c := csv.NewChunk([]string{"SMILES"}, [][]string{{"C=O"}})
	fr := m.Resolve(c)
	if v, ok := fr.Value(record.Smiles, 0); !ok || v != "C=O" {
		t.Fatalf("smiles=%q,%v; want C=O", v, ok)
	}
	if !fr.Matches()[record.Smiles].Fallback {
		t.Fatalf("expected fallback flag")
	}

	c = csv.NewChunk([]string{"SMILES", "Ligand SMILES"}, [][]string{{"fallback", "ligand"}})
	fr = m.Resolve(c)
	if v, _ := fr.Value(record.Smiles, 0); v != "ligand" {
		t.Fatalf("smiles=%q; want ligand", v)
	}
	if fr.Matches()[record.Smiles].Fallback {
		t.Fatalf("fallback must not be used when a rule source exists")
	}
}

/*
TestResolve_NullPredicate lets a caller treat sentinel text as missing so a
lower-priority synonym can fill it.
*/
func TestResolve_NullPredicate(t *testing.T) {
	isNull := func(s string) bool { return s == "" || s == "nan" }
	m := mustMapper(t, isNull)
	c := csv.NewChunk(
		[]string{"Target Name Assigned by Curator or DataSource", "Target Name"},
		[][]string{{"nan", "Kinase C"}},
	)
	if v, _ := m.Resolve(c).Value(record.TargetName, 0); v != "Kinase C" {
		t.Fatalf("target_name=%q; want Kinase C", v)
	}
}

func TestFirstNonNull(t *testing.T) {
	empty := func(s string) bool { return s == "" }
	cols := [][]string{{"", "a"}, {"b", "c"}, {"d"}}

	cases := []struct {
		row    int
		want   string
		wantOK bool
	}{
		{0, "b", true},
		{1, "a", true},
		{2, "", false},
	}
	for _, tc := range cases {
		got, ok := FirstNonNull(cols, tc.row, empty)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("row %d: got=%q,%v; want %q,%v", tc.row, got, ok, tc.want, tc.wantOK)
		}
	}
	if _, ok := FirstNonNull(nil, 0, empty); ok {
		t.Fatalf("no columns must resolve to null")
	}
}

func TestNewMapper_RejectsUnknownTarget(t *testing.T) {
	_, err := NewMapper([]Rule{{"Foo", "not_a_field"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown canonical field") {
		t.Fatalf("err=%v; want unknown canonical field", err)
	}
	if _, err := NewMapper([]Rule{{"  ", "smiles"}}, nil); err == nil {
		t.Fatalf("expected error for empty source")
	}
}

func TestDescribe_ListsSourcesInPriorityOrder(t *testing.T) {
	m := mustMapper(t, nil)
	got := m.Describe([]string{"Target Name", "Target Name Assigned by Curator or DataSource", "pH"})
	if len(got) != record.NumFields {
		t.Fatalf("len=%d", len(got))
	}
	tn := got[record.TargetName]
	want := []string{"Target Name Assigned by Curator or DataSource", "Target Name"}
	if tn.Field != "target_name" || !reflect.DeepEqual(tn.Sources, want) {
		t.Fatalf("target_name match=%+v", tn)
	}
	if got[record.PH].Sources[0] != "pH" || len(got[record.InChI].Sources) != 0 {
		t.Fatalf("unexpected matches: ph=%+v inchi=%+v", got[record.PH], got[record.InChI])
	}
}

/*
TestNewMapper_NormalizesRuleSources: a rule written in decomposed form
(e + combining acute) must match the composed header the reader produces.
*/
func TestNewMapper_NormalizesRuleSources(t *testing.T) {
	m, err := NewMapper([]Rule{
		{"Ligand SMILES", "smiles"},
		{"Affinite\u0301 (nM)", "ki_nm"},
	}, nil)
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	header := csv.NormalizeHeader([]string{"Ligand SMILES", "Affinit\u00e9 (nM)"})
	fr := m.Resolve(csv.NewChunk(header, [][]string{{"CCO", "4.2"}}))

	v, ok := fr.Value(record.KiNM, 0)
	if !ok || v != "4.2" {
		t.Fatalf("ki_nm=(%q, %v); want (4.2, true)", v, ok)
	}
}
