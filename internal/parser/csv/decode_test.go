package csv

import (
	"bytes"
	"strings"
	"testing"
)

func TestDetectEncoding(t *testing.T) {
	split := append(bytes.Repeat([]byte("a"), scanBlock-1), "é\n"...)

	cases := []struct {
		name string
		in   []byte
		want Encoding
	}{
		{"empty", nil, EncodingUTF8},
		{"ascii", []byte("a\tb\n1\t2\n"), EncodingUTF8},
		{"utf8_multibyte", []byte("name\nprotéine β\n"), EncodingUTF8},
		{"latin1_byte", []byte("name\nprot\xe9ine\n"), EncodingLatin1},
		{"rune_split_across_blocks", split, EncodingUTF8},
		{"truncated_rune_at_eof", []byte("abc\xc3"), EncodingLatin1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectEncoding(bytes.NewReader(tc.in))
			if err != nil {
				t.Fatalf("DetectEncoding err: %v", err)
			}
			if got != tc.want {
				t.Fatalf("DetectEncoding=%s; want %s", got, tc.want)
			}
		})
	}
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{
		"":           EncodingAuto,
		"AUTO":       EncodingAuto,
		"utf8":       EncodingUTF8,
		" UTF-8 ":    EncodingUTF8,
		"ISO-8859-1": EncodingLatin1,
		"latin-1":    EncodingLatin1,
	} {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Fatalf("ParseEncoding(%q)=%s,%v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseEncoding("cp1252"); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("cp1252 err=%v; want unsupported", err)
	}
}

func TestHeaderFingerprint_StableAcrossCleanup(t *testing.T) {
	a := NormalizeHeader([]string{"\uFEFFLigand SMILES", " Ki (nM) "})
	b := NormalizeHeader([]string{"Ligand SMILES", "Ki (nM)"})
	if HeaderFingerprint(a) != HeaderFingerprint(b) {
		t.Fatalf("fingerprints differ for equivalent headers: %q vs %q", a, b)
	}
	c := NormalizeHeader([]string{"Ki (nM)", "Ligand SMILES"})
	if HeaderFingerprint(a) == HeaderFingerprint(c) {
		t.Fatalf("reordered header should change the fingerprint")
	}
}
