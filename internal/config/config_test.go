package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return p
}

// -----------------------------------------------------------------------------
// Loading
// -----------------------------------------------------------------------------
//
// JSON and TOML files must produce the same Pipeline; numeric options arrive
// as float64 from JSON and int64 from TOML and both read back through Int.

const jsonPipeline = `{
  "job": "bindingdb_monthly",
  "source": { "kind": "file", "file": { "path": "download/extracted/BindingDB_All.tsv" } },
  "parser": { "kind": "tsv", "options": { "encoding": "latin-1", "chunk_size": 5000 } },
  "transform": { "options": { "sentinels": ["nan", "None", "NULL"], "progress_every": 250000 } },
  "storage": { "kind": "parquet", "path": "brick/data.parquet", "compression": "zstd" },
  "runtime": { "chunk_size": 20000 },
  "metrics": { "backend": "pushgateway", "pushgateway_url": "http://localhost:9091" },
  "acquire": { "workdir": "download", "workers": 2 }
}`

const tomlPipeline = `
job = "bindingdb_monthly"

[source]
kind = "file"
file = { path = "download/extracted/BindingDB_All.tsv" }

[parser]
kind = "tsv"
[parser.options]
encoding = "latin-1"
chunk_size = 5000

[transform.options]
sentinels = ["nan", "None", "NULL"]
progress_every = 250000

[storage]
kind = "parquet"
path = "brick/data.parquet"
compression = "zstd"

[runtime]
chunk_size = 20000

[metrics]
backend = "pushgateway"
pushgateway_url = "http://localhost:9091"

[acquire]
workdir = "download"
workers = 2
`

func TestLoad_JSONAndTOMLAgree(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ name, body string }{
		{"pipeline.json", jsonPipeline},
		{"pipeline.toml", tomlPipeline},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Load(writeConfig(t, tc.name, tc.body))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if p.Job != "bindingdb_monthly" {
				t.Fatalf("job=%q; want bindingdb_monthly", p.Job)
			}
			if p.Source.File.Path != "download/extracted/BindingDB_All.tsv" {
				t.Fatalf("source=%+v", p.Source)
			}
			if got := p.Parser.Options.String("encoding", ""); got != "latin-1" {
				t.Fatalf("encoding=%q; want latin-1", got)
			}
			if got := p.Parser.Options.Int("chunk_size", 0); got != 5000 {
				t.Fatalf("chunk_size=%d; want 5000", got)
			}
			if got := p.Transform.Options.StringSlice("sentinels"); !reflect.DeepEqual(got, []string{"nan", "None", "NULL"}) {
				t.Fatalf("sentinels=%v", got)
			}
			if got := p.Transform.Options.Int("progress_every", 0); got != 250000 {
				t.Fatalf("progress_every=%d; want 250000", got)
			}
			want := Storage{Kind: "parquet", Path: "brick/data.parquet", Compression: "zstd"}
			if p.Storage != want {
				t.Fatalf("storage=%+v; want %+v", p.Storage, want)
			}
			if p.Runtime.ChunkSize != 20000 {
				t.Fatalf("runtime.chunk_size=%d; want 20000", p.Runtime.ChunkSize)
			}
			if p.Metrics.Backend != "pushgateway" || p.Metrics.PushgatewayURL != "http://localhost:9091" {
				t.Fatalf("metrics=%+v", p.Metrics)
			}
			if got := p.Acquire.Int("workers", 0); got != 2 {
				t.Fatalf("acquire.workers=%d; want 2", got)
			}
		})
	}
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	t.Parallel()

	p, err := Load(writeConfig(t, "min.json", `{"source": {"kind": "file", "file": {"path": "x.tsv"}}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Job != "bindingetl" {
		t.Fatalf("job=%q; want default", p.Job)
	}
	if p.Storage.Kind != "parquet" || p.Storage.Path != "brick/data.parquet" {
		t.Fatalf("storage=%+v; want parquet default", p.Storage)
	}
	if p.Parser.Options == nil || p.Transform.Options == nil || p.Acquire == nil {
		t.Fatalf("option bags must be non-nil: %+v", p)
	}
	if issues := ValidatePipeline(p); HasErrors(issues) {
		t.Fatalf("defaults should validate, got %+v", issues)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	t.Parallel()

	_, err := Load(writeConfig(t, "bad.json", `{"storage": {"kind": "parquet", "pth": "x"}}`))
	if err == nil || !strings.Contains(err.Error(), "pth") {
		t.Fatalf("err=%v; want unknown field error", err)
	}
	_, err = Load(writeConfig(t, "bad.toml", "[storage]\nknd = \"parquet\"\n"))
	if err == nil {
		t.Fatalf("expected error for unknown TOML key")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

// -----------------------------------------------------------------------------
// Options getters
// -----------------------------------------------------------------------------

func TestOptions_Getters(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":      "x",
		"b":      true,
		"f":      float64(3),
		"i64":    int64(4),
		"i":      5,
		"tab":    `\t`,
		"comma":  ",",
		"arr":    []any{"a", 1, "b"},
		"strs":   []string{"c"},
		"wrongS": 1,
	}
	if got := o.String("s", "d"); got != "x" {
		t.Fatalf("String=%q; want x", got)
	}
	if got := o.String("wrongS", "d"); got != "d" {
		t.Fatalf("String wrong type=%q; want default", got)
	}
	if !o.Bool("b", false) || o.Bool("missing", false) {
		t.Fatalf("Bool mismatch")
	}
	if o.Int("f", 0) != 3 || o.Int("i64", 0) != 4 || o.Int("i", 0) != 5 || o.Int("s", 9) != 9 {
		t.Fatalf("Int mismatch")
	}
	if o.Rune("tab", ',') != '\t' || o.Rune("comma", '\t') != ',' || o.Rune("missing", ';') != ';' {
		t.Fatalf("Rune mismatch")
	}
	if got := o.StringSlice("arr"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("StringSlice=%v", got)
	}
	if got := o.StringSlice("strs"); !reflect.DeepEqual(got, []string{"c"}) {
		t.Fatalf("StringSlice=%v", got)
	}
	if o.StringSlice("missing") != nil {
		t.Fatalf("StringSlice missing should be nil")
	}
}

func TestOptions_NilSafe(t *testing.T) {
	t.Parallel()

	var o Options
	if o.String("k", "d") != "d" || o.Int("k", 7) != 7 {
		t.Fatalf("nil Options must return defaults")
	}
	o = o.Set("k", "v")
	if o.String("k", "") != "v" {
		t.Fatalf("Set on nil map failed")
	}
}

func TestOptions_UnmarshalNull(t *testing.T) {
	t.Parallel()

	var p struct {
		O Options `json:"o"`
	}
	if err := json.Unmarshal([]byte(`{"o": null}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.O == nil {
		t.Fatalf("null options must decode to empty map")
	}
}
