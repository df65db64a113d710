// Package config defines the pipeline configuration model for bindingetl. A
// pipeline file is JSON or TOML (chosen by extension) and maps one-to-one onto
// Pipeline. Stage-specific knobs live in free-form Options bags read through
// typed getters, so stages own their option names.
//
// Example (TOML):
//
//	job = "bindingdb_monthly"
//
//	[source]
//	kind = "file"
//	file = { path = "download/extracted/BindingDB_All.tsv" }
//
//	[parser.options]
//	encoding = "auto"
//
//	[storage]
//	kind = "parquet"
//	path = "brick/data.parquet"
//	compression = "zstd"
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels metrics and log lines for this run.
	Job string `json:"job" toml:"job"`

	Source    Source        `json:"source" toml:"source"`
	Parser    Parser        `json:"parser" toml:"parser"`
	Transform Transform     `json:"transform" toml:"transform"`
	Storage   Storage       `json:"storage" toml:"storage"`
	Runtime   RuntimeConfig `json:"runtime" toml:"runtime"`
	Metrics   Metrics       `json:"metrics" toml:"metrics"`

	// Acquire configures the fetch stage: listing_url, base_url, workdir,
	// workers, max_retries.
	Acquire Options `json:"acquire" toml:"acquire"`
}

// RuntimeConfig holds run-wide knobs. Zero means "use the stage default".
type RuntimeConfig struct {
	// ChunkSize overrides parser.options.chunk_size when positive.
	ChunkSize int `json:"chunk_size" toml:"chunk_size"`
	// ProgressEvery overrides transform.options.progress_every when positive.
	ProgressEvery int `json:"progress_every" toml:"progress_every"`
}

// Source identifies the input table.
type Source struct {
	// Kind is "file" (extracted TSV on disk) or "http" (streamed TSV).
	Kind string     `json:"kind" toml:"kind"`
	File SourceFile `json:"file" toml:"file"`
	HTTP SourceHTTP `json:"http" toml:"http"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path" toml:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	URL        string `json:"url" toml:"url"`
	MaxRetries int    `json:"max_retries" toml:"max_retries"`
}

// Parser configures the chunk reader. Recognized options: comma, chunk_size,
// encoding (auto, utf-8, latin-1), trim_space.
type Parser struct {
	Kind    string  `json:"kind" toml:"kind"`
	Options Options `json:"options" toml:"options"`
}

// Transform configures the chunk normalizer. Recognized options: sentinels
// (array), sentinels_file (path), progress_every.
type Transform struct {
	Options Options `json:"options" toml:"options"`
}

// Storage selects and configures the sink.
type Storage struct {
	// Kind is one of the registered sinks: parquet, sqlite, postgres.
	Kind string `json:"kind" toml:"kind"`

	// Path is the output file for file-backed sinks.
	Path string `json:"path" toml:"path"`

	// Compression applies to parquet: snappy, zstd, gzip, none.
	Compression string `json:"compression" toml:"compression"`

	// DSN and Table apply to database sinks.
	DSN             string `json:"dsn" toml:"dsn"`
	Table           string `json:"table" toml:"table"`
	AutoCreateTable bool   `json:"auto_create_table" toml:"auto_create_table"`
}

// Metrics selects a metrics backend. Flags and env override these.
type Metrics struct {
	Backend        string `json:"backend" toml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" toml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" toml:"datadog_addr"`
}

// Default returns the pipeline used when no config file is given.
func Default() Pipeline {
	return Pipeline{
		Job:       "bindingetl",
		Source:    Source{Kind: "file"},
		Parser:    Parser{Kind: "tsv", Options: Options{}},
		Transform: Transform{Options: Options{}},
		Storage: Storage{
			Kind:        "parquet",
			Path:        "brick/data.parquet",
			Compression: "snappy",
		},
		Acquire: Options{},
	}
}

// Load reads a pipeline file on top of Default. Files ending in .toml are
// decoded as TOML, everything else as JSON. Unknown keys are rejected.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	p := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	p.normalize()
	return p, nil
}

// normalize replaces nil option bags so getters never see a nil map from a
// section that was present but empty.
func (p *Pipeline) normalize() {
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	if p.Transform.Options == nil {
		p.Transform.Options = Options{}
	}
	if p.Acquire == nil {
		p.Acquire = Options{}
	}
}

// Options fetches typed values from a free-form map. Values decoded from JSON
// arrive as float64, from TOML as int64; getters accept both and fall back to
// def on a missing key or unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the integer value for key or def.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. A literal
// "\t" (backslash, t) is accepted for the tab delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			if s == `\t` {
				return '\t'
			}
			return []rune(s)[0]
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is an array of
// strings. Non-string elements are dropped. Missing keys give nil.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Set stores v under key, allocating the map if needed, and returns it.
// Flag overrides use this to layer onto file values.
func (o Options) Set(key string, v any) Options {
	if o == nil {
		o = Options{}
	}
	o[key] = v
	return o
}

// UnmarshalJSON decodes a missing or null object as an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
