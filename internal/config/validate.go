package config

import (
	"fmt"
	"net/url"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// config (e.g. "storage.kind", "parser.options.encoding").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static checks over p without mutating it.
// Callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and log lines",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateTransform(p.Transform)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateAcquire(p.Acquire)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "":
		issues = append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{SeverityWarning, "source.file.path",
				"file source has no path; build needs --input or a preceding fetch"})
		}
	case "http":
		if msg := checkURL(s.HTTP.URL); msg != "" {
			issues = append(issues, Issue{SeverityError, "source.http.url", msg})
		}
		if s.HTTP.MaxRetries < 0 {
			issues = append(issues, Issue{SeverityError, "source.http.max_retries", "max_retries must not be negative"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "source.kind",
			fmt.Sprintf("unknown source kind %q (want file or http)", s.Kind)})
	}
	return issues
}

var knownEncodings = map[string]struct{}{
	"": {}, "auto": {}, "utf-8": {}, "utf8": {},
	"latin-1": {}, "latin1": {}, "iso-8859-1": {}, "iso8859-1": {},
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	switch p.Kind {
	case "", "tsv", "csv":
	default:
		issues = append(issues, Issue{SeverityWarning, "parser.kind",
			fmt.Sprintf("parser kind %q is ignored; input is always read as delimited text", p.Kind)})
	}
	enc := strings.ToLower(strings.TrimSpace(p.Options.String("encoding", "")))
	if _, ok := knownEncodings[enc]; !ok {
		issues = append(issues, Issue{SeverityError, "parser.options.encoding",
			fmt.Sprintf("unsupported encoding %q (want auto, utf-8 or latin-1)", enc)})
	}
	if n := p.Options.Int("chunk_size", 0); n < 0 {
		issues = append(issues, Issue{SeverityError, "parser.options.chunk_size", "chunk_size must not be negative"})
	}
	if s, ok := p.Options["comma"].(string); ok && s == "" {
		issues = append(issues, Issue{SeverityWarning, "parser.options.comma", "empty comma; tab is used"})
	}
	return issues
}

func validateTransform(t Transform) []Issue {
	var issues []Issue
	if n := t.Options.Int("progress_every", 0); n < 0 {
		issues = append(issues, Issue{SeverityError, "transform.options.progress_every", "progress_every must not be negative"})
	}
	if raw, ok := t.Options["sentinels"]; ok {
		arr, isArr := raw.([]any)
		if !isArr {
			issues = append(issues, Issue{SeverityError, "transform.options.sentinels", "sentinels must be an array of strings"})
		} else if len(t.Options.StringSlice("sentinels")) != len(arr) {
			issues = append(issues, Issue{SeverityWarning, "transform.options.sentinels", "non-string sentinel entries are ignored"})
		}
	}
	return issues
}

var knownCompression = map[string]struct{}{
	"": {}, "snappy": {}, "zstd": {}, "gzip": {}, "none": {}, "uncompressed": {},
}

func validateStorage(s Storage) []Issue {
	var issues []Issue
	switch s.Kind {
	case "":
		return append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	case "parquet":
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{SeverityError, "storage.path", "parquet storage requires a path"})
		}
		if _, ok := knownCompression[strings.ToLower(s.Compression)]; !ok {
			issues = append(issues, Issue{SeverityError, "storage.compression",
				fmt.Sprintf("unsupported compression %q (want snappy, zstd, gzip or none)", s.Compression)})
		}
	case "sqlite":
		if strings.TrimSpace(s.DSN) == "" && strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{SeverityError, "storage.dsn", "sqlite storage requires dsn or path"})
		}
	case "postgres":
		if strings.TrimSpace(s.DSN) == "" {
			issues = append(issues, Issue{SeverityError, "storage.dsn", "postgres storage requires a dsn"})
		}
	default:
		issues = append(issues, Issue{SeverityWarning, "storage.kind",
			fmt.Sprintf("unknown storage kind %q; ensure a matching sink is registered", s.Kind)})
	}
	if s.Kind != "parquet" && s.Compression != "" {
		issues = append(issues, Issue{SeverityWarning, "storage.compression",
			fmt.Sprintf("compression is ignored by storage kind %q", s.Kind)})
	}
	if (s.Kind == "sqlite" || s.Kind == "postgres") && !s.AutoCreateTable {
		issues = append(issues, Issue{SeverityWarning, "storage.auto_create_table",
			"auto_create_table is false; the table must already exist with the canonical columns"})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.ChunkSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.chunk_size", "chunk_size must not be negative"})
	}
	if r.ProgressEvery < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.progress_every", "progress_every must not be negative"})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL != "" {
			if msg := checkURL(m.PushgatewayURL); msg != "" {
				issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", msg})
			}
		}
	case "datadog":
	default:
		issues = append(issues, Issue{SeverityWarning, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend)})
	}
	return issues
}

func validateAcquire(o Options) []Issue {
	var issues []Issue
	if u := o.String("listing_url", ""); u != "" {
		if msg := checkURL(u); msg != "" {
			issues = append(issues, Issue{SeverityError, "acquire.listing_url", msg})
		}
	}
	if n := o.Int("workers", 0); n < 0 {
		issues = append(issues, Issue{SeverityError, "acquire.workers", "workers must not be negative"})
	}
	if n := o.Int("max_retries", 0); n < 0 {
		issues = append(issues, Issue{SeverityError, "acquire.max_retries", "max_retries must not be negative"})
	}
	return issues
}

func checkURL(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "url must not be empty"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("url %q must use http or https", raw)
	}
	return ""
}
