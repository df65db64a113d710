// Package storage defines the sink contract and a small factory so the
// pipeline can stay backend-agnostic. Backends register themselves from
// init(); import internal/storage/all to enable every built-in kind.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"bindingetl/internal/record"
)

// ErrSinkBroken reports that a sink can no longer guarantee a consistent
// artifact. Callers must stop writing and treat the run as failed.
var ErrSinkBroken = errors.New("sink is broken")

// Artifact metadata keys written by the pipeline.
const (
	MetaRunID             = "bindingetl.run_id"
	MetaSchemaVersion     = "bindingetl.schema_version"
	MetaHeaderFingerprint = "bindingetl.header_fingerprint"
	MetaSourceEncoding    = "bindingetl.source_encoding"
	MetaSource            = "bindingetl.source"
)

// MetaKeys lists every metadata key, in display order.
func MetaKeys() []string {
	return []string{MetaRunID, MetaSchemaVersion, MetaHeaderFingerprint, MetaSourceEncoding, MetaSource}
}

// Sink persists canonical records under one fixed schema.
//
// WriteChunk stores one chunk as a self-contained unit: it either returns nil
// after the whole chunk is durable, or an error after writing none of it.
// Close finalizes the artifact. It must be called exactly once, on every
// exit path; further calls are no-ops.
type Sink interface {
	WriteChunk(ctx context.Context, recs []record.Record) (int64, error)
	Close() error
}

// Config selects and configures a sink.
type Config struct {
	// Kind selects the backend: "parquet", "sqlite" or "postgres".
	Kind string

	// Path is the output file for file-based sinks.
	Path string
	// Compression names the parquet codec (snappy, zstd, gzip, none).
	Compression string

	// DSN and Table configure SQL sinks.
	DSN   string
	Table string
	// AutoCreateTable issues CREATE TABLE IF NOT EXISTS before the first write.
	AutoCreateTable bool

	// Metadata is attached to the artifact where the backend supports it.
	Metadata map[string]string
}

// Factory opens a sink for cfg.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register adds (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a sink of cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage.kind=%q (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
