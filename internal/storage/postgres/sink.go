// Package postgres implements a Postgres storage.Sink using pgx v5. Each
// chunk is loaded with COPY inside its own transaction, so a chunk either
// lands completely or not at all.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bindingetl/internal/ddl"
	"bindingetl/internal/record"
	"bindingetl/internal/storage"
)

// Config holds Postgres sink configuration.
type Config struct {
	DSN             string // connection string for pgxpool
	Table           string // target table, e.g. "public.bindings"
	AutoCreateTable bool
}

// Sink is a Postgres-backed storage.Sink.
type Sink struct {
	pool    *pgxpool.Pool
	cfg     Config
	ident   pgx.Identifier
	columns []string
	closed  bool
}

var _ storage.Sink = (*Sink)(nil)

// Identifier splits a dotted table name into a pgx identifier.
func Identifier(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	out := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Open creates the pool and optionally the table.
func Open(ctx context.Context, cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		cfg.Table = "public.bindings"
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	s := &Sink{pool: pool, cfg: cfg, ident: Identifier(cfg.Table), columns: record.Columns()}

	if cfg.AutoCreateTable {
		stmt, err := ddl.BuildCreateTableSQL(ddl.CanonicalTable(cfg.Table, ddl.Postgres))
		if err != nil {
			pool.Close()
			return nil, err
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: create table: %w", err)
		}
	}
	return s, nil
}

// WriteChunk copies recs inside one transaction.
func (s *Sink) WriteChunk(ctx context.Context, recs []record.Record) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("postgres: write after close")
	}
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := tx.CopyFrom(ctx, s.ident, s.columns, pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
		return recs[i].Values(), nil
	}))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("postgres: copy: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}

// Close releases the pool. Further calls are no-ops.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Close()
	return nil
}

// open is a test hook that points to Open by default.
// Tests may replace this variable to avoid real DB connections.
var open = Open

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
		return open(ctx, Config{
			DSN:             cfg.DSN,
			Table:           cfg.Table,
			AutoCreateTable: cfg.AutoCreateTable,
		})
	})
}
