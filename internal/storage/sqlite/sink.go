// Package sqlite implements a SQLite-backed storage.Sink using database/sql
// and the pure-Go modernc.org/sqlite driver. Each chunk is inserted inside
// one transaction, so a failing chunk is rolled back as a whole.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bindingetl/internal/ddl"
	"bindingetl/internal/record"
	"bindingetl/internal/storage"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "bindings"

// Config holds SQLite sink configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:bindingdb.db?_pragma=journal_mode(WAL)"
	//   "bindingdb.db"
	DSN string
	// Table is the target table name.
	Table string
	// AutoCreateTable issues CREATE TABLE IF NOT EXISTS on open.
	AutoCreateTable bool
}

// Sink writes canonical records into one SQLite table.
type Sink struct {
	db     *sql.DB
	cfg    Config
	insert string
	closed bool
}

var _ storage.Sink = (*Sink)(nil)

// Open connects, pings and optionally creates the table.
func Open(ctx context.Context, cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer; keeps in-memory databases on a single connection too.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	s := &Sink{
		db:     db,
		cfg:    cfg,
		insert: ddl.InsertSQL(cfg.Table, record.Columns(), "?"),
	}
	if cfg.AutoCreateTable {
		stmt, err := ddl.BuildCreateTableSQL(ddl.CanonicalTable(cfg.Table, ddl.SQLite))
		if err != nil {
			db.Close()
			return nil, err
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: create table: %w", err)
		}
	}
	return s, nil
}

// DB exposes the underlying handle for inspection.
func (s *Sink) DB() *sql.DB { return s.db }

// WriteChunk inserts recs in a single transaction.
func (s *Sink) WriteChunk(ctx context.Context, recs []record.Record) (int64, error) {
	if s.closed {
		return 0, fmt.Errorf("sqlite: write after close")
	}
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, s.insert)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range recs {
		if _, err := stmt.ExecContext(ctx, recs[i].Values()...); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return int64(len(recs)), nil
}

// Close closes the database. Further calls are no-ops.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// open is a test hook that points to Open by default.
var open = Open

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Sink, error) {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Path
		}
		return open(ctx, Config{
			DSN:             dsn,
			Table:           cfg.Table,
			AutoCreateTable: cfg.AutoCreateTable,
		})
	})
}
