// Package sqlstore persists a system's document as rows of a SQL state
// table, one row per collection. SQLite (pure Go driver) and Postgres (pgx)
// are supported; both share the same table layout and differ only in
// placeholder syntax and payload column type.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

// DefaultPostgresDSN is used when no DSN is configured.
const DefaultPostgresDSN = "postgres://localhost/recordkeeper?sslmode=disable"

// Dialect selects the SQL flavour.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) driver() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) payloadType() string {
	if d == Postgres {
		return "JSONB"
	}
	return "BLOB"
}

// rebind rewrites ? placeholders to $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Persister stores the buckets of one system in the state table.
type Persister struct {
	db      *sql.DB
	dialect Dialect
	system  string
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path, system string) (*Persister, error) {
	if path == "" {
		path = "recordkeeper.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	return open(ctx, SQLite, path, system)
}

// OpenPostgres connects to dsn, falling back to DefaultPostgresDSN.
func OpenPostgres(ctx context.Context, dsn, system string) (*Persister, error) {
	if dsn == "" {
		dsn = DefaultPostgresDSN
	}
	return open(ctx, Postgres, dsn, system)
}

func open(ctx context.Context, d Dialect, dsn, system string) (*Persister, error) {
	openMu.Lock()
	db, err := sqlOpen(d.driver(), dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver(), err)
	}
	if d == SQLite {
		// One writer; the store serializes access anyway.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver(), err)
	}
	p := &Persister{db: db, dialect: d, system: system}
	if err := p.ensureStateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Persister) ensureStateTable(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		system TEXT NOT NULL,
		bucket TEXT NOT NULL,
		position INTEGER NOT NULL,
		payload ` + p.dialect.payloadType() + ` NOT NULL,
		PRIMARY KEY (system, bucket)
	)`
	if _, err := p.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Load returns the system's buckets in the order they were saved, or
// types.ErrNoDocument if the system has never been saved.
func (p *Persister) Load(ctx context.Context) (types.Snapshot, error) {
	rows, err := p.db.QueryContext(ctx,
		p.dialect.rebind(`SELECT bucket, payload FROM state WHERE system = ? ORDER BY position`), p.system)
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snap types.Snapshot
	for rows.Next() {
		var b types.Bucket
		var payload []byte
		if err := rows.Scan(&b.Name, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		b.Payload = payload
		snap = append(snap, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	if len(snap) == 0 {
		return nil, types.ErrNoDocument
	}
	return snap, nil
}

// Save upserts every bucket in one transaction.
func (p *Persister) Save(ctx context.Context, snap types.Snapshot) (retErr error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	upsert := p.dialect.rebind(`INSERT INTO state(system, bucket, position, payload) VALUES(?, ?, ?, ?)
		ON CONFLICT(system, bucket) DO UPDATE SET position = excluded.position, payload = excluded.payload`)
	for i, b := range snap {
		payload := []byte(b.Payload)
		if len(payload) == 0 {
			payload = []byte("[]")
		}
		if _, err := tx.ExecContext(ctx, upsert, p.system, b.Name, i, payload); err != nil {
			return fmt.Errorf("upsert %s: %w", b.Name, err)
		}
	}
	return tx.Commit()
}

// Close closes the database handle.
func (p *Persister) Close() error { return p.db.Close() }

// DB exposes the underlying sql.DB for tests.
func (p *Persister) DB() *sql.DB { return p.db }
