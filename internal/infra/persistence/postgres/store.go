// Package postgres persists the medtracker document in a Postgres state
// table, one JSONB payload per bucket.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"medtracker/internal/infra/persistence/buckets"
	"medtracker/pkg/domain"
)

var _ domain.Gateway = (*Gateway)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/medtracker?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Gateway writes the whole document inside one transaction per save.
type Gateway struct {
	db *sql.DB
	mu sync.Mutex
}

// Open connects using dsn (defaultDSN when empty) and ensures the state
// table exists.
func Open(ctx context.Context, dsn string) (*Gateway, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Gateway{db: db}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Load reads every bucket; an empty table yields a new document.
func (g *Gateway) Load(ctx context.Context) (domain.Document, error) {
	rows, err := g.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return domain.Document{}, domain.WrapPersistence("load", fmt.Errorf("select state: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var raws []buckets.Row
	for rows.Next() {
		var r buckets.Row
		if err := rows.Scan(&r.Bucket, &r.Payload); err != nil {
			return domain.Document{}, domain.WrapPersistence("load", fmt.Errorf("scan state: %w", err))
		}
		raws = append(raws, r)
	}
	if err := rows.Err(); err != nil {
		return domain.Document{}, domain.WrapPersistence("load", fmt.Errorf("iterate state: %w", err))
	}
	doc, err := buckets.Decode(raws)
	if err != nil {
		return domain.Document{}, domain.WrapPersistence("load", err)
	}
	return doc, nil
}

// Save upserts every bucket in one transaction.
func (g *Gateway) Save(ctx context.Context, doc domain.Document) error {
	rows, err := buckets.Encode(doc)
	if err != nil {
		return domain.WrapPersistence("save", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapPersistence("save", fmt.Errorf("begin tx: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, r.Bucket, r.Payload); err != nil {
			return domain.WrapPersistence("save", fmt.Errorf("upsert %s: %w", r.Bucket, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapPersistence("save", fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

// Close releases the connection pool.
func (g *Gateway) Close() error { return g.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (g *Gateway) DB() *sql.DB { return g.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
