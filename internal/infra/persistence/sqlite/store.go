// Package sqlite persists the medtracker document in a single SQLite table,
// one JSON payload per bucket.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"medtracker/internal/infra/persistence/buckets"
	"medtracker/pkg/domain"
)

var _ domain.Gateway = (*Gateway)(nil)

const defaultPath = "medtracker.db"

// Gateway writes the whole document inside one SQL transaction per save.
type Gateway struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open creates the database file and state table if needed.
func Open(ctx context.Context, path string) (*Gateway, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Gateway{db: db, path: path}, nil
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
			return domain.Document{}, domain.WrapPersistence("load", fmt.Errorf("scan: %w", err))
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
func (g *Gateway) Save(ctx context.Context, doc domain.Document) (retErr error) {
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
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, r.Bucket, r.Payload); err != nil {
			return domain.WrapPersistence("save", fmt.Errorf("upsert %s: %w", r.Bucket, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.WrapPersistence("save", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Close releases the database handle.
func (g *Gateway) Close() error { return g.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (g *Gateway) DB() *sql.DB { return g.db }

// Path returns the configured database path.
func (g *Gateway) Path() string { return g.path }
