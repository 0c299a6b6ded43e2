package core

import (
	"context"
	"fmt"
	"strings"

	"medtracker/internal/blob"
	"medtracker/internal/infra/persistence/memory"
	"medtracker/internal/infra/persistence/objectstore"
	"medtracker/internal/infra/persistence/postgres"
	"medtracker/internal/infra/persistence/sqlite"
	"medtracker/pkg/domain"
)

// StorageDriver identifies a persistence gateway implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBlob     StorageDriver = "blob"     // one JSON object in a blob store
)

// StorageConfig selects and parameterises the gateway opened by OpenGateway.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	Blob        blob.Config
	BlobKey     string
	BlobHistory int
	Logger      Logger
}

// OpenGateway opens the configured backend, defaulting to sqlite. Gateways
// holding connections implement io.Closer.
func OpenGateway(ctx context.Context, cfg StorageConfig) (domain.Gateway, error) {
	driver := StorageDriver(strings.ToLower(strings.TrimSpace(string(cfg.Driver))))
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.New(), nil
	case StorageSQLite:
		gw, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case StoragePostgres:
		gw, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return gw, nil
	case StorageBlob:
		store, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		opts := []objectstore.Option{objectstore.WithHistory(cfg.BlobHistory)}
		if cfg.Logger != nil {
			opts = append(opts, objectstore.WithLogger(cfg.Logger))
		}
		gw, err := objectstore.New(store, cfg.BlobKey, opts...)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
