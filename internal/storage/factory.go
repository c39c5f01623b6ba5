package storage

import (
	"database/sql"
	"fmt"

	"habithub/internal/config"
	"habithub/internal/hub"
	"habithub/internal/storage/migrations"
)

// NewPersisterFromConfig creates a Persister based on the store config type.
// SQL stores are migrated to the latest schema before they are returned.
func NewPersisterFromConfig(cfg config.StoreConfig, logger hub.Logger) (hub.Persister, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryPersister(), nil
	case "json":
		p, err := NewJSONFilePersister(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite store")
		}
		db, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return migrated(db, migrations.SQLite, logger)
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("dsn required for postgres store")
		}
		db, err := OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return migrated(db, migrations.Postgres, logger)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

func migrated(db *sql.DB, dialect string, logger hub.Logger) (hub.Persister, error) {
	p, err := NewSQLPersister(db, dialect, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := p.Migrate(); err != nil {
		p.Close()
		return nil, fmt.Errorf("migrating %s store: %w", dialect, err)
	}
	if err := p.CheckMigrations(); err != nil {
		p.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}
	return p, nil
}
