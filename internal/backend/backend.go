package backend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/tablegate/tablegate/internal/dialect"
)

type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open builds the pooled connection for the active dialect. The pool is the
// one process-wide backend resource; every request acquires and releases a
// connection through it rather than sharing a single handle.
func Open(ctx context.Context, profile dialect.Profile, cfg Config) (*sql.DB, error) {
	if cfg.DSN == "" && profile.Kind != dialect.KindDuckDB {
		return nil, fmt.Errorf("backend dsn is required")
	}

	db, err := sql.Open(profile.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", profile.Kind, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s backend: %w", profile.Kind, err)
	}

	return db, nil
}
