// Package db wires the Postgres connection pool and the meddler row-mapping
// codecs every other package's store relies on. The schema is Postgres
// throughout (serial, uuid, timestamptz, json), so the pool speaks lib/pq.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/russross/meddler"

	"github.com/goran-ethernal/chaindexor/internal/config"
)

func init() {
	meddler.Default = meddler.PostgreSQL
}

// NewPostgresDB opens a connection pool against the configured DSN and
// applies the pool-sizing settings from config.DatabaseConfig.
func NewPostgresDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	database, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: failed to open connection: %w", err)
	}

	database.SetMaxOpenConns(cfg.MaxOpenConnections)
	database.SetMaxIdleConns(cfg.MaxIdleConnections)
	database.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMs) * time.Millisecond)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("db: failed to ping database: %w", err)
	}

	return database, nil
}

// Querier is satisfied by both *sql.DB and *sql.Tx, letting stores accept
// either a pooled connection or an in-flight transaction.
type Querier interface {
	meddler.DB
}
