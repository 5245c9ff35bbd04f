// ABOUTME: Postgres store variant backed by lib/pq
// ABOUTME: Shares schema and queries with SQLite, rebinding placeholders to $N

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// NewPostgresStore connects to the database described by dsn and creates the
// schema if needed.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	logger := slog.Default().With("component", "store")

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	s := &SQLStore{
		db:       db,
		postgres: true,
		logger:   logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized")
	return s, nil
}
