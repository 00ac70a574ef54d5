package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store is the durable statistics store over database/sql. All SQL is
// portable between PostgreSQL (production) and SQLite (tests).
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New wraps an open database handle. opTimeout bounds every store
// operation so a stuck query cannot hold a queue worker indefinitely.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = 10 * time.Second
	}
	return &Store{db: db, opTimeout: opTimeout}
}

// DB exposes the underlying handle for read-side services and health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// opContext derives the bounded context used for a single store operation
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Migrate creates all tables and indexes if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
