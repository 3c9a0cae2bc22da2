package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore serves every gateway from one connection pool
type PostgresStore struct {
	*CaseRepository
	*ResolutionJobRepository
	*FavoriteRepository
	*FileRepository

	db *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		CaseRepository:          NewCaseRepository(db),
		ResolutionJobRepository: NewResolutionJobRepository(db),
		FavoriteRepository:      NewFavoriteRepository(db),
		FileRepository:          NewFileRepository(db),
		db:                      db,
	}
}

// OpenPostgres connects and pings the database
func OpenPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Info("Postgres connection established")
	return NewPostgresStore(pool), nil
}

// Pool exposes the underlying pool for schema tooling
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.db
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
