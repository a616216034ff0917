// Package postgres stores agents and sessions in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/config"
)

// DB wraps the database connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Open creates the connection pool. With vectors set, every connection
// registers the pgvector types, which requires the vector extension
// (migration 000002) to exist. With AutoMigrate enabled, pending migrations
// run before the pool is opened.
func Open(ctx context.Context, cfg config.DatabaseConfig, vectors bool) (*DB, error) {
	if cfg.AutoMigrate {
		if err := RunMigrations(cfg.DSN(), cfg.MigrationsSource); err != nil {
			return nil, err
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolConfig.HealthCheckPeriod = time.Minute

	if vectors {
		poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
				return fmt.Errorf("failed to register pgvector types (is migration 000002 applied?): %w", err)
			}
			return nil
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Bool("pgvector", vectors).
		Msg("Connected to PostgreSQL")

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping verifies database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
