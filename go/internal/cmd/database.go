package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pietro1412/fantacontratti/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

// setupDatabase opens both handles: database/sql for the sqlc queries and a
// pgx pool for the steal commit transaction.
func setupDatabase(ctx context.Context) (*sql.DB, *pgxpool.Pool, error) {
	cfg := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	poolConfig, err := cfg.PoolConfig()
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		database.Close()
		return nil, nil, fmt.Errorf("failed to ping pgx pool: %w", err)
	}

	log.Info().
		Str("url", cfg.Redacted()).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("connected to database")
	return database, pool, nil
}
