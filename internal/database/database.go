// Package database persists practice words and their evaluation results in
// Postgres.
package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Pool sizing for classroom traffic: many students issue short bursts of
// small queries, and every query here is single-row or one index scan, so a
// modest pool with idle reaping beats a large standing one.
const (
	poolMaxConns     = 10
	poolMinConns     = 2
	poolMaxIdle      = 5 * time.Minute
	poolHealthPeriod = time.Minute
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect opens the pool and verifies the server is reachable before the
// service starts taking requests.
func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = poolMaxConns
	cfg.MinConns = poolMinConns
	cfg.MaxConnIdleTime = poolMaxIdle
	cfg.HealthCheckPeriod = poolHealthPeriod

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Info().
		Str("dsn", redactDSN(databaseURL)).
		Int32("pool_max", cfg.MaxConns).
		Msg("postgres ready")

	return &DB{Pool: pool, log: log}, nil
}

// HealthCheck pings with a short deadline so the health endpoint stays fast
// even when the server is unreachable.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// redactDSN hides credentials before the connection string reaches a log line.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "(unparseable dsn)"
	}
	return u.Redacted()
}

func (db *DB) Close() {
	db.log.Debug().Msg("draining postgres pool")
	db.Pool.Close()
}
