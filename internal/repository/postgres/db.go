package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/bloombuddy/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// DB is the PostgreSQL conversation archive connection
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB opens the archive pool. Start-up fails fast when the first ping does
// not answer within cfg.ConnectTimeout.
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid archive database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolConfig.HealthCheckPeriod = time.Minute

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(context.WithoutCancel(ctx), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive database unreachable at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", cfg.MaxConns).
		Msg("connected to archive database")

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping reports whether the archive answers; used by the readiness check
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
