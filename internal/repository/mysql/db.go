// Package mysql keeps the conversation archive in MySQL
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/bloombuddy/internal/config"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"
)

// DB wraps the database handle
type DB struct {
	DB *sql.DB
}

// NewDB opens and verifies a MySQL connection pool
func NewDB(ctx context.Context, cfg config.MySQLConfig) (*DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database
func (d *DB) Close() error {
	return d.DB.Close()
}

// Ping verifies database connectivity
func (d *DB) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// RunMigrations applies every pending up migration from sourceURL
func RunMigrations(cfg config.MySQLConfig, sourceURL string) error {
	dsn := "mysql://" + cfg.DSN() + "&multiStatements=true"
	m, err := migrate.New(sourceURL, dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Str("source", sourceURL).Msg("database migration: no changes")
			return nil
		}
		return fmt.Errorf("failed to run migrate up: %w", err)
	}

	log.Info().Msg("database migration: success")
	return nil
}
