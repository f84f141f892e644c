// Package db owns the Postgres connection used by the artifact catalog: a
// pgx pool for scany reads, a GORM session for writes, and goose migrations.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pptxd/pkg/db/migrations"
)

// DefaultTimeout bounds every query issued through DB.
const DefaultTimeout = 5 * time.Second

// Options tunes Connect. Zero values take defaults.
type Options struct {
	Timeout time.Duration
	// SkipMigrate leaves the schema untouched.
	SkipMigrate bool
}

// DB is a pgx pool paired with a GORM session over the same DSN.
type DB struct {
	Pool    *pgxpool.Pool
	ORM     *gorm.DB
	timeout time.Duration
}

// Connect dials dsn, applies pending migrations and opens the ORM session.
func Connect(ctx context.Context, dsn string, opts Options) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	// goose and GORM share the DSN; keep every client on the simple protocol.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d := &DB{Pool: pool, timeout: opts.Timeout}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if !opts.SkipMigrate {
		if err := migrate(ctx, cfg.ConnString()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	d.ORM, err = gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.ConnString(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open orm: %w", err)
	}
	return d, nil
}

func migrate(ctx context.Context, dsn string) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	sqlDB, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return goose.UpContext(ctx, sqlDB, ".")
}

// Close releases the ORM connections and the pool.
func (d *DB) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.ORM != nil {
		if sqlDB, err := d.ORM.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	return errors.Join(errs...)
}

// Timeout is the per-query deadline.
func (d *DB) Timeout() time.Duration { return d.timeout }

// Get scans one row into dest. A missing row satisfies NotFound.
func (d *DB) Get(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return pgxscan.Get(ctx, d.Pool, dest, query, args...)
}

// Select scans every row into dest.
func (d *DB) Select(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return pgxscan.Select(ctx, d.Pool, dest, query, args...)
}

// Write runs fn against a GORM session bound to a deadline-limited context.
func (d *DB) Write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return fn(d.ORM.WithContext(ctx))
}

// Ping checks the pool answers within the query timeout.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.Pool.Ping(ctx)
}

// NotFound reports whether err means a query matched no rows.
func NotFound(err error) bool { return pgxscan.NotFound(err) }
