// Package store persists compose jobs in Postgres. The store is optional:
// without a DATABASE_URL the engine runs with in-memory job state only.
package store

import (
	"context"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("url", maskDSN(databaseURL)).
		Int32("max_conns", cfg.MaxConns).
		Msg("database connected")

	db := &DB{Pool: pool, log: log}
	if err := db.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// PoolOrNil returns the underlying pool, or nil when no database is
// configured. Safe on a nil receiver.
func (db *DB) PoolOrNil() *pgxpool.Pool {
	if db == nil {
		return nil
	}
	return db.Pool
}

func (db *DB) Close() {
	db.log.Info().Msg("closing database pool")
	db.Pool.Close()
}

func (db *DB) initSchema(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, schemaSQL)
	if err != nil {
		return err
	}
	db.log.Debug().Msg("schema ensured")
	return nil
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS compose_jobs (
	id           UUID PRIMARY KEY,
	status       TEXT NOT NULL,
	source       TEXT NOT NULL,
	input_name   TEXT NOT NULL DEFAULT '',
	transcript   TEXT NOT NULL DEFAULT '',
	controls     JSONB,
	prompt       TEXT NOT NULL DEFAULT '',
	peak_db      DOUBLE PRECISION,
	artifact_key TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	timings      JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_compose_jobs_status ON compose_jobs (status);
CREATE INDEX IF NOT EXISTS idx_compose_jobs_created ON compose_jobs (created_at DESC);
`
