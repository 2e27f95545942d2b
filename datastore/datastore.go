// Package datastore is the PostGIS side of the tiled map: it prepares the
// geometry columns the renderer draws from and measures filtered record sets.
package datastore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/logger"
	"github.com/gaborage/go-tiledmap/tilequery"
)

const pingTimeout = 10 * time.Second

var (
	openDB = func(cfg *pgx.ConnConfig) *sql.DB {
		return stdlib.OpenDB(*cfg)
	}
	pingDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// Access selects which datastore connection string Connect uses.
type Access int

const (
	// ReadOnly connects with datastore.readurl.
	ReadOnly Access = iota
	// ReadWrite connects with datastore.writeurl, needed for geometry maintenance.
	ReadWrite
)

// Store runs datastore statements for one database.
type Store struct {
	db       *sql.DB
	geometry config.GeometryConfig
	queries  *tilequery.Generator
	logger   logger.Logger
}

// New wraps an open database. queries builds the extent statements.
func New(db *sql.DB, geometry config.GeometryConfig, queries *tilequery.Generator, log logger.Logger) *Store {
	return &Store{
		db:       db,
		geometry: geometry,
		queries:  queries,
		logger:   logger.Component(log, "datastore"),
	}
}

// Connect opens the datastore named by cfg. An empty connection string
// yields a not-configured *config.ConfigError.
func Connect(ctx context.Context, cfg *config.Config, access Access, log logger.Logger) (*Store, error) {
	dsn, key := cfg.Datastore.ReadURL, "datastore.readurl"
	if access == ReadWrite {
		dsn, key = cfg.Datastore.WriteURL, "datastore.writeurl"
	}
	if dsn == "" {
		return nil, config.NewNotConfiguredError("datastore", key)
	}

	db, err := Open(ctx, dsn, cfg.Datastore.Pool, log)
	if err != nil {
		return nil, err
	}
	return New(db, cfg.Geometry, tilequery.New(cfg.Geometry, cfg.Style, tilequery.WithLogger(log)), log), nil
}

// Open connects to PostgreSQL through the pgx stdlib driver and checks the
// connection with a ping.
func Open(ctx context.Context, dsn string, pool config.PoolConfig, log logger.Logger) (*sql.DB, error) {
	log = logger.Component(log, "datastore")

	pgxConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse datastore connection string: %w", err)
	}

	db := openDB(pgxConfig)
	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pingDB(pingCtx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close datastore connection after ping failure")
		}
		return nil, config.NewConnectionError("datastore", err.Error(), []string{
			"check the datastore host is reachable",
			"check the credentials in the connection string",
		})
	}

	log.Info().
		Str("host", pgxConfig.Host).
		Int("port", int(pgxConfig.Port)).
		Str("database", pgxConfig.Database).
		Msg("Connected to datastore")

	return db, nil
}

// DB returns the underlying pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// track counts one statement against the request counters in ctx.
func track(ctx context.Context, start time.Time) {
	logger.IncrementDBCounter(ctx)
	logger.AddDBElapsed(ctx, time.Since(start).Nanoseconds())
}
