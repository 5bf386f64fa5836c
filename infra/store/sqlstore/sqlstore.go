// Package sqlstore implements the planning store on database/sql. SQLite is
// served by modernc.org/sqlite and Postgres by the pgx stdlib driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"

	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
)

// Config selects the database. Timestamps are stored as unix seconds, so
// sub-second precision is dropped on write.
type Config struct {
	Dialect         string        `json:"dialect"`
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// Store is a store.Store backed by a SQL database.
type Store struct {
	db *sql.DB
	d  dialect
	r  *queries
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Importer = (*Store)(nil)
	_ store.Migrator = (*Store)(nil)
)

var sqlOpen = sql.Open

// Open connects to the database and verifies it answers. The schema is not
// created; call Migrate for that.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := dialectFor(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if d.name == sqliteDialect.name {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlOpen(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	switch {
	case d.name == sqliteDialect.name:
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	return &Store{db: db, d: d, r: &queries{q: db, d: d}}, nil
}

// Dialect returns "sqlite" or "postgres".
func (s *Store) Dialect() string { return s.d.name }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range statements(s.d.schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.d.name, err)
		}
	}
	return nil
}

// WithinTx runs fn in a database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(&queries{q: tx, d: s.d, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }

func (s *Store) Order(ctx context.Context, id int64) (model.ProductionOrder, error) {
	return s.r.Order(ctx, id)
}

func (s *Store) Orders(ctx context.Context) ([]model.ProductionOrder, error) {
	return s.r.Orders(ctx)
}

func (s *Store) Children(ctx context.Context, parentID int64) ([]model.ProductionOrder, error) {
	return s.r.Children(ctx, parentID)
}

func (s *Store) Vessel(ctx context.Context, id string) (model.Vessel, error) {
	return s.r.Vessel(ctx, id)
}

func (s *Store) Vessels(ctx context.Context) ([]model.Vessel, error) {
	return s.r.Vessels(ctx)
}

func (s *Store) FirstProductDetail(ctx context.Context, productCode string) (*model.ProductDetail, error) {
	return s.r.FirstProductDetail(ctx, productCode)
}

func (s *Store) CompatibilityByColor(ctx context.Context, colorCode string) ([]model.CompatibilityEntry, error) {
	return s.r.CompatibilityByColor(ctx, colorCode)
}

func (s *Store) CompatibilityForVessel(ctx context.Context, vesselID string) ([]model.CompatibilityEntry, error) {
	return s.r.CompatibilityForVessel(ctx, vesselID)
}

func (s *Store) OccupancyForOrder(ctx context.Context, orderID int64) (*model.OccupancyRecord, error) {
	return s.r.OccupancyForOrder(ctx, orderID)
}

func (s *Store) OccupancyForVessel(ctx context.Context, vesselID string) ([]model.OccupancyRecord, error) {
	return s.r.OccupancyForVessel(ctx, vesselID)
}

func (s *Store) Occupancy(ctx context.Context) ([]model.OccupancyRecord, error) {
	return s.r.Occupancy(ctx)
}
