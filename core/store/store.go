// Package store defines the persistence contracts used by the planning core.
// Backends live under infra/store.
package store

import (
	"context"
	"errors"

	"github.com/kilianp07/pailas/core/model"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrVesselNotFound = errors.New("vessel not found")
	ErrParentCycle    = errors.New("parent links form a cycle")
)

// Reader exposes the read accessors the resolver and engine rely on.
// Slices are returned ordered by id.
type Reader interface {
	Order(ctx context.Context, id int64) (model.ProductionOrder, error)
	Orders(ctx context.Context) ([]model.ProductionOrder, error)
	Children(ctx context.Context, parentID int64) ([]model.ProductionOrder, error)

	Vessel(ctx context.Context, id string) (model.Vessel, error)
	Vessels(ctx context.Context) ([]model.Vessel, error)

	// FirstProductDetail returns the lowest-id detail of a product or nil.
	FirstProductDetail(ctx context.Context, productCode string) (*model.ProductDetail, error)
	CompatibilityByColor(ctx context.Context, colorCode string) ([]model.CompatibilityEntry, error)
	CompatibilityForVessel(ctx context.Context, vesselID string) ([]model.CompatibilityEntry, error)

	OccupancyForOrder(ctx context.Context, orderID int64) (*model.OccupancyRecord, error)
	OccupancyForVessel(ctx context.Context, vesselID string) ([]model.OccupancyRecord, error)
	Occupancy(ctx context.Context) ([]model.OccupancyRecord, error)
}

// Tx is a unit of work. Writes made through a Tx become visible to other
// readers only when the surrounding WithinTx call returns nil.
type Tx interface {
	Reader

	// CreateOrder inserts o and sets its ID.
	CreateOrder(ctx context.Context, o *model.ProductionOrder) error
	UpdateOrder(ctx context.Context, o model.ProductionOrder) error
	// DeleteOrder removes the order and its occupancy record. Callers
	// delete descendants first.
	DeleteOrder(ctx context.Context, id int64) error

	// UpsertOccupancy writes the record keyed by its OrderID.
	UpsertOccupancy(ctx context.Context, rec model.OccupancyRecord) error
	// DeleteOccupancyForOrder reports whether a record was removed.
	DeleteOccupancyForOrder(ctx context.Context, orderID int64) (bool, error)
}

// Store is a transactional backend.
type Store interface {
	Reader
	// WithinTx runs fn in a transaction committed when fn returns nil and
	// rolled back otherwise.
	WithinTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Dataset is reference data and ledger rows loaded in bulk.
type Dataset struct {
	Products      []model.Product            `yaml:"products"`
	Colors        []model.ColorSpec          `yaml:"colors"`
	Details       []model.ProductDetail      `yaml:"product_details"`
	Vessels       []model.Vessel             `yaml:"vessels"`
	Stations      []model.Station            `yaml:"stations"`
	Compatibility []model.CompatibilityEntry `yaml:"compatibility"`
	Orders        []model.ProductionOrder    `yaml:"orders"`
	Occupancy     []model.OccupancyRecord    `yaml:"occupancy"`
}

// Importer loads a Dataset. Existing rows with the same key are replaced
// and order-less occupancy rows are purged before the ledger is loaded.
type Importer interface {
	Import(ctx context.Context, ds Dataset) error
}

// Migrator creates or upgrades the backing schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
