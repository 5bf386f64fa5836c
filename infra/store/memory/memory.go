// Package memory provides an in-process store. Writers serialize on a mutex
// and work on a copy of the state that replaces the live one on commit.
package memory

import (
	"context"
	"sync"

	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
)

// Store is a goroutine-safe in-memory implementation of store.Store.
type Store struct {
	mu    sync.RWMutex
	wmu   sync.Mutex
	state *state
}

var (
	_ store.Store    = (*Store)(nil)
	_ store.Importer = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) read() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// WithinTx runs fn against a private copy of the state. The copy replaces the
// live state only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(store.Tx) error) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.read().clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

// Import loads a dataset atomically.
func (s *Store) Import(ctx context.Context, ds store.Dataset) error {
	return s.WithinTx(ctx, func(tx store.Tx) error {
		return tx.(*state).importDataset(ctx, ds)
	})
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

func (s *Store) Order(ctx context.Context, id int64) (model.ProductionOrder, error) {
	return s.read().Order(ctx, id)
}

func (s *Store) Orders(ctx context.Context) ([]model.ProductionOrder, error) {
	return s.read().Orders(ctx)
}

func (s *Store) Children(ctx context.Context, parentID int64) ([]model.ProductionOrder, error) {
	return s.read().Children(ctx, parentID)
}

func (s *Store) Vessel(ctx context.Context, id string) (model.Vessel, error) {
	return s.read().Vessel(ctx, id)
}

func (s *Store) Vessels(ctx context.Context) ([]model.Vessel, error) {
	return s.read().Vessels(ctx)
}

func (s *Store) FirstProductDetail(ctx context.Context, productCode string) (*model.ProductDetail, error) {
	return s.read().FirstProductDetail(ctx, productCode)
}

func (s *Store) CompatibilityByColor(ctx context.Context, colorCode string) ([]model.CompatibilityEntry, error) {
	return s.read().CompatibilityByColor(ctx, colorCode)
}

func (s *Store) CompatibilityForVessel(ctx context.Context, vesselID string) ([]model.CompatibilityEntry, error) {
	return s.read().CompatibilityForVessel(ctx, vesselID)
}

func (s *Store) OccupancyForOrder(ctx context.Context, orderID int64) (*model.OccupancyRecord, error) {
	return s.read().OccupancyForOrder(ctx, orderID)
}

func (s *Store) OccupancyForVessel(ctx context.Context, vesselID string) ([]model.OccupancyRecord, error) {
	return s.read().OccupancyForVessel(ctx, vesselID)
}

func (s *Store) Occupancy(ctx context.Context) ([]model.OccupancyRecord, error) {
	return s.read().Occupancy(ctx)
}
