// Package storetest is a conformance suite run against every store backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pailas/core/allocation"
	"github.com/kilianp07/pailas/core/eligibility"
	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
	"github.com/kilianp07/pailas/internal/fixture"
)

// Backend is a store that can be seeded.
type Backend interface {
	store.Store
	store.Importer
}

// Open returns an empty backend. The suite closes it.
type Open func(t *testing.T) Backend

var entries = []model.CompatibilityEntry{
	fixture.Entry(1, "P1", "DSP-1", fixture.ColorWhite, 10, 500),
	fixture.Entry(2, "P2", "DSP-2", fixture.ColorWhite, 10, 300),
	fixture.Entry(3, "P2", "DSP-3", fixture.ColorWhite, 10, 250),
	fixture.Entry(4, "P3", "DSP-3", fixture.ColorBlue, 10, 200),
}

func seeded(t *testing.T, open Open, orders ...model.ProductionOrder) Backend {
	t.Helper()
	b := open(t)
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.Import(context.Background(), fixture.With(entries, orders...)))
	return b
}

// Run executes the suite.
func Run(t *testing.T, open Open) {
	t.Run("ReadAccessors", func(t *testing.T) { testReadAccessors(t, open) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollback(t, open) })
	t.Run("Eligibility", func(t *testing.T) { testEligibility(t, open) })
	t.Run("ExactFit", func(t *testing.T) { testExactFit(t, open) })
	t.Run("Fragmentation", func(t *testing.T) { testFragmentation(t, open) })
	t.Run("OccupancySync", func(t *testing.T) { testOccupancySync(t, open) })
	t.Run("Reassignment", func(t *testing.T) { testReassignment(t, open) })
	t.Run("LedgerImport", func(t *testing.T) { testLedgerImport(t, open) })
	t.Run("ImportSyncsOccupancy", func(t *testing.T) { testImportSyncsOccupancy(t, open) })
	t.Run("ImportRejectsParentCycle", func(t *testing.T) { testImportRejectsParentCycle(t, open) })
}

func testReadAccessors(t *testing.T, open Open) {
	ctx := context.Background()
	b := seeded(t, open, fixture.Order(1, fixture.ProductWhite, 700))

	o, err := b.Order(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, fixture.ProductWhite, o.ProductCode)
	require.NotNil(t, o.LotSize)
	assert.Equal(t, 700.0, *o.LotSize)

	_, err = b.Order(ctx, 404)
	assert.True(t, errors.Is(err, store.ErrOrderNotFound))
	_, err = b.Vessel(ctx, "P404")
	assert.True(t, errors.Is(err, store.ErrVesselNotFound))

	vessels, err := b.Vessels(ctx)
	require.NoError(t, err)
	assert.Len(t, vessels, 5)

	d, err := b.FirstProductDetail(ctx, fixture.ProductBlue)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(2), d.ID)

	byVessel, err := b.CompatibilityForVessel(ctx, "P2")
	require.NoError(t, err)
	require.Len(t, byVessel, 2)
	assert.Equal(t, int64(2), byVessel[0].ID)

	byColor, err := b.CompatibilityByColor(ctx, fixture.ColorWhite)
	require.NoError(t, err)
	assert.Len(t, byColor, 3)
}

func testRollback(t *testing.T, open Open) {
	ctx := context.Background()
	b := seeded(t, open, fixture.Order(1, fixture.ProductWhite, 700))
	boom := errors.New("boom")
	err := b.WithinTx(ctx, func(tx store.Tx) error {
		o, err := tx.Order(ctx, 1)
		if err != nil {
			return err
		}
		o.VesselID = model.Ptr("P1")
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	o, err := b.Order(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, o.VesselID)
}

func testEligibility(t *testing.T, open Open) {
	b := seeded(t, open, fixture.Order(1, fixture.ProductWhite, 700))
	got, err := eligibility.NewResolver(b, nil).Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "P1", got[0].VesselID)
	assert.Equal(t, "P2", got[1].VesselID)
	assert.Equal(t, 300.0, got[1].PlannableCapacity)
}

func testExactFit(t *testing.T, open Open) {
	ctx := context.Background()
	b := seeded(t, open, fixture.Order(1, fixture.ProductWhite, 500))
	a, err := allocation.NewEngine(b).Assign(ctx, 1, "P1")
	require.NoError(t, err)
	assert.Equal(t, allocation.Absorbed, a.Outcome)

	o, err := b.Order(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 500.0, *o.ProducedQuantity)
	kids, err := b.Children(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, kids)
}

func testFragmentation(t *testing.T, open Open) {
	ctx := context.Background()
	b := seeded(t, open, fixture.Order(1, fixture.ProductWhite, 700))
	a, err := allocation.NewEngine(b).Assign(ctx, 1, "P2")
	require.NoError(t, err)
	assert.Equal(t, allocation.Fragmented, a.Outcome)
	require.NotNil(t, a.Station)
	assert.Equal(t, "Disperser DSP-2", *a.Station)

	o, _ := b.Order(ctx, 1)
	assert.Equal(t, 300.0, *o.ProducedQuantity)
	kids, err := b.Children(ctx, 1)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, 400.0, *kids[0].LotSize)
	assert.Equal(t, 300.0, *kids[0].ProducedQuantity)
	assert.Nil(t, kids[0].VesselID)
	assert.Nil(t, kids[0].Station)
}

func testOccupancySync(t *testing.T, open Open) {
	ctx := context.Background()
	b := seeded(t, open, fixture.Order(1, fixture.ProductWhite, 500))
	e := allocation.NewEngine(b)
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Hour)

	_, err := e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	_, err = e.Schedule(ctx, 1, &start, &end)
	require.NoError(t, err)
	rec, err := b.OccupancyForOrder(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, model.StatusOccupied, rec.Status)
	assert.True(t, rec.Start.Equal(start))
	assert.True(t, rec.End.Equal(end))

	_, err = e.Schedule(ctx, 1, &start, nil)
	require.NoError(t, err)
	rec, err = b.OccupancyForOrder(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec, "end derived from total duration")

	_, err = e.Unassign(ctx, 1)
	require.NoError(t, err)
	rec, err = b.OccupancyForOrder(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	_, err = e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	all, err := b.OccupancyForVessel(ctx, "P1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testReassignment(t *testing.T, open Open) {
	ctx := context.Background()
	b := seeded(t, open, fixture.Order(1, fixture.ProductWhite, 700))
	e := allocation.NewEngine(b)

	first, err := e.Assign(ctx, 1, "P2")
	require.NoError(t, err)
	require.NotNil(t, first.Child)

	second, err := e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.RemovedChildren)
	_, err = b.Order(ctx, first.Child.ID)
	assert.True(t, errors.Is(err, store.ErrOrderNotFound))

	kids, err := b.Children(ctx, 1)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, 200.0, *kids[0].LotSize)

	res, err := e.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Orders)
}

func testLedgerImport(t *testing.T, open Open) {
	ctx := context.Background()
	b := seeded(t, open)
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	wash := store.Dataset{Occupancy: []model.OccupancyRecord{
		{VesselID: "P1", Start: &start, End: &end, Status: model.StatusPendingWash},
	}}
	require.NoError(t, b.Import(ctx, wash))
	require.NoError(t, b.Import(ctx, wash))
	all, err := b.Occupancy(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.StatusPendingWash, all[0].Status)
	assert.Nil(t, all[0].OrderID)
}

func testImportSyncsOccupancy(t *testing.T, open Open) {
	ctx := context.Background()
	b := seeded(t, open)
	start := time.Date(2024, 3, 1, 8, 0, 0, 500_000_000, time.UTC)
	end := start.Add(2 * time.Hour)
	o := fixture.Order(1, fixture.ProductWhite, 300)
	o.VesselID = model.Ptr("P1")
	o.Start, o.End = &start, &end

	other := start.Add(24 * time.Hour)
	id := int64(1)
	ds := store.Dataset{
		Orders: []model.ProductionOrder{o},
		Occupancy: []model.OccupancyRecord{
			{VesselID: "P2", Start: &other, End: &other, Status: model.StatusAvailable, OrderID: &id},
		},
	}
	require.NoError(t, b.Import(ctx, ds))

	got, err := b.Order(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got.Start)
	assert.True(t, got.Start.Equal(start.Truncate(time.Second)))

	rec, err := b.OccupancyForOrder(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "P1", rec.VesselID)
	assert.Equal(t, model.StatusOccupied, rec.Status)
	assert.True(t, rec.Start.Equal(start.Truncate(time.Second)))
	assert.True(t, rec.End.Equal(end.Truncate(time.Second)))

	o.VesselID = nil
	require.NoError(t, b.Import(ctx, store.Dataset{Orders: []model.ProductionOrder{o}}))
	rec, err = b.OccupancyForOrder(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func testImportRejectsParentCycle(t *testing.T, open Open) {
	tests := []struct {
		name    string
		parents map[int64]int64
	}{
		{"two orders", map[int64]int64{1: 2, 2: 1}},
		{"cycle above a leaf", map[int64]int64{1: 2, 2: 3, 3: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			b := seeded(t, open)

			var ds store.Dataset
			for id := int64(1); id <= int64(len(tt.parents)); id++ {
				o := fixture.Order(id, fixture.ProductWhite, 100)
				o.ParentID = model.Ptr(tt.parents[id])
				ds.Orders = append(ds.Orders, o)
			}
			errc := make(chan error, 1)
			go func() { errc <- b.Import(ctx, ds) }()
			select {
			case err := <-errc:
				require.ErrorIs(t, err, store.ErrParentCycle)
			case <-ctx.Done():
				t.Fatal("import did not return")
			}

			orders, err := b.Orders(context.Background())
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}
