package allocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pailas/core/events"
	"github.com/kilianp07/pailas/core/metrics"
	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
	"github.com/kilianp07/pailas/infra/store/memory"
	"github.com/kilianp07/pailas/internal/fixture"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

type captureSink struct {
	metrics.NopSink
	assignments []metrics.AssignmentResult
	syncs       []metrics.OccupancySync
	errs        []metrics.OperationError
}

func (c *captureSink) RecordAssignment(r metrics.AssignmentResult) error {
	c.assignments = append(c.assignments, r)
	return nil
}

func (c *captureSink) RecordOccupancySync(ev metrics.OccupancySync) error {
	c.syncs = append(c.syncs, ev)
	return nil
}

func (c *captureSink) RecordOperationError(ev metrics.OperationError) error {
	c.errs = append(c.errs, ev)
	return nil
}

var planEntries = []model.CompatibilityEntry{
	fixture.Entry(1, "P1", "DSP-1", fixture.ColorWhite, 10, 500),
	fixture.Entry(2, "P2", "DSP-2", fixture.ColorWhite, 10, 300),
	fixture.Entry(3, "P3", "DSP-3", fixture.ColorBlue, 10, 200),
}

func newEngine(t *testing.T, ds store.Dataset, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	require.NoError(t, s.Import(context.Background(), ds))
	return NewEngine(s, opts...), s
}

func TestAssignExactFit(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 500)))

	a, err := e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	assert.Equal(t, Absorbed, a.Outcome)
	assert.Nil(t, a.Child)
	require.NotNil(t, a.Station)
	assert.Equal(t, "Disperser DSP-1", *a.Station)

	o, err := s.Order(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, o.ProducedQuantity)
	assert.Equal(t, 500.0, *o.ProducedQuantity)
	kids, err := s.Children(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, kids)
}

func TestAssignOversizedFragments(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 700)))

	a, err := e.Assign(ctx, 1, "P2")
	require.NoError(t, err)
	assert.Equal(t, Fragmented, a.Outcome)
	require.NotNil(t, a.Child)

	o, _ := s.Order(ctx, 1)
	assert.Equal(t, 300.0, *o.ProducedQuantity)
	kids, err := s.Children(ctx, 1)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	child := kids[0]
	assert.Equal(t, 400.0, *child.LotSize)
	assert.Equal(t, 300.0, *child.ProducedQuantity)
	assert.Nil(t, child.VesselID)
	assert.Nil(t, child.Station)
	assert.Equal(t, int64(1), *child.ParentID)
	assert.Equal(t, o.Label, child.Label)
	assert.Equal(t, o.ProductCode, child.ProductCode)

	grand, err := s.Children(ctx, child.ID)
	require.NoError(t, err)
	assert.Empty(t, grand, "remainder is not split again")
}

func TestAssignWithoutMatchIsUnbounded(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries,
		fixture.Order(1, fixture.ProductWhite, 900),
		fixture.Order(2, fixture.ProductNoDetail, 900),
	))

	a, err := e.Assign(ctx, 1, "P3")
	require.NoError(t, err)
	assert.Equal(t, Unbounded, a.Outcome)
	assert.Nil(t, a.Station)
	o, _ := s.Order(ctx, 1)
	assert.Equal(t, 900.0, *o.ProducedQuantity)
	assert.Equal(t, "P3", *o.VesselID)

	a, err = e.Assign(ctx, 2, "P1")
	require.NoError(t, err)
	assert.Equal(t, Unbounded, a.Outcome)
	assert.Nil(t, a.Child)
}

func TestAssignFirstMatchingEntryWins(t *testing.T) {
	ctx := context.Background()
	second := fixture.Entry(5, "P1", "DSP-3", fixture.ColorWhite, 10, 900)
	ineligible := fixture.Entry(4, "P1", "DSP-2", fixture.ColorWhite, 10, 50)
	ineligible.DiameterFlag = model.Ptr("no")
	entries := append([]model.CompatibilityEntry{second, ineligible}, planEntries...)
	e, _ := newEngine(t, fixture.With(entries, fixture.Order(1, fixture.ProductWhite, 700)))

	a, err := e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Disperser DSP-1", *a.Station)
	assert.Equal(t, Fragmented, a.Outcome)
	assert.Equal(t, 500.0, *a.ProducedQuantity)
}

func TestAssignValidation(t *testing.T) {
	sink := &captureSink{}
	e, _ := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 500)), WithMetrics(sink))

	_, err := e.Assign(context.Background(), 1, "  ")
	require.ErrorIs(t, err, ErrValidation)
	require.Len(t, sink.errs, 1)
	assert.Equal(t, "ValidationError", sink.errs[0].Kind)
}

func TestAssignNotFound(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 700)))

	_, err := e.Assign(ctx, 42, "P1")
	require.ErrorIs(t, err, store.ErrOrderNotFound)
	assert.Equal(t, "OrderNotFound", ErrorKind(err))

	_, err = e.Assign(ctx, 1, "P9")
	require.ErrorIs(t, err, store.ErrVesselNotFound)
	assert.Equal(t, "VesselNotFound", ErrorKind(err))

	o, _ := s.Order(ctx, 1)
	assert.Nil(t, o.VesselID)
	assert.Nil(t, o.ProducedQuantity)
}

func TestReassignClearsPriorFragments(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 700)))

	first, err := e.Assign(ctx, 1, "P2")
	require.NoError(t, err)
	require.NotNil(t, first.Child)
	oldChild := first.Child.ID

	second, err := e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.RemovedChildren)
	_, err = s.Order(ctx, oldChild)
	require.ErrorIs(t, err, store.ErrOrderNotFound)

	kids, err := s.Children(ctx, 1)
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.NotEqual(t, oldChild, kids[0].ID)
	assert.Equal(t, 200.0, *kids[0].LotSize)
	assert.Equal(t, 200.0, *kids[0].ProducedQuantity)
}

func TestReassignDeletesGrandchildrenAndTheirLedger(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 1000)))

	first, err := e.Assign(ctx, 1, "P2")
	require.NoError(t, err)
	childID := first.Child.ID
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	_, err = e.Assign(ctx, childID, "P2")
	require.NoError(t, err)
	end := start.Add(2 * time.Hour)
	_, err = e.Schedule(ctx, childID, &start, &end)
	require.NoError(t, err)
	rec, _ := s.OccupancyForOrder(ctx, childID)
	require.NotNil(t, rec)

	_, err = e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	all, err := s.Orders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "root and its fresh remainder only")
	ledger, err := s.Occupancy(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledger)
}

func TestAssignIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 700)))

	snapshot := func() (model.ProductionOrder, []model.ProductionOrder) {
		o, err := s.Order(ctx, 1)
		require.NoError(t, err)
		kids, err := s.Children(ctx, 1)
		require.NoError(t, err)
		for i := range kids {
			kids[i].ID = 0
		}
		return o, kids
	}

	_, err := e.Assign(ctx, 1, "P2")
	require.NoError(t, err)
	o1, k1 := snapshot()
	_, err = e.Assign(ctx, 1, "P2")
	require.NoError(t, err)
	o2, k2 := snapshot()

	assert.Equal(t, o1, o2)
	assert.Equal(t, k1, k2)
}

func TestUnassignClearsProducedQuantity(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 500)))
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	_, err = e.Schedule(ctx, 1, &start, nil)
	require.NoError(t, err)

	o, err := e.Unassign(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, o.VesselID)
	assert.Nil(t, o.Station)
	assert.Nil(t, o.ProducedQuantity)
	stored, _ := s.Order(ctx, 1)
	assert.Nil(t, stored.ProducedQuantity)
	rec, _ := s.OccupancyForOrder(ctx, 1)
	assert.Nil(t, rec)
}

func TestOccupancyFollowsOrder(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 500)))
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)

	_, err := e.Schedule(ctx, 1, &start, &end)
	require.NoError(t, err)
	rec, _ := s.OccupancyForOrder(ctx, 1)
	assert.Nil(t, rec, "no vessel, no reservation")

	_, err = e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	rec, _ = s.OccupancyForOrder(ctx, 1)
	require.NotNil(t, rec)
	assert.Equal(t, model.StatusOccupied, rec.Status)
	assert.Equal(t, "P1", rec.VesselID)
	assert.True(t, rec.End.Equal(end))

	_, err = e.Schedule(ctx, 1, nil, nil)
	require.NoError(t, err)
	rec, _ = s.OccupancyForOrder(ctx, 1)
	assert.Nil(t, rec)

	_, err = e.Schedule(ctx, 1, &start, &end)
	require.NoError(t, err)
	_, err = e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	all, err := s.Occupancy(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScheduleDerivesEnd(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 500)))
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	o, err := e.Schedule(ctx, 1, &start, nil)
	require.NoError(t, err)
	require.NotNil(t, o.End)
	assert.True(t, o.End.Equal(start.Add(4*time.Hour)))

	before := start.Add(-time.Minute)
	_, err = e.Schedule(ctx, 1, &start, &before)
	require.ErrorIs(t, err, ErrValidation)
}

func TestScheduleTruncatesToSeconds(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 500)))
	start := time.Date(2024, 3, 1, 8, 0, 0, 750_000_000, time.UTC)
	end := start.Add(90 * time.Minute)

	_, err := e.Assign(ctx, 1, "P1")
	require.NoError(t, err)
	o, err := e.Schedule(ctx, 1, &start, &end)
	require.NoError(t, err)
	assert.Equal(t, start.Truncate(time.Second), *o.Start)
	assert.Equal(t, end.Truncate(time.Second), *o.End)

	rec, err := s.OccupancyForOrder(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, start.Truncate(time.Second), *rec.Start)
}

func TestResyncRepairsLedger(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	assigned := fixture.Order(1, fixture.ProductWhite, 500)
	assigned.VesselID = model.Ptr("P1")
	assigned.Start, assigned.End = &start, &end
	stale := fixture.Order(2, fixture.ProductWhite, 500)
	e, s := newEngine(t, fixture.With(planEntries, assigned, stale))
	require.NoError(t, s.WithinTx(ctx, func(tx store.Tx) error {
		if _, err := tx.DeleteOccupancyForOrder(ctx, 1); err != nil {
			return err
		}
		return tx.UpsertOccupancy(ctx, model.OccupancyRecord{
			VesselID: "P2", Start: &start, End: &end, Status: model.StatusOccupied, OrderID: model.Ptr(int64(2)),
		})
	}))

	res, err := e.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, ResyncResult{Orders: 2, Upserted: 1, Deleted: 1}, res)
	all, _ := s.Occupancy(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, int64(1), *all[0].OrderID)
}

func TestAssignPublishesAfterCommit(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	sink := &captureSink{}
	e, _ := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 700)), WithPublisher(pub), WithMetrics(sink))

	_, err := e.Assign(ctx, 1, "P9")
	require.Error(t, err)
	assert.Empty(t, pub.events)

	_, err = e.Assign(ctx, 1, "P2")
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	ev, ok := pub.events[0].(events.AssignmentEvent)
	require.True(t, ok)
	assert.NotEmpty(t, ev.EventID())
	assert.Equal(t, events.OutcomeFragmented, ev.Outcome)
	require.NotNil(t, ev.ChildLotSize)
	assert.Equal(t, 400.0, *ev.ChildLotSize)

	require.Len(t, sink.assignments, 1)
	assert.Equal(t, "P2", sink.assignments[0].VesselID)
	assert.Equal(t, 400.0, sink.assignments[0].ChildLotSize)
	assert.Len(t, sink.syncs, 2)
}

func TestTree(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, fixture.With(planEntries, fixture.Order(1, fixture.ProductWhite, 700)))
	_, err := e.Assign(ctx, 1, "P2")
	require.NoError(t, err)

	node, err := e.Tree(ctx, 1)
	require.NoError(t, err)
	require.Len(t, node.Children, 1)
	assert.Equal(t, 400.0, *node.Children[0].LotSize)

	_, err = e.Tree(ctx, 99)
	assert.True(t, errors.Is(err, store.ErrOrderNotFound))
}

func TestConcurrentAssignments(t *testing.T) {
	ctx := context.Background()
	var orders []model.ProductionOrder
	for i := int64(1); i <= 20; i++ {
		orders = append(orders, fixture.Order(i, fixture.ProductWhite, 700))
	}
	e, s := newEngine(t, fixture.With(planEntries, orders...))

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			vessel := "P1"
			if id%2 == 0 {
				vessel = "P2"
			}
			_, err := e.Assign(ctx, id, vessel)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := s.Orders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 40)
}
