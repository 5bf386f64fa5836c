// Package allocation commits vessel assignments, splits oversized lots into
// a remainder child and keeps the occupancy ledger in step with every order
// it writes.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/pailas/core/events"
	"github.com/kilianp07/pailas/core/logger"
	"github.com/kilianp07/pailas/core/metrics"
	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/occupancy"
	"github.com/kilianp07/pailas/core/store"
)

// ErrValidation is returned when the caller's input is rejected before any
// read or write.
var ErrValidation = errors.New("validation error")

// Assignment is the committed result of Assign.
type Assignment struct {
	OrderID          int64                  `json:"order_id"`
	VesselID         string                 `json:"vessel_id"`
	Station          *string                `json:"station"`
	ProducedQuantity *float64               `json:"produced_quantity"`
	Child            *model.ProductionOrder `json:"child,omitempty"`
	RemovedChildren  int                    `json:"removed_children"`
	Outcome          Outcome                `json:"outcome"`
}

// ResyncResult counts ledger changes made by Resync.
type ResyncResult struct {
	Orders   int `json:"orders"`
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}

// Engine runs the order mutations of the planning core.
type Engine struct {
	store store.Store
	pub   events.Publisher
	sink  metrics.MetricsSink
	log   logger.Logger
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where committed events go.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.pub = p
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(s metrics.MetricsSink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine returns an Engine writing to s.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		pub:   events.NopPublisher{},
		sink:  metrics.NopSink{},
		log:   logger.NopLogger{},
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type syncNote struct {
	orderID  int64
	vesselID string
	action   occupancy.Action
}

// Assign binds the order to the vessel. Prior remainder children are deleted
// first, then the capacity rule of Decide is applied and at most one new
// child is created. Everything commits together.
func (e *Engine) Assign(ctx context.Context, orderID int64, vesselID string) (Assignment, error) {
	started := e.now()
	vesselID = strings.TrimSpace(vesselID)
	if vesselID == "" {
		return Assignment{}, e.fail("assign", fmt.Errorf("%w: vessel id is required", ErrValidation))
	}

	var (
		res   Assignment
		lot   *float64
		label string
		notes []syncNote
	)
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		notes = notes[:0]
		order, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		vessel, err := tx.Vessel(ctx, vesselID)
		if err != nil {
			return err
		}

		removed, err := deleteDescendants(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		match, err := firstMatch(ctx, tx, order, vessel.ID)
		if err != nil {
			return err
		}
		split := Decide(order.LotSize, match)

		order.VesselID = model.Ptr(vessel.ID)
		order.Station = split.Station
		order.ProducedQuantity = split.Produced
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order %d: %w", order.ID, err)
		}
		act, err := occupancy.Sync(ctx, tx, order)
		if err != nil {
			return err
		}
		notes = append(notes, syncNote{order.ID, vessel.ID, act})

		res = Assignment{
			OrderID:          order.ID,
			VesselID:         vessel.ID,
			Station:          split.Station,
			ProducedQuantity: split.Produced,
			RemovedChildren:  removed,
			Outcome:          split.Outcome,
		}
		lot, label = order.LotSize, order.Label

		if split.Outcome != Fragmented {
			return nil
		}
		child := model.ProductionOrder{
			Label:            order.Label,
			ProductCode:      order.ProductCode,
			LotSize:          split.Remainder,
			ProducedQuantity: split.ChildProduced,
			ParentID:         model.Ptr(order.ID),
		}
		if err := tx.CreateOrder(ctx, &child); err != nil {
			return fmt.Errorf("create remainder of order %d: %w", order.ID, err)
		}
		act, err = occupancy.Sync(ctx, tx, child)
		if err != nil {
			return err
		}
		notes = append(notes, syncNote{child.ID, "", act})
		res.Child = &child
		return nil
	})
	if err != nil {
		return Assignment{}, e.fail("assign", err)
	}

	took := e.now().Sub(started)
	e.recordSyncs(notes)
	ev := events.AssignmentEvent{
		Meta:             events.NewMeta(e.now()),
		OrderID:          res.OrderID,
		Label:            label,
		VesselID:         res.VesselID,
		Station:          res.Station,
		LotSize:          lot,
		ProducedQuantity: res.ProducedQuantity,
		RemovedChildren:  res.RemovedChildren,
		Outcome:          string(res.Outcome),
		Occupancy:        notes[0].action.String(),
		Duration:         took,
	}
	if res.Child != nil {
		ev.ChildID = model.Ptr(res.Child.ID)
		ev.ChildLotSize = res.Child.LotSize
	}
	e.pub.Publish(ev)
	if err := e.sink.RecordAssignment(assignmentResult(res, lot, took, ev.Time)); err != nil {
		e.log.Warnf("record assignment metrics: %v", err)
	}
	e.log.Infow("order assigned", map[string]any{
		"order_id":  res.OrderID,
		"vessel_id": res.VesselID,
		"outcome":   string(res.Outcome),
		"removed":   res.RemovedChildren,
	})
	return res, nil
}

// Schedule sets or clears the order's window. When only start is given and
// the order has a total duration, the end is derived from it.
func (e *Engine) Schedule(ctx context.Context, orderID int64, start, end *time.Time) (model.ProductionOrder, error) {
	if start != nil && end != nil && end.Before(*start) {
		return model.ProductionOrder{}, e.fail("schedule", fmt.Errorf("%w: end precedes start", ErrValidation))
	}
	var (
		out  model.ProductionOrder
		note syncNote
	)
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		order, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		order.Start = copyTime(start)
		order.End = copyTime(end)
		if order.Start != nil && order.End == nil {
			order.End = order.ScheduledEnd(order.Start)
		}
		order.TruncateWindow()
		order.Normalize()
		if err := order.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order %d: %w", order.ID, err)
		}
		act, err := occupancy.Sync(ctx, tx, order)
		if err != nil {
			return err
		}
		note = syncNote{order.ID, deref(order.VesselID), act}
		out = order
		return nil
	})
	if err != nil {
		return model.ProductionOrder{}, e.fail("schedule", err)
	}
	e.recordSyncs([]syncNote{note})
	e.pub.Publish(events.ScheduleEvent{
		Meta:      events.NewMeta(e.now()),
		OrderID:   out.ID,
		VesselID:  out.VesselID,
		Start:     out.Start,
		End:       out.End,
		Occupancy: note.action.String(),
	})
	e.log.Debugw("order scheduled", map[string]any{"order_id": out.ID, "occupancy": note.action.String()})
	return out, nil
}

// Unassign releases the order's vessel. Station and produced quantity are
// cleared with it and the occupancy record is removed.
func (e *Engine) Unassign(ctx context.Context, orderID int64) (model.ProductionOrder, error) {
	var (
		out  model.ProductionOrder
		prev *string
		note syncNote
	)
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		order, err := tx.Order(ctx, orderID)
		if err != nil {
			return err
		}
		prev = order.VesselID
		order.ClearVessel()
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order %d: %w", order.ID, err)
		}
		act, err := occupancy.Sync(ctx, tx, order)
		if err != nil {
			return err
		}
		note = syncNote{order.ID, deref(prev), act}
		out = order
		return nil
	})
	if err != nil {
		return model.ProductionOrder{}, e.fail("unassign", err)
	}
	e.recordSyncs([]syncNote{note})
	e.pub.Publish(events.UnassignEvent{
		Meta:           events.NewMeta(e.now()),
		OrderID:        out.ID,
		PreviousVessel: prev,
		Occupancy:      note.action.String(),
	})
	e.log.Infow("order unassigned", map[string]any{"order_id": out.ID, "previous_vessel": deref(prev)})
	return out, nil
}

// Resync runs the synchronizer over every order. It repairs ledgers that
// drifted through writes made outside the engine.
func (e *Engine) Resync(ctx context.Context) (ResyncResult, error) {
	var (
		res   ResyncResult
		notes []syncNote
	)
	err := e.store.WithinTx(ctx, func(tx store.Tx) error {
		res, notes = ResyncResult{}, notes[:0]
		orders, err := tx.Orders(ctx)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if err := ctx.Err(); err != nil {
				return err
			}
			act, err := occupancy.Sync(ctx, tx, o)
			if err != nil {
				return err
			}
			res.Orders++
			switch act {
			case occupancy.ActionUpserted:
				res.Upserted++
			case occupancy.ActionDeleted:
				res.Deleted++
			}
			notes = append(notes, syncNote{o.ID, deref(o.VesselID), act})
		}
		return nil
	})
	if err != nil {
		return ResyncResult{}, e.fail("resync", err)
	}
	e.recordSyncs(notes)
	e.pub.Publish(events.ResyncEvent{Meta: events.NewMeta(e.now()), Orders: res.Orders, Upserted: res.Upserted, Deleted: res.Deleted})
	e.log.Infof("occupancy resync: %d orders, %d upserted, %d deleted", res.Orders, res.Upserted, res.Deleted)
	return res, nil
}

// Tree returns the order with its descendants.
func (e *Engine) Tree(ctx context.Context, orderID int64) (model.OrderNode, error) {
	return store.Tree(ctx, e.store, orderID)
}

// deleteDescendants removes every descendant of the order, deepest first.
// Each deletion drops the occupancy record of the deleted order.
func deleteDescendants(ctx context.Context, tx store.Tx, orderID int64) (int, error) {
	desc, err := store.Descendants(ctx, tx, orderID)
	if err != nil {
		return 0, err
	}
	for i := len(desc) - 1; i >= 0; i-- {
		if err := tx.DeleteOrder(ctx, desc[i].ID); err != nil {
			return 0, fmt.Errorf("delete child %d of order %d: %w", desc[i].ID, orderID, err)
		}
	}
	return len(desc), nil
}

// firstMatch returns the lowest-id compatibility entry for the vessel and
// the order's color with an eligible diameter flag, or nil.
func firstMatch(ctx context.Context, tx store.Reader, o model.ProductionOrder, vesselID string) (*model.CompatibilityEntry, error) {
	detail, err := tx.FirstProductDetail(ctx, o.ProductCode)
	if err != nil {
		return nil, fmt.Errorf("product detail %s: %w", o.ProductCode, err)
	}
	if detail == nil || detail.ColorCode == nil {
		return nil, nil
	}
	entries, err := tx.CompatibilityForVessel(ctx, vesselID)
	if err != nil {
		return nil, fmt.Errorf("compatibility for vessel %s: %w", vesselID, err)
	}
	for _, en := range entries {
		if en.ColorCode == *detail.ColorCode && en.DiameterEligible() {
			en := en
			return &en, nil
		}
	}
	return nil, nil
}

func (e *Engine) recordSyncs(notes []syncNote) {
	rec, ok := e.sink.(metrics.OccupancyRecorder)
	if !ok {
		return
	}
	now := e.now()
	for _, n := range notes {
		if err := rec.RecordOccupancySync(metrics.OccupancySync{OrderID: n.orderID, VesselID: n.vesselID, Action: n.action.String(), Time: now}); err != nil {
			e.log.Warnf("record occupancy metrics: %v", err)
		}
	}
}

// fail records the failure kind and returns err unchanged.
func (e *Engine) fail(op string, err error) error {
	if rec, ok := e.sink.(metrics.ErrorRecorder); ok {
		_ = rec.RecordOperationError(metrics.OperationError{Operation: op, Kind: ErrorKind(err), Time: e.now()})
	}
	e.log.Debugw("operation failed", map[string]any{"op": op, "error": err.Error()})
	return err
}

// ErrorKind maps an error to its public code.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		return "OrderNotFound"
	case errors.Is(err, store.ErrVesselNotFound):
		return "VesselNotFound"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	default:
		return "InternalError"
	}
}

func assignmentResult(a Assignment, lot *float64, took time.Duration, at time.Time) metrics.AssignmentResult {
	r := metrics.AssignmentResult{
		OrderID:          a.OrderID,
		VesselID:         a.VesselID,
		Station:          deref(a.Station),
		Outcome:          string(a.Outcome),
		LotSize:          derefFloat(lot),
		ProducedQuantity: derefFloat(a.ProducedQuantity),
		Duration:         took,
		Time:             at,
	}
	if a.Child != nil {
		r.ChildLotSize = derefFloat(a.Child.LotSize)
	}
	return r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
