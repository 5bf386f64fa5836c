package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/occupancy"
	"github.com/kilianp07/pailas/core/store"
)

// state is the full dataset. Orders are kept in an arena keyed by id with a
// reverse index from parent to children.
type state struct {
	products map[string]model.Product
	colors   map[string]model.ColorSpec
	details  map[int64]model.ProductDetail
	vessels  map[string]model.Vessel
	stations map[string]model.Station
	entries  map[int64]model.CompatibilityEntry

	orders   map[int64]model.ProductionOrder
	children map[int64]map[int64]struct{}

	occupancy  map[int64]model.OccupancyRecord
	occByOrder map[int64]int64

	nextOrder     int64
	nextOccupancy int64
	nextDetail    int64
	nextEntry     int64
}

func newState() *state {
	return &state{
		products:   map[string]model.Product{},
		colors:     map[string]model.ColorSpec{},
		details:    map[int64]model.ProductDetail{},
		vessels:    map[string]model.Vessel{},
		stations:   map[string]model.Station{},
		entries:    map[int64]model.CompatibilityEntry{},
		orders:     map[int64]model.ProductionOrder{},
		children:   map[int64]map[int64]struct{}{},
		occupancy:  map[int64]model.OccupancyRecord{},
		occByOrder: map[int64]int64{},
	}
}

// clone copies the mutable parts of the state. Reference data is replaced
// wholesale by Import only, so its maps are copied shallowly.
func (s *state) clone() *state {
	c := *s
	c.products = copyMap(s.products)
	c.colors = copyMap(s.colors)
	c.details = copyMap(s.details)
	c.vessels = copyMap(s.vessels)
	c.stations = copyMap(s.stations)
	c.entries = copyMap(s.entries)
	c.orders = make(map[int64]model.ProductionOrder, len(s.orders))
	for id, o := range s.orders {
		c.orders[id] = o.Clone()
	}
	c.children = make(map[int64]map[int64]struct{}, len(s.children))
	for p, kids := range s.children {
		c.children[p] = copyMap(kids)
	}
	c.occupancy = make(map[int64]model.OccupancyRecord, len(s.occupancy))
	for id, r := range s.occupancy {
		c.occupancy[id] = r.Clone()
	}
	c.occByOrder = copyMap(s.occByOrder)
	return &c
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (s *state) Order(_ context.Context, id int64) (model.ProductionOrder, error) {
	o, ok := s.orders[id]
	if !ok {
		return model.ProductionOrder{}, fmt.Errorf("order %d: %w", id, store.ErrOrderNotFound)
	}
	return o.Clone(), nil
}

func (s *state) Orders(_ context.Context) ([]model.ProductionOrder, error) {
	out := make([]model.ProductionOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) Children(_ context.Context, parentID int64) ([]model.ProductionOrder, error) {
	kids := s.children[parentID]
	out := make([]model.ProductionOrder, 0, len(kids))
	for id := range kids {
		out = append(out, s.orders[id].Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) Vessel(_ context.Context, id string) (model.Vessel, error) {
	v, ok := s.vessels[id]
	if !ok {
		return model.Vessel{}, fmt.Errorf("vessel %q: %w", id, store.ErrVesselNotFound)
	}
	return v, nil
}

func (s *state) Vessels(_ context.Context) ([]model.Vessel, error) {
	out := make([]model.Vessel, 0, len(s.vessels))
	for _, v := range s.vessels {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) FirstProductDetail(_ context.Context, productCode string) (*model.ProductDetail, error) {
	var first *model.ProductDetail
	for _, d := range s.details {
		if d.ProductCode != productCode {
			continue
		}
		if first == nil || d.ID < first.ID {
			d := d
			first = &d
		}
	}
	return first, nil
}

func (s *state) CompatibilityByColor(_ context.Context, colorCode string) ([]model.CompatibilityEntry, error) {
	return s.entriesWhere(func(e model.CompatibilityEntry) bool { return e.ColorCode == colorCode }), nil
}

func (s *state) CompatibilityForVessel(_ context.Context, vesselID string) ([]model.CompatibilityEntry, error) {
	return s.entriesWhere(func(e model.CompatibilityEntry) bool { return e.VesselID == vesselID }), nil
}

func (s *state) entriesWhere(keep func(model.CompatibilityEntry) bool) []model.CompatibilityEntry {
	var out []model.CompatibilityEntry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) OccupancyForOrder(_ context.Context, orderID int64) (*model.OccupancyRecord, error) {
	id, ok := s.occByOrder[orderID]
	if !ok {
		return nil, nil
	}
	r := s.occupancy[id].Clone()
	return &r, nil
}

func (s *state) OccupancyForVessel(_ context.Context, vesselID string) ([]model.OccupancyRecord, error) {
	return s.occupancyWhere(func(r model.OccupancyRecord) bool { return r.VesselID == vesselID }), nil
}

func (s *state) Occupancy(_ context.Context) ([]model.OccupancyRecord, error) {
	return s.occupancyWhere(func(model.OccupancyRecord) bool { return true }), nil
}

func (s *state) occupancyWhere(keep func(model.OccupancyRecord) bool) []model.OccupancyRecord {
	var out []model.OccupancyRecord
	for _, r := range s.occupancy {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *state) CreateOrder(_ context.Context, o *model.ProductionOrder) error {
	if err := s.checkOrder(*o); err != nil {
		return err
	}
	s.nextOrder++
	o.ID = s.nextOrder
	s.putOrder(o.Clone())
	return nil
}

func (s *state) UpdateOrder(_ context.Context, o model.ProductionOrder) error {
	prev, ok := s.orders[o.ID]
	if !ok {
		return fmt.Errorf("order %d: %w", o.ID, store.ErrOrderNotFound)
	}
	if err := s.checkOrder(o); err != nil {
		return err
	}
	if prev.ParentID != nil {
		s.unlinkChild(*prev.ParentID, o.ID)
	}
	s.putOrder(o.Clone())
	return nil
}

func (s *state) DeleteOrder(_ context.Context, id int64) error {
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, store.ErrOrderNotFound)
	}
	if o.ParentID != nil {
		s.unlinkChild(*o.ParentID, id)
	}
	delete(s.orders, id)
	s.dropOccupancy(id)
	return nil
}

func (s *state) UpsertOccupancy(_ context.Context, rec model.OccupancyRecord) error {
	if rec.OrderID == nil {
		return fmt.Errorf("upsert occupancy: missing order id")
	}
	if _, ok := s.vessels[rec.VesselID]; !ok {
		return fmt.Errorf("occupancy vessel %q: %w", rec.VesselID, store.ErrVesselNotFound)
	}
	if id, ok := s.occByOrder[*rec.OrderID]; ok {
		rec.ID = id
	} else {
		s.nextOccupancy++
		rec.ID = s.nextOccupancy
		s.occByOrder[*rec.OrderID] = rec.ID
	}
	s.occupancy[rec.ID] = rec.Clone()
	return nil
}

func (s *state) DeleteOccupancyForOrder(_ context.Context, orderID int64) (bool, error) {
	return s.dropOccupancy(orderID), nil
}

func (s *state) dropOccupancy(orderID int64) bool {
	id, ok := s.occByOrder[orderID]
	if !ok {
		return false
	}
	delete(s.occupancy, id)
	delete(s.occByOrder, orderID)
	return true
}

func (s *state) checkOrder(o model.ProductionOrder) error {
	if o.VesselID != nil {
		if _, ok := s.vessels[*o.VesselID]; !ok {
			return fmt.Errorf("order vessel %q: %w", *o.VesselID, store.ErrVesselNotFound)
		}
	}
	if o.ParentID != nil {
		if *o.ParentID == o.ID {
			return fmt.Errorf("order %d cannot be its own parent", o.ID)
		}
		if _, ok := s.orders[*o.ParentID]; !ok {
			return fmt.Errorf("parent order %d: %w", *o.ParentID, store.ErrOrderNotFound)
		}
		seen := map[int64]bool{o.ID: true}
		for p := o.ParentID; p != nil; p = s.orders[*p].ParentID {
			if seen[*p] {
				return fmt.Errorf("order %d: %w", o.ID, store.ErrParentCycle)
			}
			seen[*p] = true
		}
	}
	return nil
}

func (s *state) putOrder(o model.ProductionOrder) {
	s.orders[o.ID] = o
	if o.ParentID != nil {
		kids, ok := s.children[*o.ParentID]
		if !ok {
			kids = map[int64]struct{}{}
			s.children[*o.ParentID] = kids
		}
		kids[o.ID] = struct{}{}
	}
}

func (s *state) unlinkChild(parent, child int64) {
	kids := s.children[parent]
	delete(kids, child)
	if len(kids) == 0 {
		delete(s.children, parent)
	}
}

// importDataset loads ds into s. Ledger rows owned by an order are derived
// from the order, so dataset rows carrying an order id are skipped and every
// imported order is synchronized instead.
func (s *state) importDataset(ctx context.Context, ds store.Dataset) error {
	for _, p := range ds.Products {
		s.products[p.Code] = p
	}
	for _, c := range ds.Colors {
		s.colors[c.Code] = c
	}
	for _, st := range ds.Stations {
		s.stations[st.ID] = st
	}
	for _, v := range ds.Vessels {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("vessel with empty id")
		}
		s.vessels[v.ID] = v
	}
	for _, d := range ds.Details {
		if d.ID == 0 {
			s.nextDetail++
			d.ID = s.nextDetail
		} else if d.ID > s.nextDetail {
			s.nextDetail = d.ID
		}
		s.details[d.ID] = d
	}
	for _, e := range ds.Compatibility {
		if _, ok := s.vessels[e.VesselID]; !ok {
			return fmt.Errorf("compatibility entry %d vessel %q: %w", e.ID, e.VesselID, store.ErrVesselNotFound)
		}
		if e.ID == 0 {
			s.nextEntry++
			e.ID = s.nextEntry
		} else if e.ID > s.nextEntry {
			s.nextEntry = e.ID
		}
		s.entries[e.ID] = e
	}
	imported := make([]int64, 0, len(ds.Orders))
	for _, o := range ds.Orders {
		o.TruncateWindow()
		if o.ID == 0 {
			s.nextOrder++
			o.ID = s.nextOrder
		} else if o.ID > s.nextOrder {
			s.nextOrder = o.ID
		}
		if prev, ok := s.orders[o.ID]; ok && prev.ParentID != nil {
			s.unlinkChild(*prev.ParentID, o.ID)
		}
		s.putOrder(o.Clone())
		imported = append(imported, o.ID)
	}
	for id, o := range s.orders {
		if err := s.checkOrder(o); err != nil {
			return fmt.Errorf("import order %d: %w", id, err)
		}
	}

	if len(ds.Occupancy) > 0 {
		for id, r := range s.occupancy {
			if r.OrderID == nil {
				delete(s.occupancy, id)
			}
		}
	}
	for _, r := range ds.Occupancy {
		if r.OrderID != nil {
			continue
		}
		if _, ok := s.vessels[r.VesselID]; !ok {
			return fmt.Errorf("occupancy vessel %q: %w", r.VesselID, store.ErrVesselNotFound)
		}
		s.nextOccupancy++
		r.ID = s.nextOccupancy
		s.occupancy[r.ID] = r.Clone()
	}
	for _, id := range imported {
		if _, err := occupancy.Sync(ctx, s, s.orders[id]); err != nil {
			return fmt.Errorf("import order %d: %w", id, err)
		}
	}
	return nil
}
