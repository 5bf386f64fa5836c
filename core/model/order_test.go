package model

import (
	"errors"
	"testing"
	"time"
)

func TestClearVesselDropsProducedQuantity(t *testing.T) {
	o := ProductionOrder{ID: 1, VesselID: Ptr("P1"), Station: Ptr("M1"), ProducedQuantity: Ptr(300.0)}
	o.ClearVessel()
	if o.VesselID != nil || o.Station != nil || o.ProducedQuantity != nil {
		t.Fatalf("expected vessel, station and produced cleared, got %+v", o)
	}
}

func TestNormalize(t *testing.T) {
	root := ProductionOrder{ID: 1, ProducedQuantity: Ptr(10.0)}
	root.Normalize()
	if root.ProducedQuantity != nil {
		t.Fatalf("expected produced quantity cleared on unassigned root")
	}

	child := ProductionOrder{ID: 2, ParentID: Ptr(int64(1)), ProducedQuantity: Ptr(10.0)}
	child.Normalize()
	if child.ProducedQuantity == nil || *child.ProducedQuantity != 10 {
		t.Fatalf("remainder should keep its planned share")
	}
}

func TestValidate(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	cases := []struct {
		name  string
		order ProductionOrder
		want  error
	}{
		{"empty", ProductionOrder{}, nil},
		{"produced without vessel", ProductionOrder{ProducedQuantity: Ptr(1.0)}, ErrProducedWithoutVessel},
		{"remainder", ProductionOrder{ProducedQuantity: Ptr(1.0), ParentID: Ptr(int64(3))}, nil},
		{"assigned", ProductionOrder{ProducedQuantity: Ptr(1.0), VesselID: Ptr("P1")}, nil},
		{"inverted window", ProductionOrder{Start: &start, End: &before}, ErrWindowInverted},
	}
	for _, tc := range cases {
		if err := tc.order.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, err)
		}
	}
}

func TestScheduledEnd(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	o := ProductionOrder{TotalDuration: Ptr(2.5)}
	end := o.ScheduledEnd(&start)
	if end == nil || !end.Equal(start.Add(150*time.Minute)) {
		t.Fatalf("unexpected end %v", end)
	}
	if (ProductionOrder{}).ScheduledEnd(&start) != nil {
		t.Fatalf("expected nil end without duration")
	}
}

func TestCloneIsDeep(t *testing.T) {
	o := ProductionOrder{LotSize: Ptr(5.0), VesselID: Ptr("P1")}
	c := o.Clone()
	*c.LotSize = 9
	*c.VesselID = "P2"
	if *o.LotSize != 5 || *o.VesselID != "P1" {
		t.Fatalf("clone shares pointers with original")
	}
}

func TestOccupancyFor(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)
	o := ProductionOrder{ID: 7, VesselID: Ptr("P1"), Start: &start, End: &end}
	rec, ok := OccupancyFor(o)
	if !ok {
		t.Fatalf("expected record")
	}
	if rec.Status != StatusOccupied || rec.VesselID != "P1" || *rec.OrderID != 7 {
		t.Fatalf("unexpected record %+v", rec)
	}
	o.End = nil
	if _, ok := OccupancyFor(o); ok {
		t.Fatalf("expected no record without end")
	}
}
