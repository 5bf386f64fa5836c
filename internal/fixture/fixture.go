// Package fixture builds small planning datasets shared by tests.
package fixture

import (
	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
)

const (
	ColorWhite = "WHT"
	ColorBlue  = "BLU"

	ProductWhite    = "PT-100"
	ProductBlue     = "PT-200"
	ProductNoColor  = "PT-300"
	ProductNoDetail = "PT-400"
)

// Base returns products, colors, details, stations and five vessels P1..P5.
// It holds no compatibility entries and no orders.
func Base() store.Dataset {
	return store.Dataset{
		Products: []model.Product{
			{Code: ProductWhite, Description: "white enamel"},
			{Code: ProductBlue, Description: "blue enamel"},
			{Code: ProductNoColor, Description: "primer"},
			{Code: ProductNoDetail, Description: "thinner"},
		},
		Colors: []model.ColorSpec{
			{Code: ColorWhite, Description: "white"},
			{Code: ColorBlue, Description: "blue"},
		},
		Details: []model.ProductDetail{
			{ID: 1, ProductCode: ProductWhite, IntermediateCode: model.Ptr("INT-100"), Description: "white base", ColorCode: model.Ptr(ColorWhite)},
			{ID: 2, ProductCode: ProductBlue, Description: "blue base", ColorCode: model.Ptr(ColorBlue)},
			{ID: 3, ProductCode: ProductNoColor, Description: "primer base"},
			{ID: 4, ProductCode: ProductBlue, Description: "duplicate white row", ColorCode: model.Ptr(ColorWhite)},
		},
		Stations: []model.Station{
			{ID: "DSP-1", Location: model.Ptr("hall A")},
			{ID: "DSP-2", Location: model.Ptr("hall A")},
			{ID: "DSP-3"},
		},
		Vessels: []model.Vessel{
			Vessel("P1", 1, 500),
			Vessel("P2", 2, 300),
			Vessel("P3", 3, 200),
			Vessel("P4", 4, 120),
			Vessel("P5", 5, 80),
		},
	}
}

// Vessel builds a vessel with the given plannable capacity.
func Vessel(id string, number int, capacity float64) model.Vessel {
	return model.Vessel{
		ID:                id,
		Number:            number,
		Type:              model.Ptr("stainless"),
		PlannableCapacity: model.Ptr(capacity),
		TotalCapacity:     model.Ptr(capacity * 1.2),
	}
}

// Entry builds an eligible compatibility row. A zero capacity is stored as
// unknown.
func Entry(id int64, vessel, station, color string, minBase, capacity float64) model.CompatibilityEntry {
	e := model.CompatibilityEntry{
		ID:                id,
		VesselID:          vessel,
		StationID:         station,
		ColorCode:         color,
		Number:            int(id),
		DiameterFlag:      model.Ptr("yes"),
		MinDispersionBase: model.Ptr(minBase),
		StationLabel:      model.Ptr("Disperser " + station),
		Validation:        model.Ptr(1.0),
	}
	if capacity != 0 {
		e.PlannableCapacity = model.Ptr(capacity)
	}
	return e
}

// Order builds an unassigned order. A negative lot is stored as unknown.
func Order(id int64, product string, lot float64) model.ProductionOrder {
	o := model.ProductionOrder{
		ID:            id,
		Label:         "OP-" + product,
		ProductCode:   product,
		TotalDuration: model.Ptr(4.0),
	}
	if lot >= 0 {
		o.LotSize = model.Ptr(lot)
	}
	return o
}

// With returns the base dataset extended with entries and orders.
func With(entries []model.CompatibilityEntry, orders ...model.ProductionOrder) store.Dataset {
	ds := Base()
	ds.Compatibility = entries
	ds.Orders = orders
	return ds
}
