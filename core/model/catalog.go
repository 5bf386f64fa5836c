package model

import "strings"

// Product is a finished good referenced by production orders.
type Product struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// ColorSpec identifies the color family a product is manufactured in.
type ColorSpec struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// ProductDetail links a product to its intermediate code and color.
// ColorCode is a weak reference: deleting the color clears it.
type ProductDetail struct {
	ID               int64   `json:"id" yaml:"id"`
	ProductCode      string  `json:"product_code" yaml:"product_code"`
	IntermediateCode *string `json:"intermediate_code,omitempty" yaml:"intermediate_code"`
	Description      string  `json:"description" yaml:"description"`
	ColorCode        *string `json:"color_code,omitempty" yaml:"color_code"`
}

// Vessel is a physical processing container ("paila").
type Vessel struct {
	ID                string   `json:"id" yaml:"id"`
	Number            int      `json:"number" yaml:"number"`
	Type              *string  `json:"type,omitempty" yaml:"type"`
	Height            *float64 `json:"height,omitempty" yaml:"height"`
	Diameter          *float64 `json:"diameter,omitempty" yaml:"diameter"`
	Base              *float64 `json:"base,omitempty" yaml:"base"`
	PlannableCapacity *float64 `json:"plannable_capacity,omitempty" yaml:"plannable_capacity"`
	TotalCapacity     *float64 `json:"total_capacity,omitempty" yaml:"total_capacity"`
	Tare              *float64 `json:"tare,omitempty" yaml:"tare"`
}

// Station is a piece of equipment a vessel is docked at.
type Station struct {
	ID       string  `json:"id" yaml:"id"`
	Location *string `json:"location,omitempty" yaml:"location"`
}

// CompatibilityEntry is one row of the compatibility matrix: it states that
// a vessel can be used at a station for a color under capacity and
// dispersion-threshold constraints.
type CompatibilityEntry struct {
	ID                int64    `json:"id" yaml:"id"`
	VesselID          string   `json:"vessel_id" yaml:"vessel_id"`
	StationID         string   `json:"station_id" yaml:"station_id"`
	ColorCode         string   `json:"color_code" yaml:"color_code"`
	Number            int      `json:"number" yaml:"number"`
	TotalCapacity     *float64 `json:"total_capacity,omitempty" yaml:"total_capacity"`
	Ratio             *float64 `json:"ratio,omitempty" yaml:"ratio"`
	DiameterFlag      *string  `json:"diameter_flag,omitempty" yaml:"diameter_flag"`
	MinDispersionBase *float64 `json:"min_dispersion_base,omitempty" yaml:"min_dispersion_base"`
	PlannableCapacity *float64 `json:"plannable_capacity,omitempty" yaml:"plannable_capacity"`
	StationLabel      *string  `json:"station_label,omitempty" yaml:"station_label"`
	Validation        *float64 `json:"validation,omitempty" yaml:"validation"`
}

// DiameterEligible reports whether the diameter flag reads "yes".
// The matrix is maintained in Spanish, so "si" is the same answer.
func (e CompatibilityEntry) DiameterEligible() bool {
	if e.DiameterFlag == nil {
		return false
	}
	f := strings.TrimSpace(*e.DiameterFlag)
	return strings.EqualFold(f, "yes") || strings.EqualFold(f, "si")
}

// AdmitsLot reports whether a lot of the given size clears the minimum
// dispersion base. The comparison is strict and unknown values never match.
func (e CompatibilityEntry) AdmitsLot(lot *float64) bool {
	if e.MinDispersionBase == nil || lot == nil {
		return false
	}
	return *e.MinDispersionBase < *lot
}

// Capacity returns the plannable capacity, zero when unknown.
func (e CompatibilityEntry) Capacity() float64 {
	if e.PlannableCapacity == nil {
		return 0
	}
	return *e.PlannableCapacity
}

// StationName is the label written on orders assigned through this entry.
func (e CompatibilityEntry) StationName() string {
	if e.StationLabel != nil && *e.StationLabel != "" {
		return *e.StationLabel
	}
	return e.StationID
}
