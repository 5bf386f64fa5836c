// Package catalog loads reference data and planning fixtures from YAML seed
// files.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/pailas/core/store"
)

// LoadSeed reads and checks a seed file.
func LoadSeed(path string) (store.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Dataset{}, fmt.Errorf("read seed: %w", err)
	}
	ds, err := Decode(bytes.NewReader(data))
	if err != nil {
		return store.Dataset{}, fmt.Errorf("seed %s: %w", path, err)
	}
	return ds, nil
}

// Decode parses a seed document. Unknown keys are rejected.
func Decode(r io.Reader) (store.Dataset, error) {
	var ds store.Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil && !errors.Is(err, io.EOF) {
		return store.Dataset{}, err
	}
	if err := Check(ds); err != nil {
		return store.Dataset{}, err
	}
	return ds, nil
}

// Check verifies the references inside a dataset. Keys that the dataset
// does not define are assumed to exist in the target store already, so
// only duplicated keys and self-inconsistent rows are rejected.
func Check(ds store.Dataset) error {
	var errs []error
	seen := map[string]bool{}
	for _, v := range ds.Vessels {
		if v.ID == "" {
			errs = append(errs, errors.New("vessel with empty id"))
			continue
		}
		if seen[v.ID] {
			errs = append(errs, fmt.Errorf("vessel %s defined twice", v.ID))
		}
		seen[v.ID] = true
	}
	compat := map[int64]bool{}
	for _, e := range ds.Compatibility {
		if e.VesselID == "" || e.ColorCode == "" {
			errs = append(errs, fmt.Errorf("compatibility %d: vessel_id and color_code are required", e.ID))
		}
		if e.ID != 0 && compat[e.ID] {
			errs = append(errs, fmt.Errorf("compatibility %d defined twice", e.ID))
		}
		compat[e.ID] = true
	}
	orders := map[int64]bool{}
	parents := map[int64]int64{}
	for _, o := range ds.Orders {
		if o.ID != 0 && orders[o.ID] {
			errs = append(errs, fmt.Errorf("order %d defined twice", o.ID))
		}
		orders[o.ID] = true
		if o.ProductCode == "" {
			errs = append(errs, fmt.Errorf("order %d: product_code is required", o.ID))
		}
		if o.ParentID != nil && *o.ParentID == o.ID {
			errs = append(errs, fmt.Errorf("order %d is its own parent", o.ID))
		} else if o.ParentID != nil && o.ID != 0 {
			parents[o.ID] = *o.ParentID
		}
		if err := o.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("order %d: %w", o.ID, err))
		}
	}
	if err := store.CheckForest(parents); err != nil {
		errs = append(errs, err)
	}
	for _, r := range ds.Occupancy {
		if r.VesselID == "" {
			errs = append(errs, fmt.Errorf("occupancy %d: vessel_id is required", r.ID))
		}
		if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
			errs = append(errs, fmt.Errorf("occupancy %d: end precedes start", r.ID))
		}
	}
	return errors.Join(errs...)
}
