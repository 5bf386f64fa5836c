package sqlstore

import (
	"context"
	"fmt"

	"github.com/kilianp07/pailas/core/occupancy"
	"github.com/kilianp07/pailas/core/store"
)

// Import loads a dataset in one transaction. Rows are upserted by key.
// Order-less ledger rows are purged before new ledger rows are loaded. Rows
// owned by an order are rebuilt from the imported orders.
func (s *Store) Import(ctx context.Context, ds store.Dataset) error {
	return s.WithinTx(ctx, func(t store.Tx) error {
		x := t.(*queries)
		if err := x.importCatalog(ctx, ds); err != nil {
			return err
		}
		if err := x.importVessels(ctx, ds); err != nil {
			return err
		}
		ids, err := x.importOrders(ctx, ds)
		if err != nil {
			return err
		}
		if err := x.importOccupancy(ctx, ds); err != nil {
			return err
		}
		if err := x.syncOrders(ctx, ids); err != nil {
			return err
		}
		if s.d.sequences {
			return x.realignSequences(ctx)
		}
		return nil
	})
}

func (x *queries) importCatalog(ctx context.Context, ds store.Dataset) error {
	for _, p := range ds.Products {
		if _, err := x.exec(ctx, `INSERT INTO products (code, description) VALUES (?, ?)
            ON CONFLICT (code) DO UPDATE SET description = excluded.description`, p.Code, p.Description); err != nil {
			return fmt.Errorf("import product %s: %w", p.Code, err)
		}
	}
	for _, c := range ds.Colors {
		if _, err := x.exec(ctx, `INSERT INTO colors (code, description) VALUES (?, ?)
            ON CONFLICT (code) DO UPDATE SET description = excluded.description`, c.Code, c.Description); err != nil {
			return fmt.Errorf("import color %s: %w", c.Code, err)
		}
	}
	for _, st := range ds.Stations {
		if _, err := x.exec(ctx, `INSERT INTO stations (id, location) VALUES (?, ?)
            ON CONFLICT (id) DO UPDATE SET location = excluded.location`, st.ID, ns(st.Location)); err != nil {
			return fmt.Errorf("import station %s: %w", st.ID, err)
		}
	}
	for _, d := range ds.Details {
		id := d.ID
		if id == 0 {
			var err error
			if id, err = x.nextID(ctx, "product_details"); err != nil {
				return err
			}
		}
		if _, err := x.exec(ctx, `INSERT INTO product_details (id, product_code, intermediate_code, description, color_code)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT (id) DO UPDATE SET product_code = excluded.product_code,
                intermediate_code = excluded.intermediate_code, description = excluded.description,
                color_code = excluded.color_code`,
			id, d.ProductCode, ns(d.IntermediateCode), d.Description, ns(d.ColorCode)); err != nil {
			return fmt.Errorf("import product detail %d: %w", id, err)
		}
	}
	return nil
}

func (x *queries) importVessels(ctx context.Context, ds store.Dataset) error {
	for _, v := range ds.Vessels {
		if v.ID == "" {
			return fmt.Errorf("import vessel: empty id")
		}
		if _, err := x.exec(ctx, `INSERT INTO vessels (id, number, type, height, diameter, base, plannable_capacity, total_capacity, tare)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (id) DO UPDATE SET number = excluded.number, type = excluded.type, height = excluded.height,
                diameter = excluded.diameter, base = excluded.base, plannable_capacity = excluded.plannable_capacity,
                total_capacity = excluded.total_capacity, tare = excluded.tare`,
			v.ID, v.Number, ns(v.Type), nf(v.Height), nf(v.Diameter), nf(v.Base),
			nf(v.PlannableCapacity), nf(v.TotalCapacity), nf(v.Tare)); err != nil {
			return fmt.Errorf("import vessel %s: %w", v.ID, err)
		}
	}
	for _, e := range ds.Compatibility {
		id := e.ID
		if id == 0 {
			var err error
			if id, err = x.nextID(ctx, "compatibility"); err != nil {
				return err
			}
		}
		if _, err := x.exec(ctx, `INSERT INTO compatibility (id, vessel_id, station_id, color_code, number, total_capacity,
                ratio, diameter_flag, min_dispersion_base, plannable_capacity, station_label, validation)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT (id) DO UPDATE SET vessel_id = excluded.vessel_id, station_id = excluded.station_id,
                color_code = excluded.color_code, number = excluded.number, total_capacity = excluded.total_capacity,
                ratio = excluded.ratio, diameter_flag = excluded.diameter_flag,
                min_dispersion_base = excluded.min_dispersion_base, plannable_capacity = excluded.plannable_capacity,
                station_label = excluded.station_label, validation = excluded.validation`,
			id, e.VesselID, e.StationID, e.ColorCode, e.Number, nf(e.TotalCapacity), nf(e.Ratio), ns(e.DiameterFlag),
			nf(e.MinDispersionBase), nf(e.PlannableCapacity), ns(e.StationLabel), nf(e.Validation)); err != nil {
			return fmt.Errorf("import compatibility entry %d: %w", id, err)
		}
	}
	return nil
}

// importOrders inserts orders without parents first and links parents in a
// second pass so the input order does not matter. It returns the ids of the
// imported orders.
func (x *queries) importOrders(ctx context.Context, ds store.Dataset) ([]int64, error) {
	type link struct{ id, parent int64 }
	var links []link
	ids := make([]int64, 0, len(ds.Orders))
	for _, o := range ds.Orders {
		parent := o.ParentID
		o.ParentID = nil
		o.TruncateWindow()
		if o.ID == 0 {
			if err := x.CreateOrder(ctx, &o); err != nil {
				return nil, err
			}
		} else {
			args := append([]any{o.ID}, orderArgs(o)...)
			if _, err := x.exec(ctx, `INSERT INTO production_orders (id, label, product_code, lot_size, produced_quantity,
                    vessel_id, station, start_at, end_at, total_duration, pasting, milling, emulsion, completion,
                    tinting, packaging, parent_id)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT (id) DO UPDATE SET label = excluded.label, product_code = excluded.product_code,
                    lot_size = excluded.lot_size, produced_quantity = excluded.produced_quantity,
                    vessel_id = excluded.vessel_id, station = excluded.station, start_at = excluded.start_at,
                    end_at = excluded.end_at, total_duration = excluded.total_duration, pasting = excluded.pasting,
                    milling = excluded.milling, emulsion = excluded.emulsion, completion = excluded.completion,
                    tinting = excluded.tinting, packaging = excluded.packaging, parent_id = excluded.parent_id`,
				args...); err != nil {
				return nil, fmt.Errorf("import order %d: %w", o.ID, err)
			}
		}
		ids = append(ids, o.ID)
		if parent != nil {
			links = append(links, link{o.ID, *parent})
		}
	}
	for _, l := range links {
		if l.id == l.parent {
			return nil, fmt.Errorf("import order %d: order cannot be its own parent", l.id)
		}
		if _, err := x.exec(ctx, `UPDATE production_orders SET parent_id = ? WHERE id = ?`, l.parent, l.id); err != nil {
			return nil, fmt.Errorf("link order %d to parent %d: %w", l.id, l.parent, err)
		}
	}
	if len(links) > 0 {
		if err := x.checkForest(ctx); err != nil {
			return nil, fmt.Errorf("import orders: %w", err)
		}
	}
	return ids, nil
}

// checkForest loads every parent link and rejects cycles.
func (x *queries) checkForest(ctx context.Context) error {
	rows, err := x.query(ctx, `SELECT id, parent_id FROM production_orders WHERE parent_id IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("load parent links: %w", err)
	}
	defer rows.Close()
	parents := map[int64]int64{}
	for rows.Next() {
		var id, parent int64
		if err := rows.Scan(&id, &parent); err != nil {
			return err
		}
		parents[id] = parent
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return store.CheckForest(parents)
}

// syncOrders mirrors each imported order into its occupancy record.
func (x *queries) syncOrders(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		o, err := x.Order(ctx, id)
		if err != nil {
			return err
		}
		if _, err := occupancy.Sync(ctx, x, o); err != nil {
			return fmt.Errorf("import order %d: %w", id, err)
		}
	}
	return nil
}

func (x *queries) importOccupancy(ctx context.Context, ds store.Dataset) error {
	if len(ds.Occupancy) == 0 {
		return nil
	}
	if _, err := x.exec(ctx, `DELETE FROM occupancy WHERE order_id IS NULL`); err != nil {
		return fmt.Errorf("purge ledger: %w", err)
	}
	for _, r := range ds.Occupancy {
		if r.OrderID != nil {
			continue
		}
		if _, err := x.exec(ctx, `INSERT INTO occupancy (vessel_id, start_at, end_at, status) VALUES (?, ?, ?, ?)`,
			r.VesselID, nt(r.Start), nt(r.End), r.Status.String()); err != nil {
			return fmt.Errorf("import occupancy of vessel %s: %w", r.VesselID, err)
		}
	}
	return nil
}

func (x *queries) nextID(ctx context.Context, table string) (int64, error) {
	var id int64
	if err := x.row(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM `+table).Scan(&id); err != nil {
		return 0, fmt.Errorf("next id of %s: %w", table, err)
	}
	return id, nil
}

// realignSequences moves serial sequences past ids inserted explicitly.
func (x *queries) realignSequences(ctx context.Context) error {
	for _, table := range []string{"production_orders", "occupancy"} {
		q := `SELECT setval(pg_get_serial_sequence('` + table + `', 'id'), COALESCE((SELECT MAX(id) FROM ` + table + `), 0) + 1, false)`
		if _, err := x.exec(ctx, q); err != nil {
			return fmt.Errorf("realign sequence of %s: %w", table, err)
		}
	}
	return nil
}
