package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements store.Tx over a querier. Writes outside a transaction
// are never issued: Store only hands out queries bound to a *sql.Tx for
// writing.
type queries struct {
	q    querier
	d    dialect
	inTx bool
}

var _ store.Tx = (*queries)(nil)

func (x *queries) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return x.q.ExecContext(ctx, x.d.rebind(q), args...)
}

func (x *queries) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return x.q.QueryContext(ctx, x.d.rebind(q), args...)
}

func (x *queries) row(ctx context.Context, q string, args ...any) *sql.Row {
	return x.q.QueryRowContext(ctx, x.d.rebind(q), args...)
}

const orderColumns = `id, label, product_code, lot_size, produced_quantity, vessel_id, station,
    start_at, end_at, total_duration, pasting, milling, emulsion, completion, tinting, packaging, parent_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (model.ProductionOrder, error) {
	var (
		o                                            model.ProductionOrder
		lot, produced, dur                           sql.NullFloat64
		pasting, milling, emulsion, completion, tint sql.NullFloat64
		packaging                                    sql.NullFloat64
		vessel, station                              sql.NullString
		start, end, parent                           sql.NullInt64
	)
	err := s.Scan(&o.ID, &o.Label, &o.ProductCode, &lot, &produced, &vessel, &station,
		&start, &end, &dur, &pasting, &milling, &emulsion, &completion, &tint, &packaging, &parent)
	if err != nil {
		return model.ProductionOrder{}, err
	}
	o.LotSize, o.ProducedQuantity, o.TotalDuration = pf(lot), pf(produced), pf(dur)
	o.VesselID, o.Station = ps(vessel), ps(station)
	o.Start, o.End = pt(start), pt(end)
	o.Pasting, o.Milling, o.Emulsion = pf(pasting), pf(milling), pf(emulsion)
	o.Completion, o.Tinting, o.Packaging = pf(completion), pf(tint), pf(packaging)
	o.ParentID = pi(parent)
	return o, nil
}

func (x *queries) orders(ctx context.Context, where string, args ...any) ([]model.ProductionOrder, error) {
	rows, err := x.query(ctx, `SELECT `+orderColumns+` FROM production_orders `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.ProductionOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (x *queries) Order(ctx context.Context, id int64) (model.ProductionOrder, error) {
	q := `SELECT ` + orderColumns + ` FROM production_orders WHERE id = ?`
	if x.inTx && x.d.forUpdate {
		q += ` FOR UPDATE`
	}
	o, err := scanOrder(x.row(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ProductionOrder{}, fmt.Errorf("order %d: %w", id, store.ErrOrderNotFound)
	}
	if err != nil {
		return model.ProductionOrder{}, fmt.Errorf("load order %d: %w", id, err)
	}
	return o, nil
}

func (x *queries) Orders(ctx context.Context) ([]model.ProductionOrder, error) {
	return x.orders(ctx, "")
}

func (x *queries) Children(ctx context.Context, parentID int64) ([]model.ProductionOrder, error) {
	return x.orders(ctx, "WHERE parent_id = ?", parentID)
}

const vesselColumns = `id, number, type, height, diameter, base, plannable_capacity, total_capacity, tare`

func scanVessel(s scanner) (model.Vessel, error) {
	var (
		v                                         model.Vessel
		typ                                       sql.NullString
		height, diameter, base, plan, total, tare sql.NullFloat64
	)
	if err := s.Scan(&v.ID, &v.Number, &typ, &height, &diameter, &base, &plan, &total, &tare); err != nil {
		return model.Vessel{}, err
	}
	v.Type = ps(typ)
	v.Height, v.Diameter, v.Base = pf(height), pf(diameter), pf(base)
	v.PlannableCapacity, v.TotalCapacity, v.Tare = pf(plan), pf(total), pf(tare)
	return v, nil
}

func (x *queries) Vessel(ctx context.Context, id string) (model.Vessel, error) {
	v, err := scanVessel(x.row(ctx, `SELECT `+vesselColumns+` FROM vessels WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vessel{}, fmt.Errorf("vessel %q: %w", id, store.ErrVesselNotFound)
	}
	if err != nil {
		return model.Vessel{}, fmt.Errorf("load vessel %q: %w", id, err)
	}
	return v, nil
}

func (x *queries) Vessels(ctx context.Context) ([]model.Vessel, error) {
	rows, err := x.query(ctx, `SELECT `+vesselColumns+` FROM vessels ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.Vessel{}
	for rows.Next() {
		v, err := scanVessel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (x *queries) FirstProductDetail(ctx context.Context, productCode string) (*model.ProductDetail, error) {
	var (
		d            model.ProductDetail
		inter, color sql.NullString
	)
	err := x.row(ctx, `SELECT id, product_code, intermediate_code, description, color_code
        FROM product_details WHERE product_code = ? ORDER BY id LIMIT 1`, productCode).
		Scan(&d.ID, &d.ProductCode, &inter, &d.Description, &color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.IntermediateCode, d.ColorCode = ps(inter), ps(color)
	return &d, nil
}

const entryColumns = `id, vessel_id, station_id, color_code, number, total_capacity, ratio, diameter_flag,
    min_dispersion_base, plannable_capacity, station_label, validation`

func (x *queries) entries(ctx context.Context, where string, arg any) ([]model.CompatibilityEntry, error) {
	rows, err := x.query(ctx, `SELECT `+entryColumns+` FROM compatibility WHERE `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.CompatibilityEntry{}
	for rows.Next() {
		var (
			e                              model.CompatibilityEntry
			total, ratio, minBase, plan, v sql.NullFloat64
			flag, label                    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.VesselID, &e.StationID, &e.ColorCode, &e.Number, &total, &ratio, &flag,
			&minBase, &plan, &label, &v); err != nil {
			return nil, err
		}
		e.TotalCapacity, e.Ratio, e.DiameterFlag = pf(total), pf(ratio), ps(flag)
		e.MinDispersionBase, e.PlannableCapacity = pf(minBase), pf(plan)
		e.StationLabel, e.Validation = ps(label), pf(v)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (x *queries) CompatibilityByColor(ctx context.Context, colorCode string) ([]model.CompatibilityEntry, error) {
	return x.entries(ctx, "color_code = ?", colorCode)
}

func (x *queries) CompatibilityForVessel(ctx context.Context, vesselID string) ([]model.CompatibilityEntry, error) {
	return x.entries(ctx, "vessel_id = ?", vesselID)
}

func (x *queries) occupancy(ctx context.Context, where string, args ...any) ([]model.OccupancyRecord, error) {
	rows, err := x.query(ctx, `SELECT id, vessel_id, start_at, end_at, status, order_id FROM occupancy `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := []model.OccupancyRecord{}
	for rows.Next() {
		var (
			r                   model.OccupancyRecord
			start, end, orderID sql.NullInt64
			status              string
		)
		if err := rows.Scan(&r.ID, &r.VesselID, &start, &end, &status, &orderID); err != nil {
			return nil, err
		}
		if r.Status, err = model.ParseOccupancyStatus(status); err != nil {
			return nil, fmt.Errorf("occupancy %d: %w", r.ID, err)
		}
		r.Start, r.End, r.OrderID = pt(start), pt(end), pi(orderID)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (x *queries) OccupancyForOrder(ctx context.Context, orderID int64) (*model.OccupancyRecord, error) {
	recs, err := x.occupancy(ctx, "WHERE order_id = ?", orderID)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (x *queries) OccupancyForVessel(ctx context.Context, vesselID string) ([]model.OccupancyRecord, error) {
	return x.occupancy(ctx, "WHERE vessel_id = ?", vesselID)
}

func (x *queries) Occupancy(ctx context.Context) ([]model.OccupancyRecord, error) {
	return x.occupancy(ctx, "")
}

func orderArgs(o model.ProductionOrder) []any {
	return []any{o.Label, o.ProductCode, nf(o.LotSize), nf(o.ProducedQuantity), ns(o.VesselID), ns(o.Station),
		nt(o.Start), nt(o.End), nf(o.TotalDuration), nf(o.Pasting), nf(o.Milling), nf(o.Emulsion),
		nf(o.Completion), nf(o.Tinting), nf(o.Packaging), ni(o.ParentID)}
}

func (x *queries) CreateOrder(ctx context.Context, o *model.ProductionOrder) error {
	err := x.row(ctx, `INSERT INTO production_orders (label, product_code, lot_size, produced_quantity, vessel_id, station,
        start_at, end_at, total_duration, pasting, milling, emulsion, completion, tinting, packaging, parent_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`, orderArgs(*o)...).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (x *queries) UpdateOrder(ctx context.Context, o model.ProductionOrder) error {
	args := append(orderArgs(o), o.ID)
	res, err := x.exec(ctx, `UPDATE production_orders SET label = ?, product_code = ?, lot_size = ?, produced_quantity = ?,
        vessel_id = ?, station = ?, start_at = ?, end_at = ?, total_duration = ?, pasting = ?, milling = ?,
        emulsion = ?, completion = ?, tinting = ?, packaging = ?, parent_id = ? WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("order %d: %w", o.ID, store.ErrOrderNotFound))
}

func (x *queries) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := x.exec(ctx, `DELETE FROM occupancy WHERE order_id = ?`, id); err != nil {
		return err
	}
	res, err := x.exec(ctx, `DELETE FROM production_orders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res, fmt.Errorf("order %d: %w", id, store.ErrOrderNotFound))
}

func (x *queries) UpsertOccupancy(ctx context.Context, rec model.OccupancyRecord) error {
	if rec.OrderID == nil {
		return fmt.Errorf("upsert occupancy: missing order id")
	}
	_, err := x.exec(ctx, `INSERT INTO occupancy (vessel_id, start_at, end_at, status, order_id)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (order_id) DO UPDATE SET vessel_id = excluded.vessel_id, start_at = excluded.start_at,
            end_at = excluded.end_at, status = excluded.status`,
		rec.VesselID, nt(rec.Start), nt(rec.End), rec.Status.String(), *rec.OrderID)
	return err
}

func (x *queries) DeleteOccupancyForOrder(ctx context.Context, orderID int64) (bool, error) {
	res, err := x.exec(ctx, `DELETE FROM occupancy WHERE order_id = ?`, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
