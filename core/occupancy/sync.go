// Package occupancy keeps the vessel occupancy ledger aligned with the
// orders that own vessels.
package occupancy

import (
	"context"
	"fmt"

	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
)

// Action is what Sync did to the ledger.
type Action int

const (
	ActionNone Action = iota
	ActionUpserted
	ActionDeleted
)

func (a Action) String() string {
	switch a {
	case ActionUpserted:
		return "upserted"
	case ActionDeleted:
		return "deleted"
	default:
		return "none"
	}
}

// Sync mirrors the order's vessel and window into its occupancy record.
// It must be called inside the transaction that wrote the order.
func Sync(ctx context.Context, tx store.Tx, o model.ProductionOrder) (Action, error) {
	if rec, ok := model.OccupancyFor(o); ok {
		if err := tx.UpsertOccupancy(ctx, rec); err != nil {
			return ActionNone, fmt.Errorf("upsert occupancy for order %d: %w", o.ID, err)
		}
		return ActionUpserted, nil
	}
	removed, err := tx.DeleteOccupancyForOrder(ctx, o.ID)
	if err != nil {
		return ActionNone, fmt.Errorf("delete occupancy for order %d: %w", o.ID, err)
	}
	if removed {
		return ActionDeleted, nil
	}
	return ActionNone, nil
}
