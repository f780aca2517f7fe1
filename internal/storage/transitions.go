package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/soham10i/stf-hw/internal/types"
)

// Terminal transition composites. Each finishes the command row and applies
// the inventory effects in one transaction, so observers only ever see a
// consistent snapshot.

// CompleteStore finishes a STORE: new carrier + RAW_DOUGH cookie bound to
// the target slot.
func (p *PostgresClient) CompleteStore(ctx context.Context, cmdID int64,
	slot types.SlotName, batchID string, flavor types.CookieFlavor) error {

	result := fmt.Sprintf("stored %s cookie %s at %s", flavor, batchID, slot)
	return p.FinishCommand(ctx, cmdID, types.StatusCompleted, result, func(tx pgx.Tx) error {
		carrierID, err := CreateCarrierWithCookie(ctx, tx, types.ZoneHBW, batchID, flavor)
		if err != nil {
			return err
		}
		return OccupySlot(ctx, tx, slot, carrierID)
	})
}

// CompleteRetrieve finishes a RETRIEVE: the slot empties and its carrier
// moves to the VGR handover zone.
func (p *PostgresClient) CompleteRetrieve(ctx context.Context, cmdID int64,
	slot types.SlotName, carrierID int64) error {

	result := fmt.Sprintf("retrieved carrier %d from %s", carrierID, slot)
	return p.FinishCommand(ctx, cmdID, types.StatusCompleted, result, func(tx pgx.Tx) error {
		if err := ClearSlot(ctx, tx, slot); err != nil {
			return err
		}
		return MoveCarrierZone(ctx, tx, carrierID, types.ZoneVGR)
	})
}

// CompleteProcess finishes a PROCESS: the cookie advances to BAKED and its
// carrier is back in the rack.
func (p *PostgresClient) CompleteProcess(ctx context.Context, cmdID int64,
	slot types.SlotName, batchID string, carrierID int64) error {

	result := fmt.Sprintf("baked cookie %s at %s", batchID, slot)
	return p.FinishCommand(ctx, cmdID, types.StatusCompleted, result, func(tx pgx.Tx) error {
		if err := AdvanceCookie(ctx, tx, batchID, types.CookieBaked); err != nil {
			return err
		}
		return MoveCarrierZone(ctx, tx, carrierID, types.ZoneHBW)
	})
}

// CompleteSimple finishes a command with no inventory effect (MOVE, RESET).
func (p *PostgresClient) CompleteSimple(ctx context.Context, cmdID int64, result string) error {
	return p.FinishCommand(ctx, cmdID, types.StatusCompleted, result, nil)
}

// FailCommand writes the FAILED terminal row.
func (p *PostgresClient) FailCommand(ctx context.Context, cmdID int64, result string) error {
	return p.FinishCommand(ctx, cmdID, types.StatusFailed, result, nil)
}
