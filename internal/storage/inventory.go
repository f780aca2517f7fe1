package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/soham10i/stf-hw/internal/types"
)

// GetSlots returns all nine slots in name order.
func (p *PostgresClient) GetSlots(ctx context.Context) ([]types.Slot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT slot_name, x_pos, y_pos, z_pos, carrier_id
		FROM inventory_slots ORDER BY slot_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var out []types.Slot
	for rows.Next() {
		var s types.Slot
		if err := rows.Scan(&s.Name, &s.X, &s.Y, &s.Z, &s.CarrierID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSlot returns one slot.
func (p *PostgresClient) GetSlot(ctx context.Context, name types.SlotName) (*types.Slot, error) {
	var s types.Slot
	err := p.pool.QueryRow(ctx, `
		SELECT slot_name, x_pos, y_pos, z_pos, carrier_id
		FROM inventory_slots WHERE slot_name = $1
	`, name).Scan(&s.Name, &s.X, &s.Y, &s.Z, &s.CarrierID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load slot %s: %w", name, err)
	}
	return &s, nil
}

// FindEmptySlot picks the lowest-named free slot.
func (p *PostgresClient) FindEmptySlot(ctx context.Context) (types.SlotName, error) {
	var name types.SlotName
	err := p.pool.QueryRow(ctx, `
		SELECT slot_name FROM inventory_slots
		WHERE carrier_id IS NULL
		ORDER BY slot_name LIMIT 1
	`).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", types.ErrWarehouseFull
	}
	if err != nil {
		return "", fmt.Errorf("failed to find empty slot: %w", err)
	}
	return name, nil
}

// FindRawDoughSlot picks the lowest-named slot holding a RAW_DOUGH cookie.
// This is the deterministic auto-selection rule for PROCESS.
func (p *PostgresClient) FindRawDoughSlot(ctx context.Context) (types.SlotName, error) {
	var name types.SlotName
	err := p.pool.QueryRow(ctx, `
		SELECT s.slot_name
		FROM inventory_slots s
		JOIN cookies c ON c.carrier_id = s.carrier_id
		WHERE c.status = 'RAW_DOUGH'
		ORDER BY s.slot_name LIMIT 1
	`).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", types.ErrNoRawDough
	}
	if err != nil {
		return "", fmt.Errorf("failed to find raw dough: %w", err)
	}
	return name, nil
}

// CookieAtSlot resolves the cookie riding the slot's carrier.
func (p *PostgresClient) CookieAtSlot(ctx context.Context, name types.SlotName) (*types.Cookie, error) {
	var c types.Cookie
	err := p.pool.QueryRow(ctx, `
		SELECT c.batch_uuid, c.carrier_id, c.flavor, c.status, c.expiry_date, c.created_at
		FROM cookies c
		JOIN inventory_slots s ON s.carrier_id = c.carrier_id
		WHERE s.slot_name = $1
	`, name).Scan(&c.BatchID, &c.CarrierID, &c.Flavor, &c.Status, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cookie at %s: %w", name, err)
	}
	return &c, nil
}

// CreateCarrierWithCookie inserts a carrier plus its cookie inside tx and
// returns the carrier id.
func CreateCarrierWithCookie(ctx context.Context, tx pgx.Tx, zone types.Zone,
	batchID string, flavor types.CookieFlavor) (int64, error) {

	var carrierID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO carriers (current_zone) VALUES ($1) RETURNING id
	`, zone).Scan(&carrierID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert carrier: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cookies (batch_uuid, carrier_id, flavor, status)
		VALUES ($1, $2, $3, 'RAW_DOUGH')
	`, batchID, carrierID, flavor)
	if err != nil {
		return 0, fmt.Errorf("failed to insert cookie: %w", err)
	}
	return carrierID, nil
}

// OccupySlot binds a carrier to a slot inside tx. Fails if the slot is
// already taken, preserving the one-carrier-per-slot invariant.
func OccupySlot(ctx context.Context, tx pgx.Tx, name types.SlotName, carrierID int64) error {
	tag, err := tx.Exec(ctx, `
		UPDATE inventory_slots SET carrier_id = $1, updated_at = now()
		WHERE slot_name = $2 AND carrier_id IS NULL
	`, carrierID, name)
	if err != nil {
		return fmt.Errorf("failed to occupy slot %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", types.ErrSlotOccupied, name)
	}
	return nil
}

// ClearSlot frees a slot inside tx.
func ClearSlot(ctx context.Context, tx pgx.Tx, name types.SlotName) error {
	_, err := tx.Exec(ctx, `
		UPDATE inventory_slots SET carrier_id = NULL, updated_at = now()
		WHERE slot_name = $1
	`, name)
	if err != nil {
		return fmt.Errorf("failed to clear slot %s: %w", name, err)
	}
	return nil
}

// AdvanceCookie moves a cookie forward one lifecycle step inside tx. The
// WHERE clause rejects regressions and skips.
func AdvanceCookie(ctx context.Context, tx pgx.Tx, batchID string, next types.CookieStatus) error {
	var prev types.CookieStatus
	switch next {
	case types.CookieBaked:
		prev = types.CookieRawDough
	case types.CookiePackaged:
		prev = types.CookieBaked
	case types.CookieShipped:
		prev = types.CookiePackaged
	default:
		return fmt.Errorf("%w: cannot advance to %s", types.ErrWrongLifecycle, next)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE cookies SET status = $1, updated_at = now()
		WHERE batch_uuid = $2 AND status = $3
	`, next, batchID, prev)
	if err != nil {
		return fmt.Errorf("failed to advance cookie %s: %w", batchID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cookie %s is not %s", types.ErrWrongLifecycle, batchID, prev)
	}
	return nil
}

// LockCarrier claims a carrier for one command.
func (p *PostgresClient) LockCarrier(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE carriers SET is_locked = true, updated_at = now()
		WHERE id = $1 AND is_locked = false
	`, id)
	if err != nil {
		return fmt.Errorf("failed to lock carrier %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("carrier %d already locked", id)
	}
	return nil
}

// ReleaseCarrier drops the lock, tolerating an already-released carrier so
// safe-park can call it unconditionally.
func (p *PostgresClient) ReleaseCarrier(ctx context.Context, id int64) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE carriers SET is_locked = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to release carrier %d: %w", id, err)
	}
	return nil
}

// MoveCarrierZone records a zone transition inside tx.
func MoveCarrierZone(ctx context.Context, tx pgx.Tx, id int64, zone types.Zone) error {
	_, err := tx.Exec(ctx, `
		UPDATE carriers SET current_zone = $1, updated_at = now() WHERE id = $2
	`, zone, id)
	if err != nil {
		return fmt.Errorf("failed to move carrier %d: %w", id, err)
	}
	return nil
}
