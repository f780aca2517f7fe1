package storage

import (
	"context"
	"fmt"

	"github.com/soham10i/stf-hw/internal/types"
)

// seed inserts the fixed cell configuration: nine slots with their rack
// coordinates and the three device rows. Existing rows are left alone.
func (p *PostgresClient) seed(ctx context.Context) error {
	for _, name := range types.SlotNames() {
		pos := types.SlotCoordinates[name]
		_, err := p.pool.Exec(ctx, `
			INSERT INTO inventory_slots (slot_name, x_pos, y_pos, z_pos)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (slot_name) DO NOTHING
		`, name, pos.X, pos.Y, pos.Z)
		if err != nil {
			return fmt.Errorf("failed to seed slot %s: %w", name, err)
		}
	}

	for _, dev := range types.AllDevices() {
		_, err := p.pool.Exec(ctx, `
			INSERT INTO hardware_states (device_id)
			VALUES ($1)
			ON CONFLICT (device_id) DO NOTHING
		`, dev)
		if err != nil {
			return fmt.Errorf("failed to seed device %s: %w", dev, err)
		}
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO system_flags (key, value)
		VALUES ('claims_blocked', false)
		ON CONFLICT (key) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to seed system flags: %w", err)
	}
	return nil
}
