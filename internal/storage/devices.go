package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soham10i/stf-hw/internal/types"
)

// UpsertDeviceSnapshot persists the latest status for one device, plus the
// per-motor and per-sensor rows the dashboards read.
func (p *PostgresClient) UpsertDeviceSnapshot(ctx context.Context, snap types.DeviceSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	var tx, ty, tz *float64
	if snap.Target != nil {
		tx, ty, tz = &snap.Target.X, &snap.Target.Y, &snap.Target.Z
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO hardware_states
			(device_id, seq, status, current_x, current_y, current_z,
			 target_x, target_y, target_z, snapshot, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (device_id) DO UPDATE SET
			seq = EXCLUDED.seq, status = EXCLUDED.status,
			current_x = EXCLUDED.current_x, current_y = EXCLUDED.current_y,
			current_z = EXCLUDED.current_z, target_x = EXCLUDED.target_x,
			target_y = EXCLUDED.target_y, target_z = EXCLUDED.target_z,
			snapshot = EXCLUDED.snapshot, last_error = EXCLUDED.last_error,
			updated_at = now()
		WHERE hardware_states.seq < EXCLUDED.seq
	`, snap.Device, snap.Seq, snap.Status,
		snap.Position.X, snap.Position.Y, snap.Position.Z,
		tx, ty, tz, raw, nullIfEmpty(snap.LastError))
	if err != nil {
		return fmt.Errorf("failed to upsert device %s: %w", snap.Device, err)
	}

	for id, m := range snap.Motors {
		_, err := p.pool.Exec(ctx, `
			INSERT INTO motor_states
				(component_id, device_id, phase, current_amps, voltage,
				 health_score, runtime_sec, is_active, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (component_id) DO UPDATE SET
				phase = EXCLUDED.phase, current_amps = EXCLUDED.current_amps,
				voltage = EXCLUDED.voltage, health_score = EXCLUDED.health_score,
				runtime_sec = EXCLUDED.runtime_sec, is_active = EXCLUDED.is_active,
				updated_at = now()
		`, id, snap.Device, m.Phase, m.CurrentAmps, m.Voltage,
			m.HealthScore, m.RuntimeSec, m.Active)
		if err != nil {
			return fmt.Errorf("failed to upsert motor %s: %w", id, err)
		}
	}

	for id, s := range snap.Sensors {
		_, err := p.pool.Exec(ctx, `
			INSERT INTO sensor_states
				(component_id, device_id, sensor_type, is_triggered,
				 trigger_count, last_trigger, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (component_id) DO UPDATE SET
				is_triggered = EXCLUDED.is_triggered,
				trigger_count = EXCLUDED.trigger_count,
				last_trigger = EXCLUDED.last_trigger,
				updated_at = now()
		`, s.ComponentID, snap.Device, s.Kind, s.Triggered, s.TriggerCount, s.LastTrigger)
		if err != nil {
			return fmt.Errorf("failed to upsert sensor %s: %w", id, err)
		}
	}
	return nil
}

// GetHardwareStates returns the persisted snapshot per device.
func (p *PostgresClient) GetHardwareStates(ctx context.Context) ([]types.DeviceSnapshot, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT snapshot FROM hardware_states WHERE snapshot IS NOT NULL ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hardware states: %w", err)
	}
	defer rows.Close()

	var out []types.DeviceSnapshot
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var snap types.DeviceSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
