package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/soham10i/stf-hw/internal/types"
)

// Append-only history tables. Retention is count-based: inserts
// opportunistically prune the oldest rows past the configured cap.

func (p *PostgresClient) InsertTelemetry(ctx context.Context, s types.TelemetrySample) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO telemetry (device_id, metric, value, unit, ts)
		VALUES ($1, $2, $3, $4, $5)
	`, s.Device, s.Metric, s.Value, nullIfEmpty(s.Unit), s.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry: %w", err)
	}
	p.prune(ctx, "telemetry")
	return nil
}

func (p *PostgresClient) InsertEnergy(ctx context.Context, s types.EnergySample) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO energy_log (device_id, joules, voltage, amps, power_watts, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.Device, s.Joules, s.Voltage, s.Amps, s.PowerWatts, s.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert energy sample: %w", err)
	}
	p.prune(ctx, "energy_log")
	return nil
}

func (p *PostgresClient) InsertAlert(ctx context.Context, a *types.Alert) error {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO alerts (alert_type, severity, title, message, device_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, a.Type, a.Severity, a.Title, a.Message, nullIfEmpty(string(a.Device))).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	p.prune(ctx, "alerts")
	return nil
}

func (p *PostgresClient) AcknowledgeAlert(ctx context.Context, id int64, who string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE alerts SET acknowledged = true, acknowledged_at = now(), acknowledged_by = $1
		WHERE id = $2 AND acknowledged = false
	`, who, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (p *PostgresClient) ListAlerts(ctx context.Context, limit int) ([]types.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, alert_type, severity, title, message, COALESCE(device_id, ''),
		       acknowledged, acknowledged_at, COALESCE(acknowledged_by, ''), created_at
		FROM alerts ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []types.Alert
	for rows.Next() {
		var a types.Alert
		var device string
		if err := rows.Scan(&a.ID, &a.Type, &a.Severity, &a.Title, &a.Message,
			&device, &a.Acknowledged, &a.AcknowledgedAt, &a.AcknowledgedBy,
			&a.CreatedAt); err != nil {
			return nil, err
		}
		a.Device = types.DeviceID(device)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresClient) InsertLog(ctx context.Context, e types.LogEntry) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO system_logs (level, source, message, ts)
		VALUES ($1, $2, $3, $4)
	`, e.Level, nullIfEmpty(e.Source), e.Message, e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	p.prune(ctx, "system_logs")
	return nil
}

func (p *PostgresClient) ListTelemetry(ctx context.Context, device types.DeviceID,
	from, to time.Time, limit int) ([]types.TelemetrySample, error) {

	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.pool.Query(ctx, `
		SELECT device_id, metric, value, COALESCE(unit, ''), ts
		FROM telemetry
		WHERE device_id = $1 AND ts BETWEEN $2 AND $3
		ORDER BY ts DESC LIMIT $4
	`, device, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list telemetry: %w", err)
	}
	defer rows.Close()

	var out []types.TelemetrySample
	for rows.Next() {
		var s types.TelemetrySample
		if err := rows.Scan(&s.Device, &s.Metric, &s.Value, &s.Unit, &s.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresClient) ListEnergy(ctx context.Context, device types.DeviceID,
	from, to time.Time, limit int) ([]types.EnergySample, error) {

	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.pool.Query(ctx, `
		SELECT device_id, joules, voltage, COALESCE(amps, 0), COALESCE(power_watts, 0), ts
		FROM energy_log
		WHERE device_id = $1 AND ts BETWEEN $2 AND $3
		ORDER BY ts DESC LIMIT $4
	`, device, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list energy samples: %w", err)
	}
	defer rows.Close()

	var out []types.EnergySample
	for rows.Next() {
		var s types.EnergySample
		if err := rows.Scan(&s.Device, &s.Joules, &s.Voltage, &s.Amps, &s.PowerWatts, &s.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// prune keeps an append-only table at the retention cap. Best effort; a
// failed prune never fails the insert that triggered it.
func (p *PostgresClient) prune(ctx context.Context, table string) {
	if p.maxRows <= 0 {
		return
	}
	switch table {
	case "telemetry", "energy_log", "alerts", "system_logs":
	default:
		return
	}
	_, _ = p.pool.Exec(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE id <= (
			SELECT COALESCE(MAX(id), 0) - $1 FROM %s
		)
	`, table, table), p.maxRows)
}
