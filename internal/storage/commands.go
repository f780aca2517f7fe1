package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/soham10i/stf-hw/internal/types"
)

const commandColumns = `id, kind, target_slot, params, status, priority,
	devices, COALESCE(executor_id, ''), COALESCE(result, ''),
	created_at, started_at, completed_at`

func scanCommand(row pgx.Row) (*types.Command, error) {
	var cmd types.Command
	var devices []string
	err := row.Scan(&cmd.ID, &cmd.Kind, &cmd.TargetSlot, &cmd.Params,
		&cmd.Status, &cmd.Priority, &devices, &cmd.ExecutorID, &cmd.Result,
		&cmd.CreatedAt, &cmd.StartedAt, &cmd.CompletedAt)
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		cmd.Devices = append(cmd.Devices, types.DeviceID(d))
	}
	return &cmd, nil
}

// CreateCommand inserts a PENDING row and fills in the assigned id and
// created_at.
func (p *PostgresClient) CreateCommand(ctx context.Context, cmd *types.Command) error {
	devices := make([]string, len(cmd.Devices))
	for i, d := range cmd.Devices {
		devices[i] = string(d)
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO commands (kind, target_slot, params, status, priority, devices)
		VALUES ($1, $2, $3, 'PENDING', $4, $5)
		RETURNING id, created_at
	`, cmd.Kind, cmd.TargetSlot, cmd.Params, cmd.Priority, devices).
		Scan(&cmd.ID, &cmd.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert command: %w", err)
	}
	cmd.Status = types.StatusPending
	return nil
}

// ClaimNextCommand atomically claims the single oldest PENDING row whose
// device set does not intersect any IN_PROGRESS command's set. Ordering:
// priority desc, then created_at, ties on smaller id. Multiple executors
// race safely through FOR UPDATE SKIP LOCKED; the loser sees ErrNotFound.
func (p *PostgresClient) ClaimNextCommand(ctx context.Context, executorID string) (*types.Command, error) {
	var blocked bool
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM system_flags WHERE key = 'claims_blocked'`).Scan(&blocked)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read claim gate: %w", err)
	}
	if blocked {
		return nil, types.ErrNotFound
	}

	row := p.pool.QueryRow(ctx, `
		WITH candidate AS (
			SELECT c.id FROM commands c
			WHERE c.status = 'PENDING'
			  AND NOT EXISTS (
				SELECT 1 FROM commands a
				WHERE a.status = 'IN_PROGRESS' AND a.devices && c.devices
			  )
			ORDER BY c.priority DESC, c.created_at, c.id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE commands SET status = 'IN_PROGRESS', started_at = now(), executor_id = $1
		FROM candidate
		WHERE commands.id = candidate.id
		RETURNING `+commandColumns, executorID)

	cmd, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to claim command: %w", err)
	}
	return cmd, nil
}

// GetCommand fetches one row.
func (p *PostgresClient) GetCommand(ctx context.Context, id int64) (*types.Command, error) {
	cmd, err := scanCommand(p.pool.QueryRow(ctx,
		`SELECT `+commandColumns+` FROM commands WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load command %d: %w", id, err)
	}
	return cmd, nil
}

// RecordProgress appends one FSM transition event for a command.
func (p *PostgresClient) RecordProgress(ctx context.Context, commandID int64, phase, detail string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO command_events (command_id, phase, detail)
		VALUES ($1, $2, $3)
	`, commandID, phase, detail)
	if err != nil {
		return fmt.Errorf("failed to record progress: %w", err)
	}
	return nil
}

// FinishCommand writes the terminal transition and runs apply in the same
// transaction, so command, cookie, slot and carrier rows move together.
// The linear status order is enforced in SQL: only an IN_PROGRESS row can
// reach a terminal status.
func (p *PostgresClient) FinishCommand(ctx context.Context, id int64, status types.CommandStatus,
	result string, apply func(pgx.Tx) error) error {

	if !status.Terminal() {
		return fmt.Errorf("finish requires a terminal status, got %s", status)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE commands
		SET status = $1, result = $2, completed_at = now()
		WHERE id = $3 AND status = 'IN_PROGRESS'
	`, status, result, id)
	if err != nil {
		return fmt.Errorf("failed to finish command %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("command %d not in progress", id)
	}

	if apply != nil {
		if err := apply(tx); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FailAllInProgress terminates every active row, used on emergency stop.
// Returns the ids that were failed.
func (p *PostgresClient) FailAllInProgress(ctx context.Context, reason string) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `
		UPDATE commands
		SET status = 'FAILED', result = $1, completed_at = now()
		WHERE status = 'IN_PROGRESS'
		RETURNING id
	`, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to fail in-progress commands: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetClaimsBlocked gates the executor poll loop. Set on emergency stop,
// cleared by an operator resume.
func (p *PostgresClient) SetClaimsBlocked(ctx context.Context, blocked bool) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO system_flags (key, value, updated_at)
		VALUES ('claims_blocked', $1, now())
		ON CONFLICT (key) DO UPDATE SET value = $1, updated_at = now()
	`, blocked)
	if err != nil {
		return fmt.Errorf("failed to set claim gate: %w", err)
	}
	return nil
}

// ClaimsBlocked reads the gate.
func (p *PostgresClient) ClaimsBlocked(ctx context.Context) (bool, error) {
	var blocked bool
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM system_flags WHERE key = 'claims_blocked'`).Scan(&blocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read claim gate: %w", err)
	}
	return blocked, nil
}

// ListCommands returns recent rows, newest first.
func (p *PostgresClient) ListCommands(ctx context.Context, limit int) ([]types.Command, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+commandColumns+` FROM commands ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	var out []types.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cmd)
	}
	return out, rows.Err()
}
