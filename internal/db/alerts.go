package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"safety-telemetry-service/internal/models"
)

const alertColumns = `
	id, device_id, worker_id, type, severity, status, created_at,
	acknowledged_by, acknowledged_at, notes, escalated, priority, response_time_ms`

// FetchActiveAlerts returns every alert that has not reached its terminal
// state, newest first.
func (d *DB) FetchActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `SELECT` + alertColumns + `
	FROM alerts
	WHERE status <> $1
	ORDER BY created_at DESC`

	rows, err := d.Pool.Query(ctx, query, models.AlertResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// FetchAllAlerts returns the full historical collection, newest first.
func (d *DB) FetchAllAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `SELECT` + alertColumns + `
	FROM alerts
	ORDER BY created_at DESC`

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alerts: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// Acknowledge commits a pending->acknowledged transition. The status
// precondition is enforced in SQL, so a concurrent or repeated acknowledge
// fails instead of silently overwriting.
func (d *DB) Acknowledge(ctx context.Context, id, actor, note string) error {
	query := `
	UPDATE alerts
	SET status = $2,
	    acknowledged_by = $3,
	    acknowledged_at = now(),
	    notes = COALESCE(NULLIF($4, ''), notes),
	    response_time_ms = (EXTRACT(EPOCH FROM (now() - created_at)) * 1000)::bigint
	WHERE id = $1 AND status = $5`

	tag, err := d.Pool.Exec(ctx, query, id, models.AlertAcknowledged, actor, note, models.AlertPending)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s not found or not pending", id)
	}
	return nil
}

// BatchAcknowledge commits a set of pending->acknowledged transitions in one
// transaction. All-or-nothing: unless every id was pending, the transaction
// rolls back and no alert changes.
func (d *DB) BatchAcknowledge(ctx context.Context, ids []string, actor string) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch acknowledge: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	UPDATE alerts
	SET status = $2,
	    acknowledged_by = $3,
	    acknowledged_at = now(),
	    response_time_ms = (EXTRACT(EPOCH FROM (now() - created_at)) * 1000)::bigint
	WHERE id = ANY($1) AND status = $4`

	tag, err := tx.Exec(ctx, query, ids, models.AlertAcknowledged, actor, models.AlertPending)
	if err != nil {
		return fmt.Errorf("failed to batch acknowledge: %w", err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("batch acknowledge aborted: %d of %d alerts were pending", tag.RowsAffected(), len(ids))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch acknowledge: %w", err)
	}
	return nil
}

// Resolve commits an acknowledged->resolved transition.
func (d *DB) Resolve(ctx context.Context, id, notes string) error {
	query := `
	UPDATE alerts
	SET status = $2,
	    notes = COALESCE(NULLIF($3, ''), notes)
	WHERE id = $1 AND status = $4`

	tag, err := d.Pool.Exec(ctx, query, id, models.AlertResolved, notes, models.AlertAcknowledged)
	if err != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s not found or not acknowledged", id)
	}
	return nil
}

func scanAlerts(rows pgx.Rows) ([]models.Alert, error) {
	var list []models.Alert
	for rows.Next() {
		var a models.Alert
		err := rows.Scan(
			&a.ID,
			&a.DeviceID,
			&a.WorkerID,
			&a.Type,
			&a.Severity,
			&a.Status,
			&a.CreatedAt,
			&a.AcknowledgedBy,
			&a.AcknowledgedAt,
			&a.Notes,
			&a.Escalated,
			&a.Priority,
			&a.ResponseTimeMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	return list, nil
}
