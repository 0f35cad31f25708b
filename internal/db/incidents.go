package db

import (
	"context"
	"fmt"

	"safety-telemetry-service/internal/models"
)

// CreateIncident inserts the incident and flags the linked alert escalated
// in the same transaction. Failure leaves both untouched; the alert's
// acknowledged state is unaffected either way.
func (d *DB) CreateIncident(ctx context.Context, inc models.Incident) (models.Incident, error) {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return models.Incident{}, fmt.Errorf("failed to begin incident create: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
	INSERT INTO incidents (
		id, title, type, severity, worker_id, worker_name, location, description, linked_alert_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, query,
		inc.ID,
		inc.Title,
		inc.Type,
		inc.Severity,
		inc.WorkerID,
		inc.WorkerName,
		inc.Location,
		inc.Description,
		inc.LinkedAlertID,
		inc.CreatedAt,
	)
	if err != nil {
		return models.Incident{}, fmt.Errorf("failed to insert incident: %w", err)
	}

	if inc.LinkedAlertID != "" {
		if _, err := tx.Exec(ctx, `UPDATE alerts SET escalated = true WHERE id = $1`, inc.LinkedAlertID); err != nil {
			return models.Incident{}, fmt.Errorf("failed to flag alert %s escalated: %w", inc.LinkedAlertID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Incident{}, fmt.Errorf("failed to commit incident create: %w", err)
	}
	return inc, nil
}
