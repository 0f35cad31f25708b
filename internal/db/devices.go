package db

import (
	"context"
	"fmt"
	"time"

	"safety-telemetry-service/internal/models"
)

// FetchDevices returns the registered device list.
func (d *DB) FetchDevices(ctx context.Context) ([]models.Device, error) {
	query := `SELECT id, worker_id, worker_name, zone FROM devices ORDER BY id`

	rows, err := d.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch devices: %w", err)
	}
	defer rows.Close()

	var list []models.Device
	for rows.Next() {
		var dev models.Device
		if err := rows.Scan(&dev.ID, &dev.WorkerID, &dev.WorkerName, &dev.Zone); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		list = append(list, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read devices: %w", err)
	}
	return list, nil
}

// SendNudge records a nudge for the device. The downstream push to the
// device itself is handled outside this service; the record is the commit.
func (d *DB) SendNudge(ctx context.Context, deviceID, message string) error {
	query := `INSERT INTO nudges (device_id, message, sent_at) VALUES ($1, $2, $3)`

	if _, err := d.Pool.Exec(ctx, query, deviceID, message, time.Now()); err != nil {
		return fmt.Errorf("failed to record nudge for device %s: %w", deviceID, err)
	}
	return nil
}
