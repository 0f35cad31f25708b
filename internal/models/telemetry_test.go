package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTelemetryFullPayload(t *testing.T) {
	payload := []byte(`{
		"device_id": "dev-1",
		"temperature": 36.5,
		"gas_level": 120,
		"humidity": 55,
		"battery": 87,
		"rssi": -71,
		"accel_x": 0.1, "accel_y": -0.2, "accel_z": 9.8,
		"gyro_x": 1, "gyro_y": 2, "gyro_z": 3,
		"emergency_button": true,
		"voice_alert": true,
		"voice_alert_type": "help",
		"voice_command": "call supervisor",
		"geofence_violation": false,
		"latitude": 52.52, "longitude": 13.405,
		"gps_valid": true, "gps_speed": 1.2, "satellites": 7, "gps_chars": 512,
		"createdAt": "2026-05-01T08:30:00Z"
	}`)

	got, err := DecodeTelemetry(payload)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", got.DeviceID)
	assert.Equal(t, 36.5, got.Temperature)
	assert.Equal(t, 120.0, got.GasLevel)
	assert.Equal(t, -71.0, got.SignalStrength)
	assert.Equal(t, 9.8, got.Accel.Z)
	assert.True(t, got.EmergencyButton)
	assert.True(t, got.Voice.Active)
	assert.Equal(t, "help", got.Voice.Type)
	assert.Equal(t, "call supervisor", got.Voice.Command)
	assert.True(t, got.GPS.Valid)
	assert.Equal(t, 7, got.GPS.Satellites)
	assert.Equal(t, time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC), got.ReceivedAt)
}

// Malformed fields are coerced to zero values; the event itself survives.
func TestDecodeTelemetryCoercesMalformedFields(t *testing.T) {
	payload := []byte(`{
		"device_id": "dev-1",
		"temperature": "not-a-number",
		"gas_level": "250",
		"battery": null,
		"emergency_button": "yes please",
		"voice_alert": 1,
		"gps_valid": {"nested": true},
		"satellites": 6.9,
		"createdAt": "yesterday-ish"
	}`)

	got, err := DecodeTelemetry(payload)
	require.NoError(t, err)

	assert.Equal(t, 0.0, got.Temperature)
	// numeric strings are accepted
	assert.Equal(t, 250.0, got.GasLevel)
	assert.Equal(t, 0.0, got.Battery)
	assert.False(t, got.EmergencyButton)
	// 0/1 numbers are accepted as booleans
	assert.True(t, got.Voice.Active)
	assert.False(t, got.GPS.Valid)
	assert.Equal(t, 6, got.GPS.Satellites)
	assert.True(t, got.ReceivedAt.IsZero())
}

func TestDecodeTelemetryMissingFieldsAreZero(t *testing.T) {
	got, err := DecodeTelemetry([]byte(`{"device_id": "dev-1"}`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, got.Temperature)
	assert.False(t, got.EmergencyButton)
	assert.False(t, got.GPS.Valid)
}

func TestDecodeTelemetryRejectsInvalidJSON(t *testing.T) {
	_, err := DecodeTelemetry([]byte(`{"device_id": `))
	assert.Error(t, err)
}
