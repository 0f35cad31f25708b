package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Vector3 is a three-axis sensor sample (accelerometer or gyroscope).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VoiceAlert carries the state of the on-device voice detection pipeline.
type VoiceAlert struct {
	Active    bool   `json:"active"`
	Type      string `json:"type,omitempty"`
	Command   string `json:"command,omitempty"`
	CommandID string `json:"commandId,omitempty"`
}

// GPSFix is the last reported GPS state for a device. Valid=false means the
// receiver is still acquiring; coordinates are meaningless in that case.
type GPSFix struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Valid         bool    `json:"valid"`
	Speed         float64 `json:"speed"`
	Satellites    int     `json:"satellites"`
	CharsReceived int     `json:"charsReceived"`
}

// DeviceTelemetry is the latest known reading for one device. A new event
// replaces the whole record; fields absent from the event are zero, never
// inherited from the previous reading.
type DeviceTelemetry struct {
	DeviceID          string     `json:"deviceId"`
	ReceivedAt        time.Time  `json:"receivedAt"`
	Temperature       float64    `json:"temperature"`
	GasLevel          float64    `json:"gasLevel"`
	Humidity          float64    `json:"humidity"`
	Battery           float64    `json:"battery"`
	SignalStrength    float64    `json:"signalStrength"`
	Accel             Vector3    `json:"accel"`
	Gyro              Vector3    `json:"gyro"`
	EmergencyButton   bool       `json:"emergencyButton"`
	Voice             VoiceAlert `json:"voiceAlert"`
	GPS               GPSFix     `json:"gps"`
	GeofenceViolation bool       `json:"geofenceViolation"`
}

// DecodeTelemetry parses a raw telemetry payload. Field-level problems are
// never fatal: a malformed numeric or boolean is coerced to its zero value
// and the rest of the event is kept. Only unparseable JSON is an error.
func DecodeTelemetry(payload []byte) (DeviceTelemetry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return DeviceTelemetry{}, fmt.Errorf("failed to decode telemetry payload: %w", err)
	}

	t := DeviceTelemetry{
		DeviceID:          asString(raw["device_id"]),
		Temperature:       asFloat(raw["temperature"]),
		GasLevel:          asFloat(raw["gas_level"]),
		Humidity:          asFloat(raw["humidity"]),
		Battery:           asFloat(raw["battery"]),
		SignalStrength:    asFloat(raw["rssi"]),
		EmergencyButton:   asBool(raw["emergency_button"]),
		GeofenceViolation: asBool(raw["geofence_violation"]),
		Accel: Vector3{
			X: asFloat(raw["accel_x"]),
			Y: asFloat(raw["accel_y"]),
			Z: asFloat(raw["accel_z"]),
		},
		Gyro: Vector3{
			X: asFloat(raw["gyro_x"]),
			Y: asFloat(raw["gyro_y"]),
			Z: asFloat(raw["gyro_z"]),
		},
		Voice: VoiceAlert{
			Active:    asBool(raw["voice_alert"]),
			Type:      asString(raw["voice_alert_type"]),
			Command:   asString(raw["voice_command"]),
			CommandID: asString(raw["voice_command_id"]),
		},
		GPS: GPSFix{
			Latitude:      asFloat(raw["latitude"]),
			Longitude:     asFloat(raw["longitude"]),
			Valid:         asBool(raw["gps_valid"]),
			Speed:         asFloat(raw["gps_speed"]),
			Satellites:    asInt(raw["satellites"]),
			CharsReceived: asInt(raw["gps_chars"]),
		},
	}

	if ts := asString(raw["createdAt"]); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			t.ReceivedAt = parsed
		}
	}

	return t, nil
}

// asFloat coerces a raw JSON value to float64, accepting numbers and numeric
// strings. Anything else yields 0.
func asFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

func asInt(raw json.RawMessage) int {
	return int(asFloat(raw))
}

// asBool coerces a raw JSON value to bool, accepting booleans, 0/1 numbers
// and "true"/"false" strings. Anything else yields false.
func asBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f != 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return false
}

func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
