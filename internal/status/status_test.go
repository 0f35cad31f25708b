package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"safety-telemetry-service/internal/models"
)

func TestForDevicePriorityOrder(t *testing.T) {
	cases := []struct {
		name    string
		hasLive bool
		reading models.DeviceTelemetry
		sos     bool
		want    Safety
	}{
		{"no data is offline", false, models.DeviceTelemetry{}, false, Offline},
		{"offline wins over emergency signals", false, models.DeviceTelemetry{EmergencyButton: true, Temperature: 99}, true, Offline},
		{"sos flag is critical", true, models.DeviceTelemetry{}, true, Critical},
		{"emergency button is critical", true, models.DeviceTelemetry{EmergencyButton: true}, false, Critical},
		{"voice alert is critical", true, models.DeviceTelemetry{Voice: models.VoiceAlert{Active: true}}, false, Critical},
		{"geofence violation is critical", true, models.DeviceTelemetry{GeofenceViolation: true}, false, Critical},
		{"temperature at 50 is critical", true, models.DeviceTelemetry{Temperature: 50}, false, Critical},
		{"gas at 400 is critical", true, models.DeviceTelemetry{GasLevel: 400}, false, Critical},
		{"temperature at 40 is warning", true, models.DeviceTelemetry{Temperature: 40}, false, Warning},
		{"gas at 200 is warning", true, models.DeviceTelemetry{GasLevel: 200}, false, Warning},
		{"critical beats warning", true, models.DeviceTelemetry{Temperature: 41, GasLevel: 450}, false, Critical},
		{"below thresholds is normal", true, models.DeviceTelemetry{Temperature: 39.9, GasLevel: 199.9}, false, Normal},
		{"zero reading is normal, not offline", true, models.DeviceTelemetry{}, false, Normal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ForDevice(tc.hasLive, tc.reading, tc.sos))
		})
	}
}

func TestIndicatorPriorityOrder(t *testing.T) {
	cases := []struct {
		name    string
		hasLive bool
		reading models.DeviceTelemetry
		sos     bool
		want    Indicator
	}{
		{"offline short-circuits everything", false, models.DeviceTelemetry{EmergencyButton: true, GeofenceViolation: true}, true, IndicatorOffline},
		{"button is emergency", true, models.DeviceTelemetry{EmergencyButton: true, GPS: models.GPSFix{Valid: true}}, false, IndicatorEmergency},
		{"sticky sos is emergency", true, models.DeviceTelemetry{GPS: models.GPSFix{Valid: true}}, true, IndicatorEmergency},
		{"voice is emergency", true, models.DeviceTelemetry{Voice: models.VoiceAlert{Active: true}}, false, IndicatorEmergency},
		{"emergency beats geofence", true, models.DeviceTelemetry{EmergencyButton: true, GeofenceViolation: true}, false, IndicatorEmergency},
		{"geofence beats gps acquiring", true, models.DeviceTelemetry{GeofenceViolation: true}, false, IndicatorGeofence},
		{"no fix is acquiring", true, models.DeviceTelemetry{}, false, IndicatorGPSAcquiring},
		{"fix and quiet is idle", true, models.DeviceTelemetry{GPS: models.GPSFix{Valid: true}}, false, IndicatorIdle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IndicatorFor(tc.hasLive, tc.reading, tc.sos))
		})
	}
}

// The two derivations must not be collapsed: the grid reacts to raw sensor
// thresholds the indicator ignores, and the indicator reports GPS state the
// grid ignores.
func TestDerivationsDiverge(t *testing.T) {
	hot := models.DeviceTelemetry{Temperature: 55, GPS: models.GPSFix{Valid: true}}
	assert.Equal(t, Critical, ForDevice(true, hot, false))
	assert.Equal(t, IndicatorIdle, IndicatorFor(true, hot, false))

	noFix := models.DeviceTelemetry{}
	assert.Equal(t, Normal, ForDevice(true, noFix, false))
	assert.Equal(t, IndicatorGPSAcquiring, IndicatorFor(true, noFix, false))
}
