// Package status derives per-device safety state from the latest telemetry
// reading and the SOS flag. It computes two independent views: the grid
// safety status and the compact visual indicator. They use different inputs
// and priority lists and are deliberately kept as separate functions.
package status

import "safety-telemetry-service/internal/models"

// Safety is the grid safety status of a device.
type Safety string

const (
	Normal   Safety = "normal"
	Warning  Safety = "warning"
	Critical Safety = "critical"
	Offline  Safety = "offline"
)

// Indicator is the compact per-device badge state.
type Indicator string

const (
	IndicatorOffline      Indicator = "offline"
	IndicatorEmergency    Indicator = "emergency"
	IndicatorGeofence     Indicator = "geofence"
	IndicatorGPSAcquiring Indicator = "gpsAcquiring"
	IndicatorIdle         Indicator = "idle"
)

// Sensor thresholds for the grid status derivation.
const (
	TemperatureCritical = 50.0
	TemperatureWarning  = 40.0
	GasCritical         = 400.0
	GasWarning          = 200.0
)

// ForDevice computes the grid safety status. Evaluation is strict priority
// order, first match wins: offline, critical, warning, normal.
func ForDevice(hasLive bool, r models.DeviceTelemetry, sosActive bool) Safety {
	if !hasLive {
		return Offline
	}
	if sosActive || r.EmergencyButton || r.Voice.Active || r.GeofenceViolation ||
		r.Temperature >= TemperatureCritical || r.GasLevel >= GasCritical {
		return Critical
	}
	if r.Temperature >= TemperatureWarning || r.GasLevel >= GasWarning {
		return Warning
	}
	return Normal
}

// IndicatorFor computes the badge state. Offline short-circuits everything;
// unlike the grid status it ignores raw temperature and gas levels but does
// distinguish GPS acquisition from idle.
func IndicatorFor(hasLive bool, r models.DeviceTelemetry, sosActive bool) Indicator {
	if !hasLive {
		return IndicatorOffline
	}
	if r.EmergencyButton || sosActive || r.Voice.Active {
		return IndicatorEmergency
	}
	if r.GeofenceViolation {
		return IndicatorGeofence
	}
	if !r.GPS.Valid {
		return IndicatorGPSAcquiring
	}
	return IndicatorIdle
}
