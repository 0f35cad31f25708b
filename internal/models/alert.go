package models

import "time"

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertPending      AlertStatus = "pending"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is one emergency alert record. Alerts are created by the external
// detector in pending state and only mutated through lifecycle transitions.
type Alert struct {
	ID             string      `json:"id"`
	DeviceID       string      `json:"deviceId"`
	WorkerID       string      `json:"workerId,omitempty"`
	Type           string      `json:"type"`
	Severity       string      `json:"severity"`
	Status         AlertStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
	AcknowledgedBy string      `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time  `json:"acknowledgedAt,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	Escalated      bool        `json:"escalated"`
	Priority       int         `json:"priority,omitempty"`
	ResponseTimeMs int64       `json:"responseTimeMs,omitempty"`
}

// Alert type names produced by the external detector.
const (
	AlertTypeHighTemperature = "High Temperature"
	AlertTypeGasDetection    = "Gas Detection"
	AlertTypeFallDetected    = "Fall Detected"
	AlertTypeEmergencyButton = "Emergency Button"
	AlertTypeLowBattery      = "Low Battery"
	AlertTypeDeviceOffline   = "Device Offline"
)
