package models

import "time"

// Incident is a safety incident record escalated from an acknowledged alert.
// It is created once and never mutated by this service afterwards.
type Incident struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Type          string    `json:"type"`
	Severity      string    `json:"severity"`
	WorkerID      string    `json:"workerId,omitempty"`
	WorkerName    string    `json:"workerName,omitempty"`
	Location      string    `json:"location,omitempty"`
	Description   string    `json:"description,omitempty"`
	LinkedAlertID string    `json:"linkedAlertId,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Incident type names used by the escalation mapping.
const (
	IncidentEnvironmentalHazard = "Environmental Hazard"
	IncidentChemicalExposure    = "Chemical Exposure"
	IncidentMajorInjury         = "Major Injury"
	IncidentNearMiss            = "Near Miss"
	IncidentEquipmentFailure    = "Equipment Failure"
)
