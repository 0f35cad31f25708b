// Package incidents escalates acknowledged alerts into incident records.
package incidents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"safety-telemetry-service/internal/models"
)

// Creator commits a new incident record. Incident creation is independent of
// the alert lifecycle: its failure never rolls back an acknowledge and never
// blocks a later resolve.
type Creator interface {
	CreateIncident(ctx context.Context, incident models.Incident) (models.Incident, error)
}

// incidentTypes maps alert types to the incident type pre-filled in the
// escalation proposal.
var incidentTypes = map[string]string{
	models.AlertTypeHighTemperature: models.IncidentEnvironmentalHazard,
	models.AlertTypeGasDetection:    models.IncidentChemicalExposure,
	models.AlertTypeFallDetected:    models.IncidentMajorInjury,
	models.AlertTypeEmergencyButton: models.IncidentNearMiss,
	models.AlertTypeLowBattery:      models.IncidentEquipmentFailure,
	models.AlertTypeDeviceOffline:   models.IncidentEquipmentFailure,
}

// IncidentTypeFor returns the incident type for an alert type. Unknown alert
// types default to near miss.
func IncidentTypeFor(alertType string) string {
	if t, ok := incidentTypes[alertType]; ok {
		return t
	}
	return models.IncidentNearMiss
}

// Bridge proposes and commits incidents linked to acknowledged alerts.
type Bridge struct {
	creator Creator
	now     func() time.Time
}

func NewBridge(creator Creator) *Bridge {
	return &Bridge{creator: creator, now: time.Now}
}

// Propose pre-populates an incident from an acknowledged alert. Nothing is
// committed; the operator may edit the proposal before Create.
func (b *Bridge) Propose(a models.Alert, workerName, location string) models.Incident {
	return models.Incident{
		Title:         fmt.Sprintf("%s - %s", a.Type, a.DeviceID),
		Type:          IncidentTypeFor(a.Type),
		Severity:      a.Severity,
		WorkerID:      a.WorkerID,
		WorkerName:    workerName,
		Location:      location,
		Description:   fmt.Sprintf("Escalated from alert %s (%s)", a.ID, a.Type),
		LinkedAlertID: a.ID,
	}
}

// Create commits the incident. The alert it links to must already be
// acknowledged; the caller enforces that before proposing.
func (b *Bridge) Create(ctx context.Context, incident models.Incident) (models.Incident, error) {
	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = b.now()
	}
	created, err := b.creator.CreateIncident(ctx, incident)
	if err != nil {
		return models.Incident{}, fmt.Errorf("failed to create incident: %w", err)
	}
	return created, nil
}
