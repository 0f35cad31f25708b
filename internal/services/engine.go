// Package services hosts the fusion engine: the single owner of the
// telemetry store, the SOS flags, the alert queue and the transient
// dashboard indicators. Everything the API and the consumers do to safety
// state goes through it.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"safety-telemetry-service/internal/alerts"
	"safety-telemetry-service/internal/config"
	"safety-telemetry-service/internal/incidents"
	"safety-telemetry-service/internal/logging"
	"safety-telemetry-service/internal/metrics"
	"safety-telemetry-service/internal/models"
	"safety-telemetry-service/internal/sos"
	"safety-telemetry-service/internal/status"
	"safety-telemetry-service/internal/tasks"
	"safety-telemetry-service/internal/telemetry"
)

// Backend is the persistence collaborator the engine commits through. Every
// mutation is committed remotely before it is reflected locally.
type Backend interface {
	alerts.Committer
	incidents.Creator
	FetchActiveAlerts(ctx context.Context) ([]models.Alert, error)
	FetchAllAlerts(ctx context.Context) ([]models.Alert, error)
	FetchDevices(ctx context.Context) ([]models.Device, error)
	SendNudge(ctx context.Context, deviceID, message string) error
}

// Notifier delivers the one-time SOS-raised side effect. Delivery failures
// are logged and never block telemetry processing.
type Notifier interface {
	NotifySOS(ctx context.Context, device models.Device, reading models.DeviceTelemetry) error
}

// Broadcaster fans an event out to connected dashboard clients.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// DeviceState is the derived per-device snapshot served to the dashboard.
type DeviceState struct {
	models.Device
	Online      bool                    `json:"online"`
	Status      status.Safety           `json:"status"`
	Indicator   status.Indicator        `json:"indicator"`
	SOSActive   bool                    `json:"sosActive"`
	MarkedSafe  bool                    `json:"markedSafe"`
	NudgeSent   bool                    `json:"nudgeSent"`
	LastReading *models.DeviceTelemetry `json:"lastReading,omitempty"`
}

// Engine fuses the pushed event stream with the snapshot-loaded collections
// and derives the prioritized safety state and alert projections from them.
type Engine struct {
	cfg    config.Config
	logger *logging.Logger

	store     *telemetry.Store
	tracker   *sos.Tracker
	queue     *alerts.Queue
	lifecycle *alerts.Lifecycle
	bridge    *incidents.Bridge
	scheduler *tasks.Scheduler

	backend     Backend
	notifier    Notifier
	broadcaster Broadcaster

	mu         sync.Mutex // guards devices and the transient flag maps
	devices    map[string]models.Device
	markedSafe map[string]bool
	nudgeSent  map[string]bool
}

// NewEngine wires the owned components together. notifier and broadcaster
// may be nil; the corresponding side effects are then skipped.
func NewEngine(cfg config.Config, backend Backend, notifier Notifier, broadcaster Broadcaster, logger *logging.Logger) *Engine {
	q := alerts.NewQueue()
	e := &Engine{
		cfg:         cfg,
		logger:      logger,
		store:       telemetry.NewStore(),
		tracker:     sos.NewTracker(),
		queue:       q,
		lifecycle:   alerts.NewLifecycle(q, backend),
		bridge:      incidents.NewBridge(backend),
		scheduler:   tasks.NewScheduler(),
		backend:     backend,
		notifier:    notifier,
		broadcaster: broadcaster,
		devices:     make(map[string]models.Device),
		markedSafe:  make(map[string]bool),
		nudgeSent:   make(map[string]bool),
	}
	return e
}

// Stop cancels outstanding transient-flag expiries.
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// LoadSnapshots pulls the device registry and the active alert collection
// from the backend. Called once at startup and on manual refresh.
func (e *Engine) LoadSnapshots(ctx context.Context) error {
	devices, err := e.backend.FetchDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch devices: %w", err)
	}
	active, err := e.backend.FetchActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch active alerts: %w", err)
	}

	e.mu.Lock()
	e.devices = make(map[string]models.Device, len(devices))
	for _, d := range devices {
		e.devices[d.ID] = d
	}
	e.mu.Unlock()

	e.queue.LoadSnapshot(active)
	e.logger.Infof("Loaded snapshots: %d devices, %d active alerts", len(devices), len(active))
	return nil
}

// HandleTelemetry applies one inbound reading: replaces the stored record,
// runs SOS edge detection and pushes the device's new derived state out.
func (e *Engine) HandleTelemetry(reading models.DeviceTelemetry) error {
	if reading.DeviceID == "" {
		metrics.MalformedEvents.Inc()
		return fmt.Errorf("telemetry event without device id")
	}
	deviceID := reading.DeviceID

	e.store.Upsert(deviceID, reading, time.Now())
	metrics.TelemetryEvents.Inc()

	if raised := e.tracker.OnReading(deviceID, reading.EmergencyButton, reading.Voice.Active); raised {
		e.onSOSRaised(deviceID, reading)
	}

	e.broadcast("device-state", e.DeviceState(deviceID))
	return nil
}

// onSOSRaised fires the one-time side effects of an SOS rising edge.
func (e *Engine) onSOSRaised(deviceID string, reading models.DeviceTelemetry) {
	metrics.SOSRaised.Inc()
	metrics.SOSActive.Set(float64(e.tracker.ActiveCount()))
	e.logger.Warnf("SOS raised for device %s", deviceID)

	// an SOS episode supersedes a still-pending marked-safe expiry; the two
	// indicators are inconsistent together
	e.scheduler.Cancel(markedSafeKey(deviceID))
	e.mu.Lock()
	delete(e.markedSafe, deviceID)
	device := e.devices[deviceID]
	e.mu.Unlock()

	e.broadcast("sos-raised", map[string]interface{}{
		"deviceId":  deviceID,
		"workerId":  device.WorkerID,
		"timestamp": time.Now().UnixMilli(),
	})

	if e.notifier != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := e.notifier.NotifySOS(ctx, device, reading); err != nil {
				e.logger.Errorf("SOS notification for device %s failed: %v", deviceID, err)
			}
		}()
	}
}

// MarkSafe clears the device's SOS flag and emits the device-marked-safe
// event, regardless of current telemetry state. The transient marked-safe
// indicator expires on its own.
func (e *Engine) MarkSafe(deviceID, operator string) models.MarkedSafeEvent {
	e.tracker.MarkSafe(deviceID)
	metrics.SOSActive.Set(float64(e.tracker.ActiveCount()))

	e.mu.Lock()
	e.markedSafe[deviceID] = true
	device := e.devices[deviceID]
	e.mu.Unlock()

	e.scheduler.Schedule(markedSafeKey(deviceID), e.cfg.Engine.MarkedSafeTTL, func() {
		e.mu.Lock()
		delete(e.markedSafe, deviceID)
		e.mu.Unlock()
		e.broadcast("device-state", e.DeviceState(deviceID))
	})

	ev := models.MarkedSafeEvent{
		DeviceID:  deviceID,
		WorkerID:  device.WorkerID,
		Timestamp: time.Now().UnixMilli(),
		Operator:  operator,
	}
	e.logger.Infof("Device %s marked safe by %s", deviceID, operator)
	e.broadcast("device-marked-safe", ev)
	e.broadcast("device-state", e.DeviceState(deviceID))
	return ev
}

// SendNudge commits a nudge to the device through the backend, then shows
// the transient nudge-sent indicator until it expires.
func (e *Engine) SendNudge(ctx context.Context, deviceID, message string) error {
	if err := e.backend.SendNudge(ctx, deviceID, message); err != nil {
		return fmt.Errorf("failed to send nudge to device %s: %w", deviceID, err)
	}

	e.mu.Lock()
	e.nudgeSent[deviceID] = true
	e.mu.Unlock()
	e.scheduler.Schedule(nudgeSentKey(deviceID), e.cfg.Engine.NudgeSentTTL, func() {
		e.mu.Lock()
		delete(e.nudgeSent, deviceID)
		e.mu.Unlock()
		e.broadcast("device-state", e.DeviceState(deviceID))
	})

	e.logger.Infof("Nudge sent to device %s", deviceID)
	e.broadcast("device-state", e.DeviceState(deviceID))
	return nil
}

// HandleAlertPush folds one pushed alert into the queue. Duplicates are
// discarded; only new records reach the dashboard.
func (e *Engine) HandleAlertPush(a models.Alert) {
	if e.queue.Merge(a) {
		metrics.AlertsMerged.Inc()
		e.logger.Infof("Alert %s merged (%s, device %s)", a.ID, a.Type, a.DeviceID)
		e.broadcast("alert-new", a)
	} else {
		metrics.AlertsDuplicate.Inc()
		e.logger.Debugf("Alert %s discarded as duplicate", a.ID)
	}
}

// DeviceState derives the full dashboard state for one device.
func (e *Engine) DeviceState(deviceID string) DeviceState {
	e.mu.Lock()
	device, registered := e.devices[deviceID]
	marked := e.markedSafe[deviceID]
	nudged := e.nudgeSent[deviceID]
	e.mu.Unlock()
	if !registered {
		device = models.Device{ID: deviceID}
	}

	reading, hasLive := e.store.Get(deviceID)
	sosActive := e.tracker.IsActive(deviceID)

	st := DeviceState{
		Device:     device,
		Online:     hasLive,
		Status:     status.ForDevice(hasLive, reading, sosActive),
		Indicator:  status.IndicatorFor(hasLive, reading, sosActive),
		SOSActive:  sosActive,
		MarkedSafe: marked,
		NudgeSent:  nudged,
	}
	if hasLive {
		st.LastReading = &reading
	}
	return st
}

// DeviceStates derives the state of every registered device.
func (e *Engine) DeviceStates() []DeviceState {
	e.mu.Lock()
	ids := make([]string, 0, len(e.devices))
	for id := range e.devices {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	states := make([]DeviceState, 0, len(ids))
	for _, id := range ids {
		states = append(states, e.DeviceState(id))
	}
	return states
}

// Alerts returns the sorted, filtered active projection.
func (e *Engine) Alerts(s alerts.Sort, f alerts.Filter) []models.Alert {
	return e.queue.Project(s, f)
}

// AlertHistory fetches the full historical collection from the backend.
func (e *Engine) AlertHistory(ctx context.Context) ([]models.Alert, error) {
	return e.backend.FetchAllAlerts(ctx)
}

// Acknowledge transitions one pending alert.
func (e *Engine) Acknowledge(ctx context.Context, id, actor, note string) (models.Alert, error) {
	a, err := e.lifecycle.Acknowledge(ctx, id, actor, note)
	if err != nil {
		metrics.Transitions.WithLabelValues("acknowledge", "error").Inc()
		return models.Alert{}, err
	}
	metrics.Transitions.WithLabelValues("acknowledge", "ok").Inc()
	e.broadcast("alert-updated", a)
	return a, nil
}

// Resolve transitions one acknowledged alert to its terminal state.
func (e *Engine) Resolve(ctx context.Context, id, notes string) (models.Alert, error) {
	a, err := e.lifecycle.Resolve(ctx, id, notes)
	if err != nil {
		metrics.Transitions.WithLabelValues("resolve", "error").Inc()
		return models.Alert{}, err
	}
	metrics.Transitions.WithLabelValues("resolve", "ok").Inc()
	e.broadcast("alert-updated", a)
	return a, nil
}

// BatchAcknowledge transitions the given ids as one all-or-nothing unit.
func (e *Engine) BatchAcknowledge(ctx context.Context, ids []string, actor string) error {
	if err := e.lifecycle.BatchAcknowledge(ctx, ids, actor); err != nil {
		metrics.Transitions.WithLabelValues("batch_acknowledge", "error").Inc()
		return err
	}
	metrics.Transitions.WithLabelValues("batch_acknowledge", "ok").Inc()
	e.broadcast("alerts-updated", ids)
	return nil
}

// AcknowledgeSelected batch-acknowledges the current selection.
func (e *Engine) AcknowledgeSelected(ctx context.Context, actor string) ([]string, error) {
	ids := e.queue.Selected()
	if err := e.BatchAcknowledge(ctx, ids, actor); err != nil {
		return nil, err
	}
	return ids, nil
}

// Selection passthroughs; the queue owns the selection set.

func (e *Engine) ToggleSelect(id string) { e.queue.ToggleSelect(id) }
func (e *Engine) SelectAllPending() { e.queue.SelectAllPending() }
func (e *Engine) ClearSelection() { e.queue.ClearSelection() }
func (e *Engine) Selected() []string { return e.queue.Selected() }

// ProposeIncident pre-populates an incident for an acknowledged alert.
func (e *Engine) ProposeIncident(alertID, workerName, location string) (models.Incident, error) {
	a, ok := e.queue.Get(alertID)
	if !ok {
		return models.Incident{}, fmt.Errorf("%w: %s", alerts.ErrNotFound, alertID)
	}
	if a.Status != models.AlertAcknowledged {
		return models.Incident{}, fmt.Errorf("%w: escalation requires acknowledged, alert %s is %s", alerts.ErrInvalidTransition, alertID, a.Status)
	}
	return e.bridge.Propose(a, workerName, location), nil
}

// Escalate creates an incident linked to an acknowledged alert. Incident
// creation is an independent commit: failure leaves the alert acknowledged
// and does not block a later resolve.
func (e *Engine) Escalate(ctx context.Context, alertID, workerName, location, description string) (models.Incident, error) {
	proposal, err := e.ProposeIncident(alertID, workerName, location)
	if err != nil {
		return models.Incident{}, err
	}
	if description != "" {
		proposal.Description = description
	}

	created, err := e.bridge.Create(ctx, proposal)
	if err != nil {
		metrics.Transitions.WithLabelValues("escalate", "error").Inc()
		return models.Incident{}, err
	}
	metrics.Transitions.WithLabelValues("escalate", "ok").Inc()

	if err := e.lifecycle.MarkEscalated(alertID); err != nil {
		e.logger.Errorf("Failed to flag alert %s escalated: %v", alertID, err)
	}
	if a, ok := e.queue.Get(alertID); ok {
		e.broadcast("alert-updated", a)
	}
	e.logger.Infof("Alert %s escalated to incident %s (%s)", alertID, created.ID, created.Type)
	return created, nil
}

func (e *Engine) broadcast(event string, payload interface{}) {
	if e.broadcaster != nil {
		e.broadcaster.Broadcast(event, payload)
	}
}

func markedSafeKey(deviceID string) string { return "marked-safe:" + deviceID }
func nudgeSentKey(deviceID string) string  { return "nudge-sent:" + deviceID }
