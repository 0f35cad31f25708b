package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-telemetry-service/internal/alerts"
	"safety-telemetry-service/internal/config"
	"safety-telemetry-service/internal/logging"
	"safety-telemetry-service/internal/models"
	"safety-telemetry-service/internal/status"
)

// fakeBackend implements Backend in memory.
type fakeBackend struct {
	mu        sync.Mutex
	devices   []models.Device
	active    []models.Alert
	history   []models.Alert
	nudges    []string
	incidents []models.Incident
	failNext  error
}

func (f *fakeBackend) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeBackend) Acknowledge(context.Context, string, string, string) error { return f.fail() }
func (f *fakeBackend) BatchAcknowledge(context.Context, []string, string) error  { return f.fail() }
func (f *fakeBackend) Resolve(context.Context, string, string) error             { return f.fail() }

func (f *fakeBackend) CreateIncident(_ context.Context, inc models.Incident) (models.Incident, error) {
	if err := f.fail(); err != nil {
		return models.Incident{}, err
	}
	f.mu.Lock()
	f.incidents = append(f.incidents, inc)
	f.mu.Unlock()
	return inc, nil
}

func (f *fakeBackend) FetchActiveAlerts(context.Context) ([]models.Alert, error) {
	return f.active, f.fail()
}

func (f *fakeBackend) FetchAllAlerts(context.Context) ([]models.Alert, error) {
	return f.history, f.fail()
}

func (f *fakeBackend) FetchDevices(context.Context) ([]models.Device, error) {
	return f.devices, f.fail()
}

func (f *fakeBackend) SendNudge(_ context.Context, deviceID, _ string) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.mu.Lock()
	f.nudges = append(f.nudges, deviceID)
	f.mu.Unlock()
	return nil
}

// recordingHub captures broadcast events.
type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) Broadcast(event string, _ interface{}) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
}

func (h *recordingHub) count(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e == event {
			n++
		}
	}
	return n
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Engine.MarkedSafeTTL = 20 * time.Millisecond
	cfg.Engine.NudgeSentTTL = 20 * time.Millisecond
	return cfg
}

func newEngineUnderTest(t *testing.T, backend *fakeBackend) (*Engine, *recordingHub) {
	t.Helper()
	hub := &recordingHub{}
	e := NewEngine(testConfig(), backend, nil, hub, logging.Discard())
	t.Cleanup(e.Stop)
	require.NoError(t, e.LoadSnapshots(context.Background()))
	return e, hub
}

func reading(temp, gas float64, button bool) models.DeviceTelemetry {
	return models.DeviceTelemetry{DeviceID: "D1", Temperature: temp, GasLevel: gas, EmergencyButton: button}
}

func TestRegisteredDeviceWithoutReadingIsOffline(t *testing.T) {
	e, _ := newEngineUnderTest(t, &fakeBackend{devices: []models.Device{{ID: "D1", WorkerID: "w1"}}})

	st := e.DeviceState("D1")
	assert.False(t, st.Online)
	assert.Equal(t, status.Offline, st.Status)
	assert.Equal(t, status.IndicatorOffline, st.Indicator)
	assert.Nil(t, st.LastReading)
}

// Full device scenario: normal reading, temperature spike, button
// flapping, mark safe, recovery.
func TestTelemetryScenario(t *testing.T) {
	e, hub := newEngineUnderTest(t, &fakeBackend{devices: []models.Device{{ID: "D1", WorkerID: "w1"}}})

	require.NoError(t, e.HandleTelemetry(reading(35, 50, false)))
	assert.Equal(t, status.Normal, e.DeviceState("D1").Status)

	require.NoError(t, e.HandleTelemetry(reading(52, 0, false)))
	assert.Equal(t, status.Critical, e.DeviceState("D1").Status)

	// button true -> false -> true raises SOS exactly once
	require.NoError(t, e.HandleTelemetry(reading(35, 0, true)))
	require.NoError(t, e.HandleTelemetry(reading(35, 0, false)))
	require.NoError(t, e.HandleTelemetry(reading(35, 0, true)))
	assert.Equal(t, 1, hub.count("sos-raised"))

	// flag is sticky across signal-free readings
	require.NoError(t, e.HandleTelemetry(reading(35, 0, false)))
	st := e.DeviceState("D1")
	assert.True(t, st.SOSActive)
	assert.Equal(t, status.Critical, st.Status)
	assert.Equal(t, status.IndicatorEmergency, st.Indicator)

	e.MarkSafe("D1", "Officer1")
	require.NoError(t, e.HandleTelemetry(reading(35, 0, false)))
	assert.Equal(t, status.Normal, e.DeviceState("D1").Status)
}

func TestMarkSafeEventAndTransientExpiry(t *testing.T) {
	e, hub := newEngineUnderTest(t, &fakeBackend{devices: []models.Device{{ID: "D1", WorkerID: "w1"}}})

	ev := e.MarkSafe("D1", "Officer1")
	assert.Equal(t, "D1", ev.DeviceID)
	assert.Equal(t, "w1", ev.WorkerID)
	assert.Equal(t, "Officer1", ev.Operator)
	assert.NotZero(t, ev.Timestamp)
	assert.Equal(t, 1, hub.count("device-marked-safe"))

	assert.True(t, e.DeviceState("D1").MarkedSafe)
	assert.Eventually(t, func() bool { return !e.DeviceState("D1").MarkedSafe }, time.Second, 5*time.Millisecond)
}

func TestSOSRaiseSupersedesPendingMarkedSafeExpiry(t *testing.T) {
	e, _ := newEngineUnderTest(t, &fakeBackend{devices: []models.Device{{ID: "D1"}}})

	e.MarkSafe("D1", "Officer1")
	require.True(t, e.DeviceState("D1").MarkedSafe)

	// the raise clears the marked-safe indicator immediately, not at expiry
	require.NoError(t, e.HandleTelemetry(reading(20, 0, true)))
	st := e.DeviceState("D1")
	assert.False(t, st.MarkedSafe)
	assert.True(t, st.SOSActive)
}

func TestSendNudge(t *testing.T) {
	backend := &fakeBackend{devices: []models.Device{{ID: "D1"}}}
	e, _ := newEngineUnderTest(t, backend)

	require.NoError(t, e.SendNudge(context.Background(), "D1", "check in please"))
	assert.Equal(t, []string{"D1"}, backend.nudges)
	assert.True(t, e.DeviceState("D1").NudgeSent)
	assert.Eventually(t, func() bool { return !e.DeviceState("D1").NudgeSent }, time.Second, 5*time.Millisecond)
}

func TestSendNudgeCommitFailure(t *testing.T) {
	backend := &fakeBackend{devices: []models.Device{{ID: "D1"}}}
	e, _ := newEngineUnderTest(t, backend)
	backend.failNext = errors.New("device unreachable")

	require.Error(t, e.SendNudge(context.Background(), "D1", "hello"))
	assert.False(t, e.DeviceState("D1").NudgeSent)
}

func TestAlertPushDeduplicates(t *testing.T) {
	e, hub := newEngineUnderTest(t, &fakeBackend{})
	a := models.Alert{ID: "a1", DeviceID: "D1", Type: models.AlertTypeGasDetection, Status: models.AlertPending, CreatedAt: time.Now()}

	e.HandleAlertPush(a)
	e.HandleAlertPush(a)

	assert.Len(t, e.Alerts(alerts.SortNewest, alerts.FilterAll), 1)
	assert.Equal(t, 1, hub.count("alert-new"))
}

// Full alert scenario: pending at t0, acknowledged at t1 with response
// time, resolved and gone from the active projection.
func TestAlertLifecycleScenario(t *testing.T) {
	t0 := time.Now().Add(-30 * time.Second)
	backend := &fakeBackend{active: []models.Alert{{ID: "A1", DeviceID: "D1", Type: models.AlertTypeFallDetected, Status: models.AlertPending, CreatedAt: t0}}}
	e, _ := newEngineUnderTest(t, backend)

	a, err := e.Acknowledge(context.Background(), "A1", "Officer1", "")
	require.NoError(t, err)
	assert.Equal(t, models.AlertAcknowledged, a.Status)
	assert.Equal(t, "Officer1", a.AcknowledgedBy)
	require.NotNil(t, a.AcknowledgedAt)
	assert.Equal(t, a.AcknowledgedAt.Sub(t0).Milliseconds(), a.ResponseTimeMs)

	a, err = e.Resolve(context.Background(), "A1", "worker located")
	require.NoError(t, err)
	assert.Equal(t, models.AlertResolved, a.Status)
	assert.Empty(t, e.Alerts(alerts.SortNewest, alerts.FilterAll))
}

func TestEscalateRequiresAcknowledged(t *testing.T) {
	backend := &fakeBackend{active: []models.Alert{{ID: "A1", Type: models.AlertTypeGasDetection, Status: models.AlertPending}}}
	e, _ := newEngineUnderTest(t, backend)

	_, err := e.Escalate(context.Background(), "A1", "Jamie", "Tunnel B", "")
	assert.ErrorIs(t, err, alerts.ErrInvalidTransition)
	assert.Empty(t, backend.incidents)
}

func TestEscalateCreatesLinkedIncident(t *testing.T) {
	backend := &fakeBackend{active: []models.Alert{{ID: "A1", DeviceID: "D1", Type: models.AlertTypeGasDetection, Severity: "high", Status: models.AlertPending, CreatedAt: time.Now()}}}
	e, _ := newEngineUnderTest(t, backend)
	_, err := e.Acknowledge(context.Background(), "A1", "Officer1", "")
	require.NoError(t, err)

	inc, err := e.Escalate(context.Background(), "A1", "Jamie", "Tunnel B", "strong smell reported")
	require.NoError(t, err)
	assert.Equal(t, models.IncidentChemicalExposure, inc.Type)
	assert.Equal(t, "A1", inc.LinkedAlertID)
	assert.Equal(t, "strong smell reported", inc.Description)
	require.Len(t, backend.incidents, 1)

	got := e.Alerts(alerts.SortNewest, alerts.FilterAcknowledged)
	require.Len(t, got, 1)
	assert.True(t, got[0].Escalated)
}

func TestIncidentFailureLeavesAlertAcknowledgedAndResolvable(t *testing.T) {
	backend := &fakeBackend{active: []models.Alert{{ID: "A1", Type: models.AlertTypeFallDetected, Status: models.AlertPending, CreatedAt: time.Now()}}}
	e, _ := newEngineUnderTest(t, backend)
	_, err := e.Acknowledge(context.Background(), "A1", "Officer1", "")
	require.NoError(t, err)

	backend.failNext = errors.New("incident backend down")
	_, err = e.Escalate(context.Background(), "A1", "Jamie", "Tunnel B", "")
	require.Error(t, err)

	got := e.Alerts(alerts.SortNewest, alerts.FilterAcknowledged)
	require.Len(t, got, 1)
	assert.False(t, got[0].Escalated)

	_, err = e.Resolve(context.Background(), "A1", "")
	assert.NoError(t, err)
}

func TestAcknowledgeSelected(t *testing.T) {
	t0 := time.Now()
	backend := &fakeBackend{active: []models.Alert{
		{ID: "a", Status: models.AlertPending, CreatedAt: t0},
		{ID: "b", Status: models.AlertPending, CreatedAt: t0},
	}}
	e, _ := newEngineUnderTest(t, backend)

	e.SelectAllPending()
	ids, err := e.AcknowledgeSelected(context.Background(), "Officer1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
	assert.Empty(t, e.Selected())
	assert.Empty(t, e.Alerts(alerts.SortNewest, alerts.FilterPending))
}
