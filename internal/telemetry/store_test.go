package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-telemetry-service/internal/models"
)

func TestUpsertReplacesWholeRecord(t *testing.T) {
	s := NewStore()
	now := time.Now()

	s.Upsert("dev-1", models.DeviceTelemetry{Temperature: 42, GasLevel: 300, EmergencyButton: true}, now)
	s.Upsert("dev-1", models.DeviceTelemetry{Temperature: 35}, now.Add(time.Second))

	r, ok := s.Get("dev-1")
	require.True(t, ok)
	assert.Equal(t, 35.0, r.Temperature)
	// gas level and button must not leak over from the previous reading
	assert.Equal(t, 0.0, r.GasLevel)
	assert.False(t, r.EmergencyButton)
}

func TestAbsentDistinctFromZeroReading(t *testing.T) {
	s := NewStore()

	_, ok := s.Get("dev-1")
	assert.False(t, ok)
	assert.False(t, s.HasLiveData("dev-1"))

	s.Upsert("dev-1", models.DeviceTelemetry{}, time.Now())

	r, ok := s.Get("dev-1")
	require.True(t, ok)
	assert.True(t, s.HasLiveData("dev-1"))
	assert.Equal(t, 0.0, r.Temperature)
}

func TestUpsertStampsDeviceAndTime(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Upsert("dev-7", models.DeviceTelemetry{}, now)

	r, _ := s.Get("dev-7")
	assert.Equal(t, "dev-7", r.DeviceID)
	assert.Equal(t, now, r.ReceivedAt)

	// a reading that carries its own timestamp keeps it
	stamped := now.Add(-time.Minute)
	s.Upsert("dev-7", models.DeviceTelemetry{ReceivedAt: stamped}, now)
	r, _ = s.Get("dev-7")
	assert.Equal(t, stamped, r.ReceivedAt)
}

func TestDeviceIDs(t *testing.T) {
	s := NewStore()
	s.Upsert("a", models.DeviceTelemetry{}, time.Now())
	s.Upsert("b", models.DeviceTelemetry{}, time.Now())
	assert.ElementsMatch(t, []string{"a", "b"}, s.DeviceIDs())
}
