package telemetry

import (
	"sync"
	"time"

	"safety-telemetry-service/internal/models"
)

// Store holds the latest known reading per device for the current session.
// It is the sole owner of DeviceTelemetry records; everything else reads
// through Get and receives a copy.
type Store struct {
	mu       sync.RWMutex
	readings map[string]models.DeviceTelemetry
}

func NewStore() *Store {
	return &Store{readings: make(map[string]models.DeviceTelemetry)}
}

// Upsert replaces the whole record for deviceID. Last write wins: fields the
// new reading does not carry are whatever zero values the decoder left, never
// values inherited from the previous record.
func (s *Store) Upsert(deviceID string, reading models.DeviceTelemetry, receivedAt time.Time) {
	reading.DeviceID = deviceID
	if reading.ReceivedAt.IsZero() {
		reading.ReceivedAt = receivedAt
	}
	s.mu.Lock()
	s.readings[deviceID] = reading
	s.mu.Unlock()
}

// Get returns the latest reading for deviceID. The second result is false
// when no reading has ever been received this session, which is distinct
// from a reading whose fields are all zero.
func (s *Store) Get(deviceID string) (models.DeviceTelemetry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.readings[deviceID]
	return r, ok
}

// HasLiveData reports whether at least one reading arrived for deviceID
// since session start.
func (s *Store) HasLiveData(deviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.readings[deviceID]
	return ok
}

// DeviceIDs lists all devices that reported at least once this session.
func (s *Store) DeviceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.readings))
	for id := range s.readings {
		ids = append(ids, id)
	}
	return ids
}
