// Package sos tracks the sticky per-device emergency flag. The flag is set
// on a rising edge of an emergency signal and survives any number of
// telemetry gaps or signal-free readings; only an explicit mark-safe clears it.
package sos

import "sync"

// Tracker owns the per-device SOS flags.
type Tracker struct {
	mu     sync.Mutex
	active map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]bool)}
}

// OnReading observes the emergency signals of one telemetry reading and
// returns true exactly when the flag transitions from clear to set. While
// the flag is already set, re-observing the signal returns false, so the
// caller's "SOS raised" side effect fires once per episode.
func (t *Tracker) OnReading(deviceID string, emergencyButton, voiceEmergency bool) bool {
	if !emergencyButton && !voiceEmergency {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[deviceID] {
		return false
	}
	t.active[deviceID] = true
	return true
}

// MarkSafe clears the flag unconditionally, regardless of current telemetry.
func (t *Tracker) MarkSafe(deviceID string) {
	t.mu.Lock()
	delete(t.active, deviceID)
	t.mu.Unlock()
}

func (t *Tracker) IsActive(deviceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[deviceID]
}

// ActiveCount reports how many devices currently have the flag set.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
