// Package alerts owns the emergency alert collection: the reconciler that
// merges the snapshot fetch with incrementally pushed records, and the
// lifecycle state machine that moves alerts through pending, acknowledged
// and resolved.
package alerts

import (
	"sort"
	"sync"

	"safety-telemetry-service/internal/models"
)

// Sort selects the ordering of a projection.
type Sort string

const (
	SortNewest    Sort = "newest"    // createdAt descending
	SortOldest    Sort = "oldest"    // createdAt ascending
	SortStatus    Sort = "status"    // pending before acknowledged before the rest
	SortPriority  Sort = "priority"  // priority value ascending
	SortEscalated Sort = "escalated" // escalated alerts first
)

// Filter narrows a projection by status.
type Filter string

const (
	FilterAll          Filter = "all"
	FilterPending      Filter = "pending"
	FilterAcknowledged Filter = "acknowledged"
)

// Queue reconciles the snapshot-loaded alert collection with pushed alert
// records and serves sorted, filtered projections of it. It also owns the
// operator's selection set used for batch acknowledge.
type Queue struct {
	mu       sync.RWMutex
	alerts   []models.Alert // insertion order, newest first
	present  map[string]struct{}
	selected map[string]struct{}
}

func NewQueue() *Queue {
	return &Queue{
		present:  make(map[string]struct{}),
		selected: make(map[string]struct{}),
	}
}

// LoadSnapshot replaces the base collection wholesale. Selected ids that no
// longer exist are dropped; the rest of the selection is kept.
func (q *Queue) LoadSnapshot(alerts []models.Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.alerts = make([]models.Alert, len(alerts))
	copy(q.alerts, alerts)
	q.present = make(map[string]struct{}, len(alerts))
	for _, a := range alerts {
		q.present[a.ID] = struct{}{}
	}
	for id := range q.selected {
		if _, ok := q.present[id]; !ok {
			delete(q.selected, id)
		}
	}
}

// Merge folds one pushed alert into the collection. A record whose id is
// already present is discarded: the push channel can deliver duplicates and
// only lifecycle commits may overwrite an existing record's fields. New
// records are prepended. Returns true when the record was added.
func (q *Queue) Merge(a models.Alert) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.present[a.ID]; ok {
		return false
	}
	q.alerts = append([]models.Alert{a}, q.alerts...)
	q.present[a.ID] = struct{}{}
	return true
}

// Get returns a copy of the alert with the given id.
func (q *Queue) Get(id string) (models.Alert, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, a := range q.alerts {
		if a.ID == id {
			return a, true
		}
	}
	return models.Alert{}, false
}

// update applies fn to the stored record with the given id. Only the
// lifecycle machinery in this package may call it.
func (q *Queue) update(id string, fn func(*models.Alert)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.alerts {
		if q.alerts[i].ID == id {
			fn(&q.alerts[i])
			return true
		}
	}
	return false
}

// Project returns a sorted, filtered copy of the active collection.
// Resolved alerts are terminal and never appear in a projection; they stay
// in the history fetched via snapshot.
func (q *Queue) Project(s Sort, f Filter) []models.Alert {
	q.mu.RLock()
	out := make([]models.Alert, 0, len(q.alerts))
	for _, a := range q.alerts {
		if a.Status == models.AlertResolved {
			continue
		}
		switch f {
		case FilterPending:
			if a.Status != models.AlertPending {
				continue
			}
		case FilterAcknowledged:
			if a.Status != models.AlertAcknowledged {
				continue
			}
		}
		out = append(out, a)
	}
	q.mu.RUnlock()

	switch s {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case SortStatus:
		sort.SliceStable(out, func(i, j int) bool { return statusRank(out[i].Status) < statusRank(out[j].Status) })
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	case SortEscalated:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Escalated && !out[j].Escalated })
	default: // SortNewest
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out
}

func statusRank(s models.AlertStatus) int {
	switch s {
	case models.AlertPending:
		return 0
	case models.AlertAcknowledged:
		return 1
	default:
		return 2
	}
}

// ToggleSelect flips membership of id in the selection set. Ids not in the
// collection are ignored.
func (q *Queue) ToggleSelect(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.present[id]; !ok {
		return
	}
	if _, ok := q.selected[id]; ok {
		delete(q.selected, id)
	} else {
		q.selected[id] = struct{}{}
	}
}

// SelectAllPending sets the selection to exactly the ids currently pending.
func (q *Queue) SelectAllPending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.selected = make(map[string]struct{})
	for _, a := range q.alerts {
		if a.Status == models.AlertPending {
			q.selected[a.ID] = struct{}{}
		}
	}
}

func (q *Queue) ClearSelection() {
	q.mu.Lock()
	q.selected = make(map[string]struct{})
	q.mu.Unlock()
}

// Selected returns the selected ids in collection order.
func (q *Queue) Selected() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	ids := make([]string, 0, len(q.selected))
	for _, a := range q.alerts {
		if _, ok := q.selected[a.ID]; ok {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
