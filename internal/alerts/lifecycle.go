package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"safety-telemetry-service/internal/models"
)

var (
	// ErrNotFound means the alert id is not in the collection.
	ErrNotFound = errors.New("alert not found")
	// ErrInvalidTransition means the alert is not in a state the requested
	// transition is legal from.
	ErrInvalidTransition = errors.New("invalid alert transition")
	// ErrTransitionInFlight means another transition for the same alert id
	// has not settled yet.
	ErrTransitionInFlight = errors.New("transition already in flight for alert")
	// ErrEmptySelection means a batch operation was requested with no ids.
	ErrEmptySelection = errors.New("no alerts selected")
)

// Committer persists a transition before it is reflected locally. An error
// from the committer means nothing changed remotely and nothing may change
// locally. BatchAcknowledge must be all-or-nothing: either every id
// transitions or the call fails with no remote change.
type Committer interface {
	Acknowledge(ctx context.Context, id, actor, note string) error
	BatchAcknowledge(ctx context.Context, ids []string, actor string) error
	Resolve(ctx context.Context, id, notes string) error
}

// Lifecycle drives alert state transitions over a Queue using a
// commit-then-update policy. Concurrent transitions are excluded per alert
// id, never with a collection-wide flag.
type Lifecycle struct {
	queue     *Queue
	committer Committer

	mu       sync.Mutex
	inFlight map[string]struct{}

	now func() time.Time
}

func NewLifecycle(queue *Queue, committer Committer) *Lifecycle {
	return &Lifecycle{
		queue:     queue,
		committer: committer,
		inFlight:  make(map[string]struct{}),
		now:       time.Now,
	}
}

// acquire reserves every id or none of them.
func (l *Lifecycle) acquire(ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if _, busy := l.inFlight[id]; busy {
			return fmt.Errorf("%w: %s", ErrTransitionInFlight, id)
		}
	}
	for _, id := range ids {
		l.inFlight[id] = struct{}{}
	}
	return nil
}

func (l *Lifecycle) release(ids ...string) {
	l.mu.Lock()
	for _, id := range ids {
		delete(l.inFlight, id)
	}
	l.mu.Unlock()
}

// Acknowledge moves a pending alert to acknowledged. The commit happens
// first; on commit failure no field changes and the id lock is released so
// the call is retriable.
func (l *Lifecycle) Acknowledge(ctx context.Context, id, actor, note string) (models.Alert, error) {
	if err := l.acquire(id); err != nil {
		return models.Alert{}, err
	}
	defer l.release(id)

	a, ok := l.queue.Get(id)
	if !ok {
		return models.Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if a.Status != models.AlertPending {
		return models.Alert{}, fmt.Errorf("%w: acknowledge requires pending, alert %s is %s", ErrInvalidTransition, id, a.Status)
	}

	if err := l.committer.Acknowledge(ctx, id, actor, note); err != nil {
		return models.Alert{}, fmt.Errorf("failed to commit acknowledge for alert %s: %w", id, err)
	}

	now := l.now()
	l.queue.update(id, func(a *models.Alert) {
		a.Status = models.AlertAcknowledged
		a.AcknowledgedBy = actor
		a.AcknowledgedAt = &now
		if note != "" {
			a.Notes = note
		}
		a.ResponseTimeMs = now.Sub(a.CreatedAt).Milliseconds()
	})
	updated, _ := l.queue.Get(id)
	return updated, nil
}

// BatchAcknowledge transitions every id together or none at all. A
// successful batch commit clears the selection set.
func (l *Lifecycle) BatchAcknowledge(ctx context.Context, ids []string, actor string) error {
	if len(ids) == 0 {
		return ErrEmptySelection
	}
	if err := l.acquire(ids...); err != nil {
		return err
	}
	defer l.release(ids...)

	for _, id := range ids {
		a, ok := l.queue.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if a.Status != models.AlertPending {
			return fmt.Errorf("%w: acknowledge requires pending, alert %s is %s", ErrInvalidTransition, id, a.Status)
		}
	}

	if err := l.committer.BatchAcknowledge(ctx, ids, actor); err != nil {
		return fmt.Errorf("failed to commit batch acknowledge: %w", err)
	}

	now := l.now()
	for _, id := range ids {
		l.queue.update(id, func(a *models.Alert) {
			a.Status = models.AlertAcknowledged
			a.AcknowledgedBy = actor
			a.AcknowledgedAt = &now
			a.ResponseTimeMs = now.Sub(a.CreatedAt).Milliseconds()
		})
	}
	l.queue.ClearSelection()
	return nil
}

// Resolve moves an acknowledged alert to resolved, its terminal state. A
// resolved alert leaves every active projection but stays in history.
// Resolving straight from pending is rejected; callers must acknowledge
// first.
func (l *Lifecycle) Resolve(ctx context.Context, id, notes string) (models.Alert, error) {
	if err := l.acquire(id); err != nil {
		return models.Alert{}, err
	}
	defer l.release(id)

	a, ok := l.queue.Get(id)
	if !ok {
		return models.Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if a.Status != models.AlertAcknowledged {
		return models.Alert{}, fmt.Errorf("%w: resolve requires acknowledged, alert %s is %s", ErrInvalidTransition, id, a.Status)
	}

	if err := l.committer.Resolve(ctx, id, notes); err != nil {
		return models.Alert{}, fmt.Errorf("failed to commit resolve for alert %s: %w", id, err)
	}

	l.queue.update(id, func(a *models.Alert) {
		a.Status = models.AlertResolved
		if notes != "" {
			a.Notes = notes
		}
	})
	updated, _ := l.queue.Get(id)
	return updated, nil
}

// MarkEscalated records that an incident was created from this alert. The
// incident commit itself belongs to the escalation bridge; this only flips
// the local flag.
func (l *Lifecycle) MarkEscalated(id string) error {
	if ok := l.queue.update(id, func(a *models.Alert) { a.Escalated = true }); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
