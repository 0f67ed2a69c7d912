package audit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Query filters a Timeline's recorded events for replay.
type Query struct {
	Entity string
	Type   *EventType
	After  *time.Time
	Before *time.Time
	Limit  int
}

// Timeline is an in-memory, queryable Logger: every Record call is also
// retained for later replay by entity, type, or time range. It never
// evicts an event once recorded.
type Timeline struct {
	mu     sync.RWMutex
	events []Event
	byEnt  map[string][]int
	now    Clock
	newID  func() string
}

// NewTimeline returns an empty, queryable audit Logger.
func NewTimeline() *Timeline {
	return &Timeline{
		byEnt: make(map[string][]int),
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

func (t *Timeline) Record(ctx context.Context, ev Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.ID == "" {
		ev.ID = t.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.now().UTC()
	}

	idx := len(t.events)
	t.events = append(t.events, ev)
	if ev.Entity != "" {
		t.byEnt[ev.Entity] = append(t.byEnt[ev.Entity], idx)
	}
	return nil
}

// Replay returns every event matching q, ordered by timestamp. This is
// the mechanism spec.md §4.8 calls replay: reconstructing the sequence
// of transitions (including denied attempts) an entity went through.
func (t *Timeline) Replay(q Query) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var candidates []Event
	if q.Entity != "" {
		for _, i := range t.byEnt[q.Entity] {
			candidates = append(candidates, t.events[i])
		}
	} else {
		candidates = make([]Event, len(t.events))
		copy(candidates, t.events)
	}

	var out []Event
	for _, e := range candidates {
		if q.Type != nil && e.Type != *q.Type {
			continue
		}
		if q.After != nil && e.Timestamp.Before(*q.After) {
			continue
		}
		if q.Before != nil && e.Timestamp.After(*q.Before) {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Count returns the total number of recorded events.
func (t *Timeline) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}
