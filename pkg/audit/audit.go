// Package audit records every state-changing and denied-mutation
// attempt against profiles, plans, and SOE runs as an append-only,
// structured event stream.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of audit event categories.
type EventType string

const (
	EventStateTransition EventType = "STATE_TRANSITION"
	EventMutationDenied  EventType = "MUTATION_DENIED"
	EventExport          EventType = "EXPORT"
	EventSOERun          EventType = "SOE_RUN"
)

// Result records whether the recorded action actually took effect.
type Result string

const (
	ResultAllowed Result = "allowed"
	ResultDenied  Result = "denied"
)

// Event is one structured audit record, per spec.md §4.8.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor"`
	Role      string                 `json:"role"`
	Type      EventType              `json:"type"`
	Entity    string                 `json:"entity"`
	FromState string                 `json:"from_state,omitempty"`
	ToState   string                 `json:"to_state,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Result    Result                 `json:"result"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Logger records audit events. Implementations never drop an event
// silently: a denied mutation is recorded with from_state == to_state
// and result "denied", not skipped.
type Logger interface {
	Record(ctx context.Context, ev Event) error
}

// Clock supplies the current time, injected so tests can fix it.
type Clock func() time.Time

// writerLogger writes newline-delimited JSON events to an io.Writer,
// one line per event, guarded by a mutex for concurrent writers.
type writerLogger struct {
	mu     sync.Mutex
	writer io.Writer
	now    Clock
	newID  func() string
}

// NewLogger returns a Logger writing structured JSON lines to stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter returns a Logger writing to w, defaulting to
// os.Stdout if w is nil. Exposed for test and custom-sink injection.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &writerLogger{writer: w, now: time.Now, newID: func() string { return uuid.New().String() }}
}

func (l *writerLogger) Record(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = l.newID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = l.now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = l.writer.Write(append(b, '\n'))
	return err
}

// Denied records a denied mutation attempt: the entity's state did not
// change, but the attempt and its reason are preserved for replay.
func Denied(logger Logger, ctx context.Context, actor, role, entity, state, reason string) error {
	return logger.Record(ctx, Event{
		Actor:     actor,
		Role:      role,
		Type:      EventMutationDenied,
		Entity:    entity,
		FromState: state,
		ToState:   state,
		Reason:    reason,
		Result:    ResultDenied,
	})
}

// Transition records a successful state transition.
func Transition(logger Logger, ctx context.Context, actor, role, entity, from, to, reason string) error {
	return logger.Record(ctx, Event{
		Actor:     actor,
		Role:      role,
		Type:      EventStateTransition,
		Entity:    entity,
		FromState: from,
		ToState:   to,
		Reason:    reason,
		Result:    ResultAllowed,
	})
}
