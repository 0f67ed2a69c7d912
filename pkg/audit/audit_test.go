package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracepack/mfgplan/pkg/audit"
)

func TestLogger_Record_WritesStructuredJSONLine(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := audit.Transition(logger, context.Background(), "bob", "engineer", "plan:plan-1", "draft", "submitted", "ready for review")
	require.NoError(t, err)

	var ev audit.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &ev))

	assert.Equal(t, audit.EventStateTransition, ev.Type)
	assert.Equal(t, "plan:plan-1", ev.Entity)
	assert.Equal(t, "draft", ev.FromState)
	assert.Equal(t, "submitted", ev.ToState)
	assert.Equal(t, audit.ResultAllowed, ev.Result)
	assert.NotEmpty(t, ev.ID)
}

func TestDenied_RecordsSameFromAndToState(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := audit.Denied(logger, context.Background(), "carol", "viewer", "plan:plan-2", "approved", "edit attempted on immutable approved plan")
	require.NoError(t, err)

	var ev audit.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &ev))

	assert.Equal(t, audit.EventMutationDenied, ev.Type)
	assert.Equal(t, audit.ResultDenied, ev.Result)
	assert.Equal(t, ev.FromState, ev.ToState)
}

func TestTimeline_ReplayFiltersByEntity(t *testing.T) {
	tl := audit.NewTimeline()
	ctx := context.Background()

	require.NoError(t, audit.Transition(tl, ctx, "bob", "engineer", "plan:plan-1", "draft", "submitted", "r1"))
	require.NoError(t, audit.Transition(tl, ctx, "bob", "engineer", "plan:plan-1", "submitted", "approved", "r2"))
	require.NoError(t, audit.Transition(tl, ctx, "alice", "engineer", "plan:plan-9", "draft", "submitted", "r3"))

	events := tl.Replay(audit.Query{Entity: "plan:plan-1"})
	require.Len(t, events, 2)
	assert.Equal(t, "draft", events[0].FromState)
	assert.Equal(t, "approved", events[1].ToState)

	assert.Equal(t, 3, tl.Count())
}

func TestTimeline_ReplayIncludesDeniedAttempts(t *testing.T) {
	tl := audit.NewTimeline()
	ctx := context.Background()

	require.NoError(t, audit.Transition(tl, ctx, "bob", "engineer", "plan:plan-1", "draft", "approved", "ok"))
	require.NoError(t, audit.Denied(tl, ctx, "carol", "viewer", "plan:plan-1", "approved", "immutable"))

	deniedType := audit.EventMutationDenied
	events := tl.Replay(audit.Query{Entity: "plan:plan-1", Type: &deniedType})
	require.Len(t, events, 1)
	assert.Equal(t, audit.ResultDenied, events[0].Result)
}

func TestTimeline_ReplayRespectsLimit(t *testing.T) {
	tl := audit.NewTimeline()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, audit.Transition(tl, ctx, "bob", "engineer", "plan:plan-1", "draft", "draft", "noop"))
	}
	events := tl.Replay(audit.Query{Entity: "plan:plan-1", Limit: 2})
	assert.Len(t, events, 2)
}

func TestTimeline_ReplayAfterBeforeExcludesOutOfRange(t *testing.T) {
	tl := audit.NewTimeline()
	ctx := context.Background()
	require.NoError(t, audit.Transition(tl, ctx, "bob", "engineer", "plan:plan-1", "draft", "submitted", "r1"))

	future := time.Now().Add(24 * time.Hour)
	events := tl.Replay(audit.Query{Entity: "plan:plan-1", After: &future})
	assert.Empty(t, events)
}
