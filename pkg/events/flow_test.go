package events_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kode4food/timebox"
	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
)

func TestFlowKeys(t *testing.T) {
	key := events.FlowKey(api.FlowID("F2"))
	assert.Equal(t, "flow:{F2}", events.FlowJoinKey(key))
	assert.Equal(t, key, events.FlowParseKey(events.FlowJoinKey(key)))

	child := events.FlowKey(api.ChildFlowID("F2", 7))
	assert.Equal(t, "flow:{F2}:7", events.FlowJoinKey(child))
	assert.Equal(t, child, events.FlowParseKey(events.FlowJoinKey(child)))

	assert.True(t, events.IsFlowEvent(&timebox.Event{AggregateID: child}))
	assert.False(t,
		events.IsFlowEvent(&timebox.Event{AggregateID: events.IndexKey}),
	)
}

func TestFlowStarted(t *testing.T) {
	now := time.Now()
	st := apply(t, events.NewFlowState(), now, api.EventTypeFlowStarted,
		api.FlowStartedEvent{
			FlowID:   "F1",
			ClientID: "C.1",
			Type:     "Interrogate",
			Creator:  "analyst",
		},
	)

	assert.Equal(t, api.FlowID("F1"), st.ID)
	assert.Equal(t, api.FlowRunning, st.Status)
	assert.Equal(t, api.FirstRequestID, st.NextRequestID)
	assert.Equal(t, "analyst", st.Creator)
	assert.True(t, st.CreatedAt.Equal(now))
}

func TestRequestLifecycle(t *testing.T) {
	now := time.Now()
	st := started(t, now)

	st = apply(t, st, now, api.EventTypeRequestIssued,
		api.RequestIssuedEvent{
			FlowID:    "F1",
			RequestID: 1,
			Kind:      api.RequestAction,
			Action:    "GetPlatformInfo",
			NextState: "Platform",
		},
	)
	assert.Equal(t, api.RequestID(2), st.NextRequestID)
	assert.Equal(t, []api.RequestID{1}, st.Outstanding())

	st = apply(t, st, now, api.EventTypeRequestDispatched,
		api.RequestDispatchedEvent{FlowID: "F1", RequestID: 1},
	)
	assert.True(t, st.Requests[1].Dispatched)

	st = apply(t, st, now, api.EventTypeFragmentRecorded,
		api.FragmentRecordedEvent{
			FlowID:    "F1",
			RequestID: 1,
			Payload:   []byte(`{"system":"Linux"}`),
		},
	)
	assert.Len(t, st.Requests[1].Fragments, 1)
	assert.False(t, st.Requests[1].Ready())

	st = apply(t, st, now, api.EventTypeSentinelRecorded,
		api.SentinelRecordedEvent{
			FlowID:     "F1",
			RequestID:  1,
			ResponseID: 1,
			Status:     api.Status{Success: true},
		},
	)
	assert.True(t, st.Requests[1].Ready())

	st = apply(t, st, now, api.EventTypeHandlerCompleted,
		api.HandlerCompletedEvent{
			FlowID:    "F1",
			RequestID: 1,
			State:     "Platform",
			StateData: json.RawMessage(`{"version":1,"data":{}}`),
		},
	)
	assert.Equal(t, api.RequestProcessed, st.Requests[1].Status)
	assert.Empty(t, st.Requests[1].Fragments)
	assert.JSONEq(t, `{"version":1,"data":{}}`, string(st.StateData))
	assert.False(t, st.HasOutstanding())
}

func TestUnknownRequestIgnored(t *testing.T) {
	now := time.Now()
	st := started(t, now)
	res := apply(t, st, now, api.EventTypeFragmentRecorded,
		api.FragmentRecordedEvent{FlowID: "F1", RequestID: 9},
	)
	assert.Empty(t, res.Requests)
}

func TestFlowFailedCancelsOutstanding(t *testing.T) {
	now := time.Now()
	st := apply(t, started(t, now), now, api.EventTypeRequestIssued,
		api.RequestIssuedEvent{FlowID: "F1", RequestID: 1, NextState: "X"},
	)
	st = apply(t, st, now, api.EventTypeFlowFailed,
		api.FlowFailedEvent{FlowID: "F1", Error: "boom", Cancelled: true},
	)
	assert.Equal(t, api.FlowFailed, st.Status)
	assert.Equal(t, "boom", st.Error)
	assert.Equal(t, api.RequestCancelled, st.Requests[1].Status)
	assert.True(t, st.CompletedAt.Equal(now))
}

func TestResultsLogsAndCompletion(t *testing.T) {
	now := time.Now()
	st := apply(t, started(t, now), now, api.EventTypeResultPublished,
		api.ResultPublishedEvent{FlowID: "F1", Payload: json.RawMessage(`1`)},
	)
	st = apply(t, st, now, api.EventTypeFlowLogged,
		api.FlowLoggedEvent{FlowID: "F1", State: "End", Message: "done"},
	)
	st = apply(t, st, now, api.EventTypeFlowCompleted,
		api.FlowCompletedEvent{FlowID: "F1"},
	)
	st = apply(t, st, now, api.EventTypeFlowNotified,
		api.FlowNotifiedEvent{FlowID: "F1", Status: api.FlowSucceeded},
	)

	assert.Len(t, st.Results, 1)
	assert.Equal(t, "done", st.Logs[0].Message)
	assert.Equal(t, api.FlowSucceeded, st.Status)
	assert.True(t, st.Notified)
}

func started(t *testing.T, now time.Time) *api.FlowState {
	t.Helper()
	return apply(t, events.NewFlowState(), now, api.EventTypeFlowStarted,
		api.FlowStartedEvent{FlowID: "F1", Type: "Test"},
	)
}

func apply(
	t *testing.T, st *api.FlowState, now time.Time, typ api.EventType,
	data any,
) *api.FlowState {
	t.Helper()
	raw, err := json.Marshal(data)
	assert.NoError(t, err)
	ev := &timebox.Event{
		Timestamp:   now,
		AggregateID: events.FlowKey(st.ID),
		Type:        timebox.EventType(typ),
		Data:        raw,
	}
	applier := events.FlowAppliers[ev.Type]
	assert.NotNil(t, applier)
	return applier(st, ev)
}
