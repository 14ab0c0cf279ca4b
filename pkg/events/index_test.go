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

func TestIndexActivation(t *testing.T) {
	now := time.Now()
	st := events.NewIndexState()

	st = applyIndex(t, st, now, api.EventTypeFlowActivated,
		api.FlowActivatedEvent{FlowID: "F1", Type: "Interrogate"},
	)
	assert.Contains(t, st.Active, api.FlowID("F1"))
	assert.True(t, st.Active["F1"].StartedAt.Equal(now))

	st = applyIndex(t, st, now, api.EventTypeFlowDeactivated,
		api.FlowDeactivatedEvent{FlowID: "F1", Status: api.FlowSucceeded},
	)
	assert.Empty(t, st.Active)
	assert.Equal(t, int64(1), st.Finished)

	st = applyIndex(t, st, now, api.EventTypeFlowDeactivated,
		api.FlowDeactivatedEvent{FlowID: "F1"},
	)
	assert.Equal(t, int64(1), st.Finished)
}

func TestIsIndexEvent(t *testing.T) {
	assert.True(t,
		events.IsIndexEvent(&timebox.Event{AggregateID: events.IndexKey}),
	)
	assert.False(t, events.IsIndexEvent(
		&timebox.Event{AggregateID: events.FlowKey(api.FlowID("F1"))},
	))
}

func TestRaiseEnqueuesEvent(t *testing.T) {
	ag := &timebox.Aggregator[int]{}

	err := events.Raise(
		ag, api.EventTypeFlowStarted, api.FlowStartedEvent{FlowID: "F1"},
	)
	assert.NoError(t, err)
	assert.Len(t, ag.Enqueued(), 1)
}

func applyIndex(
	t *testing.T, st *api.IndexState, now time.Time, typ api.EventType,
	data any,
) *api.IndexState {
	t.Helper()
	raw, err := json.Marshal(data)
	assert.NoError(t, err)
	ev := &timebox.Event{
		Timestamp:   now,
		AggregateID: events.IndexKey,
		Type:        timebox.EventType(typ),
		Data:        raw,
	}
	return events.IndexAppliers[ev.Type](st, ev)
}
