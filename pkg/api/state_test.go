package api_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/pkg/api"
)

func TestFlowStateTerminal(t *testing.T) {
	st := &api.FlowState{ID: "f", Status: api.FlowRunning}
	assert.True(t, st.Exists())
	assert.False(t, st.IsTerminal())
	assert.True(t, st.SetStatus(api.FlowSucceeded).IsTerminal())
	assert.True(t, st.SetStatus(api.FlowFailed).IsTerminal())
	assert.False(t, (&api.FlowState{}).Exists())
}

func TestSetRequestAdvancesNextID(t *testing.T) {
	st := &api.FlowState{ID: "f", NextRequestID: api.FirstRequestID}
	next := st.SetRequest(&api.RequestState{
		ID: 1, Status: api.RequestOutstanding,
	})
	assert.Equal(t, api.RequestID(2), next.NextRequestID)
	assert.Nil(t, st.Requests)
	assert.Len(t, next.Requests, 1)

	next = next.SetRequest(&api.RequestState{
		ID: 1, Status: api.RequestProcessed,
	})
	assert.Equal(t, api.RequestID(2), next.NextRequestID)
	assert.False(t, next.HasOutstanding())
}

func TestOutstandingSorted(t *testing.T) {
	st := &api.FlowState{ID: "f"}
	for _, id := range []api.RequestID{3, 1, 2} {
		st = st.SetRequest(&api.RequestState{
			ID: id, Status: api.RequestOutstanding,
		})
	}
	st = st.SetRequest(&api.RequestState{ID: 4, Status: api.RequestProcessed})

	assert.Equal(t, []api.RequestID{1, 2, 3}, st.Outstanding())
	assert.True(t, st.HasOutstanding())
}

func TestCancelOutstanding(t *testing.T) {
	st := (&api.FlowState{ID: "f"}).
		SetRequest(&api.RequestState{
			ID:        1,
			Status:    api.RequestOutstanding,
			Fragments: []*api.Fragment{{ID: 0, Payload: []byte(`1`)}},
		}).
		SetRequest(&api.RequestState{ID: 2, Status: api.RequestProcessed})

	cancelled := st.CancelOutstanding()
	assert.Equal(t, api.RequestCancelled, cancelled.Requests[1].Status)
	assert.Empty(t, cancelled.Requests[1].Fragments)
	assert.Equal(t, api.RequestProcessed, cancelled.Requests[2].Status)
	assert.Equal(t, api.RequestOutstanding, st.Requests[1].Status)
}

func TestResultsAndLogs(t *testing.T) {
	now := time.Now()
	st := (&api.FlowState{ID: "f"}).
		AddResult(&api.Result{PublishedAt: now, Payload: json.RawMessage(`1`)}).
		AddResult(&api.Result{PublishedAt: now, Payload: json.RawMessage(`2`)}).
		AddLog(&api.LogEntry{Timestamp: now, State: "Start", Message: "hi"})

	assert.Equal(t, []json.RawMessage{
		json.RawMessage(`1`), json.RawMessage(`2`),
	}, st.ResultPayloads())
	assert.Len(t, st.Logs, 1)
	assert.True(t, st.SetNotified().Notified)
	assert.False(t, st.Notified)
}
