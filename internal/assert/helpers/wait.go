package helpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/pkg/api"
)

const pollInterval = 5 * time.Millisecond

// WaitFor polls flow state until the condition holds, returning the state
// that satisfied it
func (e *TestEngineEnv) WaitFor(
	t *testing.T, flowID api.FlowID, desc string,
	cond func(*api.FlowState) bool,
) *api.FlowState {
	t.Helper()
	var last *api.FlowState
	deadline := time.Now().Add(WaitTimeout)
	for time.Now().Before(deadline) {
		st, err := e.Engine.GetFlowState(flowID)
		if err == nil {
			last = st
			if cond(st) {
				return st
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("timeout waiting for %s of flow %s (last state: %s)",
		desc, flowID, describe(last))
	return nil
}

// WaitForFlowStatus waits until the flow reaches the expected status
func (e *TestEngineEnv) WaitForFlowStatus(
	t *testing.T, flowID api.FlowID, status api.FlowStatus,
) *api.FlowState {
	t.Helper()
	return e.WaitFor(t, flowID, "status "+string(status),
		func(st *api.FlowState) bool {
			return st.Status == status
		},
	)
}

// WaitForNotified waits until the flow's creator has been notified
func (e *TestEngineEnv) WaitForNotified(
	t *testing.T, flowID api.FlowID,
) *api.FlowState {
	t.Helper()
	return e.WaitFor(t, flowID, "notification", func(st *api.FlowState) bool {
		return st.Notified
	})
}

// WaitForDispatched waits until a request has been handed to its target
func (e *TestEngineEnv) WaitForDispatched(
	t *testing.T, flowID api.FlowID, reqID api.RequestID,
) *api.FlowState {
	t.Helper()
	return e.WaitFor(t, flowID, fmt.Sprintf("dispatch of request %d", reqID),
		func(st *api.FlowState) bool {
			req, ok := st.Requests[reqID]
			return ok && req.Dispatched
		},
	)
}

// WaitForActive waits until the flow has joined the active index
func (e *TestEngineEnv) WaitForActive(t *testing.T, flowID api.FlowID) {
	t.Helper()
	e.waitForIndex(t, flowID, true)
}

// WaitForInactive waits until the flow has left the active index
func (e *TestEngineEnv) WaitForInactive(t *testing.T, flowID api.FlowID) {
	t.Helper()
	e.waitForIndex(t, flowID, false)
}

func (e *TestEngineEnv) waitForIndex(
	t *testing.T, flowID api.FlowID, active bool,
) {
	t.Helper()
	deadline := time.Now().Add(WaitTimeout)
	for time.Now().Before(deadline) {
		idx, err := e.Engine.GetIndexState()
		if err == nil {
			if _, ok := idx.Active[flowID]; ok == active {
				return
			}
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("timeout waiting for flow %s (active=%t) in the index",
		flowID, active)
}

// DeliverAll delivers each response, asserting that none fail
func (e *TestEngineEnv) DeliverAll(t *testing.T, resps ...*api.Response) {
	t.Helper()
	for _, r := range resps {
		assert.NoError(t, e.Engine.Deliver(r))
	}
}

// DecodeState decodes a flow's handler state with an unversioned codec
func DecodeState[S any](t *testing.T, st *api.FlowState) *S {
	t.Helper()
	res, err := flow.Codec[S]{}.Decode(st.StateData)
	assert.NoError(t, err)
	return res
}

// Fragment builds a payload response
func Fragment(
	flowID api.FlowID, reqID api.RequestID, respID api.ResponseID,
	payload string,
) *api.Response {
	return &api.Response{
		FlowID:     flowID,
		RequestID:  reqID,
		ResponseID: respID,
		Payload:    []byte(payload),
	}
}

// Success builds the successful sentinel following count fragments
func Success(
	flowID api.FlowID, reqID api.RequestID, count api.ResponseID,
) *api.Response {
	return api.NewSentinel(flowID, reqID, count, api.Status{Success: true})
}

// Failure builds a failed sentinel following count fragments
func Failure(
	flowID api.FlowID, reqID api.RequestID, count api.ResponseID, msg string,
) *api.Response {
	return api.NewSentinel(flowID, reqID, count, api.Status{Message: msg})
}

func describe(st *api.FlowState) string {
	if st == nil {
		return "none"
	}
	return fmt.Sprintf("status=%s error=%q outstanding=%v",
		st.Status, st.Error, st.Outstanding())
}

// Respond waits for the flow to dispatch the action, then delivers the
// payloads followed by a sentinel carrying the status. It returns the ID of
// the answered request
func (e *TestEngineEnv) Respond(
	t *testing.T, flowID api.FlowID, action api.ActionName, status api.Status,
	payloads ...string,
) api.RequestID {
	t.Helper()
	var reqID api.RequestID
	e.WaitFor(t, flowID, "dispatch of "+string(action),
		func(st *api.FlowState) bool {
			for _, req := range st.Requests {
				if req.Action == action && req.Dispatched &&
					req.Status == api.RequestOutstanding {
					reqID = req.ID
					return true
				}
			}
			return false
		},
	)
	for i, p := range payloads {
		e.DeliverAll(t, Fragment(flowID, reqID, api.ResponseID(i), p))
	}
	e.DeliverAll(t, api.NewSentinel(
		flowID, reqID, api.ResponseID(len(payloads)), status,
	))
	return reqID
}

// DecodeVersionedState decodes handler state written by a definition with
// the given version
func DecodeVersionedState[S any](
	t *testing.T, st *api.FlowState, version int,
) *S {
	t.Helper()
	res, err := flow.Codec[S]{Version: version}.Decode(st.StateData)
	assert.NoError(t, err)
	return res
}
