package api

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

type (
	// FlowStatus represents the lifecycle state of a flow
	FlowStatus string

	// FlowState is the durable record of one flow instance. StateData is
	// the only handler memory that survives between invocations
	FlowState struct {
		CreatedAt       time.Time       `json:"created_at"`
		CompletedAt     time.Time       `json:"completed_at,omitzero"`
		LastUpdated     time.Time       `json:"last_updated"`
		Args            json.RawMessage `json:"args,omitempty"`
		StateData       json.RawMessage `json:"state_data,omitempty"`
		Requests        Requests        `json:"requests"`
		Results         []*Result       `json:"results,omitempty"`
		Logs            []*LogEntry     `json:"logs,omitempty"`
		ID              FlowID          `json:"id"`
		ClientID        ClientID        `json:"client_id,omitempty"`
		Type            FlowType        `json:"type"`
		Creator         string          `json:"creator,omitempty"`
		ParentFlowID    FlowID          `json:"parent_flow_id,omitempty"`
		Status          FlowStatus      `json:"status"`
		Error           string          `json:"error,omitempty"`
		ParentRequestID RequestID       `json:"parent_request_id,omitempty"`
		NextRequestID   RequestID       `json:"next_request_id"`
		Notified        bool            `json:"notified,omitempty"`
	}

	// Requests maps request IDs to their tracking state
	Requests map[RequestID]*RequestState

	// Result is one reply published by a flow, in publication order
	Result struct {
		PublishedAt time.Time       `json:"published_at"`
		Payload     json.RawMessage `json:"payload"`
	}

	// LogEntry is a flow-scoped log message recorded by a handler
	LogEntry struct {
		Timestamp time.Time `json:"timestamp"`
		State     StateID   `json:"state"`
		Message   string    `json:"message"`
	}
)

const (
	FlowRunning   FlowStatus = "running"
	FlowSucceeded FlowStatus = "success"
	FlowFailed    FlowStatus = "error"
)

// FirstRequestID is the ID allocated to a flow's first request
const FirstRequestID RequestID = 1

// IsTerminal returns true once the flow has succeeded or failed
func (st *FlowState) IsTerminal() bool {
	return st.Status == FlowSucceeded || st.Status == FlowFailed
}

// Exists returns true if the state was produced by a FlowStarted event
func (st *FlowState) Exists() bool {
	return st != nil && st.ID != ""
}

// Outstanding returns the IDs of requests still awaiting completion, in
// ascending order
func (st *FlowState) Outstanding() []RequestID {
	var res []RequestID
	for id, req := range st.Requests {
		if req.Status == RequestOutstanding {
			res = append(res, id)
		}
	}
	slices.Sort(res)
	return res
}

// HasOutstanding returns true if any request is still awaiting completion
func (st *FlowState) HasOutstanding() bool {
	for _, req := range st.Requests {
		if req.Status == RequestOutstanding {
			return true
		}
	}
	return false
}

// ResultPayloads returns the published results in publication order
func (st *FlowState) ResultPayloads() []json.RawMessage {
	res := make([]json.RawMessage, 0, len(st.Results))
	for _, r := range st.Results {
		res = append(res, r.Payload)
	}
	return res
}

// SetStatus returns a new FlowState with the status updated
func (st *FlowState) SetStatus(status FlowStatus) *FlowState {
	res := *st
	res.Status = status
	return &res
}

// SetError returns a new FlowState with the error message updated
func (st *FlowState) SetError(msg string) *FlowState {
	res := *st
	res.Error = msg
	return &res
}

// SetStateData returns a new FlowState with the encoded handler state
func (st *FlowState) SetStateData(data json.RawMessage) *FlowState {
	res := *st
	res.StateData = data
	return &res
}

// SetRequest returns a new FlowState with the request added or replaced.
// NextRequestID always stays ahead of every tracked request
func (st *FlowState) SetRequest(req *RequestState) *FlowState {
	res := *st
	res.Requests = maps.Clone(st.Requests)
	if res.Requests == nil {
		res.Requests = Requests{}
	}
	res.Requests[req.ID] = req
	if req.ID >= res.NextRequestID {
		res.NextRequestID = req.ID + 1
	}
	return &res
}

// CancelOutstanding returns a new FlowState in which every outstanding
// request is cancelled and its tracking state discarded
func (st *FlowState) CancelOutstanding() *FlowState {
	res := *st
	res.Requests = maps.Clone(st.Requests)
	for id, req := range res.Requests {
		if req.Status == RequestOutstanding {
			res.Requests[id] = req.SetStatus(RequestCancelled).ClearFragments()
		}
	}
	return &res
}

// AddResult returns a new FlowState with the result appended
func (st *FlowState) AddResult(r *Result) *FlowState {
	res := *st
	res.Results = append(slices.Clone(st.Results), r)
	return &res
}

// AddLog returns a new FlowState with the log entry appended
func (st *FlowState) AddLog(l *LogEntry) *FlowState {
	res := *st
	res.Logs = append(slices.Clone(st.Logs), l)
	return &res
}

// SetNotified returns a new FlowState marked as notified
func (st *FlowState) SetNotified() *FlowState {
	res := *st
	res.Notified = true
	return &res
}

// SetCompletedAt returns a new FlowState with the completion time updated
func (st *FlowState) SetCompletedAt(t time.Time) *FlowState {
	res := *st
	res.CompletedAt = t
	return &res
}

// SetLastUpdated returns a new FlowState with the last updated time changed
func (st *FlowState) SetLastUpdated(t time.Time) *FlowState {
	res := *st
	res.LastUpdated = t
	return &res
}
