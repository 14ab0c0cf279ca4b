package api

import (
	"encoding/json"
	"slices"
	"time"
)

type (
	// RequestKind distinguishes agent actions from child flows
	RequestKind string

	// RequestStatus is the tracking state of a request
	RequestStatus string

	// RequestState is one outbound unit of work and the fragments received
	// for it so far
	RequestState struct {
		IssuedAt    time.Time       `json:"issued_at"`
		Deadline    time.Time       `json:"deadline,omitzero"`
		CompletedAt time.Time       `json:"completed_at,omitzero"`
		Args        json.RawMessage `json:"args,omitempty"`
		Fragments   []*Fragment     `json:"fragments,omitempty"`
		Outcome     *Status         `json:"outcome,omitempty"`
		Kind        RequestKind     `json:"kind"`
		Action      ActionName      `json:"action,omitempty"`
		FlowType    FlowType        `json:"flow_type,omitempty"`
		ChildFlowID FlowID          `json:"child_flow_id,omitempty"`
		NextState   StateID         `json:"next_state"`
		Status      RequestStatus   `json:"status"`
		ID          RequestID       `json:"id"`
		Expected    ResponseID      `json:"expected,omitempty"`
		Forced      bool            `json:"forced,omitempty"`
		Dispatched  bool            `json:"dispatched,omitempty"`
	}

	// Fragment is one payload response recorded against a request. The
	// payload is kept as raw bytes so malformed agent data still persists
	Fragment struct {
		Payload []byte     `json:"payload"`
		ID      ResponseID `json:"id"`
	}

	// Status is the terminal sentinel outcome of a request
	Status struct {
		Message string `json:"message,omitempty"`
		Success bool   `json:"success"`
	}

	// Track is the Request Tracker's decision for an arriving response
	Track int
)

const (
	RequestAction    RequestKind = "action"
	RequestChildFlow RequestKind = "flow"
)

const (
	RequestOutstanding RequestStatus = "outstanding"
	RequestProcessed   RequestStatus = "processed"
	RequestCancelled   RequestStatus = "cancelled"
)

const (
	// TrackDrop means the response is a duplicate or arrived too late
	TrackDrop Track = iota

	// TrackFragment means the response is a new payload fragment
	TrackFragment

	// TrackSentinel means the response is the request's terminal status
	TrackSentinel
)

// TimeoutMessage is the sentinel message of a request that expired
const TimeoutMessage = "timeout"

// Track decides how an arriving response affects the request. Redelivery
// of a fragment or sentinel that was already recorded is a no-op, as is
// anything arriving after the request stopped being outstanding
func (r *RequestState) Track(resp *Response) Track {
	if r.Status != RequestOutstanding {
		return TrackDrop
	}
	if resp.IsSentinel() {
		if r.Outcome != nil {
			return TrackDrop
		}
		return TrackSentinel
	}
	if r.HasFragment(resp.ResponseID) {
		return TrackDrop
	}
	if r.Outcome != nil && resp.ResponseID >= r.Expected {
		return TrackDrop
	}
	return TrackFragment
}

// Ready returns true once the sentinel has been observed and every
// fragment it declared is present. A forced sentinel is always ready
func (r *RequestState) Ready() bool {
	if r.Status != RequestOutstanding || r.Outcome == nil {
		return false
	}
	if r.Forced {
		return true
	}
	var count ResponseID
	for _, f := range r.Fragments {
		if f.ID < r.Expected {
			count++
		}
	}
	return count >= r.Expected
}

// HasFragment returns true if a fragment with the ID was recorded
func (r *RequestState) HasFragment(id ResponseID) bool {
	return slices.ContainsFunc(r.Fragments, func(f *Fragment) bool {
		return f.ID == id
	})
}

// IsChildFlow returns true if the request is addressed to a child flow
func (r *RequestState) IsChildFlow() bool {
	return r.Kind == RequestChildFlow
}

// AddFragment returns a new RequestState with the fragment inserted in
// response ID order
func (r *RequestState) AddFragment(f *Fragment) *RequestState {
	res := *r
	res.Fragments = slices.Clone(r.Fragments)
	idx, _ := slices.BinarySearchFunc(res.Fragments, f.ID,
		func(e *Fragment, id ResponseID) int {
			return int(e.ID - id)
		},
	)
	res.Fragments = slices.Insert(res.Fragments, idx, f)
	return &res
}

// SetOutcome returns a new RequestState carrying the terminal sentinel.
// The sentinel's response ID is the number of payload fragments it follows
func (r *RequestState) SetOutcome(
	st Status, expected ResponseID, forced bool, at time.Time,
) *RequestState {
	res := *r
	res.Outcome = &st
	res.Expected = expected
	res.Forced = forced
	res.CompletedAt = at
	return &res
}

// SetStatus returns a new RequestState with the status updated
func (r *RequestState) SetStatus(status RequestStatus) *RequestState {
	res := *r
	res.Status = status
	return &res
}

// SetDispatched returns a new RequestState marked as handed to its target
func (r *RequestState) SetDispatched() *RequestState {
	res := *r
	res.Dispatched = true
	return &res
}

// ClearFragments returns a new RequestState with no recorded fragments
func (r *RequestState) ClearFragments() *RequestState {
	res := *r
	res.Fragments = nil
	return &res
}
