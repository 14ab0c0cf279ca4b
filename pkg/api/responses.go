package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"
)

type (
	// ResponsesView is the ordered, read-only view of one completed
	// request that a handler receives. It is rebuilt for every invocation
	ResponsesView struct {
		payloads  []*Fragment
		errors    []*DecodeError
		status    Status
		requestID RequestID
	}

	// DecodeError reports a fragment whose payload could not be decoded
	DecodeError struct {
		Err        error
		ResponseID ResponseID
	}
)

var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrNoResponses      = errors.New("no responses")
)

// Collate orders the fragments of a request by response ID and validates
// their payloads. Malformed payloads are excluded from the view's payload
// sequence and reported through DecodeErrors instead
func Collate(id RequestID, frags []*Fragment, st Status) *ResponsesView {
	sorted := slices.Clone(frags)
	slices.SortStableFunc(sorted, func(a, b *Fragment) int {
		return int(a.ID - b.ID)
	})
	sorted = slices.CompactFunc(sorted, func(a, b *Fragment) bool {
		return a.ID == b.ID
	})

	res := &ResponsesView{
		requestID: id,
		status:    st,
	}
	for _, f := range sorted {
		if !gjson.ValidBytes(f.Payload) {
			res.errors = append(res.errors, &DecodeError{
				ResponseID: f.ID,
				Err:        ErrMalformedPayload,
			})
			continue
		}
		res.payloads = append(res.payloads, f)
	}
	return res
}

// CollateRequest builds the view for a request that has become ready
func CollateRequest(req *RequestState) *ResponsesView {
	var st Status
	if req.Outcome != nil {
		st = *req.Outcome
	}
	var frags []*Fragment
	for _, f := range req.Fragments {
		if req.Forced || f.ID < req.Expected {
			frags = append(frags, f)
		}
	}
	return Collate(req.ID, frags, st)
}

// EmptyView is the successful view handed to handlers that run without a
// completed request, such as Start and End
func EmptyView() *ResponsesView {
	return &ResponsesView{status: Status{Success: true}}
}

// RequestID returns the request the view was collated for
func (v *ResponsesView) RequestID() RequestID {
	return v.requestID
}

// Len returns the number of well-formed payloads
func (v *ResponsesView) Len() int {
	return len(v.payloads)
}

// IsEmpty returns true if no well-formed payload was received
func (v *ResponsesView) IsEmpty() bool {
	return len(v.payloads) == 0
}

// All returns the well-formed payloads in response ID order
func (v *ResponsesView) All() []json.RawMessage {
	res := make([]json.RawMessage, 0, len(v.payloads))
	for _, f := range v.payloads {
		res = append(res, json.RawMessage(f.Payload))
	}
	return res
}

// First returns the first well-formed payload, if any
func (v *ResponsesView) First() (json.RawMessage, bool) {
	if len(v.payloads) == 0 {
		return nil, false
	}
	return json.RawMessage(v.payloads[0].Payload), true
}

// Success reports the outcome carried by the request's sentinel
func (v *ResponsesView) Success() bool {
	return v.status.Success
}

// Message returns the sentinel's message, typically an error description
func (v *ResponsesView) Message() string {
	return v.status.Message
}

// Status returns the sentinel outcome
func (v *ResponsesView) Status() Status {
	return v.status
}

// DecodeErrors returns the fragments that failed validation
func (v *ResponsesView) DecodeErrors() []*DecodeError {
	return slices.Clone(v.errors)
}

// HasDecodeErrors returns true if any fragment failed validation
func (v *ResponsesView) HasDecodeErrors() bool {
	return len(v.errors) != 0
}

// DecodeFirst decodes the first well-formed payload into a typed value
func DecodeFirst[T any](v *ResponsesView) (T, error) {
	var res T
	if len(v.payloads) == 0 {
		return res, ErrNoResponses
	}
	f := v.payloads[0]
	if err := json.Unmarshal(f.Payload, &res); err != nil {
		return res, &DecodeError{ResponseID: f.ID, Err: err}
	}
	return res, nil
}

// DecodeAll decodes every well-formed payload into typed values, stopping
// at the first payload that does not fit the type
func DecodeAll[T any](v *ResponsesView) ([]T, error) {
	res := make([]T, 0, len(v.payloads))
	for _, f := range v.payloads {
		var item T
		if err := json.Unmarshal(f.Payload, &item); err != nil {
			return res, &DecodeError{ResponseID: f.ID, Err: err}
		}
		res = append(res, item)
	}
	return res, nil
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("response %d: %v", e.ResponseID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
