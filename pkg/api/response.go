package api

import (
	"errors"
	"fmt"
)

// Response is one reply fragment for an outstanding request. A response
// carrying a Status is the request's terminal sentinel, and its ResponseID
// is the number of payload fragments that precede it
type Response struct {
	Payload    []byte     `json:"payload,omitempty"`
	Status     *Status    `json:"status,omitempty"`
	FlowID     FlowID     `json:"flow_id"`
	RequestID  RequestID  `json:"request_id"`
	ResponseID ResponseID `json:"response_id"`
}

var (
	ErrFlowIDRequired    = errors.New("flow ID is required")
	ErrInvalidRequestID  = errors.New("invalid request ID")
	ErrInvalidResponseID = errors.New("invalid response ID")
)

// NewSentinel builds the terminal status response for a request
func NewSentinel(
	flowID FlowID, reqID RequestID, respID ResponseID, st Status,
) *Response {
	return &Response{
		FlowID:     flowID,
		RequestID:  reqID,
		ResponseID: respID,
		Status:     &st,
	}
}

// IsSentinel returns true if the response is a terminal status
func (r *Response) IsSentinel() bool {
	return r.Status != nil
}

// Validate checks that the response can be routed to a request
func (r *Response) Validate() error {
	if r.FlowID == "" {
		return ErrFlowIDRequired
	}
	if r.RequestID < FirstRequestID {
		return fmt.Errorf("%w: %d", ErrInvalidRequestID, r.RequestID)
	}
	if r.ResponseID < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidResponseID, r.ResponseID)
	}
	return nil
}
