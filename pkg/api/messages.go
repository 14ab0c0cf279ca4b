package api

import (
	"encoding/json"
	"slices"
	"time"
)

type (
	// StartFlowRequest contains parameters for starting a new flow
	StartFlowRequest struct {
		Args     json.RawMessage `json:"args,omitempty"`
		ID       FlowID          `json:"id,omitempty"`
		ClientID ClientID        `json:"client_id,omitempty"`
		Type     FlowType        `json:"type"`
		Creator  string          `json:"creator,omitempty"`
	}

	// StartFlowResponse is returned after successfully starting a flow
	StartFlowResponse struct {
		FlowID  FlowID `json:"flow_id"`
		Message string `json:"message"`
	}

	// CancelFlowRequest carries the reason a flow is being cancelled
	CancelFlowRequest struct {
		Reason string `json:"reason,omitempty"`
	}

	// EnrollRequest is posted when an agent enrolls with the server
	EnrollRequest struct {
		Args    json.RawMessage `json:"args,omitempty"`
		Creator string          `json:"creator,omitempty"`
	}

	// AgentMessage is one response as posted by the fleet front-end.
	// Payload carries a JSON document. Data carries the same bytes base64
	// encoded and takes precedence, so opaque or damaged payloads survive
	AgentMessage struct {
		Payload    json.RawMessage `json:"payload,omitempty"`
		Data       []byte          `json:"data,omitempty"`
		Status     *Status         `json:"status,omitempty"`
		FlowID     FlowID          `json:"flow_id"`
		RequestID  RequestID       `json:"request_id"`
		ResponseID ResponseID      `json:"response_id"`
	}

	// MessageBatch is a batch of responses posted by the front-end
	MessageBatch struct {
		Messages []*AgentMessage `json:"messages"`
	}

	// MessageBatchResponse reports how a posted batch was processed
	MessageBatchResponse struct {
		Accepted int `json:"accepted"`
		Dropped  int `json:"dropped"`
	}

	// ActionRequest is the outbound message asking an agent to run an
	// action. Responses are routed back by flow, request and response ID
	ActionRequest struct {
		Deadline  time.Time       `json:"deadline,omitzero"`
		Args      json.RawMessage `json:"args,omitempty"`
		FlowID    FlowID          `json:"flow_id"`
		ClientID  ClientID        `json:"client_id"`
		Action    ActionName      `json:"action"`
		RequestID RequestID       `json:"request_id"`
	}

	// Notification is the one-time message published when a flow reaches
	// a terminal status
	Notification struct {
		Timestamp time.Time        `json:"timestamp"`
		Kind      NotificationKind `json:"kind"`
		FlowID    FlowID           `json:"flow_id"`
		ClientID  ClientID         `json:"client_id,omitempty"`
		Type      FlowType         `json:"type"`
		Creator   string           `json:"creator,omitempty"`
		Status    FlowStatus       `json:"status"`
		Message   string           `json:"message,omitempty"`
	}

	// NotificationKind classifies notifications for their recipients
	NotificationKind string

	// EngineResponse summarizes the engine's registered and active flows
	EngineResponse struct {
		LastUpdated time.Time  `json:"last_updated"`
		FlowTypes   []FlowType `json:"flow_types"`
		Active      int        `json:"active"`
		Finished    int64      `json:"finished"`
	}

	// FlowsListResponse lists the flows that have not been finalized
	FlowsListResponse struct {
		Flows []FlowID `json:"flows"`
		Count int      `json:"count"`
	}

	// CancelFlowResponse is returned after a flow has been cancelled
	CancelFlowResponse struct {
		FlowID  FlowID `json:"flow_id"`
		Message string `json:"message"`
	}

	// ClientsListResponse lists the clients in the client index
	ClientsListResponse struct {
		Clients []ClientID `json:"clients"`
		Count   int        `json:"count"`
	}

	// SubscribeRequest is sent over the notification socket to choose
	// which notifications the connection receives
	SubscribeRequest struct {
		Data Subscription `json:"data"`
		Type string       `json:"type"`
	}

	// Subscription filters notifications. Empty fields match everything
	Subscription struct {
		FlowIDs   []FlowID           `json:"flow_ids,omitempty"`
		ClientIDs []ClientID         `json:"client_ids,omitempty"`
		Kinds     []NotificationKind `json:"kinds,omitempty"`
	}

	// HealthResponse is returned by the health endpoint
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}

	// ErrorResponse is returned when an API request fails
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
)

const (
	NotifyFlowCompleted      NotificationKind = "flow_completed"
	NotifyFlowFailed         NotificationKind = "flow_failed"
	NotifyClientInterrogated NotificationKind = "client_interrogated"
)

// Response converts the message into a routable Response
func (m *AgentMessage) Response() *Response {
	payload := m.Data
	if payload == nil && m.Payload != nil {
		payload = []byte(m.Payload)
	}
	return &Response{
		Payload:    payload,
		Status:     m.Status,
		FlowID:     m.FlowID,
		RequestID:  m.RequestID,
		ResponseID: m.ResponseID,
	}
}

// Matches returns whether the notification passes the subscription's
// filters
func (s *Subscription) Matches(n *Notification) bool {
	return matchAny(s.FlowIDs, n.FlowID) &&
		matchAny(s.ClientIDs, n.ClientID) &&
		matchAny(s.Kinds, n.Kind)
}

func matchAny[T comparable](allowed []T, v T) bool {
	return len(allowed) == 0 || slices.Contains(allowed, v)
}
