package api

import (
	"encoding/json"
	"time"
)

type (
	// FlowStartedEvent is emitted when a flow instance is created
	FlowStartedEvent struct {
		Args            json.RawMessage `json:"args,omitempty"`
		FlowID          FlowID          `json:"flow_id"`
		ClientID        ClientID        `json:"client_id,omitempty"`
		Type            FlowType        `json:"type"`
		Creator         string          `json:"creator,omitempty"`
		ParentFlowID    FlowID          `json:"parent_flow_id,omitempty"`
		ParentRequestID RequestID       `json:"parent_request_id,omitempty"`
	}

	// RequestIssuedEvent is emitted when a handler allocates a request
	RequestIssuedEvent struct {
		Deadline    time.Time       `json:"deadline,omitzero"`
		Args        json.RawMessage `json:"args,omitempty"`
		FlowID      FlowID          `json:"flow_id"`
		Kind        RequestKind     `json:"kind"`
		Action      ActionName      `json:"action,omitempty"`
		FlowType    FlowType        `json:"flow_type,omitempty"`
		ChildFlowID FlowID          `json:"child_flow_id,omitempty"`
		NextState   StateID         `json:"next_state"`
		RequestID   RequestID       `json:"request_id"`
	}

	// RequestDispatchedEvent is emitted once a request has been handed to
	// the transport or its child flow has been started
	RequestDispatchedEvent struct {
		FlowID    FlowID    `json:"flow_id"`
		RequestID RequestID `json:"request_id"`
	}

	// FragmentRecordedEvent is emitted when a payload response is tracked
	FragmentRecordedEvent struct {
		Payload    []byte     `json:"payload"`
		FlowID     FlowID     `json:"flow_id"`
		RequestID  RequestID  `json:"request_id"`
		ResponseID ResponseID `json:"response_id"`
	}

	// SentinelRecordedEvent is emitted when a request's terminal status is
	// tracked. Forced sentinels come from timeouts and transport failures
	SentinelRecordedEvent struct {
		Status     Status     `json:"status"`
		FlowID     FlowID     `json:"flow_id"`
		RequestID  RequestID  `json:"request_id"`
		ResponseID ResponseID `json:"response_id"`
		Forced     bool       `json:"forced,omitempty"`
	}

	// HandlerCompletedEvent is emitted when a handler returns normally. It
	// commits the handler's state and retires the request it consumed
	HandlerCompletedEvent struct {
		StateData json.RawMessage `json:"state_data,omitempty"`
		FlowID    FlowID          `json:"flow_id"`
		State     StateID         `json:"state"`
		RequestID RequestID       `json:"request_id,omitempty"`
	}

	// ResultPublishedEvent is emitted when a handler sends a reply
	ResultPublishedEvent struct {
		Payload json.RawMessage `json:"payload"`
		FlowID  FlowID          `json:"flow_id"`
	}

	// FlowLoggedEvent is emitted when a handler records a flow log message
	FlowLoggedEvent struct {
		FlowID  FlowID  `json:"flow_id"`
		State   StateID `json:"state"`
		Message string  `json:"message"`
	}

	// FlowCompletedEvent is emitted when the End handler has run
	FlowCompletedEvent struct {
		FlowID FlowID `json:"flow_id"`
	}

	// FlowFailedEvent is emitted when a flow aborts or is cancelled
	FlowFailedEvent struct {
		FlowID    FlowID `json:"flow_id"`
		Error     string `json:"error"`
		Cancelled bool   `json:"cancelled,omitempty"`
	}

	// FlowNotifiedEvent is emitted once the creator has been notified
	FlowNotifiedEvent struct {
		FlowID FlowID     `json:"flow_id"`
		Status FlowStatus `json:"status"`
	}

	// FlowActivatedEvent is emitted when a flow joins the active index
	FlowActivatedEvent struct {
		FlowID       FlowID   `json:"flow_id"`
		ParentFlowID FlowID   `json:"parent_flow_id,omitempty"`
		ClientID     ClientID `json:"client_id,omitempty"`
		Type         FlowType `json:"type"`
	}

	// FlowDeactivatedEvent is emitted when a finalized flow leaves the
	// active index
	FlowDeactivatedEvent struct {
		FlowID FlowID     `json:"flow_id"`
		Status FlowStatus `json:"status"`
	}

	EventType string
)

const (
	EventTypeFlowStarted       EventType = "flow_started"
	EventTypeRequestIssued     EventType = "request_issued"
	EventTypeRequestDispatched EventType = "request_dispatched"
	EventTypeFragmentRecorded  EventType = "fragment_recorded"
	EventTypeSentinelRecorded  EventType = "sentinel_recorded"
	EventTypeHandlerCompleted  EventType = "handler_completed"
	EventTypeResultPublished   EventType = "result_published"
	EventTypeFlowLogged        EventType = "flow_logged"
	EventTypeFlowCompleted     EventType = "flow_completed"
	EventTypeFlowFailed        EventType = "flow_failed"
	EventTypeFlowNotified      EventType = "flow_notified"
	EventTypeFlowActivated     EventType = "flow_activated"
	EventTypeFlowDeactivated   EventType = "flow_deactivated"
)
