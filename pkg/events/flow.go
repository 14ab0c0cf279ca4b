package events

import (
	"strings"

	"github.com/kode4food/timebox"

	"github.com/kode4food/quarry/pkg/api"
)

const FlowPrefix = "flow"

// FlowAppliers contains the event applier functions for flow events
var FlowAppliers = makeFlowAppliers()

// NewFlowState creates an empty flow state with an initialized request map
func NewFlowState() *api.FlowState {
	return &api.FlowState{
		Requests:      api.Requests{},
		NextRequestID: api.FirstRequestID,
	}
}

// FlowKey returns the aggregate ID for a flow
func FlowKey[T ~string](flowID T) timebox.AggregateID {
	return timebox.NewAggregateID(FlowPrefix, timebox.ID(flowID))
}

// FlowJoinKey is a JoinKeyFunc that co-locates parent and child flows in the
// same Redis hash slot. The root flow ID is wrapped in hash slot notation so
// that "flow:{F2}" and its child "flow:{F2}:7" land in the same slot
func FlowJoinKey(id timebox.AggregateID) string {
	if len(id) < 2 {
		return id.Join(":")
	}
	prefix := string(id[0])
	flowID := api.FlowID(id[1])
	root := flowID.Root()
	if flowID == root {
		return prefix + ":{" + string(root) + "}"
	}
	return prefix + ":{" + string(root) + "}:" + string(flowID[len(root)+1:])
}

// FlowParseKey is the ParseKeyFunc that reverses FlowJoinKey
func FlowParseKey(str string) timebox.AggregateID {
	before, after, found := strings.Cut(str, ":{")
	if !found {
		return timebox.ParseKey(str)
	}
	slot, remaining, hasRemaining := strings.Cut(after, "}:")
	if !hasRemaining {
		slot = strings.TrimSuffix(after, "}")
		return timebox.AggregateID{timebox.ID(before), timebox.ID(slot)}
	}
	return timebox.AggregateID{
		timebox.ID(before),
		timebox.ID(slot + ":" + remaining),
	}
}

// IsFlowEvent returns true if the event belongs to a flow aggregate
func IsFlowEvent(ev *timebox.Event) bool {
	return len(ev.AggregateID) >= 2 && ev.AggregateID[0] == FlowPrefix
}

func makeFlowAppliers() timebox.Appliers[*api.FlowState] {
	return MakeAppliers(map[api.EventType]timebox.Applier[*api.FlowState]{
		api.EventTypeFlowStarted:       timebox.MakeApplier(flowStarted),
		api.EventTypeRequestIssued:     timebox.MakeApplier(requestIssued),
		api.EventTypeRequestDispatched: timebox.MakeApplier(requestDispatched),
		api.EventTypeFragmentRecorded:  timebox.MakeApplier(fragmentRecorded),
		api.EventTypeSentinelRecorded:  timebox.MakeApplier(sentinelRecorded),
		api.EventTypeHandlerCompleted:  timebox.MakeApplier(handlerCompleted),
		api.EventTypeResultPublished:   timebox.MakeApplier(resultPublished),
		api.EventTypeFlowLogged:        timebox.MakeApplier(flowLogged),
		api.EventTypeFlowCompleted:     timebox.MakeApplier(flowCompleted),
		api.EventTypeFlowFailed:        timebox.MakeApplier(flowFailed),
		api.EventTypeFlowNotified:      timebox.MakeApplier(flowNotified),
	})
}

func flowStarted(
	_ *api.FlowState, ev *timebox.Event, data api.FlowStartedEvent,
) *api.FlowState {
	return &api.FlowState{
		ID:              data.FlowID,
		ClientID:        data.ClientID,
		Type:            data.Type,
		Creator:         data.Creator,
		ParentFlowID:    data.ParentFlowID,
		ParentRequestID: data.ParentRequestID,
		Args:            data.Args,
		Status:          api.FlowRunning,
		Requests:        api.Requests{},
		NextRequestID:   api.FirstRequestID,
		CreatedAt:       ev.Timestamp,
		LastUpdated:     ev.Timestamp,
	}
}

func requestIssued(
	st *api.FlowState, ev *timebox.Event, data api.RequestIssuedEvent,
) *api.FlowState {
	return st.
		SetRequest(&api.RequestState{
			ID:          data.RequestID,
			Kind:        data.Kind,
			Action:      data.Action,
			FlowType:    data.FlowType,
			ChildFlowID: data.ChildFlowID,
			NextState:   data.NextState,
			Args:        data.Args,
			Deadline:    data.Deadline,
			IssuedAt:    ev.Timestamp,
			Status:      api.RequestOutstanding,
		}).
		SetLastUpdated(ev.Timestamp)
}

func requestDispatched(
	st *api.FlowState, ev *timebox.Event, data api.RequestDispatchedEvent,
) *api.FlowState {
	return updateRequest(st, ev, data.RequestID,
		func(req *api.RequestState) *api.RequestState {
			return req.SetDispatched()
		},
	)
}

func fragmentRecorded(
	st *api.FlowState, ev *timebox.Event, data api.FragmentRecordedEvent,
) *api.FlowState {
	return updateRequest(st, ev, data.RequestID,
		func(req *api.RequestState) *api.RequestState {
			return req.AddFragment(&api.Fragment{
				ID:      data.ResponseID,
				Payload: data.Payload,
			})
		},
	)
}

func sentinelRecorded(
	st *api.FlowState, ev *timebox.Event, data api.SentinelRecordedEvent,
) *api.FlowState {
	return updateRequest(st, ev, data.RequestID,
		func(req *api.RequestState) *api.RequestState {
			return req.SetOutcome(
				data.Status, data.ResponseID, data.Forced, ev.Timestamp,
			)
		},
	)
}

func handlerCompleted(
	st *api.FlowState, ev *timebox.Event, data api.HandlerCompletedEvent,
) *api.FlowState {
	res := st.SetStateData(data.StateData)
	if data.RequestID == 0 {
		return res.SetLastUpdated(ev.Timestamp)
	}
	return updateRequest(res, ev, data.RequestID,
		func(req *api.RequestState) *api.RequestState {
			return req.SetStatus(api.RequestProcessed).ClearFragments()
		},
	)
}

func resultPublished(
	st *api.FlowState, ev *timebox.Event, data api.ResultPublishedEvent,
) *api.FlowState {
	return st.
		AddResult(&api.Result{
			PublishedAt: ev.Timestamp,
			Payload:     data.Payload,
		}).
		SetLastUpdated(ev.Timestamp)
}

func flowLogged(
	st *api.FlowState, ev *timebox.Event, data api.FlowLoggedEvent,
) *api.FlowState {
	return st.
		AddLog(&api.LogEntry{
			Timestamp: ev.Timestamp,
			State:     data.State,
			Message:   data.Message,
		}).
		SetLastUpdated(ev.Timestamp)
}

func flowCompleted(
	st *api.FlowState, ev *timebox.Event, _ api.FlowCompletedEvent,
) *api.FlowState {
	return st.
		SetStatus(api.FlowSucceeded).
		SetCompletedAt(ev.Timestamp).
		SetLastUpdated(ev.Timestamp)
}

func flowFailed(
	st *api.FlowState, ev *timebox.Event, data api.FlowFailedEvent,
) *api.FlowState {
	return st.
		CancelOutstanding().
		SetStatus(api.FlowFailed).
		SetError(data.Error).
		SetCompletedAt(ev.Timestamp).
		SetLastUpdated(ev.Timestamp)
}

func flowNotified(
	st *api.FlowState, ev *timebox.Event, _ api.FlowNotifiedEvent,
) *api.FlowState {
	return st.
		SetNotified().
		SetLastUpdated(ev.Timestamp)
}

func updateRequest(
	st *api.FlowState, ev *timebox.Event, id api.RequestID,
	fn func(*api.RequestState) *api.RequestState,
) *api.FlowState {
	req, ok := st.Requests[id]
	if !ok {
		return st
	}
	return st.
		SetRequest(fn(req)).
		SetLastUpdated(ev.Timestamp)
}
