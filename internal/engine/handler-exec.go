package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
	"github.com/kode4food/quarry/pkg/log"
)

var (
	ErrHandlerPanicked = errors.New("handler panicked")
	ErrEndIssued       = errors.New("end handler issued requests")
)

// runHandler invokes the handler bound to state and raises everything it
// produced. If the handler fails, its working copy is discarded and the
// flow fails instead. reqID is the request being consumed, if any
func (tx *flowTx) runHandler(
	state api.StateID, view *api.ResponsesView, reqID api.RequestID,
) error {
	st := tx.Value()
	def, ok := tx.registry.Get(st.Type)
	if !ok {
		return tx.failFlow(fmt.Sprintf("%s: %s", ErrUnknownFlowType, st.Type))
	}

	now := tx.Now()
	hctx := flow.NewContext(flow.Info{
		Args:     st.Args,
		FlowID:   st.ID,
		ClientID: st.ClientID,
		Type:     st.Type,
		Creator:  st.Creator,
	}, def, tx.registry, state, st.NextRequestID, now)

	data, err := invokeHandler(def, hctx, state, view, st.StateData)
	if err == nil && state == api.EndState && len(hctx.Requests()) != 0 {
		err = ErrEndIssued
	}
	if err != nil {
		slog.Warn("Handler failed",
			log.FlowID(st.ID),
			log.FlowType(st.Type),
			log.State(state),
			log.Error(err))
		return tx.failFlow(err.Error())
	}

	issued := make([]*api.RequestIssuedEvent, 0, len(hctx.Requests()))
	for _, req := range hctx.Requests() {
		ev := tx.requestIssued(req)
		if err := events.Raise(tx.FlowAggregator,
			api.EventTypeRequestIssued, ev,
		); err != nil {
			return err
		}
		issued = append(issued, ev)
	}
	for _, payload := range hctx.Replies() {
		if err := events.Raise(tx.FlowAggregator, api.EventTypeResultPublished,
			api.ResultPublishedEvent{FlowID: st.ID, Payload: payload},
		); err != nil {
			return err
		}
	}
	for _, msg := range hctx.Logs() {
		if err := events.Raise(tx.FlowAggregator, api.EventTypeFlowLogged,
			api.FlowLoggedEvent{FlowID: st.ID, State: state, Message: msg},
		); err != nil {
			return err
		}
	}
	if err := events.Raise(tx.FlowAggregator, api.EventTypeHandlerCompleted,
		api.HandlerCompletedEvent{
			FlowID:    st.ID,
			State:     state,
			RequestID: reqID,
			StateData: data,
		},
	); err != nil {
		return err
	}

	counters := hctx.Counters()
	tx.OnSuccess(func(fl *api.FlowState) {
		tx.metrics.HandlerInvoked(fl.Type, state)
		for _, name := range counters {
			tx.metrics.FlowCounter(fl.Type, name)
		}
		for _, ev := range issued {
			req, ok := fl.Requests[ev.RequestID]
			if !ok || req.Status != api.RequestOutstanding {
				continue
			}
			tx.scheduleTimeout(fl.ID, req.ID, req.Deadline)
			tx.enqueueWork(&workItem{
				kind:      workDispatch,
				flowID:    fl.ID,
				requestID: req.ID,
			})
		}
	})
	return nil
}

func (tx *flowTx) requestIssued(req *flow.Request) *api.RequestIssuedEvent {
	res := &api.RequestIssuedEvent{
		FlowID:    tx.flowID,
		RequestID: req.ID,
		Kind:      req.Kind,
		Action:    req.Action,
		FlowType:  req.FlowType,
		NextState: req.NextState,
		Args:      req.Args,
		Deadline:  tx.clock.Deadline(req.Timeout, tx.config.RequestTimeout),
	}
	if req.Kind == api.RequestChildFlow {
		res.ChildFlowID = api.ChildFlowID(tx.flowID, req.ID)
	}
	return res
}

// advance completes the flow once a handler has left nothing outstanding.
// End runs exactly once, and only a successful End makes the flow SUCCESS
func (tx *flowTx) advance() error {
	st := tx.Value()
	if flowTransitions.IsTerminal(st.Status) || st.HasOutstanding() {
		return nil
	}
	if err := tx.runHandler(api.EndState, api.EmptyView(), 0); err != nil {
		return err
	}
	if flowTransitions.IsTerminal(tx.Value().Status) {
		return nil
	}
	if err := events.Raise(tx.FlowAggregator, api.EventTypeFlowCompleted,
		api.FlowCompletedEvent{FlowID: st.ID},
	); err != nil {
		return err
	}
	tx.OnSuccess(func(fl *api.FlowState) {
		tx.flowTerminated(fl)
	})
	return nil
}

// completeRequest hands a ready request's collated responses to the
// handler bound to its next state
func (tx *flowTx) completeRequest(req *api.RequestState) error {
	st := tx.Value()
	if !requestTransitions.CanTransition(req.Status, api.RequestProcessed) {
		return nil
	}
	view := api.CollateRequest(req)
	for _, de := range view.DecodeErrors() {
		slog.Warn("Malformed response",
			log.FlowID(st.ID),
			log.RequestID(req.ID),
			slog.Int64("response_id", int64(de.ResponseID)),
			log.Error(de))
	}

	flowID, reqID := st.ID, req.ID
	tx.OnSuccess(func(*api.FlowState) {
		tx.scheduler.Cancel(tx.ctx, timeoutKey(flowID, reqID))
	})
	if err := tx.runHandler(req.NextState, view, req.ID); err != nil {
		return err
	}
	return tx.advance()
}

func invokeHandler(
	def flow.Flow, hctx *flow.Context, state api.StateID,
	view *api.ResponsesView, data json.RawMessage,
) (res json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return def.Run(hctx, state, view, data)
}
