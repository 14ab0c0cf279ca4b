package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
	"github.com/kode4food/quarry/pkg/log"
)

type (
	// workItem is follow-up work queued by a committed transaction. It is
	// processed outside of any flow transaction
	workItem struct {
		flowID    api.FlowID
		reason    string
		requestID api.RequestID
		kind      workKind
	}

	workKind uint8
)

const (
	workDispatch workKind = iota
	workTimeout
	workFinalize
	workCancelChild
)

var workKindNames = map[workKind]string{
	workDispatch:    "dispatch",
	workTimeout:     "timeout",
	workFinalize:    "finalize",
	workCancelChild: "cancel_child",
}

func (k workKind) String() string {
	if name, ok := workKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// handleWork never reports failure to the queue. Dispatching is not
// idempotent, so a failed item is logged rather than retried
func (e *Engine) handleWork(items []*workItem) error {
	for _, w := range items {
		if err := e.performWork(w); err != nil {
			slog.Error("Work failed",
				log.FlowID(w.flowID),
				log.RequestID(w.requestID),
				slog.String("kind", w.kind.String()),
				log.Error(err))
		}
	}
	return nil
}

func (e *Engine) performWork(w *workItem) error {
	switch w.kind {
	case workDispatch:
		return e.dispatchRequest(w.flowID, w.requestID)
	case workTimeout:
		return e.expireRequest(w.flowID, w.requestID)
	case workFinalize:
		return e.finalizeFlow(w.flowID)
	case workCancelChild:
		return e.cancelChild(w.flowID, w.reason)
	default:
		return nil
	}
}

// dispatchRequest hands an outstanding request to its target: the client's
// agent for actions, or a newly started child flow. A request that cannot
// be delivered is completed with a failure sentinel
func (e *Engine) dispatchRequest(flowID api.FlowID, reqID api.RequestID) error {
	st, err := e.GetFlowState(flowID)
	if errors.Is(err, ErrFlowNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if flowTransitions.IsTerminal(st.Status) {
		return nil
	}
	req, ok := st.Requests[reqID]
	if !ok || req.Status != api.RequestOutstanding || req.Dispatched {
		return nil
	}

	if req.IsChildFlow() {
		err = e.startChildFlow(st, req)
	} else {
		err = e.sendAction(st, req)
	}
	if err != nil {
		slog.Warn("Dispatch failed",
			log.FlowID(flowID),
			log.RequestID(reqID),
			log.Error(err))
		_, err = e.forceComplete(flowID, reqID, api.Status{
			Success: false,
			Message: err.Error(),
		})
		return err
	}
	return e.markDispatched(flowID, reqID)
}

func (e *Engine) sendAction(st *api.FlowState, req *api.RequestState) error {
	ctx, cancel := context.WithTimeout(e.ctx, e.config.DispatchTimeout)
	defer cancel()

	err := e.transport.Dispatch(ctx, &api.ActionRequest{
		FlowID:    st.ID,
		ClientID:  st.ClientID,
		RequestID: req.ID,
		Action:    req.Action,
		Args:      req.Args,
		Deadline:  req.Deadline,
	})
	if err != nil {
		e.metrics.TransportFailed()
	}
	return err
}

// markDispatched records a successful dispatch. A child flow started for a
// request that stopped being outstanding in the meantime is cancelled
func (e *Engine) markDispatched(flowID api.FlowID, reqID api.RequestID) error {
	var orphan *workItem
	err := e.flowTx(flowID, func(tx *flowTx) error {
		orphan = nil
		req, ok := tx.Value().Requests[reqID]
		if !ok || req.Dispatched {
			return nil
		}
		if req.Status != api.RequestOutstanding {
			if req.IsChildFlow() {
				orphan = &workItem{
					kind:   workCancelChild,
					flowID: req.ChildFlowID,
					reason: "request " + string(req.Status),
				}
			}
			return nil
		}
		return events.Raise(tx.FlowAggregator, api.EventTypeRequestDispatched,
			api.RequestDispatchedEvent{
				FlowID:    flowID,
				RequestID: reqID,
			},
		)
	})
	if err == nil && orphan != nil {
		e.enqueueWork(orphan)
	}
	return err
}
