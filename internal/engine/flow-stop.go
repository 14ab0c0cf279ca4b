package engine

import (
	"errors"
	"log/slog"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
	"github.com/kode4food/quarry/pkg/log"
)

const cancelPrefix = "cancelled"

// failFlow moves the flow to ERROR. Outstanding requests become inert and
// any child flows still running on its behalf are cancelled
func (tx *flowTx) failFlow(msg string) error {
	return tx.stopFlow(api.FlowFailedEvent{
		FlowID: tx.flowID,
		Error:  msg,
	})
}

func (tx *flowTx) cancelFlow(reason string) error {
	msg := cancelPrefix
	if reason != "" {
		msg = cancelPrefix + ": " + reason
	}
	return tx.stopFlow(api.FlowFailedEvent{
		FlowID:    tx.flowID,
		Error:     msg,
		Cancelled: true,
	})
}

func (tx *flowTx) stopFlow(ev api.FlowFailedEvent) error {
	var children []api.FlowID
	st := tx.Value()
	for _, id := range st.Outstanding() {
		if req := st.Requests[id]; req.IsChildFlow() {
			children = append(children, req.ChildFlowID)
		}
	}
	if err := events.Raise(
		tx.FlowAggregator, api.EventTypeFlowFailed, ev,
	); err != nil {
		return err
	}
	tx.OnSuccess(func(fl *api.FlowState) {
		for _, child := range children {
			tx.enqueueWork(&workItem{
				kind:   workCancelChild,
				flowID: child,
				reason: "parent " + string(fl.ID) + " failed",
			})
		}
		tx.flowTerminated(fl)
	})
	return nil
}

// flowTerminated runs after the commit that made a flow terminal
func (e *Engine) flowTerminated(fl *api.FlowState) {
	e.scheduler.CancelPrefix(e.ctx, timeoutPrefix(fl.ID))
	e.enqueueWork(&workItem{
		kind:   workFinalize,
		flowID: fl.ID,
	})
}

// finalizeFlow notifies the creator of a terminal flow at most once, then
// publishes it, reports it to its parent and retires it from the active
// index. Every step after notification is idempotent, so a finalize that
// is interrupted can be run again safely
func (e *Engine) finalizeFlow(flowID api.FlowID) error {
	st, notify, err := e.markNotified(flowID)
	if errors.Is(err, ErrFlowNotFound) {
		e.deactivateFlow(flowID, "")
		return nil
	}
	if err != nil {
		return err
	}
	if !flowTransitions.IsTerminal(st.Status) {
		return nil
	}

	if notify {
		e.metrics.FlowTerminal(st.Type, st.Status)
		if err := e.notifyTerminal(st); err != nil {
			slog.Error("Notification failed",
				log.FlowID(st.ID),
				log.Error(err))
		}
	}

	for _, p := range e.publishers {
		if err := p.Publish(e.ctx, st); err != nil {
			slog.Error("Publishing flow failed",
				log.FlowID(st.ID),
				log.Error(err))
		}
	}

	if st.ParentFlowID != "" {
		if err := e.deliverToParent(st); err != nil {
			return err
		}
	}

	e.deactivateFlow(st.ID, st.Status)
	return nil
}

func (e *Engine) markNotified(
	flowID api.FlowID,
) (*api.FlowState, bool, error) {
	var res *api.FlowState
	var flipped bool
	err := e.flowTx(flowID, func(tx *flowTx) error {
		res = nil
		flipped = false
		st := tx.Value()
		if !st.Exists() {
			return ErrFlowNotFound
		}
		res = st
		if !flowTransitions.IsTerminal(st.Status) || st.Notified {
			return nil
		}
		if err := events.Raise(tx.FlowAggregator, api.EventTypeFlowNotified,
			api.FlowNotifiedEvent{FlowID: st.ID, Status: st.Status},
		); err != nil {
			return err
		}
		tx.OnSuccess(func(fl *api.FlowState) {
			res = fl
			flipped = true
		})
		return nil
	})
	return res, flipped, err
}

func (e *Engine) notifyTerminal(st *api.FlowState) error {
	if st.ParentFlowID != "" {
		return nil
	}
	kind := api.NotifyFlowFailed
	if st.Status == api.FlowSucceeded {
		kind = api.NotifyFlowCompleted
		if def, ok := e.registry.Get(st.Type); ok {
			kind = def.SuccessKind()
		}
	}
	return e.notifier.OnFlowTerminal(e.ctx, &api.Notification{
		Timestamp: e.Now(),
		Kind:      kind,
		FlowID:    st.ID,
		ClientID:  st.ClientID,
		Type:      st.Type,
		Creator:   st.Creator,
		Status:    st.Status,
		Message:   st.Error,
	})
}

func (e *Engine) deactivateFlow(flowID api.FlowID, status api.FlowStatus) {
	e.enqueueIndexEvent(api.EventTypeFlowDeactivated,
		api.FlowDeactivatedEvent{
			FlowID: flowID,
			Status: status,
		},
	)
}
