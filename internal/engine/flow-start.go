package engine

import (
	"errors"
	"fmt"

	"github.com/kode4food/quarry/internal/engine/flowopt"
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
	"github.com/kode4food/quarry/pkg/util/call"
)

// StartFlow creates a flow instance of the given type and runs its Start
// handler. Requests issued by Start are dispatched once the flow's creation
// has been committed
func (e *Engine) StartFlow(
	flowID api.FlowID, typ api.FlowType, apps ...flowopt.Applier,
) error {
	if err := call.Perform(
		call.WithArg(validateFlowID, flowID),
		call.WithArg(e.checkFlowType, typ),
	); err != nil {
		return err
	}
	opts := flowopt.DefaultOptions(apps...)

	return e.flowTx(flowID, func(tx *flowTx) error {
		if tx.Value().Exists() {
			return ErrFlowExists
		}
		if err := events.Raise(tx.FlowAggregator, api.EventTypeFlowStarted,
			api.FlowStartedEvent{
				FlowID:          flowID,
				Type:            typ,
				Args:            opts.Args,
				ClientID:        opts.ClientID,
				Creator:         opts.Creator,
				ParentFlowID:    opts.ParentFlowID,
				ParentRequestID: opts.ParentRequestID,
			},
		); err != nil {
			return err
		}
		tx.OnSuccess(func(*api.FlowState) {
			tx.metrics.FlowStarted(typ)
			tx.enqueueIndexEvent(api.EventTypeFlowActivated,
				api.FlowActivatedEvent{
					FlowID:       flowID,
					ParentFlowID: opts.ParentFlowID,
					ClientID:     opts.ClientID,
					Type:         typ,
				},
			)
		})

		return call.Perform(
			func() error {
				return tx.runHandler(api.StartState, api.EmptyView(), 0)
			},
			tx.advance,
		)
	})
}

func validateFlowID(id api.FlowID) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFlowID, id)
	}
	return nil
}

func (e *Engine) checkFlowType(typ api.FlowType) error {
	if _, ok := e.registry.Get(typ); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlowType, typ)
	}
	return nil
}

// StartNewFlow starts a flow under a freshly generated ID
func (e *Engine) StartNewFlow(
	typ api.FlowType, apps ...flowopt.Applier,
) (api.FlowID, error) {
	for {
		flowID := api.NewFlowID()
		err := e.StartFlow(flowID, typ, apps...)
		if errors.Is(err, ErrFlowExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return flowID, nil
	}
}
