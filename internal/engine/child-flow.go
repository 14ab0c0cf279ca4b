package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kode4food/quarry/internal/engine/flowopt"
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

// startChildFlow starts the child flow a request is addressed to. Starting
// is idempotent, since the child's ID is derived from the parent request
func (e *Engine) startChildFlow(
	parent *api.FlowState, req *api.RequestState,
) error {
	err := e.StartFlow(req.ChildFlowID, req.FlowType,
		flowopt.WithArgs(req.Args),
		flowopt.WithClient(parent.ClientID),
		flowopt.WithCreator(parent.Creator),
		flowopt.WithParent(parent.ID, req.ID),
	)
	if err != nil && !errors.Is(err, ErrFlowExists) {
		return err
	}
	return nil
}

// deliverToParent reports a terminal child to the parent request awaiting
// it. The child's results become the request's responses, in publication
// order, followed by a sentinel mirroring the child's final status
func (e *Engine) deliverToParent(child *api.FlowState) error {
	parentID, reqID := child.ParentFlowID, child.ParentRequestID
	resps := make([]*api.Response, 0, len(child.Results)+1)
	for i, r := range child.Results {
		resps = append(resps, &api.Response{
			FlowID:     parentID,
			RequestID:  reqID,
			ResponseID: api.ResponseID(i),
			Payload:    r.Payload,
		})
	}
	resps = append(resps, api.NewSentinel(parentID, reqID,
		api.ResponseID(len(child.Results)),
		api.Status{
			Success: child.Status == api.FlowSucceeded,
			Message: child.Error,
		},
	))

	for _, resp := range resps {
		if err := e.Deliver(resp); err != nil {
			if errors.Is(err, ErrUnknownFlow) {
				slog.Debug("Parent flow no longer running",
					log.FlowID(child.ID),
					slog.String("parent_flow_id", string(parentID)))
				return nil
			}
			return fmt.Errorf("deliver to parent %s: %w", parentID, err)
		}
	}
	return nil
}
