package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

// RecoverFlows resumes every flow in the active index. Deadlines are
// rescheduled, requests that were never dispatched are queued again, and
// flows that became terminal without being finalized are finalized
func (e *Engine) RecoverFlows() error {
	ids, err := e.ListActiveFlows()
	if err != nil {
		return fmt.Errorf("failed to get index state: %w", err)
	}

	if len(ids) == 0 {
		slog.Info("No flows to recover")
		return nil
	}

	slog.Info("Recovering flows",
		slog.Int("count", len(ids)))

	for _, flowID := range ids {
		if err := e.RecoverFlow(flowID); err != nil {
			slog.Error("Failed to recover flow",
				log.FlowID(flowID),
				log.Error(err))
		}
	}
	return nil
}

// RecoverFlow resumes a single flow
func (e *Engine) RecoverFlow(flowID api.FlowID) error {
	st, err := e.GetFlowState(flowID)
	if errors.Is(err, ErrFlowNotFound) {
		e.deactivateFlow(flowID, "")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get flow state: %w", err)
	}

	if flowTransitions.IsTerminal(st.Status) {
		e.enqueueWork(&workItem{
			kind:   workFinalize,
			flowID: flowID,
		})
		return nil
	}

	outstanding := st.Outstanding()
	slog.Info("Recovering flow",
		log.FlowID(flowID),
		log.FlowType(st.Type),
		slog.Int("outstanding", len(outstanding)))

	for _, reqID := range outstanding {
		req := st.Requests[reqID]
		e.scheduleTimeout(flowID, reqID, req.Deadline)
		if req.Dispatched {
			continue
		}
		e.enqueueWork(&workItem{
			kind:      workDispatch,
			flowID:    flowID,
			requestID: reqID,
		})
	}
	return nil
}
