package engine

import (
	"errors"
	"log/slog"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

// CancelFlow forces a running flow to ERROR. Its outstanding requests
// become inert, so responses arriving for them later are dropped, and its
// running child flows are cancelled as well
func (e *Engine) CancelFlow(flowID api.FlowID, reason string) error {
	return e.flowTx(flowID, func(tx *flowTx) error {
		st := tx.Value()
		if !st.Exists() {
			return ErrFlowNotFound
		}
		if flowTransitions.IsTerminal(st.Status) {
			return ErrFlowTerminal
		}
		slog.Info("Cancelling flow",
			log.FlowID(flowID),
			slog.String("reason", reason))
		return tx.cancelFlow(reason)
	})
}

func (e *Engine) cancelChild(childID api.FlowID, reason string) error {
	err := e.CancelFlow(childID, reason)
	if errors.Is(err, ErrFlowNotFound) || errors.Is(err, ErrFlowTerminal) {
		return nil
	}
	return err
}
