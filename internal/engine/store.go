package engine

import (
	"maps"
	"slices"

	"github.com/kode4food/timebox"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/events"
)

// flowTx is one flow transaction. Events raised through the aggregator are
// applied to its value immediately and committed together
type flowTx struct {
	*Engine
	*FlowAggregator
	flowID api.FlowID
}

// GetFlowState retrieves the current state of a flow
func (e *Engine) GetFlowState(flowID api.FlowID) (*api.FlowState, error) {
	state, _, err := e.GetFlowStateSeq(flowID)
	return state, err
}

// GetFlowStateSeq retrieves the current state of a flow and the sequence
// its next event will receive
func (e *Engine) GetFlowStateSeq(
	flowID api.FlowID,
) (*api.FlowState, int64, error) {
	var nextSeq int64
	state, err := e.execFlow(events.FlowKey(flowID),
		func(_ *api.FlowState, ag *FlowAggregator) error {
			nextSeq = ag.NextSequence()
			return nil
		},
	)
	if err != nil {
		return nil, 0, err
	}
	if !state.Exists() {
		return nil, 0, ErrFlowNotFound
	}
	return state, nextSeq, nil
}

// GetIndexState retrieves the index of flows that are not yet finalized
func (e *Engine) GetIndexState() (*api.IndexState, error) {
	return e.execIndex(func(*api.IndexState, *IndexAggregator) error {
		return nil
	})
}

// ListActiveFlows returns the IDs of every unfinalized flow, sorted
func (e *Engine) ListActiveFlows() ([]api.FlowID, error) {
	idx, err := e.GetIndexState()
	if err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(idx.Active)), nil
}

func (e *Engine) flowTx(flowID api.FlowID, fn func(*flowTx) error) error {
	defer e.locks.lock(flowID)()

	_, err := e.execFlow(events.FlowKey(flowID),
		func(_ *api.FlowState, ag *FlowAggregator) error {
			tx := &flowTx{
				Engine:         e,
				FlowAggregator: ag,
				flowID:         flowID,
			}
			return fn(tx)
		},
	)
	return err
}

func (e *Engine) execFlow(
	id timebox.AggregateID, cmd timebox.Command[*api.FlowState],
) (*api.FlowState, error) {
	return e.flowExec.Exec(e.ctx, id, cmd)
}

func (e *Engine) execIndex(
	cmd timebox.Command[*api.IndexState],
) (*api.IndexState, error) {
	return e.indexExec.Exec(e.ctx, events.IndexKey, cmd)
}
