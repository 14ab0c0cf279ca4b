package engine

import (
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/util"
)

// StateTransitions maps states to their set of valid next states
type StateTransitions[T comparable] map[T]util.Set[T]

var (
	flowTransitions = StateTransitions[api.FlowStatus]{
		api.FlowRunning: util.SetOf(
			api.FlowSucceeded,
			api.FlowFailed,
		),
		api.FlowSucceeded: {},
		api.FlowFailed:    {},
	}

	requestTransitions = StateTransitions[api.RequestStatus]{
		api.RequestOutstanding: util.SetOf(
			api.RequestProcessed,
			api.RequestCancelled,
		),
		api.RequestProcessed: {},
		api.RequestCancelled: {},
	}
)

// CanTransition returns whether transition from one state to another is valid
func (t StateTransitions[T]) CanTransition(from, to T) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}

// IsTerminal returns true if the state has no valid transitions
func (t StateTransitions[T]) IsTerminal(state T) bool {
	allowed, ok := t[state]
	return ok && allowed.IsEmpty()
}
