package flow

import (
	"encoding/json"
	"fmt"

	"github.com/kode4food/quarry/pkg/api"
)

type (
	// Handler processes the responses of one completed request against the
	// flow's state. Returning an error aborts the flow
	Handler[S any] func(*Context, *api.ResponsesView, *S) error

	// Definition declares a flow type: its entry handler, the handlers its
	// requests may complete into, and an optional final handler
	Definition[S any] struct {
		States  map[api.StateID]Handler[S]
		Start   Handler[S]
		End     Handler[S]
		Migrate Migration[S]
		Type    api.FlowType
		Notify  api.NotificationKind
		Version int
	}

	// Flow is a type-erased flow definition as seen by the engine
	Flow interface {
		FlowType() api.FlowType
		SuccessKind() api.NotificationKind
		HasState(api.StateID) bool
		Validate() error
		Run(
			ctx *Context, state api.StateID, view *api.ResponsesView,
			data json.RawMessage,
		) (json.RawMessage, error)
	}
)

// FlowType returns the type the definition registers
func (d *Definition[S]) FlowType() api.FlowType {
	return d.Type
}

// SuccessKind returns the notification kind published when a flow of this
// type succeeds
func (d *Definition[S]) SuccessKind() api.NotificationKind {
	if d.Notify != "" {
		return d.Notify
	}
	return api.NotifyFlowCompleted
}

// HasState returns true if a request may complete into the state
func (d *Definition[S]) HasState(state api.StateID) bool {
	_, ok := d.States[state]
	return ok
}

// Validate checks the definition is complete
func (d *Definition[S]) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidDefinition)
	}
	if d.Start == nil {
		return fmt.Errorf("%w: %s has no %s handler",
			ErrInvalidDefinition, d.Type, api.StartState)
	}
	for state, h := range d.States {
		if state == api.StartState || state == api.EndState {
			return fmt.Errorf("%w: %s redefines %s",
				ErrInvalidDefinition, d.Type, state)
		}
		if h == nil {
			return fmt.Errorf("%w: %s has nil handler for %s",
				ErrInvalidDefinition, d.Type, state)
		}
	}
	return nil
}

// Run decodes the flow's state, invokes the handler bound to the state,
// and returns the re-encoded state. On error the input state is untouched
func (d *Definition[S]) Run(
	ctx *Context, state api.StateID, view *api.ResponsesView,
	data json.RawMessage,
) (json.RawMessage, error) {
	h, err := d.handler(state)
	if err != nil {
		return nil, err
	}

	codec := Codec[S]{Version: d.Version, Migrate: d.Migrate}
	st, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}
	if h != nil {
		if err := h(ctx, view, st); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return codec.Encode(st)
}

func (d *Definition[S]) handler(state api.StateID) (Handler[S], error) {
	switch state {
	case api.StartState:
		return d.Start, nil
	case api.EndState:
		return d.End, nil
	}
	if h, ok := d.States[state]; ok {
		return h, nil
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownState, d.Type, state)
}
