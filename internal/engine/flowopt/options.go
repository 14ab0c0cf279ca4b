package flowopt

import (
	"encoding/json"

	"github.com/kode4food/quarry/pkg/api"
)

type (
	// Options contains optional parameters for starting a flow
	Options struct {
		Args            json.RawMessage
		ClientID        api.ClientID
		Creator         string
		ParentFlowID    api.FlowID
		ParentRequestID api.RequestID
	}

	// Applier mutates Options during StartFlow setup
	Applier func(*Options)
)

// DefaultOptions returns an Options instance with defaults applied
func DefaultOptions(apps ...Applier) *Options {
	opt := &Options{}
	ApplyOptions(opt, apps...)
	return opt
}

// ApplyOptions applies option appliers in order
func ApplyOptions(opt *Options, apps ...Applier) {
	for _, app := range apps {
		app(opt)
	}
}

// WithArgs sets the flow's start arguments
func WithArgs(args json.RawMessage) Applier {
	return func(opt *Options) {
		opt.Args = args
	}
}

// WithClient sets the client the flow's actions are sent to
func WithClient(id api.ClientID) Applier {
	return func(opt *Options) {
		opt.ClientID = id
	}
}

// WithCreator sets the user notified once the flow is terminal
func WithCreator(creator string) Applier {
	return func(opt *Options) {
		opt.Creator = creator
	}
}

// WithParent links the flow to the parent request awaiting its outcome
func WithParent(flowID api.FlowID, reqID api.RequestID) Applier {
	return func(opt *Options) {
		opt.ParentFlowID = flowID
		opt.ParentRequestID = reqID
	}
}

// IsChild returns true if the options link the flow to a parent
func (o *Options) IsChild() bool {
	return o.ParentFlowID != ""
}
