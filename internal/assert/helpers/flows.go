package helpers

import (
	"time"

	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/pkg/api"
)

type (
	// PlatformArgs configures the platform test flow
	PlatformArgs struct {
		TimeoutMs int  `json:"timeout_ms,omitempty"`
		Escalate  bool `json:"escalate,omitempty"`
	}

	// PlatformState records what the Platform handler observed
	PlatformState struct {
		System       string `json:"system,omitempty"`
		Message      string `json:"message,omitempty"`
		Invocations  int    `json:"invocations"`
		ViewLen      int    `json:"view_len"`
		DecodeErrors int    `json:"decode_errors"`
		Success      bool   `json:"success"`
	}

	// ParentArgs configures the parent test flow
	ParentArgs struct {
		Actions    int  `json:"actions"`
		ChildFails bool `json:"child_fails,omitempty"`
		ChildWaits bool `json:"child_waits,omitempty"`
	}

	// ParentState records the child outcome seen by the parent
	ParentState struct {
		ChildMessage     string        `json:"child_message,omitempty"`
		ChildResults     []string      `json:"child_results,omitempty"`
		ChildRequest     api.RequestID `json:"child_request"`
		Collected        int           `json:"collected"`
		ChildInvocations int           `json:"child_invocations"`
		ChildSuccess     bool          `json:"child_success"`
	}

	// ChildArgs configures the child test flow
	ChildArgs struct {
		Fail bool `json:"fail,omitempty"`
	}

	// ChildResult is the result the child test flow publishes
	ChildResult struct {
		Value string `json:"value"`
	}

	// FailingArgs selects how the failing test flow's handler fails
	FailingArgs struct {
		Abort bool `json:"abort,omitempty"`
	}

	// FailingState is mutated by the failing handler before it fails
	FailingState struct {
		Value string `json:"value"`
	}

	// EndArgs configures the End test flow
	EndArgs struct {
		EndCalls bool `json:"end_calls,omitempty"`
	}

	// EndState counts End invocations
	EndState struct {
		EndRuns int `json:"end_runs"`
	}
)

const (
	PlatformFlow     api.FlowType = "TestPlatform"
	ParentFlow       api.FlowType = "TestParent"
	ChildFlow        api.FlowType = "TestChild"
	WaitingChildFlow api.FlowType = "TestWaitingChild"
	FailingFlow      api.FlowType = "TestFailing"
	EndFlow          api.FlowType = "TestEnd"
)

const (
	ActionGetPlatformInfo api.ActionName = "GetPlatformInfo"
	ActionWait            api.ActionName = "Wait"
	ActionNoop            api.ActionName = "Noop"
	ActionBoom            api.ActionName = "Boom"
)

const (
	StatePlatform  api.StateID = "Platform"
	StateWaited    api.StateID = "Waited"
	StateCollect   api.StateID = "Collect"
	StateChildDone api.StateID = "ChildDone"
	StateExplode   api.StateID = "Explode"
)

// ChildResultValue is the value the child test flow publishes
const ChildResultValue = "R"

// TestFlows returns the flow definitions registered by test engines
func TestFlows() []flow.Flow {
	return []flow.Flow{
		platformFlow(),
		parentFlow(),
		childFlow(),
		waitingChildFlow(),
		failingFlow(),
		endFlow(),
	}
}

func platformFlow() *flow.Definition[PlatformState] {
	return &flow.Definition[PlatformState]{
		Type: PlatformFlow,
		Start: func(
			ctx *flow.Context, _ *api.ResponsesView, _ *PlatformState,
		) error {
			var args PlatformArgs
			if err := ctx.DecodeArgs(&args); err != nil {
				return err
			}
			var opts []flow.CallOption
			if args.TimeoutMs > 0 {
				opts = append(opts, flow.WithTimeout(
					time.Duration(args.TimeoutMs)*time.Millisecond,
				))
			}
			ctx.CallClient(ActionGetPlatformInfo, nil, StatePlatform, opts...)
			return nil
		},
		States: map[api.StateID]flow.Handler[PlatformState]{
			StatePlatform: func(
				ctx *flow.Context, view *api.ResponsesView, st *PlatformState,
			) error {
				st.Invocations++
				st.ViewLen = view.Len()
				st.DecodeErrors = len(view.DecodeErrors())
				st.Success = view.Success()
				st.Message = view.Message()
				if !view.Success() {
					var args PlatformArgs
					if err := ctx.DecodeArgs(&args); err != nil {
						return err
					}
					if args.Escalate {
						return flow.Abort("platform failed: %s", view.Message())
					}
					ctx.CallClient(ActionWait, nil, StateWaited)
					return nil
				}
				info, err := api.DecodeFirst[api.PlatformInfo](view)
				if err != nil {
					return nil
				}
				st.System = info.System
				ctx.SendReply(info)
				return nil
			},
			StateWaited: noop[PlatformState],
		},
	}
}

func parentFlow() *flow.Definition[ParentState] {
	return &flow.Definition[ParentState]{
		Type: ParentFlow,
		Start: func(
			ctx *flow.Context, _ *api.ResponsesView, st *ParentState,
		) error {
			var args ParentArgs
			if err := ctx.DecodeArgs(&args); err != nil {
				return err
			}
			for range args.Actions {
				ctx.CallClient(ActionNoop, nil, StateCollect)
			}
			child := ChildFlow
			if args.ChildWaits {
				child = WaitingChildFlow
			}
			st.ChildRequest = ctx.CallFlow(child,
				ChildArgs{Fail: args.ChildFails}, StateChildDone,
			)
			return nil
		},
		States: map[api.StateID]flow.Handler[ParentState]{
			StateCollect: func(
				_ *flow.Context, _ *api.ResponsesView, st *ParentState,
			) error {
				st.Collected++
				return nil
			},
			StateChildDone: func(
				_ *flow.Context, view *api.ResponsesView, st *ParentState,
			) error {
				st.ChildInvocations++
				st.ChildSuccess = view.Success()
				st.ChildMessage = view.Message()
				results, err := api.DecodeAll[ChildResult](view)
				if err != nil {
					return err
				}
				for _, r := range results {
					st.ChildResults = append(st.ChildResults, r.Value)
				}
				return nil
			},
		},
	}
}

func childFlow() *flow.Definition[struct{}] {
	return &flow.Definition[struct{}]{
		Type: ChildFlow,
		Start: func(
			ctx *flow.Context, _ *api.ResponsesView, _ *struct{},
		) error {
			var args ChildArgs
			if err := ctx.DecodeArgs(&args); err != nil {
				return err
			}
			if args.Fail {
				return flow.Abort("child failed")
			}
			ctx.SendReply(ChildResult{Value: ChildResultValue})
			return nil
		},
	}
}

func waitingChildFlow() *flow.Definition[struct{}] {
	return &flow.Definition[struct{}]{
		Type: WaitingChildFlow,
		Start: func(
			ctx *flow.Context, _ *api.ResponsesView, _ *struct{},
		) error {
			ctx.CallClient(ActionWait, nil, StateWaited)
			return nil
		},
		States: map[api.StateID]flow.Handler[struct{}]{
			StateWaited: noop[struct{}],
		},
	}
}

func failingFlow() *flow.Definition[FailingState] {
	return &flow.Definition[FailingState]{
		Type: FailingFlow,
		Start: func(
			ctx *flow.Context, _ *api.ResponsesView, st *FailingState,
		) error {
			st.Value = "before"
			ctx.CallClient(ActionBoom, nil, StateExplode)
			return nil
		},
		States: map[api.StateID]flow.Handler[FailingState]{
			StateExplode: func(
				ctx *flow.Context, _ *api.ResponsesView, st *FailingState,
			) error {
				var args FailingArgs
				if err := ctx.DecodeArgs(&args); err != nil {
					return err
				}
				st.Value = "after"
				ctx.SendReply(st)
				if args.Abort {
					return flow.Abort("handler aborted")
				}
				panic("boom")
			},
		},
	}
}

func endFlow() *flow.Definition[EndState] {
	return &flow.Definition[EndState]{
		Type: EndFlow,
		Start: func(
			ctx *flow.Context, _ *api.ResponsesView, _ *EndState,
		) error {
			ctx.CallClient(ActionNoop, nil, StateCollect)
			return nil
		},
		States: map[api.StateID]flow.Handler[EndState]{
			StateCollect: noop[EndState],
		},
		End: func(
			ctx *flow.Context, _ *api.ResponsesView, st *EndState,
		) error {
			var args EndArgs
			if err := ctx.DecodeArgs(&args); err != nil {
				return err
			}
			st.EndRuns++
			ctx.Log("end ran %d time(s)", st.EndRuns)
			ctx.SendReply(st)
			if args.EndCalls {
				ctx.CallClient(ActionNoop, nil, StateCollect)
			}
			return nil
		},
	}
}

func noop[S any](*flow.Context, *api.ResponsesView, *S) error {
	return nil
}
