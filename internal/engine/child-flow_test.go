package engine_test

import (
	"testing"

	testify "github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/assert/helpers"
	"github.com/kode4food/quarry/internal/engine/flowopt"
	"github.com/kode4food/quarry/pkg/api"
)

func TestChildFlowAtRequestSeven(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		err := env.Engine.StartFlow("F2", helpers.ParentFlow,
			flowopt.WithClient("C1"),
			flowopt.WithCreator("analyst"),
			flowopt.WithArgs(mustJSON(t, helpers.ParentArgs{Actions: 6})),
		)
		testify.NoError(t, err)

		fl, err := env.Engine.GetFlowState("F2")
		testify.NoError(t, err)
		st := helpers.DecodeState[helpers.ParentState](t, fl)
		testify.Equal(t, api.RequestID(7), st.ChildRequest)

		req := fl.Requests[7]
		if testify.NotNil(t, req) {
			testify.Equal(t, api.RequestChildFlow, req.Kind)
			testify.Equal(t, helpers.ChildFlow, req.FlowType)
			testify.Equal(t, api.FlowID("F2:7"), req.ChildFlowID)
		}

		child := env.WaitForFlowStatus(t, "F2:7", api.FlowSucceeded)
		testify.Equal(t, api.FlowID("F2"), child.ParentFlowID)
		testify.Equal(t, api.RequestID(7), child.ParentRequestID)
		testify.Equal(t, api.ClientID("C1"), child.ClientID)
		testify.Len(t, child.Results, 1)

		fl = env.WaitFor(t, "F2", "child outcome", func(s *api.FlowState) bool {
			return s.Requests[7].Status == api.RequestProcessed
		})
		st = helpers.DecodeState[helpers.ParentState](t, fl)
		testify.Equal(t, 1, st.ChildInvocations)
		testify.Equal(t, []string{helpers.ChildResultValue}, st.ChildResults)
		testify.True(t, st.ChildSuccess)
		testify.Equal(t, api.FlowRunning, fl.Status)

		for id := api.RequestID(1); id <= 6; id++ {
			env.DeliverAll(t, helpers.Success("F2", id, 0))
		}
		fl = env.WaitForFlowStatus(t, "F2", api.FlowSucceeded)
		st = helpers.DecodeState[helpers.ParentState](t, fl)
		testify.Equal(t, 6, st.Collected)
		testify.Equal(t, 1, st.ChildInvocations)

		env.WaitForNotified(t, "F2")
		env.WaitForInactive(t, "F2:7")
		testify.Len(t, env.Notifier.For("F2"), 1)
		testify.Empty(t, env.Notifier.For("F2:7"))
	})
}

func TestChildFlowFailure(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		err := env.Engine.StartFlow("F2", helpers.ParentFlow,
			flowopt.WithArgs(mustJSON(t, helpers.ParentArgs{
				Actions: 1, ChildFails: true,
			})),
		)
		testify.NoError(t, err)

		child := env.WaitForFlowStatus(t, "F2:2", api.FlowFailed)
		testify.Equal(t, "child failed", child.Error)

		fl := env.WaitFor(t, "F2", "child outcome", func(s *api.FlowState) bool {
			return s.Requests[2].Status == api.RequestProcessed
		})
		st := helpers.DecodeState[helpers.ParentState](t, fl)
		testify.False(t, st.ChildSuccess)
		testify.Equal(t, "child failed", st.ChildMessage)
		testify.Empty(t, st.ChildResults)
	})
}

func TestChildFlowUsesRequestPath(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		err := env.Engine.StartFlow("F2", helpers.ParentFlow,
			flowopt.WithArgs(mustJSON(t, helpers.ParentArgs{Actions: 1})),
		)
		testify.NoError(t, err)

		env.WaitFor(t, "F2", "child outcome", func(s *api.FlowState) bool {
			return s.Requests[2].Status == api.RequestProcessed
		})

		err = env.Engine.Deliver(helpers.Fragment("F2", 2, 0, `{"value":"X"}`))
		testify.NoError(t, err)
		err = env.Engine.Deliver(helpers.Success("F2", 2, 1))
		testify.NoError(t, err)

		fl, err := env.Engine.GetFlowState("F2")
		testify.NoError(t, err)
		st := helpers.DecodeState[helpers.ParentState](t, fl)
		testify.Equal(t, 1, st.ChildInvocations)
		testify.Equal(t, []string{helpers.ChildResultValue}, st.ChildResults)
	})
}
