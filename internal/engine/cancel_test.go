package engine_test

import (
	"testing"

	testify "github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/assert/helpers"
	"github.com/kode4food/quarry/internal/engine"
	"github.com/kode4food/quarry/internal/engine/flowopt"
	"github.com/kode4food/quarry/pkg/api"
)

func TestCancelFlow(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		err := env.Engine.StartFlow("F1", helpers.ParentFlow,
			flowopt.WithArgs(mustJSON(t, helpers.ParentArgs{
				Actions: 1, ChildWaits: true,
			})),
		)
		testify.NoError(t, err)

		env.WaitForFlowStatus(t, "F1:2", api.FlowRunning)
		env.WaitForDispatched(t, "F1", 2)
		env.DeliverAll(t, helpers.Fragment("F1", 1, 0, `{}`))

		testify.NoError(t, env.Engine.CancelFlow("F1", "operator"))

		fl, err := env.Engine.GetFlowState("F1")
		testify.NoError(t, err)
		testify.Equal(t, api.FlowFailed, fl.Status)
		testify.Equal(t, "cancelled: operator", fl.Error)
		for _, id := range []api.RequestID{1, 2} {
			testify.Equal(t, api.RequestCancelled, fl.Requests[id].Status)
		}
		testify.Empty(t, fl.Requests[1].Fragments)

		err = env.Engine.Deliver(helpers.Success("F1", 1, 1))
		testify.ErrorIs(t, err, engine.ErrUnknownFlow)

		child := env.WaitForFlowStatus(t, "F1:2", api.FlowFailed)
		testify.Contains(t, child.Error, "parent F1 failed")
		testify.Equal(t, api.RequestCancelled, child.Requests[1].Status)

		env.WaitForInactive(t, "F1")
		env.WaitForInactive(t, "F1:2")
	})
}

func TestCancelFlowErrors(t *testing.T) {
	helpers.WithStartedEngine(t, func(eng *engine.Engine) {
		err := eng.CancelFlow("missing", "")
		testify.ErrorIs(t, err, engine.ErrFlowNotFound)

		testify.NoError(t, eng.StartFlow("F1", helpers.PlatformFlow))
		testify.NoError(t, eng.CancelFlow("F1", ""))

		fl, err := eng.GetFlowState("F1")
		testify.NoError(t, err)
		testify.Equal(t, "cancelled", fl.Error)

		err = eng.CancelFlow("F1", "again")
		testify.ErrorIs(t, err, engine.ErrFlowTerminal)
	})
}

func TestFailedSentinelKeepsRunning(t *testing.T) {
	helpers.WithStartedEnv(t, func(env *helpers.TestEngineEnv) {
		err := env.Engine.StartFlow("F1", helpers.ParentFlow,
			flowopt.WithArgs(mustJSON(t, helpers.ParentArgs{
				Actions: 1, ChildWaits: true,
			})),
		)
		testify.NoError(t, err)
		env.WaitForDispatched(t, "F1", 2)

		env.DeliverAll(t, helpers.Failure("F1", 1, 0, "denied"))
		fl, err := env.Engine.GetFlowState("F1")
		testify.NoError(t, err)
		testify.Equal(t, api.FlowRunning, fl.Status)

		testify.NoError(t, env.Engine.CancelFlow("F1", "stop"))
		env.WaitForFlowStatus(t, "F1:2", api.FlowFailed)
	})
}
