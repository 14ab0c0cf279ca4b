package helpers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/assert/helpers"
	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/pkg/api"
)

func TestMockTransport(t *testing.T) {
	tr := helpers.NewMockTransport()
	boom := errors.New("boom")
	tr.SetError(helpers.ActionBoom, boom)

	err := tr.Dispatch(context.Background(), &api.ActionRequest{
		FlowID: "F1", RequestID: 1, Action: helpers.ActionNoop,
	})
	assert.NoError(t, err)

	err = tr.Dispatch(context.Background(), &api.ActionRequest{
		FlowID: "F2", RequestID: 1, Action: helpers.ActionBoom,
	})
	assert.ErrorIs(t, err, boom)

	assert.Len(t, tr.Dispatched(), 2)
	assert.Len(t, tr.DispatchedFor("F1"), 1)
	assert.Equal(t, 1, tr.Count(helpers.ActionNoop))
	assert.True(t, tr.WaitForDispatch(helpers.ActionBoom, time.Millisecond))
	assert.False(t, tr.WaitForDispatch(helpers.ActionWait, time.Millisecond))
}

func TestMockTransportWaits(t *testing.T) {
	tr := helpers.NewMockTransport()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = tr.Dispatch(context.Background(), &api.ActionRequest{
			Action: helpers.ActionWait,
		})
	}()
	assert.True(t, tr.WaitForDispatch(helpers.ActionWait, time.Second))
}

func TestMockNotifier(t *testing.T) {
	n := helpers.NewMockNotifier()
	ctx := context.Background()
	assert.NoError(t, n.OnFlowTerminal(ctx, &api.Notification{FlowID: "F1"}))
	assert.NoError(t, n.OnFlowTerminal(ctx, &api.Notification{FlowID: "F2"}))

	assert.Len(t, n.Notifications(), 2)
	assert.Len(t, n.For("F1"), 1)
	assert.Empty(t, n.For("F3"))
}

func TestTestFlowsRegister(t *testing.T) {
	reg, err := flow.NewRegistry(helpers.TestFlows()...)
	assert.NoError(t, err)
	assert.Len(t, reg.Types(), len(helpers.TestFlows()))
}

func TestResponseBuilders(t *testing.T) {
	frag := helpers.Fragment("F1", 1, 0, `{}`)
	assert.False(t, frag.IsSentinel())
	assert.NoError(t, frag.Validate())

	ok := helpers.Success("F1", 1, 1)
	assert.True(t, ok.IsSentinel())
	assert.True(t, ok.Status.Success)
	assert.Equal(t, api.ResponseID(1), ok.ResponseID)

	fail := helpers.Failure("F1", 1, 0, "nope")
	assert.False(t, fail.Status.Success)
	assert.Equal(t, "nope", fail.Status.Message)
}

func TestDecodeState(t *testing.T) {
	data, err := flow.Codec[helpers.EndState]{}.Encode(
		&helpers.EndState{EndRuns: 2},
	)
	assert.NoError(t, err)

	st := helpers.DecodeState[helpers.EndState](t,
		&api.FlowState{StateData: data},
	)
	assert.Equal(t, 2, st.EndRuns)
}
