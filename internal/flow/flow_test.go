package flow_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/pkg/api"
)

type counterState struct {
	Seen  []string `json:"seen,omitempty"`
	Count int      `json:"count"`
}

func newCounter() *flow.Definition[counterState] {
	return &flow.Definition[counterState]{
		Type:    "Counter",
		Version: 1,
		Start: func(
			ctx *flow.Context, _ *api.ResponsesView, st *counterState,
		) error {
			ctx.CallClient("Ping", map[string]int{"n": 1}, "Pong")
			ctx.CallClient("Ping", nil, "Pong",
				flow.WithTimeout(time.Second),
			)
			st.Count = 1
			return nil
		},
		States: map[api.StateID]flow.Handler[counterState]{
			"Pong": func(
				ctx *flow.Context, view *api.ResponsesView, st *counterState,
			) error {
				if !view.Success() {
					return flow.Abort("ping failed: %s", view.Message())
				}
				st.Count++
				st.Seen = append(st.Seen, string(ctx.State()))
				return nil
			},
		},
		End: func(
			ctx *flow.Context, _ *api.ResponsesView, st *counterState,
		) error {
			ctx.SendReply(st)
			ctx.Log("done after %d", st.Count)
			return nil
		},
	}
}

func TestRunStart(t *testing.T) {
	def := newCounter()
	reg, err := flow.NewRegistry(def)
	assert.NoError(t, err)

	ctx := newContext(def, reg, api.StartState, 5)
	data, err := def.Run(ctx, api.StartState, api.EmptyView(), nil)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"data":{"count":1}}`, string(data))

	reqs := ctx.Requests()
	assert.Len(t, reqs, 2)
	assert.Equal(t, api.RequestID(5), reqs[0].ID)
	assert.Equal(t, api.RequestID(6), reqs[1].ID)
	assert.Equal(t, api.RequestAction, reqs[0].Kind)
	assert.JSONEq(t, `{"n":1}`, string(reqs[0].Args))
	assert.Nil(t, reqs[1].Args)
	assert.Equal(t, time.Second, reqs[1].Timeout)
}

func TestRunStateRoundTrip(t *testing.T) {
	def := newCounter()
	reg, _ := flow.NewRegistry(def)

	data := json.RawMessage(`{"version":1,"data":{"count":1}}`)
	view := api.Collate(5, nil, api.Status{Success: true})

	ctx := newContext(def, reg, "Pong", 7)
	res, err := def.Run(ctx, "Pong", view, data)
	assert.NoError(t, err)
	assert.JSONEq(t,
		`{"version":1,"data":{"count":2,"seen":["Pong"]}}`, string(res),
	)
}

func TestRunAbort(t *testing.T) {
	def := newCounter()
	reg, _ := flow.NewRegistry(def)

	view := api.Collate(5, nil, api.Status{Message: "offline"})
	ctx := newContext(def, reg, "Pong", 7)
	res, err := def.Run(ctx, "Pong", view, nil)
	assert.Nil(t, res)
	assert.True(t, flow.IsFlowError(err))
	assert.EqualError(t, err, "ping failed: offline")
}

func TestRunEnd(t *testing.T) {
	def := newCounter()
	reg, _ := flow.NewRegistry(def)

	ctx := newContext(def, reg, api.EndState, 3)
	_, err := def.Run(ctx, api.EndState, api.EmptyView(),
		json.RawMessage(`{"version":1,"data":{"count":3}}`),
	)
	assert.NoError(t, err)
	assert.Len(t, ctx.Replies(), 1)
	assert.JSONEq(t, `{"count":3}`, string(ctx.Replies()[0]))
	assert.Equal(t, []string{"done after 3"}, ctx.Logs())
}

func TestRunUnknownState(t *testing.T) {
	def := newCounter()
	reg, _ := flow.NewRegistry(def)

	ctx := newContext(def, reg, "Missing", 1)
	_, err := def.Run(ctx, "Missing", api.EmptyView(), nil)
	assert.ErrorIs(t, err, flow.ErrUnknownState)
}

func TestCallUnknownNextState(t *testing.T) {
	def := newCounter()
	def.Start = func(
		ctx *flow.Context, _ *api.ResponsesView, _ *counterState,
	) error {
		id := ctx.CallClient("Ping", nil, "Nowhere")
		assert.Equal(t, api.RequestID(0), id)
		return nil
	}
	reg, _ := flow.NewRegistry(def)

	ctx := newContext(def, reg, api.StartState, 1)
	_, err := def.Run(ctx, api.StartState, api.EmptyView(), nil)
	assert.ErrorIs(t, err, flow.ErrUnknownState)
	assert.Empty(t, ctx.Requests())
}

func TestCallFlowUnknownType(t *testing.T) {
	def := newCounter()
	def.Start = func(
		ctx *flow.Context, _ *api.ResponsesView, _ *counterState,
	) error {
		ctx.CallFlow("Missing", nil, "Pong")
		return nil
	}
	reg, _ := flow.NewRegistry(def)

	ctx := newContext(def, reg, api.StartState, 1)
	_, err := def.Run(ctx, api.StartState, api.EmptyView(), nil)
	assert.ErrorIs(t, err, flow.ErrUnknownFlowType)
}

func TestCallFlow(t *testing.T) {
	def := newCounter()
	def.Start = func(
		ctx *flow.Context, _ *api.ResponsesView, _ *counterState,
	) error {
		ctx.CallFlow("Counter", map[string]bool{"child": true}, "Pong")
		ctx.Inc("children")
		return nil
	}
	reg, _ := flow.NewRegistry(def)

	ctx := newContext(def, reg, api.StartState, 7)
	_, err := def.Run(ctx, api.StartState, api.EmptyView(), nil)
	assert.NoError(t, err)
	assert.Equal(t, api.RequestChildFlow, ctx.Requests()[0].Kind)
	assert.Equal(t, api.FlowType("Counter"), ctx.Requests()[0].FlowType)
	assert.Equal(t, api.RequestID(7), ctx.Requests()[0].ID)
	assert.Equal(t, []string{"children"}, ctx.Counters())
}

func TestContextAccessors(t *testing.T) {
	def := newCounter()
	reg, _ := flow.NewRegistry(def)
	now := time.Now()

	ctx := flow.NewContext(flow.Info{
		FlowID:   "F1",
		ClientID: "C.1",
		Type:     "Counter",
		Creator:  "analyst",
		Args:     json.RawMessage(`{"lightweight":true}`),
	}, def, reg, api.StartState, 1, now)

	var args struct {
		Lightweight bool `json:"lightweight"`
	}
	assert.NoError(t, ctx.DecodeArgs(&args))
	assert.True(t, args.Lightweight)
	assert.Equal(t, api.FlowID("F1"), ctx.FlowID())
	assert.Equal(t, api.ClientID("C.1"), ctx.ClientID())
	assert.Equal(t, api.FlowType("Counter"), ctx.Type())
	assert.Equal(t, "analyst", ctx.Creator())
	assert.Equal(t, now, ctx.Now())
}

func TestHandlerErrorPassesThrough(t *testing.T) {
	boom := errors.New("boom")
	def := newCounter()
	def.Start = func(
		*flow.Context, *api.ResponsesView, *counterState,
	) error {
		return boom
	}
	reg, _ := flow.NewRegistry(def)

	_, err := def.Run(
		newContext(def, reg, api.StartState, 1),
		api.StartState, api.EmptyView(), nil,
	)
	assert.ErrorIs(t, err, boom)
	assert.False(t, flow.IsFlowError(err))
}

func newContext(
	fl flow.Flow, reg *flow.Registry, state api.StateID, next api.RequestID,
) *flow.Context {
	return flow.NewContext(flow.Info{
		FlowID: "F1",
		Type:   fl.FlowType(),
	}, fl, reg, state, next, time.Now())
}
