package flow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/internal/flow"
	"github.com/kode4food/quarry/pkg/api"
)

func TestRegistry(t *testing.T) {
	reg, err := flow.NewRegistry(newCounter())
	assert.NoError(t, err)

	f, ok := reg.Get("Counter")
	assert.True(t, ok)
	assert.Equal(t, api.FlowType("Counter"), f.FlowType())
	assert.True(t, f.HasState("Pong"))
	assert.False(t, f.HasState(api.StartState))

	_, ok = reg.Get("Missing")
	assert.False(t, ok)

	err = reg.Register(newCounter())
	assert.ErrorIs(t, err, flow.ErrFlowTypeExists)
	assert.Equal(t, []api.FlowType{"Counter"}, reg.Types())
}

func TestRegisterInvalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*flow.Definition[counterState])
	}{
		{
			name:   "missing_type",
			modify: func(d *flow.Definition[counterState]) { d.Type = "" },
		},
		{
			name:   "missing_start",
			modify: func(d *flow.Definition[counterState]) { d.Start = nil },
		},
		{
			name: "nil_handler",
			modify: func(d *flow.Definition[counterState]) {
				d.States["Pong"] = nil
			},
		},
		{
			name: "reserved_state",
			modify: func(d *flow.Definition[counterState]) {
				d.States[api.EndState] = d.Start
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := newCounter()
			tt.modify(def)
			_, err := flow.NewRegistry(def)
			assert.ErrorIs(t, err, flow.ErrInvalidDefinition)
		})
	}
}
