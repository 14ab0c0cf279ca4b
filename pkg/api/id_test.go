package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/pkg/api"
)

func TestNewFlowID(t *testing.T) {
	a := api.NewFlowID()
	b := api.NewFlowID()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, api.SanitizeID(a))
	assert.False(t, a.IsChild())
}

func TestChildFlowID(t *testing.T) {
	child := api.ChildFlowID("F2", 7)
	assert.Equal(t, api.FlowID("F2:7"), child)
	assert.True(t, child.IsChild())
	assert.Equal(t, api.FlowID("F2"), child.Root())

	grandchild := api.ChildFlowID(child, 3)
	assert.Equal(t, api.FlowID("F2:7:3"), grandchild)
	assert.Equal(t, api.FlowID("F2"), grandchild.Root())
}

func TestSanitizeID(t *testing.T) {
	assert.Equal(t, api.ClientID("C.1234abcd"),
		api.SanitizeID(api.ClientID("  C.1234abcd ")))
	assert.Equal(t, api.FlowID("F1x"), api.SanitizeID(api.FlowID("F1:x")))
	assert.Equal(t, api.FlowID(""), api.SanitizeID(api.FlowID("::")))
}

func TestFlowIDValid(t *testing.T) {
	assert.True(t, api.FlowID("F1").Valid())
	assert.True(t, api.FlowID("F2:7").Valid())
	assert.True(t, api.FlowID("F2:7:3").Valid())
	assert.False(t, api.FlowID("").Valid())
	assert.False(t, api.FlowID("F2:").Valid())
	assert.False(t, api.FlowID("F 1").Valid())
	assert.False(t, api.FlowID("F1/../x").Valid())
}
