package log_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

func TestAttrs(t *testing.T) {
	assertAttrEqual(t, log.FlowID(api.FlowID("F1")), "flow_id", "F1")
	assertAttrEqual(t, log.ClientID(api.ClientID("C1")), "client_id", "C1")
	assertAttrEqual(t, log.FlowType(api.FlowType("Interrogate")),
		"flow_type", "Interrogate")
	assertAttrEqual(t, log.State(api.StateID("Platform")), "state", "Platform")
	assertAttrEqual(t, log.Action(api.ActionName("GetPlatformInfo")),
		"action", "GetPlatformInfo")
	assertAttrEqual(t, log.Status(api.FlowSucceeded), "status", "success")
	assertAttrEqual(t, log.RequestID(api.RequestID(7)), "request_id", "7")
}

func TestError(t *testing.T) {
	assertAttrEqual(t, log.Error(nil), "error", "")
	assertAttrEqual(t, log.Error(errors.New("boom")), "error", "boom")
	assertAttrEqual(t, log.ErrorString("badness"), "error", "badness")
}

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
