package server_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/kode4food/quarry/pkg/api"
)

const wsReadTimeout = 2 * time.Second

func dialSocket(t *testing.T, env *testServerEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.Router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/engine/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, sub api.Subscription) {
	t.Helper()
	assert.NoError(t, conn.WriteJSON(api.SubscribeRequest{
		Type: "subscribe",
		Data: sub,
	}))

	var ack api.SubscribeRequest
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	assert.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "subscribed", ack.Type)
}

func TestSocketSilentUntilSubscribed(t *testing.T) {
	env := defaultServer(t)
	defer env.Cleanup()
	conn := dialSocket(t, env)

	assert.NoError(t, env.Hub.OnFlowTerminal(t.Context(), &api.Notification{
		FlowID: "F1",
		Kind:   api.NotifyFlowCompleted,
	}))

	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestSocketStreamsMatchingNotifications(t *testing.T) {
	env := defaultServer(t)
	defer env.Cleanup()
	conn := dialSocket(t, env)

	subscribe(t, conn, api.Subscription{
		ClientIDs: []api.ClientID{"C.1"},
	})

	for _, n := range []*api.Notification{
		{FlowID: "F1", ClientID: "C.2", Kind: api.NotifyFlowCompleted},
		{FlowID: "F2", ClientID: "C.1", Kind: api.NotifyClientInterrogated},
	} {
		assert.NoError(t, env.Hub.OnFlowTerminal(t.Context(), n))
	}

	var got api.Notification
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	assert.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, api.FlowID("F2"), got.FlowID)
	assert.Equal(t, api.NotifyClientInterrogated, got.Kind)
}

func TestSocketIgnoresGarbage(t *testing.T) {
	env := defaultServer(t)
	defer env.Cleanup()
	conn := dialSocket(t, env)

	assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.NoError(t, conn.WriteJSON(map[string]string{"type": "other"}))
	subscribe(t, conn, api.Subscription{})

	assert.NoError(t, env.Hub.OnFlowTerminal(t.Context(), &api.Notification{
		FlowID: "F9",
	}))

	var got api.Notification
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	assert.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, api.FlowID("F9"), got.FlowID)
}

func TestCloseWebSockets(t *testing.T) {
	env := defaultServer(t)
	defer env.Cleanup()
	conn := dialSocket(t, env)
	subscribe(t, conn, api.Subscription{})

	env.Server.CloseWebSockets()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
