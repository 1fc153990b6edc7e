package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/errors"
)

func testStreamConfig() *config.StreamConfig {
	return &config.StreamConfig{
		HandshakeTimeout:  2 * time.Second,
		PingInterval:      200 * time.Millisecond,
		ReconnectAttempts: 2,
		ReconnectDelay:    20 * time.Millisecond,
	}
}

func newStreamServer(t *testing.T, handler func(*websocket.Conn, int32)) *config.HubConfig {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/websocket", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		handler(conn, atomic.AddInt32(&conns, 1))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &config.HubConfig{Host: u.Host, Token: testToken}
}

// serveAuth plays the hub's side of the token handshake.
func serveAuth(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth_required"}))

	var auth map[string]string
	require.NoError(t, conn.ReadJSON(&auth))
	assert.Equal(t, "auth", auth["type"])
	assert.Equal(t, testToken, auth["access_token"])
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth_ok"}))
}

// serveHandshake plays the auth exchange plus the state_changed
// subscription.
func serveHandshake(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	serveAuth(t, conn)

	var sub struct {
		ID        int    `json:"id"`
		Type      string `json:"type"`
		EventType string `json:"event_type"`
	}
	require.NoError(t, conn.ReadJSON(&sub))
	assert.Equal(t, "subscribe_events", sub.Type)
	assert.Equal(t, "state_changed", sub.EventType)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"id": sub.ID, "type": "result", "success": true,
	}))
}

func stateEventFrame(entityID, state string) map[string]interface{} {
	return map[string]interface{}{
		"id":   1,
		"type": "event",
		"event": map[string]interface{}{
			"data": map[string]interface{}{
				"entity_id": entityID,
				"new_state": map[string]interface{}{
					"entity_id":    entityID,
					"state":        state,
					"attributes":   map[string]interface{}{},
					"last_updated": "2026-03-01T10:00:00Z",
				},
			},
		},
	}
}

func drainUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		serveHandshake(t, conn)
		require.NoError(t, conn.WriteJSON(stateEventFrame("light.kitchen", "on")))
		// Malformed frames are skipped, not fatal.
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		// Removal events carry a null new_state.
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"type": "event",
			"event": map[string]interface{}{
				"data": map[string]interface{}{
					"entity_id": "light.kitchen",
					"new_state": nil,
				},
			},
		}))
		require.NoError(t, conn.WriteJSON(stateEventFrame("sensor.temp", "21.5")))
		drainUntilClosed(conn)
	})

	stream := NewStream(hubCfg, testStreamConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx) }()

	want := []struct {
		id    string
		state string
		nilSt bool
	}{
		{"light.kitchen", "on", false},
		{"light.kitchen", "", true},
		{"sensor.temp", "21.5", false},
	}
	for _, w := range want {
		select {
		case ev := <-stream.Events():
			assert.Equal(t, w.id, ev.EntityID)
			if w.nilSt {
				assert.Nil(t, ev.NewState)
			} else {
				require.NotNil(t, ev.NewState)
				assert.Equal(t, w.state, ev.NewState.State)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s", w.id)
		}
	}
	assert.True(t, stream.Connected())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop")
	}
	assert.NoError(t, stream.Err())
	assert.False(t, stream.Connected())

	_, open := <-stream.Events()
	assert.False(t, open)
}

func TestStreamReconnects(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, n int32) {
		serveHandshake(t, conn)
		if n == 1 {
			require.NoError(t, conn.WriteJSON(stateEventFrame("sensor.a", "1")))
			return // drop the connection
		}
		require.NoError(t, conn.WriteJSON(stateEventFrame("sensor.b", "2")))
		drainUntilClosed(conn)
	})

	stream := NewStream(hubCfg, testStreamConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx) }()

	for _, wantID := range []string{"sensor.a", "sensor.b"} {
		select {
		case ev := <-stream.Events():
			assert.Equal(t, wantID, ev.EntityID)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for %s", wantID)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestStreamAuthRejected(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth_required"}))
		var auth map[string]string
		require.NoError(t, conn.ReadJSON(&auth))
		require.NoError(t, conn.WriteJSON(map[string]string{
			"type": "auth_invalid", "message": "Invalid access token",
		}))
	})

	stream := NewStream(hubCfg, testStreamConfig(), nil)
	err := stream.Run(context.Background())
	require.Error(t, err)

	clientErr, ok := errors.GetClientError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeAuth, clientErr.Type)
	assert.Contains(t, clientErr.Message, "Invalid access token")
	assert.True(t, errors.IsFatal(err))
	assert.Equal(t, err, stream.Err())
}

func TestStreamReconnectBudgetExhausted(t *testing.T) {
	// Nothing listens on port 1; every dial fails fast.
	hubCfg := &config.HubConfig{Host: "127.0.0.1:1", Token: testToken}
	cfg := testStreamConfig()
	cfg.HandshakeTimeout = 500 * time.Millisecond

	stream := NewStream(hubCfg, cfg, nil)
	err := stream.Run(context.Background())
	require.Error(t, err)

	clientErr, ok := errors.GetClientError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeProtocol, clientErr.Type)
	assert.True(t, errors.IsFatal(err))

	_, open := <-stream.Events()
	assert.False(t, open)
}

func TestStreamCancelBeforeConnect(t *testing.T) {
	hubCfg := &config.HubConfig{Host: "127.0.0.1:1", Token: testToken}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := NewStream(hubCfg, testStreamConfig(), nil)
	err := stream.Run(ctx)
	assert.NoError(t, err)
	assert.NoError(t, stream.Err())
}
