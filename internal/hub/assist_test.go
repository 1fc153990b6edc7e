package hub

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/errors"
)

func testAssistConfig() *config.AssistConfig {
	return &config.AssistConfig{Timeout: 3 * time.Second}
}

func TestAssistConverse(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		serveAuth(t, conn)

		var run map[string]interface{}
		require.NoError(t, conn.ReadJSON(&run))
		assert.Equal(t, "assist_pipeline/run", run["type"])
		assert.Equal(t, "intent", run["start_stage"])
		assert.Equal(t, "intent", run["end_stage"])
		input, _ := run["input"].(map[string]interface{})
		assert.Equal(t, "turn on the kitchen light", input["text"])
		assert.NotContains(t, run, "pipeline")
		assert.NotContains(t, run, "conversation_id")

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "result", "success": true,
		}))
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "event",
			"event": map[string]interface{}{"type": "run-start", "data": map[string]interface{}{}},
		}))
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "event",
			"event": map[string]interface{}{
				"type": "intent-end",
				"data": map[string]interface{}{
					"intent_output": map[string]interface{}{
						"conversation_id": "conv-42",
						"response": map[string]interface{}{
							"speech": map[string]interface{}{
								"plain": map[string]interface{}{"speech": "Turned on the light"},
							},
						},
					},
				},
			},
		}))
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "event",
			"event": map[string]interface{}{"type": "run-end", "data": map[string]interface{}{}},
		}))
	})

	assist := NewAssist(hubCfg, testAssistConfig(), nil)
	reply, err := assist.Converse(context.Background(), "turn on the kitchen light", "")
	require.NoError(t, err)
	assert.Equal(t, "Turned on the light", reply.Speech)
	assert.Equal(t, "conv-42", reply.ConversationID)
}

func TestAssistConverseContinuesConversation(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		serveAuth(t, conn)

		var run map[string]interface{}
		require.NoError(t, conn.ReadJSON(&run))
		assert.Equal(t, "conv-42", run["conversation_id"])

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "event",
			"event": map[string]interface{}{"type": "run-end", "data": map[string]interface{}{}},
		}))
	})

	assist := NewAssist(hubCfg, testAssistConfig(), nil)
	reply, err := assist.Converse(context.Background(), "and the bedroom too", "conv-42")
	require.NoError(t, err)
	assert.Equal(t, "conv-42", reply.ConversationID)
}

func TestAssistConverseNamedPipeline(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		serveAuth(t, conn)

		var run map[string]interface{}
		require.NoError(t, conn.ReadJSON(&run))
		assert.Equal(t, "pipe-2", run["pipeline"])

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "event",
			"event": map[string]interface{}{"type": "run-end", "data": map[string]interface{}{}},
		}))
	})

	cfg := testAssistConfig()
	cfg.Pipeline = "pipe-2"
	assist := NewAssist(hubCfg, cfg, nil)
	reply, err := assist.Converse(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Empty(t, reply.Speech)
}

func TestAssistConverseError(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		serveAuth(t, conn)

		var run map[string]interface{}
		require.NoError(t, conn.ReadJSON(&run))
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "event",
			"event": map[string]interface{}{
				"type": "error",
				"data": map[string]interface{}{
					"code":    "intent-not-supported",
					"message": "Sorry, I couldn't understand that",
				},
			},
		}))
	})

	assist := NewAssist(hubCfg, testAssistConfig(), nil)
	_, err := assist.Converse(context.Background(), "gibberish", "")
	require.Error(t, err)

	clientErr, ok := errors.GetClientError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeProtocol, clientErr.Type)
	assert.Contains(t, clientErr.Message, "couldn't understand")
}

func TestAssistConverseRefused(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		serveAuth(t, conn)

		var run map[string]interface{}
		require.NoError(t, conn.ReadJSON(&run))
		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "result", "success": false,
			"error": map[string]interface{}{
				"code": "unknown_pipeline", "message": "Pipeline not found",
			},
		}))
	})

	cfg := testAssistConfig()
	cfg.Pipeline = "missing"
	assist := NewAssist(hubCfg, cfg, nil)
	_, err := assist.Converse(context.Background(), "hello", "")
	require.Error(t, err)

	clientErr, ok := errors.GetClientError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeProtocol, clientErr.Type)
	assert.Equal(t, "Pipeline not found", clientErr.Message)
}

func TestAssistPipelines(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		serveAuth(t, conn)

		var req map[string]interface{}
		require.NoError(t, conn.ReadJSON(&req))
		assert.Equal(t, "assist_pipeline/pipeline/list", req["type"])

		require.NoError(t, conn.WriteJSON(map[string]interface{}{
			"id": 1, "type": "result", "success": true,
			"result": map[string]interface{}{
				"pipelines": []map[string]interface{}{
					{"id": "pipe-1", "name": "Home Assistant", "language": "en"},
					{"id": "pipe-2", "name": "Local", "language": "en"},
				},
				"preferred_pipeline": "pipe-1",
			},
		}))
	})

	assist := NewAssist(hubCfg, testAssistConfig(), nil)
	pipelines, err := assist.Pipelines(context.Background())
	require.NoError(t, err)

	require.Len(t, pipelines, 2)
	assert.Equal(t, "Home Assistant", pipelines[0].Name)
	assert.True(t, pipelines[0].Preferred)
	assert.False(t, pipelines[1].Preferred)
}

func TestAssistAuthRejected(t *testing.T) {
	hubCfg := newStreamServer(t, func(conn *websocket.Conn, _ int32) {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth_required"}))
		var auth map[string]string
		require.NoError(t, conn.ReadJSON(&auth))
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth_invalid"}))
	})

	assist := NewAssist(hubCfg, testAssistConfig(), nil)
	_, err := assist.Converse(context.Background(), "hello", "")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
