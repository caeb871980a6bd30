package webui

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/yardcheck/pkg/events"
)

type frame struct {
	Type string                 `json:"type"`
	ID   string                 `json:"id"`
	Data map[string]interface{} `json:"data"`
}

func dialTestServer(t *testing.T, bus *events.EventBus) *websocket.Conn {
	t.Helper()
	return dialServer(t, newTestServer(&fakeModel{}, bus))
}

func dialServer(t *testing.T, server *WebServer) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	first := readFrame(t, conn)
	require.Equal(t, "connection_status", first.Type)
	assert.Equal(t, true, first.Data["connected"])
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

// readUntil skips progress events until a frame of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) frame {
	t.Helper()
	for i := 0; i < 20; i++ {
		if f := readFrame(t, conn); f.Type == want {
			return f
		}
	}
	t.Fatalf("no %s frame received", want)
	return frame{}
}

func watch(t *testing.T, conn *websocket.Conn, runID string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "watch", "id": "w", "data": map[string]string{"run_id": runID}}))
	f := readUntil(t, conn, "watching")
	require.Equal(t, runID, f.Data["run_id"])
}

func TestWebSocketForwardsWatchedRunsOnly(t *testing.T) {
	bus := events.NewEventBus()
	conn := dialTestServer(t, bus)
	mine, other := uuid.NewString(), uuid.NewString()
	watch(t, conn, mine)

	bus.Publish(events.EventTypeStageStarted, events.StageStartedEvent(other, "before", -1))
	bus.Publish(events.EventTypeChatAnswered, events.ChatAnsweredEvent("gemma3", ""))
	bus.Publish(events.EventTypeStageStarted, events.StageStartedEvent(mine, "synthesis", -1))

	f := readFrame(t, conn)
	assert.Equal(t, events.EventTypeStageStarted, f.Type)
	assert.Equal(t, "synthesis", f.Data["stage"])
	assert.Equal(t, mine, f.Data["run_id"])
}

func TestWebSocketWatchRejectsBadRunID(t *testing.T) {
	conn := dialTestServer(t, events.NewEventBus())

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "watch", "id": "w1", "data": map[string]string{"run_id": "nope"}}))
	f := readUntil(t, conn, "watch_error")
	assert.Equal(t, "w1", f.ID)
	assert.Equal(t, "validation", f.Data["class"])
}

func TestWebSocketIdleListenerStaysConnected(t *testing.T) {
	bus := events.NewEventBus()
	server := newTestServer(&fakeModel{}, bus)
	server.pongWait = 300 * time.Millisecond
	server.pingPeriod = 100 * time.Millisecond
	conn := dialServer(t, server)
	runID := uuid.NewString()
	watch(t, conn, runID)

	// The client only reads; the default ping handler answers control pings.
	require.NoError(t, conn.SetReadDeadline(time.Time{}))
	frames := make(chan frame, 8)
	go func() {
		defer close(frames)
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	}()

	time.Sleep(4 * server.pongWait)
	assert.Equal(t, 1, bus.SubscriberCount())

	bus.Publish(events.EventTypeAnalysisCompleted, events.AnalysisCompletedEvent(runID, 0, time.Second))
	select {
	case f, ok := <-frames:
		require.True(t, ok, "connection closed while idle")
		assert.Equal(t, events.EventTypeAnalysisCompleted, f.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no event after idling")
	}
}

func TestWebSocketPingPong(t *testing.T) {
	conn := dialTestServer(t, events.NewEventBus())

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping", "id": "p1"}))
	f := readUntil(t, conn, "pong")
	assert.Equal(t, "p1", f.ID)
}

func TestWebSocketChat(t *testing.T) {
	conn := dialTestServer(t, events.NewEventBus())

	data, err := json.Marshal(map[string]interface{}{
		"user_question":        "Is the lawn healthy?",
		"before_analysis_text": "Overgrown lawn.",
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "chat", "id": "c1", "data": json.RawMessage(data)}))

	f := readUntil(t, conn, "chat_response")
	assert.Equal(t, "c1", f.ID)
	assert.Equal(t, "text answer", f.Data["response"])
	assert.Equal(t, textModel.ID, f.Data["model"])
}

func TestWebSocketChatErrors(t *testing.T) {
	conn := dialTestServer(t, events.NewEventBus())

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "chat", "id": "c2", "data": map[string]string{"question": " "}}))
	f := readUntil(t, conn, "chat_error")
	assert.Equal(t, "c2", f.ID)
	assert.Equal(t, "validation", f.Data["class"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance", "id": "x"}))
	f = readUntil(t, conn, "chat_error")
	assert.Contains(t, f.Data["error"], "unsupported message type")
}
