package webui

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alantheprice/yardcheck/pkg/events"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

const (
	// wsReadLimit admits chat frames that carry photos.
	wsReadLimit = 64 << 20
	// wsPongWait is how long a silent client survives without answering a
	// control ping; wsPingPeriod must stay below it.
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsWriteWait  = 10 * time.Second
)

// SafeConn wraps a WebSocket connection with write mutex and panic recovery
type SafeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
	logger  *utils.Logger
}

// NewSafeConn creates a new safe connection wrapper
func NewSafeConn(conn *websocket.Conn, logger *utils.Logger) *SafeConn {
	return &SafeConn{conn: conn, logger: logger}
}

// WriteJSON safely writes JSON to the WebSocket connection. Writes after
// Close are dropped.
func (sc *SafeConn) WriteJSON(v interface{}) (err error) {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()

	if sc.closed {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			sc.logger.Logf("WebSocket write panic recovered: %v", r)
			sc.closed = true
		}
	}()

	return sc.conn.WriteJSON(v)
}

// Close closes the underlying connection
func (sc *SafeConn) Close() error {
	sc.writeMu.Lock()
	sc.closed = true
	sc.writeMu.Unlock()
	return sc.conn.Close()
}

// wsMessage is one client frame. Chat frames carry a chatRequest in Data and
// are answered with the same ID.
type wsMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type wsReply struct {
	Type string      `json:"type"`
	ID   string      `json:"id,omitempty"`
	Data interface{} `json:"data"`
}

// handleWebSocket forwards progress events for the runs the client watches
// and answers chat frames on the same connection.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Logf("WebSocket upgrade error: %v", err)
		return
	}

	sessionID := "ws_" + uuid.NewString()
	logger := ws.logger.WithCorrelationID(sessionID)
	safeConn := NewSafeConn(conn, logger)
	defer safeConn.Close()

	ws.connections.Store(conn, &ConnectionInfo{SessionID: sessionID, ConnectedAt: time.Now()})
	defer ws.connections.Delete(conn)
	logger.Log("WebSocket client connected")

	eventCh := ws.eventBus.Subscribe(sessionID)
	defer ws.eventBus.Unsubscribe(sessionID)

	if err := safeConn.WriteJSON(wsReply{
		Type: "connection_status",
		Data: map[string]interface{}{"connected": true, "session_id": sessionID},
	}); err != nil {
		logger.Logf("WebSocket initial write failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	runs := &runFilter{}
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(ws.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ws.pongWait))
	})

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					logger.Log("WebSocket client stopped answering pings")
				} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Logf("WebSocket read error: %v", err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(ws.pongWait))
			ws.handleWebSocketMessage(ctx, safeConn, logger, runs, msg)
		}
	}()

	ticker := time.NewTicker(ws.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				logger.Logf("WebSocket ping failed: %v", err)
				return
			}
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if !runs.allows(event) {
				continue
			}
			if err := safeConn.WriteJSON(event); err != nil {
				logger.Logf("WebSocket write error: %v", err)
				return
			}
		}
	}
}

// runFilter holds the run ids one connection asked to follow. Events that
// belong to no watched run are not sent.
type runFilter struct {
	mu   sync.Mutex
	runs map[string]struct{}
}

func (f *runFilter) watch(runID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == nil {
		f.runs = make(map[string]struct{})
	}
	f.runs[runID] = struct{}{}
}

func (f *runFilter) allows(event events.UIEvent) bool {
	data, _ := event.Data.(map[string]any)
	runID, _ := data["run_id"].(string)
	if runID == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.runs[runID]
	return ok
}

// handleWebSocketMessage processes one client frame. Chat frames are answered
// asynchronously so progress events keep flowing while the model works.
func (ws *WebServer) handleWebSocketMessage(ctx context.Context, safeConn *SafeConn, logger *utils.Logger, runs *runFilter, msg wsMessage) {
	switch msg.Type {
	case "ping":
		_ = safeConn.WriteJSON(wsReply{Type: "pong", ID: msg.ID, Data: map[string]int64{"timestamp": time.Now().Unix()}})

	case "watch":
		var req struct {
			RunID string `json:"run_id"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			ws.replyError(safeConn, "watch_error", msg.ID, &api.ValidationError{Field: "data", Reason: "invalid JSON: " + err.Error()})
			return
		}
		if _, err := uuid.Parse(req.RunID); err != nil {
			ws.replyError(safeConn, "watch_error", msg.ID, &api.ValidationError{Field: "run_id", Reason: "must be a UUID"})
			return
		}
		runs.watch(req.RunID)
		_ = safeConn.WriteJSON(wsReply{Type: "watching", ID: msg.ID, Data: map[string]string{"run_id": req.RunID}})

	case "chat":
		var req chatRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			ws.replyError(safeConn, "chat_error", msg.ID, &api.ValidationError{Field: "data", Reason: "invalid JSON: " + err.Error()})
			return
		}
		if err := validationError(validate.Struct(&req)); err != nil {
			ws.replyError(safeConn, "chat_error", msg.ID, err)
			return
		}
		go func() {
			resp, err := ws.answer(ctx, req)
			if err != nil {
				logger.Logf("WebSocket chat failed (%s): %v", api.Class(err), err)
				ws.replyError(safeConn, "chat_error", msg.ID, err)
				return
			}
			_ = safeConn.WriteJSON(wsReply{Type: "chat_response", ID: msg.ID, Data: resp})
		}()

	default:
		ws.replyError(safeConn, "chat_error", msg.ID, &api.ValidationError{Field: "type", Reason: "unsupported message type " + msg.Type})
	}
}

func (ws *WebServer) replyError(safeConn *SafeConn, frameType, id string, err error) {
	_ = safeConn.WriteJSON(wsReply{
		Type: frameType,
		ID:   id,
		Data: errorResponse{Error: err.Error(), Class: api.Class(err)},
	})
}
