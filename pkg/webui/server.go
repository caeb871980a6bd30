// Package webui serves the inspection API, the progress websocket and the
// embedded browser UI.
package webui

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alantheprice/yardcheck/pkg/chat"
	"github.com/alantheprice/yardcheck/pkg/events"
	"github.com/alantheprice/yardcheck/pkg/pipeline"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

//go:embed static/*
var staticFiles embed.FS

const shutdownTimeout = 5 * time.Second

// ConnectionInfo stores metadata about a WebSocket connection
type ConnectionInfo struct {
	SessionID   string
	ConnectedAt time.Time
}

// Options wires a WebServer. Pipeline and Chat are required.
type Options struct {
	Pipeline *pipeline.Pipeline
	Chat     *chat.Service
	Events   *events.EventBus
	Logger   *utils.Logger
	// Addr is the listen address, e.g. ":5000".
	Addr string
}

// WebServer exposes the pipeline and chat service over HTTP.
type WebServer struct {
	pipeline    *pipeline.Pipeline
	chat        *chat.Service
	eventBus    *events.EventBus
	logger      *utils.Logger
	addr        string
	server      *http.Server
	listener    net.Listener
	upgrader    websocket.Upgrader
	connections sync.Map // map[*websocket.Conn]*ConnectionInfo
	isRunning   bool
	mutex       sync.RWMutex
	startTime   time.Time
	requests    int
	pongWait    time.Duration
	pingPeriod  time.Duration
}

// NewWebServer creates a new web server
func NewWebServer(opts Options) *WebServer {
	addr := opts.Addr
	if addr == "" {
		addr = ":5000"
	}
	return &WebServer{
		pipeline: opts.Pipeline,
		chat:     opts.Chat,
		eventBus: opts.Events,
		logger:   opts.Logger,
		addr:     addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
			},
		},
		startTime:  time.Now(),
		pongWait:   wsPongWait,
		pingPeriod: wsPingPeriod,
	}
}

// Handler returns the routed handler without binding a port.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", ws.handleIndex)
	mux.HandleFunc("GET /static/", ws.handleStaticFiles)
	mux.HandleFunc("GET /ws", ws.handleWebSocket)
	mux.HandleFunc("GET /health", ws.handleHealth)
	mux.HandleFunc("POST /analyze_landscaping", ws.handleAnalyze)
	mux.HandleFunc("POST /generate_final_report", ws.handleFinalReport)
	mux.HandleFunc("POST /suggest_tasks", ws.handleSuggestTasks)
	mux.HandleFunc("POST /chat_query", ws.handleChatQuery)
	return mux
}

// Start binds the listen address and serves until ctx is cancelled or
// Shutdown is called. Bind failures are returned immediately.
func (ws *WebServer) Start(ctx context.Context) error {
	ws.mutex.Lock()
	if ws.isRunning {
		ws.mutex.Unlock()
		return fmt.Errorf("web server is already running")
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", ws.addr)
	if err != nil {
		ws.mutex.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", ws.addr, err)
	}
	ws.listener = listener
	ws.server = &http.Server{
		Handler:           ws.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ws.isRunning = true
	ws.mutex.Unlock()

	go func() {
		ws.logger.Logf("Web UI listening on http://%s", ws.Addr())
		if err := ws.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ws.logger.Logf("Web server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		if err := ws.Shutdown(); err != nil {
			ws.logger.LogError(err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the web server
func (ws *WebServer) Shutdown() error {
	ws.mutex.Lock()
	if !ws.isRunning {
		ws.mutex.Unlock()
		return nil
	}
	ws.isRunning = false
	server := ws.server
	ws.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	ws.connections.Range(func(conn, _ interface{}) bool {
		if wsConn, ok := conn.(*websocket.Conn); ok {
			wsConn.Close()
		}
		return true
	})

	return server.Shutdown(ctx)
}

// IsRunning returns true if the web server is running
func (ws *WebServer) IsRunning() bool {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	return ws.isRunning
}

// Addr returns the bound address once started, otherwise the configured one.
func (ws *WebServer) Addr() string {
	ws.mutex.RLock()
	defer ws.mutex.RUnlock()
	if ws.listener != nil {
		return ws.listener.Addr().String()
	}
	return ws.addr
}

func (ws *WebServer) countConnections() int {
	count := 0
	ws.connections.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.mutex.RLock()
	requests := ws.requests
	ws.mutex.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"uptime":      time.Since(ws.startTime).Round(time.Second).String(),
		"requests":    requests,
		"connections": ws.countConnections(),
		"subscribers": ws.eventBus.SubscriberCount(),
	})
}

// CheckPortAvailable checks if a port is available to bind to
func CheckPortAvailable(port int) bool {
	listener, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// FindAvailablePort finds an available port starting from a base port
func FindAvailablePort(basePort int) int {
	for port := basePort; port < basePort+100; port++ {
		if CheckPortAvailable(port) {
			return port
		}
	}
	return basePort + 100
}
