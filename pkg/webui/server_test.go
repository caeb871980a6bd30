package webui

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/yardcheck/pkg/chat"
	"github.com/alantheprice/yardcheck/pkg/configuration"
	"github.com/alantheprice/yardcheck/pkg/events"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/pipeline"
)

var (
	visionModel = api.Model{ID: "llava-onevision", MaxImages: 1}
	textModel   = api.Model{ID: "gemma3"}
)

const verificationText = `- Task: Lay sod
  Status: Not completed. Bare soil remains.
- Task: Trim bushes
  Status: Completed.`

// fakeModel answers by stage and records every request it sees.
type fakeModel struct {
	mu       sync.Mutex
	requests []api.Request
	err      error
}

func (f *fakeModel) Invoke(_ context.Context, req api.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}

	prompt := ""
	for _, m := range req.Messages {
		prompt += m.Text() + "\n"
	}
	switch {
	case req.Model.ID == textModel.ID && strings.Contains(prompt, "Combine the notes"):
		return verificationText, nil
	case req.Model.ID == textModel.ID:
		return "text answer", nil
	case strings.Contains(prompt, "preparing a bid"):
		return "- Mow the lawn\n- Edge the beds\n", nil
	case strings.Contains(prompt, "After Image"):
		return "after notes", nil
	default:
		return "Overgrown lawn with bare patches.", nil
	}
}

func (f *fakeModel) calls() []api.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Request(nil), f.requests...)
}

func newTestServer(gw api.Gateway, bus *events.EventBus) *WebServer {
	stages := configuration.DefaultConfig().Stages
	p := pipeline.New(pipeline.Options{
		Gateway:     gw,
		VisionModel: visionModel,
		TextModel:   textModel,
		Stages:      stages,
		Events:      bus,
		Now:         func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	svc := chat.NewService(gw, chat.NewKeywordRouter(visionModel, textModel), stages.Chat, bus, nil)
	return NewWebServer(Options{Pipeline: p, Chat: svc, Events: bus, Addr: "127.0.0.1:0"})
}

func TestCheckPortAvailable(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port

	assert.False(t, CheckPortAvailable(port))
	require.NoError(t, listener.Close())
}

func TestFindAvailablePort(t *testing.T) {
	port := FindAvailablePort(54321)
	assert.GreaterOrEqual(t, port, 54321)
	assert.LessOrEqual(t, port, 54321+100)
}

func TestStartFailsWhenPortAlreadyInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	server := newTestServer(&fakeModel{}, events.NewEventBus())
	server.addr = listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.Error(t, server.Start(ctx))
	assert.False(t, server.IsRunning())
}

func TestStartServesHealthAndShutsDown(t *testing.T) {
	server := newTestServer(&fakeModel{}, events.NewEventBus())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, server.Start(ctx))
	assert.True(t, server.IsRunning())
	assert.Error(t, server.Start(ctx), "second start must fail")

	resp, err := http.Get("http://" + server.Addr() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Shutdown())
	assert.False(t, server.IsRunning())
	assert.NoError(t, server.Shutdown(), "shutdown is idempotent")
}
