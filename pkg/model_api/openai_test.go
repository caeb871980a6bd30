package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/yardcheck/pkg/imageref/imagetest"
)

const okResponse = `{
	"id": "test-response",
	"object": "chat.completion",
	"model": "llava-onevision",
	"choices": [{
		"index": 0,
		"message": {"role": "assistant", "content": "The lawn is overgrown."},
		"finish_reason": "stop"
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30}
}`

func newTestGateway(t *testing.T, url string) *OpenAIGateway {
	t.Helper()
	gw, err := NewOpenAIGateway(OpenAIConfig{
		DisplayName: "Test",
		BaseURL:     url,
		APIKey:      "test-key",
		Timeout:     5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return gw
}

func visionRequest(t *testing.T) Request {
	return Request{
		Model: Model{ID: "llava-onevision", MaxImages: 1},
		Messages: []Message{{
			Role:  RoleUser,
			Parts: []Part{TextPart("Describe this yard."), ImagePart(imagetest.Ref(t))},
		}},
		MaxTokens:   1000,
		Temperature: 0.7,
	}
}

func TestNewOpenAIGatewayEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://llm.nrp-nautilus.io/v1", "https://llm.nrp-nautilus.io/v1/chat/completions"},
		{"https://llm.nrp-nautilus.io/v1/", "https://llm.nrp-nautilus.io/v1/chat/completions"},
		{"http://localhost:8080/v1/chat/completions", "http://localhost:8080/v1/chat/completions"},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			gw := newTestGateway(t, tt.base)
			assert.Equal(t, tt.want, gw.Endpoint())
		})
	}

	_, err := NewOpenAIGateway(OpenAIConfig{BaseURL: "  "}, nil)
	assert.Error(t, err)
}

func TestOpenAIGatewayInvokeSuccess(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okResponse))
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL+"/v1")
	text, err := gw.Invoke(context.Background(), visionRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "The lawn is overgrown.", text)

	assert.Equal(t, "llava-onevision", captured["model"])
	assert.EqualValues(t, 1000, captured["max_tokens"])
	assert.InDelta(t, 0.7, captured["temperature"], 1e-9)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	imagePart := parts[1].(map[string]any)
	assert.Equal(t, "image_url", imagePart["type"])
	url := imagePart["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestOpenAIGatewayTextOnlyUsesStringContent(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(okResponse))
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL)
	_, err := gw.Invoke(context.Background(), Request{
		Model: Model{ID: "gemma3"},
		Messages: []Message{
			NewTextMessage(RoleSystem, "You are an assistant."),
			NewTextMessage(RoleUser, "Summarize."),
		},
	})
	require.NoError(t, err)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "You are an assistant.", captured.Messages[0].Content)
}

func TestOpenAIGatewayRemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit"}}`))
	}))
	defer server.Close()

	gw := newTestGateway(t, server.URL)
	_, err := gw.Invoke(context.Background(), visionRequest(t))
	require.Error(t, err)

	var apiErr *RemoteAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "Rate limit reached", apiErr.Message)
	assert.Equal(t, 7*time.Second, apiErr.RetryAfter)
	assert.True(t, apiErr.IsRateLimited())
	assert.Equal(t, "remote_api", Class(err))
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIGatewayServerErrorKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	_, err := newTestGateway(t, server.URL).Invoke(context.Background(), visionRequest(t))
	var apiErr *RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Body)
	assert.False(t, apiErr.IsRateLimited())
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestOpenAIGatewayMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>oops</html>"},
		{"no choices", `{"id":"x","choices":[]}`},
		{"empty completion", `{"id":"x","choices":[{"message":{"role":"assistant","content":"  \n"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestGateway(t, server.URL).Invoke(context.Background(), visionRequest(t))
			var unexpected *UnexpectedError
			require.ErrorAs(t, err, &unexpected)
			assert.Equal(t, "unexpected", Class(err))
		})
	}
}

func TestOpenAIGatewayTooManyImagesMakesNoCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(okResponse))
	}))
	defer server.Close()

	req := visionRequest(t)
	req.Messages[0].Parts = append(req.Messages[0].Parts, ImagePart(imagetest.Ref(t)))

	_, err := newTestGateway(t, server.URL).Invoke(context.Background(), req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "images", verr.Field)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestOpenAIGatewayTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestGateway(t, url).Invoke(context.Background(), visionRequest(t))
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "transport", Class(err))
}

func TestOpenAIGatewayTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	gw, err := NewOpenAIGateway(OpenAIConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = gw.Invoke(context.Background(), visionRequest(t))
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Timeout())
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Zero(t, parseRetryAfter(h))

	h.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, parseRetryAfter(h))

	h = http.Header{}
	h.Set("X-RateLimit-Reset-Requests", "1.5s")
	assert.Equal(t, 1500*time.Millisecond, parseRetryAfter(h))
}
