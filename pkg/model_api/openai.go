package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alantheprice/yardcheck/pkg/utils"
)

// HTTPClient interface for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// OpenAIConfig configures an OpenAI-compatible chat-completions endpoint.
type OpenAIConfig struct {
	DisplayName  string
	BaseURL      string // e.g. https://llm.nrp-nautilus.io/v1
	APIKey       string
	Timeout      time.Duration
	ExtraHeaders map[string]string
}

// OpenAIGateway talks to any OpenAI-compatible chat-completions API.
type OpenAIGateway struct {
	config     OpenAIConfig
	endpoint   string
	httpClient HTTPClient
	logger     *utils.Logger
}

// NewOpenAIGateway creates a gateway for an OpenAI-compatible API.
func NewOpenAIGateway(config OpenAIConfig, logger *utils.Logger) (*OpenAIGateway, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	if config.DisplayName == "" {
		config.DisplayName = "OpenAI-compatible"
	}

	return &OpenAIGateway{
		config:     config,
		endpoint:   chatCompletionsURL(config.BaseURL),
		httpClient: &http.Client{},
		logger:     logger,
	}, nil
}

// SetHTTPClient replaces the HTTP client, mainly for tests.
func (g *OpenAIGateway) SetHTTPClient(client HTTPClient) {
	g.httpClient = client
}

// Endpoint returns the resolved chat-completions URL.
func (g *OpenAIGateway) Endpoint() string { return g.endpoint }

func chatCompletionsURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

// Invoke sends one chat-completion request and returns the first choice's text.
func (g *OpenAIGateway) Invoke(ctx context.Context, req Request) (string, error) {
	if err := ValidateRequest(req); err != nil {
		return "", err
	}

	reqBody, err := json.Marshal(buildChatRequest(req))
	if err != nil {
		return "", &UnexpectedError{Reason: "failed to marshal request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", &UnexpectedError{Reason: "failed to create HTTP request", Err: err}
	}
	g.setHeaders(httpReq)

	start := time.Now()
	g.logger.Logf("Gateway: POST %s model=%s images=%d max_tokens=%d", g.endpoint, req.Model.ID, req.ImageCount(), req.MaxTokens)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		terr := classifyTransport("chat completion", err, ctx)
		g.logger.LogError(terr)
		return "", terr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		terr := classifyTransport("reading response", err, ctx)
		g.logger.LogError(terr)
		return "", terr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := g.handleErrorResponse(resp, respBody)
		g.logger.LogError(apiErr)
		return "", apiErr
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &UnexpectedError{Reason: "failed to parse response", Err: err}
	}
	if len(chatResp.Choices) == 0 {
		return "", &UnexpectedError{Reason: "response contained no choices"}
	}

	content := chatResp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &UnexpectedError{Reason: "empty completion"}
	}
	g.logger.Logf("Gateway: model=%s completed in %s (%d prompt / %d completion tokens)",
		req.Model.ID, time.Since(start).Round(time.Millisecond), chatResp.Usage.PromptTokens, chatResp.Usage.CompletionTokens)
	return content, nil
}

// setHeaders sets the appropriate headers for the request
func (g *OpenAIGateway) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")

	if g.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}

	for key, value := range g.config.ExtraHeaders {
		req.Header.Set(key, value)
	}
}

// handleErrorResponse turns a non-2xx answer into a RemoteAPIError.
func (g *OpenAIGateway) handleErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &RemoteAPIError{
		Provider:   g.config.DisplayName,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		RetryAfter: parseRetryAfter(resp.Header),
	}

	var errorResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		apiErr.Message = errorResp.Error.Message
	}
	return apiErr
}

// parseRetryAfter reads the throttling hints different providers send.
func parseRetryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := http.ParseTime(v); err == nil {
			if wait := time.Until(at); wait > 0 {
				return wait
			}
		}
	}
	// OpenRouter format (X-RateLimit-Reset in milliseconds since epoch)
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			if wait := time.Until(time.UnixMilli(ms)); wait > 0 {
				return wait
			}
		}
	}
	// OpenAI format ("6m0s", "1.5s")
	if v := h.Get("X-RateLimit-Reset-Requests"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return 0
}
