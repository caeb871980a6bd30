package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"

	"github.com/alantheprice/yardcheck/pkg/utils"
)

// OllamaGateway runs models on an Ollama server, typically llava-style vision
// models on a local machine.
type OllamaGateway struct {
	client  ollamaClient
	timeout time.Duration
	logger  *utils.Logger
}

type ollamaClient interface {
	Chat(ctx context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error
}

// NewOllamaGateway connects to baseURL, or to OLLAMA_HOST when baseURL is empty.
func NewOllamaGateway(baseURL string, timeout time.Duration, logger *utils.Logger) (*OllamaGateway, error) {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	var client ollamaClient
	if strings.TrimSpace(baseURL) == "" {
		c, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama URL %q: %w", baseURL, err)
		}
		client = ollama.NewClient(u, http.DefaultClient)
	}

	return newOllamaGatewayWithClient(client, timeout, logger), nil
}

func newOllamaGatewayWithClient(client ollamaClient, timeout time.Duration, logger *utils.Logger) *OllamaGateway {
	return &OllamaGateway{client: client, timeout: timeout, logger: logger}
}

// Invoke sends a non-streaming chat request to Ollama.
func (g *OllamaGateway) Invoke(ctx context.Context, req Request) (string, error) {
	if err := ValidateRequest(req); err != nil {
		return "", err
	}

	messages := make([]ollama.Message, len(req.Messages))
	for i, msg := range req.Messages {
		om := ollama.Message{
			Role:    string(msg.Role),
			Content: msg.Text(),
		}
		for _, img := range msg.Images() {
			om.Images = append(om.Images, ollama.ImageData(img.Bytes()))
		}
		messages[i] = om
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    req.Model.ID,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		chatReq.Options["num_predict"] = req.MaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	g.logger.Logf("Gateway: ollama chat model=%s images=%d", req.Model.ID, req.ImageCount())

	var responseContent strings.Builder
	respFunc := func(res ollama.ChatResponse) error {
		responseContent.WriteString(res.Message.Content)
		return nil
	}

	if err := g.client.Chat(ctx, chatReq, respFunc); err != nil {
		classified := classifyOllamaError(err, ctx)
		g.logger.LogError(classified)
		return "", classified
	}

	if strings.TrimSpace(responseContent.String()) == "" {
		return "", &UnexpectedError{Reason: "empty completion"}
	}
	g.logger.Logf("Gateway: ollama model=%s completed in %s", req.Model.ID, time.Since(start).Round(time.Millisecond))
	return responseContent.String(), nil
}

func classifyOllamaError(err error, ctx context.Context) error {
	var statusErr ollama.StatusError
	if errors.As(err, &statusErr) {
		return &RemoteAPIError{
			Provider:   "Ollama",
			StatusCode: statusErr.StatusCode,
			Message:    statusErr.ErrorMessage,
			Body:       statusErr.Status,
		}
	}

	var (
		urlErr *url.Error
		netErr net.Error
	)
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return classifyTransport("ollama chat", err, ctx)
	}
	return &UnexpectedError{Reason: "ollama chat failed", Err: err}
}
