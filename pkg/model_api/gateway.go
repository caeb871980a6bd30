package api

import (
	"context"
	"fmt"
	"strings"
)

//go:generate mockgen -source=gateway.go -destination=mocks/mock_gateway.go -package=mocks

// Gateway invokes a chat-completion model and returns the generated text.
// Implementations never retry; wrap with RetryGateway when retries are wanted.
type Gateway interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, req Request) (string, error)

func (f GatewayFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ValidateRequest checks the caller-side constraints shared by every backend.
func ValidateRequest(req Request) error {
	if strings.TrimSpace(req.Model.ID) == "" {
		return &ValidationError{Field: "model", Reason: "model id is required"}
	}
	if len(req.Messages) == 0 {
		return &ValidationError{Field: "messages", Reason: "at least one message is required"}
	}
	for i, msg := range req.Messages {
		if _, ok := ParseRole(string(msg.Role)); !ok {
			return &ValidationError{Field: fmt.Sprintf("messages[%d].role", i), Reason: fmt.Sprintf("unsupported role %q", msg.Role)}
		}
		if len(msg.Parts) == 0 {
			return &ValidationError{Field: fmt.Sprintf("messages[%d]", i), Reason: "message has no content"}
		}
		for j, part := range msg.Parts {
			if part.Image == nil && part.Text == "" {
				return &ValidationError{Field: fmt.Sprintf("messages[%d].parts[%d]", i, j), Reason: "empty part"}
			}
		}
	}
	if images := req.ImageCount(); images > req.Model.MaxImages {
		return &ValidationError{
			Field:  "images",
			Reason: fmt.Sprintf("model %s accepts at most %d image(s) per call, got %d", req.Model.ID, req.Model.MaxImages, images),
		}
	}
	if req.MaxTokens < 0 {
		return &ValidationError{Field: "max_tokens", Reason: "must not be negative"}
	}
	return nil
}
