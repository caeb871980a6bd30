package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alantheprice/yardcheck/pkg/configuration"
	"github.com/alantheprice/yardcheck/pkg/imageref/imagetest"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"user", RoleUser, true},
		{"AI", RoleAssistant, true},
		{"assistant", RoleAssistant, true},
		{" system ", RoleSystem, true},
		{"tool", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestMessageHelpers(t *testing.T) {
	img := imagetest.Ref(t)
	msg := Message{Role: RoleUser, Parts: []Part{TextPart("one"), ImagePart(img), TextPart("two")}}
	assert.Equal(t, 1, msg.ImageCount())
	assert.Equal(t, "one\n\ntwo", msg.Text())
	assert.Len(t, msg.Images(), 1)
}

func TestValidateRequest(t *testing.T) {
	img := imagetest.Ref(t)
	vision := Model{ID: "llava-onevision", MaxImages: 1}
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"ok", Request{Model: vision, Messages: []Message{{Role: RoleUser, Parts: []Part{ImagePart(img)}}}}, ""},
		{"no model", Request{Messages: []Message{NewTextMessage(RoleUser, "x")}}, "model"},
		{"no messages", Request{Model: vision}, "messages"},
		{"bad role", Request{Model: vision, Messages: []Message{NewTextMessage("tool", "x")}}, "messages[0].role"},
		{"empty message", Request{Model: vision, Messages: []Message{{Role: RoleUser}}}, "messages[0]"},
		{"images on text model", Request{Model: Model{ID: "gemma3"}, Messages: []Message{{Role: RoleUser, Parts: []Part{ImagePart(img)}}}}, "images"},
		{"negative tokens", Request{Model: vision, Messages: []Message{NewTextMessage(RoleUser, "x")}, MaxTokens: -1}, "max_tokens"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tt.field, verr.Field)
			}
		})
	}
}

func TestClass(t *testing.T) {
	assert.Equal(t, "", Class(nil))
	assert.Equal(t, "validation", Class(&ValidationError{Reason: "x"}))
	assert.Equal(t, "remote_api", Class(fmt.Errorf("stage: %w", &RemoteAPIError{StatusCode: 500})))
	assert.Equal(t, "transport", Class(&TransportError{Op: "x", Err: errors.New("y")}))
	assert.Equal(t, "unexpected", Class(errors.New("boom")))
}

func TestNewGatewayFromConfig(t *testing.T) {
	cfg := configuration.DefaultConfig()
	gw, err := NewGatewayFromConfig(cfg, nil)
	assert.NoError(t, err)
	assert.IsType(t, &OpenAIGateway{}, gw)

	cfg.MaxRetries = 2
	gw, err = NewGatewayFromConfig(cfg, nil)
	assert.NoError(t, err)
	assert.IsType(t, &RetryGateway{}, gw)

	cfg.Provider = configuration.ProviderOllama
	cfg.BaseURL = "http://localhost:11434"
	cfg.MaxRetries = 0
	gw, err = NewGatewayFromConfig(cfg, nil)
	assert.NoError(t, err)
	assert.IsType(t, &OllamaGateway{}, gw)

	assert.Equal(t, Model{ID: "llava-onevision", MaxImages: 1}, VisionModel(configuration.DefaultConfig()))
	assert.False(t, TextModel(configuration.DefaultConfig()).SupportsVision())
}
