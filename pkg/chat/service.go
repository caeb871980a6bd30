package chat

import (
	"context"
	"strings"

	"github.com/alantheprice/yardcheck/pkg/configuration"
	"github.com/alantheprice/yardcheck/pkg/events"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/prompts"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

// Turn is one prior message as clients send it. Role may be "ai"; the
// browser UI sends the text as "message".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns Content, falling back to Message.
func (t Turn) Text() string {
	if t.Content != "" {
		return t.Content
	}
	return t.Message
}

// Query is a follow-up question with everything known about the project.
type Query struct {
	Question string
	Images   Images
	Context  prompts.ChatContext
	History  []Turn
}

// Answer is the model's reply and the route it took.
type Answer struct {
	Text      string
	Model     string
	UsedImage string
	Decision  Decision
}

// Service routes questions and calls the gateway.
type Service struct {
	gateway  api.Gateway
	router   Router
	settings configuration.GenerationSettings
	events   *events.EventBus
	logger   *utils.Logger
}

// NewService builds a chat service around any Router.
func NewService(gateway api.Gateway, router Router, settings configuration.GenerationSettings, bus *events.EventBus, logger *utils.Logger) *Service {
	return &Service{gateway: gateway, router: router, settings: settings, events: bus, logger: logger}
}

// NewServiceFromConfig wires the keyword router to the configured models.
func NewServiceFromConfig(cfg *configuration.Config, gateway api.Gateway, bus *events.EventBus, logger *utils.Logger) *Service {
	router := NewKeywordRouter(api.VisionModel(cfg), api.TextModel(cfg))
	return NewService(gateway, router, cfg.Stages.Chat, bus, logger)
}

// Ask answers one question. Gateway failures are returned as-is so callers
// can classify them.
func (s *Service) Ask(ctx context.Context, q Query) (*Answer, error) {
	question := strings.TrimSpace(q.Question)
	if question == "" {
		return nil, &api.ValidationError{Field: "question", Reason: "a question is required"}
	}

	decision := s.router.Route(question, q.Images)
	s.logger.Logf("Chat: routing to %s", decision)

	messages := prompts.Chat(prompts.ChatInput{
		Context:  q.Context,
		History:  dropEchoedQuestion(HistoryMessages(q.History), question),
		Question: question,
		Image:    decision.Image,
	})

	text, err := s.gateway.Invoke(ctx, api.Request{
		Model:       decision.Model,
		Messages:    messages,
		MaxTokens:   s.settings.MaxTokens,
		Temperature: s.settings.Temperature,
	})
	if err != nil {
		s.logger.LogError(err)
		s.events.Publish(events.EventTypeError, events.ErrorEvent("chat query failed", err))
		return nil, err
	}

	s.events.Publish(events.EventTypeChatAnswered, events.ChatAnsweredEvent(decision.Model.ID, decision.ImageLabel))
	return &Answer{
		Text:      text,
		Model:     decision.Model.ID,
		UsedImage: decision.ImageLabel,
		Decision:  decision,
	}, nil
}

// HistoryMessages converts client turns to text messages in order. Turns with
// an unknown role or no content are dropped.
func HistoryMessages(turns []Turn) []api.Message {
	messages := make([]api.Message, 0, len(turns))
	for _, t := range turns {
		role, ok := api.ParseRole(t.Role)
		if !ok || role == api.RoleSystem || strings.TrimSpace(t.Text()) == "" {
			continue
		}
		messages = append(messages, api.NewTextMessage(role, t.Text()))
	}
	return messages
}

// dropEchoedQuestion removes a trailing user turn identical to the question;
// the browser appends the question to its history before sending it.
func dropEchoedQuestion(history []api.Message, question string) []api.Message {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == api.RoleUser && strings.TrimSpace(last.Text()) == question {
			return history[:n-1]
		}
	}
	return history
}
