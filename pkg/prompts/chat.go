package prompts

import (
	"strings"

	"github.com/alantheprice/yardcheck/pkg/imageref"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
)

// ChatContext is what earlier stages produced for the current project.
type ChatContext struct {
	BeforeAnalysis  string
	Tasks           string
	ContractorNotes string
	Report          string
}

// ChatInput is one follow-up question with its history.
type ChatInput struct {
	Context  ChatContext
	History  []api.Message
	Question string
	// Image is attached to the question when the router picked one.
	Image *imageref.ImageRef
}

// Chat replays the conversation after a system message carrying the project
// context, then appends the new question.
func Chat(in ChatInput) []api.Message {
	messages := make([]api.Message, 0, len(in.History)+2)
	messages = append(messages, api.NewTextMessage(api.RoleSystem, chatSystemMessage(in.Context)))
	for _, turn := range in.History {
		if turn.Role == api.RoleSystem {
			continue
		}
		messages = append(messages, turn)
	}

	question := api.Message{Role: api.RoleUser, Parts: []api.Part{api.TextPart(in.Question)}}
	if in.Image != nil {
		question.Parts = append(question.Parts, api.ImagePart(in.Image))
	}
	return append(messages, question)
}

func chatSystemMessage(c ChatContext) string {
	var b strings.Builder
	b.WriteString("You are a helpful landscaping assistant answering follow-up questions about an inspection. ")
	b.WriteString("Answer concisely and base your answers on the inspection context below and any attached photo. ")
	b.WriteString("If the context does not contain the answer, say so.\n")

	section := func(title, body string) {
		if strings.TrimSpace(body) == "" {
			return
		}
		b.WriteString("\n")
		b.WriteString(title)
		b.WriteString(":\n")
		b.WriteString(strings.TrimSpace(body))
		b.WriteString("\n")
	}
	section("Before image analysis", c.BeforeAnalysis)
	section("Requested tasks", c.Tasks)
	section("Contractor's summary", c.ContractorNotes)
	section("Latest report", c.Report)
	return b.String()
}
