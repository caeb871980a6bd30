package api

// Wire types for the chat-completions API. Image parts travel as data URLs.

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []chatContentPart
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func buildChatRequest(req Request) chatRequest {
	temperature := req.Temperature
	return chatRequest{
		Model:       req.Model.ID,
		Messages:    buildChatMessages(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: &temperature,
	}
}

// buildChatMessages keeps text-only messages as plain strings and switches to
// the typed-parts array as soon as a message carries an image.
func buildChatMessages(messages []Message) []chatMessage {
	result := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.ImageCount() == 0 {
			result = append(result, chatMessage{Role: string(msg.Role), Content: msg.Text()})
			continue
		}

		parts := make([]chatContentPart, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			if p.IsImage() {
				parts = append(parts, chatContentPart{
					Type:     "image_url",
					ImageURL: &chatImageURL{URL: p.Image.DataURL()},
				})
				continue
			}
			parts = append(parts, chatContentPart{Type: "text", Text: p.Text})
		}
		result = append(result, chatMessage{Role: string(msg.Role), Content: parts})
	}
	return result
}
