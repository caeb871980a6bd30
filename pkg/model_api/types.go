package api

import (
	"strings"

	"github.com/alantheprice/yardcheck/pkg/imageref"
)

// Common types used across all gateways

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole normalises role names coming from clients. The browser UI labels
// model turns as "ai".
func ParseRole(name string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "system":
		return RoleSystem, true
	case "user":
		return RoleUser, true
	case "assistant", "ai", "model":
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Part is one piece of message content: either text or an image.
type Part struct {
	Text  string
	Image *imageref.ImageRef
}

// IsImage reports whether the part carries an image.
func (p Part) IsImage() bool { return p.Image != nil }

// TextPart builds a text content part.
func TextPart(text string) Part { return Part{Text: text} }

// ImagePart builds an image content part.
func ImagePart(img *imageref.ImageRef) Part { return Part{Image: img} }

// Message is a role-tagged, ordered sequence of parts.
type Message struct {
	Role  Role
	Parts []Part
}

// NewTextMessage builds a single-part text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{TextPart(text)}}
}

// ImageCount returns the number of image parts in the message.
func (m Message) ImageCount() int {
	count := 0
	for _, p := range m.Parts {
		if p.IsImage() {
			count++
		}
	}
	return count
}

// Text concatenates the text parts, separated by blank lines.
func (m Message) Text() string {
	texts := make([]string, 0, len(m.Parts))
	for _, p := range m.Parts {
		if !p.IsImage() && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// Images returns the image parts in order.
func (m Message) Images() []*imageref.ImageRef {
	var images []*imageref.ImageRef
	for _, p := range m.Parts {
		if p.IsImage() {
			images = append(images, p.Image)
		}
	}
	return images
}

// Model names a backing model and its per-call image limit.
type Model struct {
	ID        string
	MaxImages int
}

// SupportsVision reports whether the model accepts image parts at all.
func (m Model) SupportsVision() bool { return m.MaxImages > 0 }

// Request is a single completion call.
type Request struct {
	Model       Model
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ImageCount totals image parts across all messages.
func (r Request) ImageCount() int {
	total := 0
	for _, m := range r.Messages {
		total += m.ImageCount()
	}
	return total
}
