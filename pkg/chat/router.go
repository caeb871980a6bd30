// Package chat answers follow-up questions about an inspection, deciding per
// question whether a photo is worth sending to the vision model.
package chat

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/alantheprice/yardcheck/pkg/imageref"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

// Images are the photos available to the conversation.
type Images struct {
	Before *imageref.ImageRef
	After  []*imageref.ImageRef
}

// Decision is the route chosen for one question.
type Decision struct {
	Model api.Model
	// Image is nil when the question goes to the text model.
	Image *imageref.ImageRef
	// ImageLabel is "before", "after_1" or "" and is echoed to clients.
	ImageLabel string
	Reason     string
}

// UsesVision reports whether an image is attached.
func (d Decision) UsesVision() bool { return d.Image != nil }

// Router picks the model and at most one image for a question. Routing never
// fails: when in doubt it falls back to the text model.
type Router interface {
	Route(question string, images Images) Decision
}

// DefaultKeywords are the words that suggest a question is about what a photo shows.
var DefaultKeywords = []string{"image", "photo", "picture", "pic", "show", "visible", "see", "look", "appear", "view"}

var (
	beforePhrases = []string{"before image", "before photo", "before picture", "before pic"}
	afterPhrases  = []string{"after image", "after photo", "after picture", "after pic"}
	// Inflections accepted after a keyword, so "photos" and "shown" match but "seed" does not.
	keywordSuffixes = []string{"", "s", "es", "ed", "n", "ing"}
)

// KeywordRouter is a best-effort heuristic over the question text.
type KeywordRouter struct {
	Vision   api.Model
	Text     api.Model
	Keywords []string
}

// NewKeywordRouter uses DefaultKeywords.
func NewKeywordRouter(vision, text api.Model) *KeywordRouter {
	return &KeywordRouter{Vision: vision, Text: text, Keywords: DefaultKeywords}
}

// Route applies, in order: vision model without image support -> text; no visual keyword -> text; before image named and
// present -> before; after image named and present -> first after; only after
// images -> first after; only a before image -> before; otherwise text.
func (r *KeywordRouter) Route(question string, images Images) Decision {
	words := tokenize(question)
	normalized := strings.Join(words, " ")
	hasBefore := images.Before != nil
	afters := lo.Filter(images.After, func(img *imageref.ImageRef, _ int) bool { return img != nil })
	hasAfter := len(afters) > 0

	switch {
	case !r.Vision.SupportsVision():
		return r.text("vision model disabled")
	case !r.hasKeyword(words):
		return r.text("no visual keyword")
	case hasBefore && containsAny(normalized, beforePhrases):
		return r.vision(images.Before, "before", "question names the before image")
	case hasAfter && containsAny(normalized, afterPhrases):
		return r.vision(afters[0], "after_1", "question names the after image")
	case hasAfter && !hasBefore:
		return r.vision(afters[0], "after_1", "only after images available")
	case hasBefore && !hasAfter:
		return r.vision(images.Before, "before", "only the before image available")
	case !hasBefore && !hasAfter:
		return r.text("no image available")
	default:
		return r.text("ambiguous image reference")
	}
}

func (r *KeywordRouter) text(reason string) Decision {
	return Decision{Model: r.Text, Reason: reason}
}

func (r *KeywordRouter) vision(img *imageref.ImageRef, label, reason string) Decision {
	return Decision{Model: r.Vision, Image: img, ImageLabel: label, Reason: reason}
}

func (r *KeywordRouter) hasKeyword(words []string) bool {
	return lo.SomeBy(words, func(w string) bool {
		return lo.SomeBy(r.Keywords, func(kw string) bool {
			return lo.SomeBy(keywordSuffixes, func(suffix string) bool {
				return w == kw+suffix
			})
		})
	})
}

// tokenize case-folds the question and splits it into letter/digit words.
func tokenize(s string) []string {
	return strings.FieldsFunc(utils.FoldCase(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsAny(s string, phrases []string) bool {
	padded := " " + s + " "
	return lo.SomeBy(phrases, func(p string) bool {
		return strings.Contains(padded, " "+p+" ") || strings.Contains(padded, " "+p+"s ")
	})
}

// String makes decisions readable in logs.
func (d Decision) String() string {
	if d.Image == nil {
		return fmt.Sprintf("%s (text only: %s)", d.Model.ID, d.Reason)
	}
	return fmt.Sprintf("%s with %s image (%s)", d.Model.ID, d.ImageLabel, d.Reason)
}
