package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alantheprice/yardcheck/pkg/imageref"
	"github.com/alantheprice/yardcheck/pkg/imageref/imagetest"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
)

var (
	vision = api.Model{ID: "llava-onevision", MaxImages: 1}
	text   = api.Model{ID: "gemma3"}
)

func TestKeywordRouterExamples(t *testing.T) {
	router := NewKeywordRouter(vision, text)
	after := imagetest.Refs(t, 2)

	d := router.Route("what's visible in the after image?", Images{After: after})
	assert.Equal(t, vision, d.Model)
	assert.Same(t, after[0], d.Image)
	assert.Equal(t, "after_1", d.ImageLabel)

	d = router.Route("is the lawn healthy?", Images{})
	assert.Equal(t, text, d.Model)
	assert.Nil(t, d.Image)
	assert.False(t, d.UsesVision())
}

func TestKeywordRouterPriority(t *testing.T) {
	router := NewKeywordRouter(vision, text)
	before := imagetest.Ref(t)
	after := imagetest.Refs(t, 3)
	both := Images{Before: before, After: after}

	tests := []struct {
		name     string
		question string
		images   Images
		label    string
	}{
		{"no keyword with images", "Is the contractor trustworthy?", both, ""},
		{"before named", "What does the BEFORE photo show?", both, "before"},
		{"after named", "Can you see mulch in the after pictures?", both, "after_1"},
		{"before named but missing", "Look at the before image", Images{After: after}, "after_1"},
		{"only after images", "Does the hedge look trimmed?", Images{After: after}, "after_1"},
		{"only before image", "What do you see near the fence?", Images{Before: before}, "before"},
		{"keyword without images", "Show me the weeds", Images{}, ""},
		{"both images unnamed", "Is the sod visible?", both, ""},
		{"inflected keyword", "Which plants are shown?", Images{Before: before}, "before"},
		{"keyword inside other word", "When should I seed the lawn?", Images{Before: before}, ""},
		{"nil after entries ignored", "Show the yard", Images{After: []*imageref.ImageRef{nil}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := router.Route(tt.question, tt.images)
			assert.Equal(t, tt.label, d.ImageLabel, d.Reason)
			if tt.label == "" {
				assert.Equal(t, text, d.Model)
				assert.Nil(t, d.Image)
			} else {
				assert.Equal(t, vision, d.Model)
				assert.NotNil(t, d.Image)
			}
		})
	}
}

func TestKeywordRouterWithoutVisionSupport(t *testing.T) {
	router := NewKeywordRouter(api.Model{ID: "text-only"}, text)
	d := router.Route("show me the before photo", Images{Before: imagetest.Refs(t, 1)[0]})
	assert.Equal(t, text, d.Model)
	assert.Equal(t, "vision model disabled", d.Reason)
}
