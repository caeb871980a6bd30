package prompts

import (
	"strings"

	"github.com/samber/lo"

	"github.com/alantheprice/yardcheck/pkg/imageref"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
)

const suggestInstructions = "You are an experienced landscaping contractor preparing a bid. " +
	"Look at this photo of a yard and list the concrete landscaping tasks a homeowner could request. " +
	"Each task must be a short, actionable phrase such as 'Lay sod in the bare area by the fence'. " +
	"Return ONLY a bulleted list, one task per line, each line starting with '- '. " +
	"Do not add headings, numbering or commentary."

// SuggestTasks asks the vision model for a bulleted task list from the before image.
func SuggestTasks(before *imageref.ImageRef) []api.Message {
	return []api.Message{{
		Role:  api.RoleUser,
		Parts: []api.Part{api.TextPart(suggestInstructions), api.ImagePart(before)},
	}}
}

// ParseSuggestedTasks keeps the lines that start with "- " (after trimming),
// strips the bullet and drops duplicates.
func ParseSuggestedTasks(text string) []string {
	var tasks []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		task := strings.TrimSpace(strings.TrimPrefix(line, "- "))
		task = strings.TrimSpace(strings.Trim(task, "*"))
		if task != "" {
			tasks = append(tasks, task)
		}
	}
	return lo.Uniq(tasks)
}
