package taskstatus

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/alantheprice/yardcheck/pkg/utils"
)

var (
	taskLabel   = regexp.MustCompile(`(?i)task:`)
	statusLabel = regexp.MustCompile(`(?i)status:`)
)

const taskMarkerLower = "- task:"

// Task is one task line recovered from a verification text.
type Task struct {
	Description string `json:"description"`
	Status      Status `json:"status"`
	// Line is the 1-based line number of the task marker.
	Line int `json:"line"`
}

// Parse returns every task line in text, in order, with its status. A task
// whose status sits on the following line is joined with it before matching.
// Parse never fails; unrecognised lines are skipped.
func Parse(text string) []Task {
	lines := strings.Split(utils.NormalizeNewlines(text), "\n")

	var tasks []Task
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lower := strings.ToLower(line)
		if !strings.Contains(lower, taskMarkerLower) {
			continue
		}

		logical := lower
		if !strings.Contains(lower, "status:") {
			if j := findStatusLine(lines, i+1); j >= 0 {
				logical = lower + " " + strings.TrimSpace(strings.ToLower(lines[j]))
			}
		}

		tasks = append(tasks, Task{
			Description: describe(line),
			Status:      classify(logical),
			Line:        i + 1,
		})
	}
	return tasks
}

// ExtractIncomplete returns the descriptions of tasks reported as not
// completed, incomplete or partially completed, in order of appearance.
func ExtractIncomplete(text string) []string {
	incomplete := lo.Filter(Parse(text), func(t Task, _ int) bool {
		return t.Status.Incomplete()
	})
	return lo.Map(incomplete, func(t Task, _ int) string {
		return t.Description
	})
}

// findStatusLine looks for the status line belonging to the task that ends
// just before start. It stops at the next task marker, a blank line or a
// heading.
func findStatusLine(lines []string, start int) int {
	for j := start; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			return -1
		}
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, taskMarkerLower) {
			return -1
		}
		if strings.Contains(lower, "status:") {
			return j
		}
	}
	return -1
}

// describe extracts the text after the first "Task:" up to an inline
// "Status:" segment. It falls back to the whole trimmed line.
func describe(line string) string {
	trimmed := strings.TrimSpace(line)

	loc := taskLabel.FindStringIndex(line)
	if loc == nil {
		return trimmed
	}
	desc := line[loc[1]:]
	if s := statusLabel.FindStringIndex(desc); s != nil {
		desc = desc[:s[0]]
	}
	desc = strings.TrimSpace(desc)
	desc = strings.TrimRight(desc, " \t-|,;")
	desc = strings.TrimSpace(strings.Trim(desc, "*"))
	if desc == "" {
		return trimmed
	}
	return desc
}
