// Package taskstatus owns the line format models use to report per-task
// completion, and the parser that reads it back.
//
// The format is shared between prompt construction and extraction:
//
//   - Task: <description>
//     Status: <Completed | Not completed | Partially completed | ...>. <evidence>
//
// Prompts must embed FormatInstructions and parsers must only rely on the
// markers declared here. Bump FormatVersion whenever either side changes.
package taskstatus

import (
	"fmt"
	"strings"
)

// FormatVersion identifies the current task/status line format.
const FormatVersion = 1

const (
	TaskMarker   = "- Task:"
	StatusMarker = "Status:"
)

// Phrases (lowercase) that mark a task as still owing work.
const (
	phraseNotCompleted       = "status: not completed"
	phraseIncomplete         = "status: incomplete"
	phrasePartiallyCompleted = "status: partially completed"
	phraseCompleted          = "status: completed"
)

// exampleTasks illustrate each status the parser recognises.
var exampleTasks = []struct {
	task   string
	status string
}{
	{"Install new rose garden", "Completed. New rose bushes are visible with fresh mulch in the designated area."},
	{"Lay sod in bare area", "Not completed. The bare dirt area still shows dirt and weeds; new sod has not been laid."},
	{"Trim bushes", "Partially completed. Some bushes appear trimmed, but the large hedge near the fence is still overgrown."},
}

// FormatLine renders one task in the wire format.
func FormatLine(task, status string) string {
	return fmt.Sprintf("%s %s\n  %s %s", TaskMarker, task, StatusMarker, status)
}

// FormatInstructions is the format block embedded in every prompt that asks
// a model for per-task status.
func FormatInstructions() string {
	var b strings.Builder
	b.WriteString("Present your findings as a checklist, one entry per requested task, using exactly this format:\n")
	fmt.Fprintf(&b, "%s <task description>\n  %s <Completed | Not completed | Partially completed>. <visual evidence>\n\n", TaskMarker, StatusMarker)
	b.WriteString("If a task was completed with a different material or plant than requested, write \"Completed with substitution\" and name the substitution.\n")
	b.WriteString("If a task is not completed, describe precisely what is still missing or what needs to be done.\n\n")
	b.WriteString("Example Format:\n")
	for _, ex := range exampleTasks {
		b.WriteString(FormatLine(ex.task, ex.status))
		b.WriteString("\n")
	}
	return b.String()
}
