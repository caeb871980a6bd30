package report

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/alantheprice/yardcheck/pkg/taskstatus"
)

// FinalInput adds the contractor's side of the story to a verification.
type FinalInput struct {
	Input
	// SelectedTasks are the tasks the contractor marked as done.
	SelectedTasks []string
	// Statuses is every parsed task from the verification text.
	Statuses []taskstatus.Task
}

// Final renders the final verification report used to release payment.
func Final(in FinalInput) Report {
	bd := newBuilder(finalTitle, in.GeneratedAt)
	bd.before(in.BeforeAnalysis)
	bd.afterAnalyses(in.AfterAnalyses)

	bd.heading(contractorHeading)
	if notes := strings.TrimSpace(in.ContractorNotes); notes != "" {
		bd.line("Contractor's description of the work:")
		bd.raw(in.ContractorNotes)
	} else {
		bd.line("The contractor did not describe the work.")
	}
	if len(in.SelectedTasks) > 0 {
		bd.line("")
		bd.line("Tasks the contractor marked as done:")
		bd.bullets(in.SelectedTasks)
	}

	bd.verification(in.Tasks, in.Verification)

	if len(in.Statuses) > 0 {
		bd.heading(summaryHeading)
		for _, t := range in.Statuses {
			bd.line(fmt.Sprintf("- %s: %s", t.Description, t.Status.Label()))
		}
		if disputed := disputedTasks(in.SelectedTasks, in.Statuses); len(disputed) > 0 {
			bd.line("")
			bd.line("Marked as done by the contractor but not confirmed by the inspection:")
			bd.bullets(disputed)
		}
	}

	bd.completion(in.Incomplete)
	return Report{Text: bd.String(), BeforeAnalysis: in.BeforeAnalysis, Tasks: in.Tasks}
}

// disputedTasks returns selected tasks whose parsed status still owes work.
// Matching is case-insensitive on the trimmed description.
func disputedTasks(selected []string, statuses []taskstatus.Task) []string {
	open := lo.SliceToMap(
		lo.Filter(statuses, func(t taskstatus.Task, _ int) bool { return t.Status.Incomplete() }),
		func(t taskstatus.Task) (string, struct{}) { return normalize(t.Description), struct{}{} },
	)
	return lo.Filter(selected, func(s string, _ int) bool {
		_, ok := open[normalize(s)]
		return ok
	})
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
