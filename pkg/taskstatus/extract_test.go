package taskstatus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVerification = `Here is the verification checklist:

- Task: Install new rose garden
  Status: Completed. New rose bushes are visible with fresh mulch in the designated area.
- Task: Lay sod in bare area
  Status: Not completed. The bare dirt area still shows dirt and weeds; new sod has not been laid.
- Task: Trim bushes
  Status: Partially completed. Some bushes appear trimmed, but the large hedge near the fence is still overgrown.
- Task: Replace gravel path
  Status: Completed with substitution. Pavers were used instead of gravel.
`

func TestExtractIncompleteTwoLineForm(t *testing.T) {
	got := ExtractIncomplete(sampleVerification)
	assert.Equal(t, []string{"Lay sod in bare area", "Trim bushes"}, got)
}

func TestExtractIncompleteSingleLineForm(t *testing.T) {
	text := strings.Join([]string{
		"- Task: Mow the lawn - Status: Incomplete, grass still long",
		"- Task: Edge the beds Status: completed",
		"- task: weed the garden, status: not completed",
	}, "\n")
	assert.Equal(t, []string{"Mow the lawn", "weed the garden"}, ExtractIncomplete(text))
}

func TestExtractIncompleteEmpty(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"all completed", "- Task: Mulch beds\n  Status: Completed. Fresh mulch visible."},
		{"status without task marker", "Status: Not completed. Nothing was done."},
		{"prose", "Everything looks great. The contractor did a fine job."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ExtractIncomplete(tt.text))
		})
	}
}

func TestExtractIncompleteFallsBackToWholeLine(t *testing.T) {
	text := "- Task: Status: Not completed"
	assert.Equal(t, []string{"- Task: Status: Not completed"}, ExtractIncomplete(text))
}

func TestExtractIncompletePreservesOrderAndCRLF(t *testing.T) {
	text := "- Task: B\r\n  Status: Not completed\r\n- Task: A\r\n  Status: Incomplete\r\n"
	assert.Equal(t, []string{"B", "A"}, ExtractIncomplete(text))
}

func TestStatusSearchStopsAtBlankLineOrHeading(t *testing.T) {
	text := "- Task: Plant tulips\n\nOverall Status: not completed"
	tasks := Parse(text)
	require.Len(t, tasks, 1)
	assert.Equal(t, Unknown, tasks[0].Status)
	assert.Empty(t, ExtractIncomplete(text))

	text = "- Task: Rake leaves\n### Summary\nStatus: not completed"
	tasks = Parse(text)
	require.Len(t, tasks, 1)
	assert.Equal(t, Unknown, tasks[0].Status)
}

func TestStatusLineDoesNotLeakIntoNextTask(t *testing.T) {
	text := "- Task: Plant tulips\n- Task: Rake leaves\n  Status: Not completed"
	tasks := Parse(text)
	require.Len(t, tasks, 2)
	assert.Equal(t, Unknown, tasks[0].Status)
	assert.Equal(t, NotCompleted, tasks[1].Status)
	assert.Equal(t, 2, tasks[1].Line)
}

func TestParseClassifiesEveryTask(t *testing.T) {
	tasks := Parse(sampleVerification)
	require.Len(t, tasks, 4)

	want := []struct {
		desc   string
		status Status
	}{
		{"Install new rose garden", Completed},
		{"Lay sod in bare area", NotCompleted},
		{"Trim bushes", PartiallyCompleted},
		{"Replace gravel path", CompletedWithSubstitution},
	}
	for i, w := range want {
		assert.Equal(t, w.desc, tasks[i].Description)
		assert.Equal(t, w.status, tasks[i].Status, w.desc)
	}
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "Partially Completed", PartiallyCompleted.Label())
	assert.Equal(t, "not completed", NotCompleted.String())
	assert.Equal(t, "unknown", Status(42).String())
	assert.True(t, NotCompleted.Incomplete())
	assert.False(t, CompletedWithSubstitution.Incomplete())
}

func TestFormatInstructionsRoundTrip(t *testing.T) {
	instructions := FormatInstructions()
	assert.Contains(t, instructions, TaskMarker)
	assert.Contains(t, instructions, StatusMarker)

	// The embedded example must be readable by the parser it documents.
	assert.Equal(t, []string{"Lay sod in bare area", "Trim bushes"}, ExtractIncomplete(instructions))
}
