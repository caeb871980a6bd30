package prompts

import (
	"fmt"
	"strings"

	"github.com/alantheprice/yardcheck/pkg/imageref"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/taskstatus"
)

const noContractorNotes = "(The contractor did not provide a summary of the work.)"

const beforeInstructions = "You are a professional landscape designer and inspector. " +
	"Analyze the 'before' image provided. Describe in detail the current state " +
	"of the lawn, garden beds, and any bare dirt areas. " +
	"Focus on: plant health, presence of weeds, soil condition (if visible), " +
	"existing landscaping features, and any visible signs of neglect or areas " +
	"that clearly need work. " +
	"Provide a bulleted list of potential landscaping projects that seem necessary or could enhance the space based on this image. " +
	"Maintain a neutral, professional tone."

// Before asks the vision model to describe the site before any work.
func Before(before *imageref.ImageRef) []api.Message {
	return []api.Message{{
		Role:  api.RoleUser,
		Parts: []api.Part{api.TextPart(beforeInstructions), api.ImagePart(before)},
	}}
}

// VerificationInput is everything the per-after-image prompt embeds.
type VerificationInput struct {
	BeforeAnalysis  string
	Tasks           string
	ContractorNotes string
	Image           *imageref.ImageRef
	// Index is 0-based; Total is the number of after images submitted.
	Index int
	Total int
}

// Verification asks the vision model to check the task list against one
// after image. The before state travels as text since only one image fits.
func Verification(in VerificationInput) []api.Message {
	label := AfterImageLabel(in.Index, in.Total)

	var b strings.Builder
	b.WriteString("You are a meticulous landscape project manager focused on quality assurance. ")
	b.WriteString("Your goal is to verify if landscaping tasks have been completed by a contractor.\n\n")
	b.WriteString("Description of the site BEFORE the work (from an earlier inspection):\n")
	b.WriteString(strings.TrimSpace(in.BeforeAnalysis))
	b.WriteString("\n\nRequested tasks:\n")
	b.WriteString(strings.TrimSpace(in.Tasks))
	b.WriteString("\n\nWhat the contractor says was done:\n")
	b.WriteString(contractorNotes(in.ContractorNotes))
	fmt.Fprintf(&b, "\n\nThe attached photo is %s, taken AFTER the work. ", label)
	b.WriteString("Judge each task only on what is visible in this specific photo compared to the before description. ")
	b.WriteString("If a task cannot be judged from this photo, say so in its status line.\n\n")
	b.WriteString(taskstatus.FormatInstructions())
	fmt.Fprintf(&b, "\nNow, analyze %s and verify the tasks:", label)

	return []api.Message{{
		Role:  api.RoleUser,
		Parts: []api.Part{api.TextPart(b.String()), api.ImagePart(in.Image)},
	}}
}

// SynthesisInput aggregates every per-image analysis.
type SynthesisInput struct {
	BeforeAnalysis  string
	Tasks           string
	ContractorNotes string
	AfterAnalyses   []string
}

// Synthesis asks the text model to merge the per-image analyses into one
// verdict per task. Analyses appear in submission order.
func Synthesis(in SynthesisInput) []api.Message {
	system := "You are a landscape project manager writing the final verification of a contractor's work. " +
		"You receive inspection notes for several photos of the same site. " +
		"A task counts as completed if any photo clearly shows it done; " +
		"it is partially completed if the photos show only some of the work; otherwise it is not completed."

	var b strings.Builder
	b.WriteString("Before state of the site:\n")
	b.WriteString(strings.TrimSpace(in.BeforeAnalysis))
	b.WriteString("\n\nRequested tasks:\n")
	b.WriteString(strings.TrimSpace(in.Tasks))
	b.WriteString("\n\nContractor's summary:\n")
	b.WriteString(contractorNotes(in.ContractorNotes))
	b.WriteString("\n\nInspection notes per after photo:\n")
	for i, analysis := range in.AfterAnalyses {
		fmt.Fprintf(&b, "\n%s\n%s\n", AfterImageHeader(i), strings.TrimSpace(analysis))
	}
	b.WriteString("\nCombine the notes into a single verdict for every requested task.\n\n")
	b.WriteString(taskstatus.FormatInstructions())

	return []api.Message{
		api.NewTextMessage(api.RoleSystem, system),
		api.NewTextMessage(api.RoleUser, b.String()),
	}
}

// AfterImageLabel is the 1-based "After Image N of M" label.
func AfterImageLabel(index, total int) string {
	return fmt.Sprintf("After Image %d of %d", index+1, total)
}

// AfterImageHeader is the 1-based "After Image N" header.
func AfterImageHeader(index int) string {
	return fmt.Sprintf("After Image %d", index+1)
}

func contractorNotes(notes string) string {
	if strings.TrimSpace(notes) == "" {
		return noContractorNotes
	}
	return strings.TrimSpace(notes)
}
