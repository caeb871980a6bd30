// Package report renders inspection results as plain-text documents.
// Every function here is pure: the caller supplies the timestamp.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/alantheprice/yardcheck/pkg/utils"
)

const (
	projectTitle = "--- Landscaping Project Report ---"
	finalTitle   = "--- Landscaping Final Verification Report ---"
	bidTitle     = "--- Landscaping Project Bid & Initial Analysis ---"

	beforeHeading       = "Before Image Analysis (Current State)"
	afterHeading        = "After Image Analyses"
	verificationHeading = "Requested Tasks Verification"
	remainingHeading    = "Tasks Left to Be Completed (Before Contractor Payment)"
	allDoneHeading      = "All Requested Tasks Appear Completed!"
	pendingHeading      = "Requested Tasks (Not Yet Verified)"
	contractorHeading   = "Contractor Work Summary"
	summaryHeading      = "Task Status Summary"

	remainingIntro  = "The following tasks require further attention based on the 'After' image:"
	remainingFooter = "*Please refer to the 'Requested Tasks Verification' section above for detailed reasons for non-completion.*"
	allDoneBody     = "Based on the provided images and tasks, all specified work seems to be finished. The contractor is good to go for payment verification."
	pendingNotice   = "No 'After' image has been provided yet, so these tasks have not been verified. Upload an 'After' image once the work is done to generate the verification report."
)

// Input is the analysis a report is rendered from.
type Input struct {
	GeneratedAt     time.Time
	BeforeAnalysis  string
	AfterAnalyses   []string
	Tasks           string
	ContractorNotes string
	Verification    string
	// Incomplete lists tasks still owing work, in order of appearance.
	Incomplete []string
}

// Report is the rendered document plus the raw fields later stages reuse.
type Report struct {
	Text           string
	BeforeAnalysis string
	Tasks          string
}

// builder numbers "### N." sections as they are written.
type builder struct {
	b       strings.Builder
	section int
}

func newBuilder(title string, at time.Time) *builder {
	bd := &builder{}
	bd.b.WriteString(title)
	bd.b.WriteString("\n")
	fmt.Fprintf(&bd.b, "**Generated on: %s**\n", utils.FormatTimestamp(at))
	return bd
}

func (bd *builder) heading(title string) {
	bd.section++
	fmt.Fprintf(&bd.b, "\n### %d. %s\n", bd.section, title)
}

func (bd *builder) subheading(title string) {
	fmt.Fprintf(&bd.b, "\n#### %s\n", title)
}

func (bd *builder) line(s string) {
	bd.b.WriteString(s)
	bd.b.WriteString("\n")
}

// raw writes model output verbatim, ending it with exactly one newline.
func (bd *builder) raw(s string) {
	bd.b.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		bd.b.WriteString("\n")
	}
}

func (bd *builder) bullets(items []string) {
	for _, item := range items {
		fmt.Fprintf(&bd.b, "- %s\n", item)
	}
}

func (bd *builder) String() string { return bd.b.String() }

func (bd *builder) before(analysis string) {
	bd.heading(beforeHeading)
	bd.raw(analysis)
}

func (bd *builder) afterAnalyses(analyses []string) {
	if len(analyses) == 0 {
		return
	}
	bd.heading(afterHeading)
	for i, a := range analyses {
		bd.subheading(fmt.Sprintf("After Image %d", i+1))
		bd.raw(a)
	}
}

func (bd *builder) verification(tasks, verification string) {
	bd.heading(verificationHeading)
	bd.line("Original Requested Tasks:")
	bd.raw(tasks)
	bd.line("")
	bd.line("Verification Report:")
	bd.raw(verification)
}

// completion renders the remaining-work list, or the explicit all-done
// section when nothing is left. It never renders an empty list.
func (bd *builder) completion(incomplete []string) {
	if len(incomplete) == 0 {
		bd.heading(allDoneHeading)
		bd.line(allDoneBody)
		return
	}
	bd.heading(remainingHeading)
	bd.line(remainingIntro)
	bd.bullets(incomplete)
	bd.line("")
	bd.line(remainingFooter)
}

// Assemble renders the verification report.
func Assemble(in Input) Report {
	bd := newBuilder(projectTitle, in.GeneratedAt)
	bd.before(in.BeforeAnalysis)
	bd.afterAnalyses(in.AfterAnalyses)
	bd.verification(in.Tasks, in.Verification)
	bd.completion(in.Incomplete)

	return Report{Text: bd.String(), BeforeAnalysis: in.BeforeAnalysis, Tasks: in.Tasks}
}

// Pending renders the report for a project with no after image yet: the
// before analysis and the task list, with no completion section.
func Pending(at time.Time, beforeAnalysis, tasks string) Report {
	bd := newBuilder(projectTitle, at)
	bd.before(beforeAnalysis)
	bd.heading(pendingHeading)
	bd.line("Original Requested Tasks:")
	bd.raw(tasks)
	bd.line("")
	bd.line(pendingNotice)

	return Report{Text: bd.String(), BeforeAnalysis: beforeAnalysis, Tasks: tasks}
}

// BidDocument is the shareable initial analysis a contractor bids against.
func BidDocument(at time.Time, beforeAnalysis, tasks string) string {
	var b strings.Builder
	b.WriteString(bidTitle)
	b.WriteString("\n")
	fmt.Fprintf(&b, "**Generated on: %s**\n", utils.FormatTimestamp(at))
	b.WriteString("\n### Before Image Analysis (Current State)\n")
	b.WriteString(strings.TrimRight(beforeAnalysis, "\n"))
	b.WriteString("\n\n### Original Requested Tasks\n")
	b.WriteString(strings.TrimRight(tasks, "\n"))
	b.WriteString("\n\nThis document outlines the initial state and requested tasks for bidding purposes.\n")
	return b.String()
}
