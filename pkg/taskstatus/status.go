package taskstatus

import (
	"strings"

	"github.com/alantheprice/yardcheck/pkg/utils"
)

// Status is the completion state reported for one task.
type Status int

const (
	Unknown Status = iota
	Completed
	NotCompleted
	PartiallyCompleted
	CompletedWithSubstitution
)

var statusNames = map[Status]string{
	Unknown:                   "unknown",
	Completed:                 "completed",
	NotCompleted:              "not completed",
	PartiallyCompleted:        "partially completed",
	CompletedWithSubstitution: "completed with substitution",
}

// String returns the lowercase status phrase.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[Unknown]
}

// Label is the display form used in reports, e.g. "Partially Completed".
func (s Status) Label() string {
	return utils.CapitalizeWords(s.String())
}

// Incomplete reports whether the task still owes work before payment.
func (s Status) Incomplete() bool {
	return s == NotCompleted || s == PartiallyCompleted
}

// MarshalText lets Status travel as its phrase in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// classify maps a lowercased logical line to a status. Incomplete phrases win
// over "completed" because "status: not completed" also contains it.
func classify(lower string) Status {
	switch {
	case strings.Contains(lower, phraseNotCompleted), strings.Contains(lower, phraseIncomplete):
		return NotCompleted
	case strings.Contains(lower, phrasePartiallyCompleted):
		return PartiallyCompleted
	case strings.Contains(lower, phraseCompleted):
		if strings.Contains(lower, "substitut") || strings.Contains(lower, "instead of") {
			return CompletedWithSubstitution
		}
		return Completed
	default:
		return Unknown
	}
}
