package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// lineRuneBase is the first private-use code point handed out to a line.
const lineRuneBase = 0xF0000

// Diff returns a line-level unified-style comparison of two reports, each
// line prefixed with "+", "-" or " ". Identical inputs yield "".
func Diff(oldText, newText string) string {
	if oldText == newText {
		return ""
	}

	enc := &lineEncoder{index: map[string]rune{}}
	a := enc.encode(oldText)
	b := enc.encode(newText)

	dmp := diffmatchpatch.New()
	var out strings.Builder
	for _, d := range dmp.DiffMainRunes(a, b, false) {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, r := range d.Text {
			line := enc.lines[r-lineRuneBase]
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}

// lineEncoder maps each distinct line to one rune so the diff runs over
// whole lines.
type lineEncoder struct {
	index map[string]rune
	lines []string
}

func (e *lineEncoder) encode(text string) []rune {
	parts := strings.SplitAfter(text, "\n")
	runes := make([]rune, 0, len(parts))
	for _, line := range parts {
		if line == "" {
			continue
		}
		r, ok := e.index[line]
		if !ok {
			r = lineRuneBase + rune(len(e.lines))
			e.index[line] = r
			e.lines = append(e.lines, line)
		}
		runes = append(runes, r)
	}
	return runes
}

// DiffStats counts inserted and deleted lines between two reports.
func DiffStats(oldText, newText string) (added, removed int) {
	for _, line := range strings.Split(Diff(oldText, newText), "\n") {
		switch {
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
