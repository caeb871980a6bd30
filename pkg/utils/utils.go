package utils

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ReportTimestampLayout is the layout used in report headers.
const ReportTimestampLayout = "2006-01-02 15:04:05 MST"

// FormatTimestamp renders t for report headers.
func FormatTimestamp(t time.Time) string {
	return t.Format(ReportTimestampLayout)
}

// CapitalizeWords capitalizes the first letter of each word in a string.
func CapitalizeWords(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(s)
}

// FoldCase returns a caseless form of s for keyword comparisons.
func FoldCase(s string) string {
	return cases.Fold().String(s)
}

// FormatFileSize converts a file size in bytes to a human-readable string (e.g., "1.2 MB", "345 KB").
func FormatFileSize(size int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case size < KB:
		return fmt.Sprintf("%d B", size)
	case size < MB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	case size < GB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	}
}

// TruncateString truncates a string to at most maxLength runes, appending
// "..." if truncation occurs.
func TruncateString(s string, maxLength int) string {
	if maxLength <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
