package utils

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 14, 3, 9, 0, time.UTC)
	assert.Equal(t, "2024-05-01 14:03:09 UTC", FormatTimestamp(ts))
}

func TestStringHelpers(t *testing.T) {
	assert.Equal(t, "Not Completed", CapitalizeWords("not completed"))
	assert.Equal(t, FoldCase("Before IMAGE"), FoldCase("before image"))
	assert.Equal(t, "abc...", TruncateString("abcdefghij", 6))
	assert.Equal(t, "abc", TruncateString("abc", 6))
	assert.Equal(t, "  ✓ before", TruncateString("  ✓ before", 10))
	assert.Equal(t, "  ✓ b...", TruncateString("  ✓ before (12ms)", 8))
	assert.Equal(t, "✗✗", TruncateString("✗✗✗✗", 2))
	assert.True(t, utf8.ValidString(TruncateString("  ✗ synthesis", 3)))
	assert.Equal(t, "a\nb\nc", NormalizeNewlines("a\r\nb\rc"))
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.5 KB", FormatFileSize(1536))
}

func TestRunLoggerWritesRedactedJSONL(t *testing.T) {
	dir := t.TempDir()
	rl, err := NewRunLogger(dir, "run-1")
	require.NoError(t, err)
	rl.Redact("sk-secret")

	rl.LogEvent("stage_started", map[string]any{"stage": "before", "detail": "key=sk-secret"})
	rl.LogEvent("stage_completed", map[string]any{"stage": "before", "chars": 42})
	require.NoError(t, rl.Close())

	f, err := os.Open(rl.Path())
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "stage_started", lines[0]["type"])
	assert.Equal(t, "run-1", lines[0]["run"])
	assert.Equal(t, "key=<REDACTED>", lines[0]["detail"])
	assert.EqualValues(t, 42, lines[1]["chars"])
}

func TestNilRunLoggerIsNoop(t *testing.T) {
	var rl *RunLogger
	rl.LogEvent("x", nil)
	rl.Redact("y")
	assert.NoError(t, rl.Close())
	assert.Empty(t, rl.ID())
}
