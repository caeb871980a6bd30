package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RunLogger writes structured JSONL events for a single analysis run.
// A nil *RunLogger discards everything.
type RunLogger struct {
	mu      sync.Mutex
	f       *os.File
	id      string
	path    string
	secrets []string
}

// NewRunLogger opens <dir>/run-<id>.jsonl for appending.
func NewRunLogger(dir, id string) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.jsonl", id))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	return &RunLogger{f: f, id: id, path: path}, nil
}

// RunLogDir is where run logs go by default.
func RunLogDir() string {
	return filepath.Join(LogDir, "runlogs")
}

// ID returns the run identifier.
func (r *RunLogger) ID() string {
	if r == nil {
		return ""
	}
	return r.id
}

// Path returns the log file path.
func (r *RunLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Redact registers values that must never appear in the log, such as API keys.
func (r *RunLogger) Redact(values ...string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range values {
		if v != "" {
			r.secrets = append(r.secrets, v)
		}
	}
}

// Close closes the underlying file, if open.
func (r *RunLogger) Close() error {
	if r == nil || r.f == nil {
		return nil
	}
	return r.f.Close()
}

// LogEvent writes a JSON line with the provided type and fields.
func (r *RunLogger) LogEvent(eventType string, fields map[string]any) {
	if r == nil || r.f == nil {
		return
	}
	payload := map[string]any{
		"ts":   time.Now().Format(time.RFC3339Nano),
		"type": eventType,
		"run":  r.id,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range fields {
		if s, ok := v.(string); ok {
			v = r.redact(s)
		}
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = r.f.Write(append(b, '\n'))
}

func (r *RunLogger) redact(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, "<REDACTED>")
	}
	return s
}
