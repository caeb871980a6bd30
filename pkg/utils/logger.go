package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync" // For thread-safe initialization

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogDir is the directory, relative to the working directory, that holds the rotated log file.
const LogDir = ".yardcheck"

// Logger writes operational messages to a rotated log file.
// A nil *Logger is valid and discards everything.
type Logger struct {
	logger        *log.Logger
	jsonMode      bool
	correlationID string
}

var (
	globalLogger *Logger
	once         sync.Once
)

// GetLogger returns the singleton instance of Logger.
// It initializes the logger with a file handler that rotates logs.
func GetLogger() *Logger {
	once.Do(func() {
		logFile := &lumberjack.Logger{
			Filename:   filepath.Join(LogDir, "yardcheck.log"),
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		globalLogger = NewLogger(logFile)
	})
	if os.Getenv("YARDCHECK_JSON_LOGS") == "1" {
		globalLogger.jsonMode = true
	}
	if cid := os.Getenv("YARDCHECK_CORRELATION_ID"); cid != "" {
		globalLogger.correlationID = cid
	}
	return globalLogger
}

// NewLogger builds a logger over an arbitrary writer. Tests use it with a buffer.
func NewLogger(w io.Writer) *Logger {
	return &Logger{logger: log.New(w, "", log.LstdFlags)}
}

// WithCorrelationID returns a copy of the logger that tags every line with cid.
func (w *Logger) WithCorrelationID(cid string) *Logger {
	if w == nil {
		return nil
	}
	clone := *w
	clone.correlationID = cid
	return &clone
}

// SetJSONMode switches between plain and JSON-lines output.
func (w *Logger) SetJSONMode(enabled bool) {
	if w == nil {
		return
	}
	w.jsonMode = enabled
}

// Close closes the logger resources.
func (w *Logger) Close() error {
	if w == nil {
		return nil
	}
	if logFile, ok := w.logger.Writer().(*lumberjack.Logger); ok {
		return logFile.Close()
	}
	return nil
}

// Log logs a general message only to the log file.
func (w *Logger) Log(message string) {
	if w == nil {
		return
	}
	if w.jsonMode {
		_ = json.NewEncoder(w.logger.Writer()).Encode(map[string]any{"level": "info", "msg": message, "cid": w.correlationID})
		return
	}
	if w.correlationID != "" {
		w.logger.Printf("[%s] %s", w.correlationID, message)
		return
	}
	w.logger.Print(message)
}

// Logf logs a formatted general message only to the log file.
func (w *Logger) Logf(format string, v ...interface{}) {
	if w == nil {
		return
	}
	w.Log(fmt.Sprintf(format, v...))
}

func (w *Logger) LogError(err error) {
	if w == nil || err == nil {
		return
	}
	if w.jsonMode {
		_ = json.NewEncoder(w.logger.Writer()).Encode(map[string]any{"level": "error", "error": err.Error(), "cid": w.correlationID})
		return
	}
	w.Log(fmt.Sprintf("Error: %s", err))
}
