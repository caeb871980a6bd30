package utils

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// TerminalSize represents the dimensions of the terminal
type TerminalSize struct {
	Width  int
	Height int
}

// IsInteractive reports whether f is attached to a terminal.
func IsInteractive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// GetTerminalSize asks the terminal first, then COLUMNS/LINES, then falls back to 80x24.
func GetTerminalSize() TerminalSize {
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 0 {
		return TerminalSize{Width: w, Height: h}
	}

	size := TerminalSize{Width: 80, Height: 24}
	if w, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && w > 0 {
		size.Width = w
	}
	if h, err := strconv.Atoi(os.Getenv("LINES")); err == nil && h > 0 {
		size.Height = h
	}
	return size
}
