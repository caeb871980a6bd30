//go:build tools

// Tool dependencies tracked in go.mod for go generate (mockgen).
package main

import (
	_ "go.uber.org/mock/mockgen"
)
