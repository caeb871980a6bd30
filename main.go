package main

import (
	"os"

	"github.com/alantheprice/yardcheck/cmd"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

func main() {
	logger := utils.GetLogger()
	defer func() {
		if err := logger.Close(); err != nil {
			// The logger itself may be the problem, so report on stderr.
			os.Stderr.WriteString("Error closing logger: " + err.Error() + "\n")
		}
	}()

	if err := cmd.Execute(); err != nil {
		logger.Logf("Application error: %v", err)
		os.Exit(1)
	}
}
