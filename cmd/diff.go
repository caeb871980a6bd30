package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alantheprice/yardcheck/pkg/report"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

var diffCmd = &cobra.Command{
	Use:   "diff <old-report> <new-report>",
	Short: "Compare two saved reports line by line",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldText, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		newText, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}

		a := utils.NormalizeNewlines(string(oldText))
		b := utils.NormalizeNewlines(string(newText))
		out := cmd.OutOrStdout()
		diff := report.Diff(a, b)
		if diff == "" {
			fmt.Fprintln(out, "Reports are identical.")
			return nil
		}
		fmt.Fprint(out, diff)
		added, removed := report.DiffStats(a, b)
		fmt.Fprintf(cmd.ErrOrStderr(), "%d line(s) added, %d line(s) removed\n", added, removed)
		return nil
	},
}
