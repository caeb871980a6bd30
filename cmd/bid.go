package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/alantheprice/yardcheck/pkg/report"
)

var (
	bidTasks  string
	bidOutput string
)

var bidCmd = &cobra.Command{
	Use:   "bid <before-image>",
	Short: "Write the bid & initial analysis document",
	Long:  `Describes the before photo and renders it with the requested tasks as a document contractors can bid against. No after photos are needed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := readTextArg(bidTasks)
		if err != nil {
			return err
		}
		if tasks == "" {
			return errors.New("--tasks is required")
		}
		before, err := loadImage(args[0])
		if err != nil {
			return err
		}
		svc, err := newServices()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		analysis, err := svc.pipeline.Describe(ctx, before)
		if err != nil {
			return err
		}
		return writeOutput(bidOutput, report.BidDocument(time.Now(), analysis, tasks))
	},
}

func init() {
	bidCmd.Flags().StringVarP(&bidTasks, "tasks", "t", "", "requested tasks, one per line, or @file")
	bidCmd.Flags().StringVarP(&bidOutput, "output", "o", "", "write the document to a file instead of stdout")
}
