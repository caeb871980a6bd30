package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alantheprice/yardcheck/pkg/pipeline"
	"github.com/alantheprice/yardcheck/pkg/report"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

var (
	analyzeBefore   string
	analyzeAfter    []string
	analyzeTasks    string
	analyzeNotes    string
	analyzeFinal    bool
	analyzeSelected []string
	analyzeOutput   string
	analyzeBidOut   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Inspect local photos and print the report",
	Long: `Runs the full inspection on local image files.

Tasks and notes may be given inline or read from a file with an "@" prefix:
  yardcheck analyze --before before.jpg --after after1.jpg --after after2.jpg \
    --tasks @tasks.txt --notes "Laid sod, trimmed hedges"

Without --after the report lists the tasks as not yet verified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeBefore == "" {
			return errors.New("--before is required")
		}
		tasks, err := readTextArg(analyzeTasks)
		if err != nil {
			return err
		}
		notes, err := readTextArg(analyzeNotes)
		if err != nil {
			return err
		}
		before, err := loadImage(analyzeBefore)
		if err != nil {
			return err
		}
		after, err := loadImages(analyzeAfter)
		if err != nil {
			return err
		}

		svc, err := newServices()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		runID := uuid.NewString()
		stopLog := svc.recordRun(runID)
		defer stopLog()
		if utils.IsInteractive(os.Stderr) {
			fmt.Fprintln(os.Stderr, describeImage(analyzeBefore, before))
			for i, img := range after {
				fmt.Fprintln(os.Stderr, describeImage(analyzeAfter[i], img))
			}
			stopProgress := svc.showProgress(os.Stderr)
			defer stopProgress()
		}

		result, err := svc.pipeline.Run(ctx, pipeline.Request{
			RunID:           runID,
			Before:          before,
			After:           after,
			Tasks:           tasks,
			ContractorNotes: notes,
			Final:           analyzeFinal,
			SelectedTasks:   analyzeSelected,
		})
		if err != nil {
			return err
		}

		if analyzeBidOut != "" {
			bid := report.BidDocument(time.Now(), result.Context.BeforeAnalysis, result.Context.Tasks)
			if err := writeOutput(analyzeBidOut, bid); err != nil {
				return err
			}
		}
		if len(result.Incomplete) > 0 {
			fmt.Fprintf(os.Stderr, "%d task(s) still need attention.\n", len(result.Incomplete))
		}
		return writeOutput(analyzeOutput, result.Report.Text)
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeBefore, "before", "b", "", "before image file")
	analyzeCmd.Flags().StringArrayVarP(&analyzeAfter, "after", "a", nil, "after image file (repeatable)")
	analyzeCmd.Flags().StringVarP(&analyzeTasks, "tasks", "t", "", "requested tasks, one per line, or @file")
	analyzeCmd.Flags().StringVarP(&analyzeNotes, "notes", "n", "", "contractor's summary of the work, or @file")
	analyzeCmd.Flags().BoolVar(&analyzeFinal, "final", false, "render the final verification report")
	analyzeCmd.Flags().StringArrayVar(&analyzeSelected, "selected", nil, "task the contractor marked as done (repeatable, with --final)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "", "write the report to a file instead of stdout")
	analyzeCmd.Flags().StringVar(&analyzeBidOut, "bid", "", "also write the bid document to this file")
}
