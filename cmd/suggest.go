package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var suggestRaw bool

var suggestCmd = &cobra.Command{
	Use:   "suggest <before-image>",
	Short: "Propose landscaping tasks from a before photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		raw, tasks, err := svc.pipeline.SuggestTasks(ctx, before)
		if err != nil {
			return err
		}
		if suggestRaw {
			fmt.Println(raw)
			return nil
		}
		for _, task := range tasks {
			fmt.Println(task)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().BoolVar(&suggestRaw, "raw", false, "print the model's bulleted answer unparsed")
}
