package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersionInfo(cmd.OutOrStdout())
	},
}

// Set at build time with -ldflags "-X github.com/alantheprice/yardcheck/cmd.version=...".
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = ""
)

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			printVersionInfo(cmd.OutOrStdout())
			os.Exit(0)
		}
		_ = cmd.Help()
	}
}

func printVersionInfo(w io.Writer) {
	fmt.Fprintf(w, "yardcheck version %s\n", version)
	if buildDate != "unknown" {
		fmt.Fprintf(w, "Build date: %s\n", buildDate)
	}
	if gitCommit != "" {
		fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
	}
	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		fmt.Fprintf(w, "Module version: %s\n", info.Main.Version)
	}
	fmt.Fprintf(w, "Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
