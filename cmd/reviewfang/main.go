// Package main provides the entry point for the reviewfang CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reviewfang/cmd/reviewfang/commands"
	"github.com/Sumatoshi-tech/reviewfang/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reviewfang",
		Short: "Reviewfang - code review coverage and line lifetime mining",
		Long: `Reviewfang replays a repository's first-parent history, attributes
commits to the pull requests that reviewed them, and measures how long
reviewed versus unreviewed lines survive.

Commands:
  analyze   Run the full analysis pipeline over a repository window
  plot      Re-render the lifetime CDF chart from a stats stream`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewPlotCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "reviewfang %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
