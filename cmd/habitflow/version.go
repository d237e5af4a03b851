package main

import (
	"fmt"

	"github.com/aatumaykin/habitflow/internal/version"
	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Display the version, build time, git commit and Go version of HabitFlow.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Banner())
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Build Time: %s\n", version.BuildTime)
		fmt.Fprintf(cmd.OutOrStdout(), "Git Commit: %s\n", version.GitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\n", version.GoVersion)
	},
}
