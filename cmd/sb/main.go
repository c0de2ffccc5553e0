package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "scrumban.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sb",
		Short: "Scrumban boards, sprints and burndown",
		Long:  "sb manages Scrumban boards, columns, tasks and sprints, and serves them over HTTP.",
	}
	cmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "path to config file (env SB_CONFIG)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newTeamCmd())
	cmd.AddCommand(newBoardCmd())
	cmd.AddCommand(newColumnCmd())
	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newSprintCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sb %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
