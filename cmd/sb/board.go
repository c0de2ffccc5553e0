package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrumban/internal/board"
)

func newBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Board management commands",
	}

	cmd.AddCommand(newBoardCreateCmd())
	cmd.AddCommand(newBoardListCmd())
	cmd.AddCommand(newBoardShowCmd())
	cmd.AddCommand(newBoardDeleteCmd())
	return cmd
}

func newBoardCreateCmd() *cobra.Command {
	var opts board.CreateOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a board",
		Long:  "Creates a board for a team, seeded with the default columns from the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			opts.Columns = cfg.DefaultColumns
			b, err := board.Create(cmd.Context(), gormDB, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created board %s\n", b.ID)
			for _, c := range b.Columns {
				fmt.Fprintf(out, "  %d  %s\n", c.Order, c.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.TeamID, "team", "", "owning team ID (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "board name (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "board description")
	cmd.MarkFlagRequired("team")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newBoardListCmd() *cobra.Command {
	var teamID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List boards, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			boards, err := board.List(cmd.Context(), gormDB, teamID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(boards) == 0 {
				fmt.Fprintln(out, "No boards found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTEAM\tSPRINT\tTASKS")
			for _, b := range boards {
				s := b.ActiveSprint
				if s == "" {
					s = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", b.ID, truncate(b.Name, 32), b.TeamName, s, b.TaskCount)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&teamID, "team", "", "filter by team ID")
	return cmd
}

func newBoardShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a board's columns and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			d, err := board.Get(cmd.Context(), gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s", d.Name)
			if d.Team != nil {
				fmt.Fprintf(out, " (%s)", d.Team.Name)
			}
			fmt.Fprintln(out)
			if d.ActiveSprint != nil {
				fmt.Fprintf(out, "Active sprint: %s\n", d.ActiveSprint.Name)
			}
			for _, c := range d.Columns {
				flag := ""
				if c.OverWIP(len(c.Tasks)) {
					flag = "  [WIP]"
				}
				fmt.Fprintf(out, "\n%s [%s]  %s%s\n", c.Name, wipLabel(len(c.Tasks), c.WIPLimit), c.ID, flag)
				for _, t := range c.Tasks {
					fmt.Fprintf(out, "  %2d  %-8s %s  %s\n", t.Order, t.Priority, t.ID, truncate(t.Title, 50))
				}
			}
			return nil
		},
	}
}

func newBoardDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a board with all its columns, tasks and sprints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			if err := board.Delete(cmd.Context(), gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted board %s\n", args[0])
			return nil
		},
	}
}
