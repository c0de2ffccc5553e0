package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/sprint"
)

const dateLayout = "2006-01-02"

func newSprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sprint",
		Short: "Sprint management commands",
	}

	cmd.AddCommand(newSprintCreateCmd())
	cmd.AddCommand(newSprintListCmd())
	cmd.AddCommand(newSprintStatusCmd("start", "Activate a sprint, completing any other active sprint on its board", models.SprintActive))
	cmd.AddCommand(newSprintStatusCmd("complete", "Mark a sprint completed", models.SprintCompleted))
	cmd.AddCommand(newSprintReportCmd())
	return cmd
}

func newSprintCreateCmd() *cobra.Command {
	var (
		opts       sprint.CreateOpts
		start, end string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sprint in planning status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if opts.StartDate, err = time.Parse(dateLayout, start); err != nil {
				return fmt.Errorf("invalid --start %q: %w", start, err)
			}
			if opts.EndDate, err = time.Parse(dateLayout, end); err != nil {
				return fmt.Errorf("invalid --end %q: %w", end, err)
			}
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			s, err := sprint.Create(cmd.Context(), gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created sprint %s (%d days)\n", s.ID, sprint.Duration(s))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.BoardID, "board", "", "board ID (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "sprint name (required)")
	cmd.Flags().StringVar(&opts.Goal, "goal", "", "sprint goal")
	cmd.Flags().StringVar(&start, "start", "", "start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&end, "end", "", "end date, YYYY-MM-DD (required)")
	cmd.MarkFlagRequired("board")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func newSprintListCmd() *cobra.Command {
	var boardID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sprints: active, then planning, then completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			list, err := sprint.List(cmd.Context(), gormDB, boardID, time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No sprints found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTART\tEND\tTASKS\tPROGRESS")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d%%\n",
					s.ID, truncate(s.Name, 32), s.Status,
					s.StartDate.Format(dateLayout), s.EndDate.Format(dateLayout),
					s.TaskCount, s.Progress)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&boardID, "board", "", "filter by board ID")
	return cmd
}

func newSprintStatusCmd(use, short string, status models.SprintStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			s, err := sprint.UpdateStatus(cmd.Context(), gormDB, args[0], status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sprint %s is now %s\n", s.Name, s.Status)
			return nil
		},
	}
}

func newSprintReportCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Show sprint progress and burndown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			r, err := sprint.BuildReport(cmd.Context(), gormDB, args[0], time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Progress:   %d%%\n", r.Progress)
			fmt.Fprintf(out, "Completed:  %d of %d (ideal %d)\n", r.Completed, r.Total, r.IdealCompleted)
			fmt.Fprintf(out, "Pace:       %s\n\n", r.Pace)
			renderBurndown(out, r.Burndown, !plain && isTerminal(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print the burndown as columns even on a terminal")
	return cmd
}
