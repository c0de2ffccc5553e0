package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrumban/internal/board"
	"github.com/zulandar/scrumban/internal/column"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/task"
	"gorm.io/gorm"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}
	cmd.PersistentFlags().String("as", "", "acting user ID recorded on activities")

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskMoveCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	return cmd
}

func actingUser(cmd *cobra.Command) string {
	as, _ := cmd.Flags().GetString("as")
	return as
}

func newTaskCreateCmd() *cobra.Command {
	var (
		opts     task.CreateOpts
		priority string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task at the end of a column",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Priority = models.Priority(priority)
			opts.ActorID = actingUser(cmd)
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			t, err := task.Create(cmd.Context(), gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task %s at position %d\n", t.ID, t.Order)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ColumnID, "column", "", "column ID (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium, high or urgent (default medium)")
	cmd.Flags().StringVar(&opts.SprintID, "sprint", "", "sprint ID on the same board")
	cmd.Flags().StringVar(&opts.AssigneeID, "assignee", "", "assignee user ID")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag (repeatable)")
	cmd.MarkFlagRequired("column")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			t, err := task.Get(cmd.Context(), gormDB, args[0])
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func printTask(out io.Writer, t *models.Task) {
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	if t.Column != nil {
		fmt.Fprintf(out, "Column:      %s (position %d)\n", t.Column.Name, t.Order)
	}
	if t.Assignee != nil {
		fmt.Fprintf(out, "Assignee:    %s\n", t.Assignee.Name)
	}
	if t.DueDate != nil {
		fmt.Fprintf(out, "Due:         %s\n", t.DueDate.Format("2006-01-02"))
	}
	if len(t.Tags) > 0 {
		names := make([]string, len(t.Tags))
		for i, tag := range t.Tags {
			names[i] = tag.Name
		}
		fmt.Fprintf(out, "Tags:        %s\n", strings.Join(names, ", "))
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\n%s\n", t.Description)
	}
	if len(t.Subtasks) > 0 {
		fmt.Fprintln(out, "\nSubtasks:")
		for _, s := range t.Subtasks {
			mark := " "
			if s.Completed {
				mark = "x"
			}
			fmt.Fprintf(out, "  [%s] %s\n", mark, s.Title)
		}
	}
	if len(t.Activities) > 0 {
		fmt.Fprintln(out, "\nActivity:")
		for _, a := range t.Activities {
			fmt.Fprintf(out, "  %s  %-9s %s\n", a.CreatedAt.Format("2006-01-02 15:04"), a.Action, a.Details)
		}
	}
}

func newTaskMoveCmd() *cobra.Command {
	var (
		columnID string
		position int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a task to a column position",
		Long: `Moves a task to --position in --column, shifting its neighbours. A position
equal to the column's task count appends. With --dry-run the move is only
previewed against a local copy of the board.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			if dryRun {
				return previewMove(cmd, gormDB, args[0], columnID, position)
			}
			return runTaskMove(cmd, gormDB, args[0], columnID, position)
		},
	}

	cmd.Flags().StringVar(&columnID, "column", "", "destination column ID (required)")
	cmd.Flags().IntVar(&position, "position", 0, "destination position, 0 is the top")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview the move without writing")
	cmd.MarkFlagRequired("column")
	return cmd
}

func runTaskMove(cmd *cobra.Command, gormDB *gorm.DB, taskID, columnID string, position int) error {
	ctx := cmd.Context()
	res, err := task.Move(ctx, gormDB, taskID, columnID, position, actingUser(cmd))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !res.Moved {
		fmt.Fprintf(out, "Task %s already at position %d\n", taskID, res.To)
		return nil
	}
	fmt.Fprintf(out, "Moved task %s to position %d\n", taskID, res.To)

	wip, err := column.WIPStatus(ctx, gormDB, columnID)
	if err != nil {
		return err
	}
	if wip.Over {
		fmt.Fprintf(out, "Warning: column is at or over its WIP limit (%s)\n", wipLabel(wip.Count, wip.Limit))
	}
	return nil
}

func previewMove(cmd *cobra.Command, gormDB *gorm.DB, taskID, columnID string, position int) error {
	ctx := cmd.Context()
	boardID, err := task.BoardOf(ctx, gormDB, taskID)
	if err != nil {
		return err
	}
	view, err := board.LoadView(ctx, gormDB, boardID)
	if err != nil {
		return err
	}
	p := view.Apply(taskID, columnID, position)
	out := cmd.OutOrStdout()
	if !p.Applied {
		fmt.Fprintln(out, "Move cannot be previewed: destination column is not on this board.")
		return nil
	}
	for _, c := range view.Columns() {
		if c.ID != columnID {
			continue
		}
		fmt.Fprintf(out, "%s [%s]\n", c.Name, wipLabel(len(c.Tasks), c.WIPLimit))
		for i, t := range c.Tasks {
			marker := " "
			if t.ID == taskID {
				marker = ">"
			}
			fmt.Fprintf(out, "%s %2d  %s\n", marker, i, truncate(t.Title, 50))
		}
	}
	if p.OverWIP {
		fmt.Fprintln(out, "Warning: column would be at or over its WIP limit")
	}
	return nil
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task and close the gap in its column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			if _, err := task.Delete(cmd.Context(), gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
			return nil
		},
	}
}
