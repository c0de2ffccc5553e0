package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrumban/internal/column"
)

func newColumnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "column",
		Short: "Column management commands",
	}

	cmd.AddCommand(newColumnAddCmd())
	cmd.AddCommand(newColumnMoveCmd())
	cmd.AddCommand(newColumnDeleteCmd())
	return cmd
}

func newColumnAddCmd() *cobra.Command {
	var (
		opts  column.CreateOpts
		limit int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a column to a board",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("wip") {
				opts.WIPLimit = &limit
			}
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			c, err := column.Create(cmd.Context(), gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created column %s at position %d\n", c.ID, c.Order)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.BoardID, "board", "", "board ID (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "column name (required)")
	cmd.Flags().IntVar(&limit, "wip", 0, "advisory WIP limit")
	cmd.Flags().BoolVar(&opts.Done, "done", false, "tasks in this column count as completed")
	cmd.MarkFlagRequired("board")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newColumnMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move a column to a new position on its board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", args[1], err)
			}
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			c, err := column.Move(cmd.Context(), gormDB, args[0], pos)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Column %s now at position %d\n", c.Name, c.Order)
			return nil
		},
	}
}

func newColumnDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an empty column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			if _, err := column.Delete(cmd.Context(), gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted column %s\n", args[0])
			return nil
		},
	}
}
