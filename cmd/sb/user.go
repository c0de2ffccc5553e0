package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrumban/internal/models"
	"github.com/zulandar/scrumban/internal/team"
	"github.com/zulandar/scrumban/internal/user"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User account commands",
	}

	cmd.AddCommand(newUserCreateCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var opts user.CreateOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			u, err := user.Create(cmd.Context(), gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s\n", u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password, at least 8 characters (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newUserListCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List or search users",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			var users []models.User
			if query != "" {
				users, err = user.Search(cmd.Context(), gormDB, query)
			} else {
				users, err = user.List(cmd.Context(), gormDB)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "match name or email")
	return cmd
}

func newTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Team commands",
	}

	cmd.AddCommand(newTeamCreateCmd())
	cmd.AddCommand(newTeamAddMemberCmd())
	return cmd
}

func newTeamCreateCmd() *cobra.Command {
	var opts team.CreateOpts

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a team owned by a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			t, err := team.Create(cmd.Context(), gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created team %s\n", t.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "team name (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "team description")
	cmd.Flags().StringVar(&opts.OwnerID, "owner", "", "owner user ID (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("owner")
	return cmd
}

func newTeamAddMemberCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "add-member <team-id> <user-id>",
		Short: "Add a user to a team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(cmd)
			if err != nil {
				return err
			}
			m, err := team.AddMember(cmd.Context(), gormDB, args[0], args[1], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to team %s as %s\n", m.UserID, m.TeamID, m.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "member role (admin or member)")
	return cmd
}
