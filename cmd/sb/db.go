package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrumban/internal/config"
	"github.com/zulandar/scrumban/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the board database",
		Long:  "Creates the database if needed and migrates all tables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDBInit(cmd, cfg)
		},
	}
}

func runDBInit(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	if cfg.Database.Driver == config.DriverMySQL {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	fmt.Fprintln(out, "Board database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the board database",
		Long:  "Drops the configured database (or removes the SQLite file) and re-initializes it. All data is lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDBReset(cmd, cfg)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm dropping all data")
	return cmd
}

func runDBReset(cmd *cobra.Command, cfg *config.Config) error {
	out := cmd.OutOrStdout()
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.DropDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Dropped database %s\n", cfg.Database.Name)
	case config.DriverSQLite:
		if err := os.Remove(cfg.Database.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", cfg.Database.Path, err)
		}
		fmt.Fprintf(out, "Removed %s\n", cfg.Database.Path)
	}
	return runDBInit(cmd, cfg)
}
