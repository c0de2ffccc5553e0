package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zulandar/scrumban/internal/config"
	"github.com/zulandar/scrumban/internal/db"
	"gorm.io/gorm"
)

// settings layers flags over SB_* environment variables: SB_CONFIG,
// SB_PORT and SB_DATABASE_DRIVER. A flag set on the command line wins.
func settings(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetDefault("config", defaultConfigPath)
	if f := cmd.Flag("config"); f != nil {
		_ = v.BindPFlag("config", f)
	}
	if f := cmd.Flag("port"); f != nil {
		_ = v.BindPFlag("port", f)
	}
	return v
}

// loadConfig reads the config file chosen by --config or SB_CONFIG and
// applies environment and flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := settings(cmd)
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	err = cfg.Apply(config.Overrides{
		Driver: v.GetString("database.driver"),
		Port:   v.GetInt("port"),
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// connectFromConfig loads the config and opens the database it names, with
// the configured transaction retry policy attached.
func connectFromConfig(cmd *cobra.Command) (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db.WithRetryPolicy(gormDB, db.PolicyFromConfig(cfg.Transactions)), nil
}
