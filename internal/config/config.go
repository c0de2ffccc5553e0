// Package config provides YAML-based configuration loading for the board service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration, loaded from scrumban.yaml.
type Config struct {
	Database       DatabaseConfig    `yaml:"database"`
	Server         ServerConfig      `yaml:"server"`
	Transactions   TransactionConfig `yaml:"transactions"`
	Telemetry      TelemetryConfig   `yaml:"telemetry"`
	DefaultColumns []ColumnConfig    `yaml:"default_columns"`
}

// DatabaseConfig selects and addresses the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite file
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// TransactionConfig bounds the retry of transactions that fail with a
// serialization conflict.
type TransactionConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	MaxElapsed time.Duration `yaml:"max_elapsed"`
}

// TelemetryConfig toggles OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Stdout       bool   `yaml:"stdout"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// ColumnConfig describes a column seeded on every new board.
type ColumnConfig struct {
	Name     string `yaml:"name"`
	WIPLimit int    `yaml:"wip_limit"`
	Done     bool   `yaml:"done"`
}

// Supported database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DefaultBoardColumns is used when the config lists no default_columns.
var DefaultBoardColumns = []ColumnConfig{
	{Name: "Backlog"},
	{Name: "In Progress", WIPLimit: 3},
	{Name: "In Review", WIPLimit: 2},
	{Name: "Done", Done: true},
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration for a local SQLite database.
func Default() *Config {
	cfg := Config{Database: DatabaseConfig{Driver: DriverSQLite}}
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMySQL
	}
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "scrumban"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			c.Database.Path = "scrumban.db"
		}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Transactions.MaxRetries == 0 {
		c.Transactions.MaxRetries = 5
	}
	if c.Transactions.MaxElapsed == 0 {
		c.Transactions.MaxElapsed = 5 * time.Second
	}
	if len(c.DefaultColumns) == 0 {
		c.DefaultColumns = append([]ColumnConfig(nil), DefaultBoardColumns...)
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be %q or %q", c.Database.Driver, DriverMySQL, DriverSQLite))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Transactions.MaxRetries < 0 {
		errs = append(errs, "transactions.max_retries must not be negative")
	}
	for i, col := range c.DefaultColumns {
		if col.Name == "" {
			errs = append(errs, fmt.Sprintf("default_columns[%d].name is required", i))
		}
		if col.WIPLimit < 0 {
			errs = append(errs, fmt.Sprintf("default_columns[%d].wip_limit must not be negative", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Overrides replace file settings with values from flags or the
// environment. Zero fields leave the file's value in place.
type Overrides struct {
	Driver string
	Port   int
}

// Apply merges o into c, fills defaults for a newly selected driver and
// re-validates.
func (c *Config) Apply(o Overrides) error {
	if o.Driver != "" {
		c.Database.Driver = o.Driver
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	c.applyDefaults()
	return c.validate()
}
