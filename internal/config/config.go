// Package config loads the explicit configuration struct the engine and
// drivers are constructed from. There are no process-wide singletons: the
// hosting scheduler injects credentials through the environment, everything
// else comes from a YAML file, and the resulting Config is passed by value
// into whatever needs it.
package config

import (
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/engine"
	"github.com/fieldsync/fieldsync/internal/errs"
	"github.com/fieldsync/fieldsync/internal/logger"
)

// EnvDSN, when set, overrides the configured database DSN. This is how the
// hosting platform injects credentials without writing them to disk.
const EnvDSN = "FIELDSYNC_DB_DSN"

// Config is the root configuration document.
type Config struct {
	Logging  Logging  `yaml:"logging"`
	Database Database `yaml:"database"`
	Engine   Engine   `yaml:"engine"`
}

// Logging mirrors logger.Config in YAML-friendly form.
type Logging struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	TimeFormat string `yaml:"time_format"` // rfc3339, unix, …
}

// Database selects and tunes the backing driver.
type Database struct {
	Driver string `yaml:"driver"` // postgres, mysql
	DSN    string `yaml:"dsn"`

	MaxConns           int32 `yaml:"max_conns"`
	MinConns           int32 `yaml:"min_conns"`
	ConnectTimeoutSecs int   `yaml:"connect_timeout_secs"`
	QueryTimeoutSecs   int   `yaml:"query_timeout_secs"`
}

// Engine tunes upsert behavior.
type Engine struct {
	KeyColumn string `yaml:"key_column"` // default "_id"

	// KeyPolicy: "" (none — missing keys abort or skip), "uuid",
	// "content_hash", or "sequential".
	KeyPolicy string `yaml:"key_policy"`

	// MissingKeys: "abort" (default) or "skip".
	MissingKeys string `yaml:"missing_keys"`

	LooseWhitespace bool `yaml:"loose_whitespace"`
}

// Load reads and validates the YAML file at path, applying environment
// overrides afterwards.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML document, applies environment overrides, and
// validates the result.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config", err)
	}

	if dsn := os.Getenv(EnvDSN); dsn != "" {
		cfg.Database.DSN = dsn
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields that have no safe default.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case string(database.DriverPostgres), string(database.DriverMySQL):
	case "":
		return errs.New(errs.ErrKindInvalidInput, "database.driver is required")
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported database.driver %q", c.Database.Driver)
	}

	if c.Database.DSN == "" {
		return errs.Newf(errs.ErrKindInvalidInput, "database.dsn is required (or set %s)", EnvDSN)
	}

	switch c.Engine.MissingKeys {
	case "", "abort", "skip":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported engine.missing_keys %q", c.Engine.MissingKeys)
	}

	switch c.Engine.KeyPolicy {
	case "", "uuid", "content_hash", "sequential":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported engine.key_policy %q", c.Engine.KeyPolicy)
	}

	return nil
}

// DatabaseConfig materializes the driver configuration, filling pool and
// timeout defaults.
func (c *Config) DatabaseConfig() *database.Config {
	out := database.DefaultConfig(c.Database.DSN)
	out.Driver = database.Driver(c.Database.Driver)
	if c.Database.MaxConns > 0 {
		out.MaxConns = c.Database.MaxConns
	}
	if c.Database.MinConns > 0 {
		out.MinConns = c.Database.MinConns
	}
	if c.Database.ConnectTimeoutSecs > 0 {
		out.ConnectTimeout = time.Duration(c.Database.ConnectTimeoutSecs) * time.Second
	}
	if c.Database.QueryTimeoutSecs > 0 {
		out.QueryTimeout = time.Duration(c.Database.QueryTimeoutSecs) * time.Second
	}
	return out
}

// EngineOptions materializes engine.Options from the document.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.Options{
		KeyColumn:       c.Engine.KeyColumn,
		LooseWhitespace: c.Engine.LooseWhitespace,
	}
	if c.Engine.MissingKeys == "skip" {
		opts.MissingKeys = engine.MissingKeySkip
	}
	switch c.Engine.KeyPolicy {
	case "uuid":
		opts.Keys = engine.UUIDKeys()
	case "content_hash":
		opts.Keys = engine.ContentHashKeys()
	case "sequential":
		opts.Keys = engine.SequentialKeys(1)
	}
	return opts
}

// LoggerConfig materializes the logger configuration.
func (c *Config) LoggerConfig() *logger.Config {
	out := logger.DefaultConfig()
	if c.Logging.Level != "" {
		out.Level = c.Logging.Level
	}
	if c.Logging.Format != "" {
		out.Format = c.Logging.Format
	}
	if c.Logging.TimeFormat != "" {
		out.TimeFormat = c.Logging.TimeFormat
	}
	return out
}
