package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/database"
	"github.com/fieldsync/fieldsync/internal/engine"
)

const sampleYAML = `
logging:
  level: debug
  format: console
database:
  driver: postgres
  dsn: postgres://u:p@localhost:5432/warehouse
  max_conns: 8
  connect_timeout_secs: 3
engine:
  key_column: _id
  key_policy: content_hash
  missing_keys: skip
  loose_whitespace: true
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int32(8), cfg.Database.MaxConns)
	assert.Equal(t, "content_hash", cfg.Engine.KeyPolicy)
}

func TestParse_EnvOverridesDSN(t *testing.T) {
	t.Setenv(EnvDSN, "postgres://injected@db:5432/warehouse")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "postgres://injected@db:5432/warehouse", cfg.Database.DSN)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing driver", yaml: "database:\n  dsn: x"},
		{name: "unknown driver", yaml: "database:\n  driver: oracle\n  dsn: x"},
		{name: "missing dsn", yaml: "database:\n  driver: postgres"},
		{name: "bad missing_keys", yaml: "database:\n  driver: postgres\n  dsn: x\nengine:\n  missing_keys: explode"},
		{name: "bad key_policy", yaml: "database:\n  driver: postgres\n  dsn: x\nengine:\n  key_policy: random"},
		{name: "not yaml", yaml: "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: mysql\n  dsn: u:p@tcp(localhost:3306)/wh"))
	require.NoError(t, err)

	dbCfg := cfg.DatabaseConfig()
	assert.Equal(t, database.DriverMySQL, dbCfg.Driver)
	assert.Equal(t, database.DefaultConfig("").MaxConns, dbCfg.MaxConns)
	assert.Equal(t, database.DefaultConfig("").ConnectTimeout, dbCfg.ConnectTimeout)
}

func TestDatabaseConfig_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	dbCfg := cfg.DatabaseConfig()
	assert.Equal(t, int32(8), dbCfg.MaxConns)
	assert.Equal(t, 3*time.Second, dbCfg.ConnectTimeout)
}

func TestEngineOptions(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	opts := cfg.EngineOptions()
	assert.Equal(t, "_id", opts.KeyColumn)
	assert.Equal(t, engine.MissingKeySkip, opts.MissingKeys)
	assert.NotNil(t, opts.Keys)
	assert.True(t, opts.LooseWhitespace)
}

func TestLoggerConfig(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	logCfg := cfg.LoggerConfig()
	assert.Equal(t, "debug", logCfg.Level)
	assert.Equal(t, "console", logCfg.Format)
}
