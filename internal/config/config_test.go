package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoadedConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGENT_GUARDRAIL_MODE", "keyword")

	c, err := NewLoadedConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", c.DatabaseDriver)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, QueueMemory, c.QueueBackend)
	assert.Equal(t, ProviderBedrock, c.AgentProvider)
	assert.Equal(t, 1, c.AWSMaxAttempts)
	assert.Equal(t, 10, c.RetryMaxRetries)
	assert.Equal(t, 4*time.Second, c.RetryBaseDelay)
	assert.Equal(t, 50, c.RequestLimit)
	assert.Equal(t, 1, c.OutputRetries)
	assert.Equal(t, 8, c.WorkerConcurrency)
}

func TestNewLoadedConfigFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGENT_DATABASE_DRIVER", "sqlite3")
	t.Setenv("AGENT_DATABASE_URL", ":memory:")
	t.Setenv("AGENT_AGENT_PROVIDER", "mock")
	t.Setenv("AGENT_GUARDRAIL_MODE", "keyword")
	t.Setenv("AGENT_RETRY_BASE_DELAY", "250ms")
	t.Setenv("AGENT_LOG_LEVEL", "debug")

	c, err := NewLoadedConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", c.DatabaseDriver)
	assert.Equal(t, ProviderMock, c.AgentProvider)
	assert.Equal(t, 250*time.Millisecond, c.RetryBaseDelay)
	assert.Equal(t, slog.LevelDebug, c.Level())
}

func TestNewLoadedConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("AGENT_GUARDRAIL_MODE=keyword\nAGENT_WORKER_CONCURRENCY=3\n"), 0o644))
	t.Chdir(dir)
	// Register cleanup for the variables godotenv will set.
	t.Setenv("AGENT_GUARDRAIL_MODE", "")
	t.Setenv("AGENT_WORKER_CONCURRENCY", "")
	os.Unsetenv("AGENT_GUARDRAIL_MODE")
	os.Unsetenv("AGENT_WORKER_CONCURRENCY")

	c, err := NewLoadedConfig()
	require.NoError(t, err)
	assert.Equal(t, GuardrailKeyword, c.GuardrailMode)
	assert.Equal(t, 3, c.WorkerConcurrency)
}

func TestValidate(t *testing.T) {
	valid := Config{
		DatabaseDriver:    "sqlite3",
		QueueBackend:      QueueMemory,
		AgentProvider:     ProviderMock,
		GuardrailMode:     GuardrailKeyword,
		RequestLimit:      50,
		WorkerConcurrency: 1,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"queue backend", func(c *Config) { c.QueueBackend = "kafka" }},
		{"provider", func(c *Config) { c.AgentProvider = "gpt" }},
		{"guardrail mode", func(c *Config) { c.GuardrailMode = "none" }},
		{"bedrock guardrail without id", func(c *Config) { c.GuardrailMode = GuardrailBedrock }},
		{"negative retries", func(c *Config) { c.RetryMaxRetries = -1 }},
		{"request limit", func(c *Config) { c.RequestLimit = 0 }},
		{"concurrency", func(c *Config) { c.WorkerConcurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("handoff triggered", "phone", "***-***-6666")

	assert.Contains(t, stderr.String(), "handoff triggered")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "handoff triggered", entry["msg"])
	assert.Equal(t, "***-***-6666", entry["phone"])
}

func TestSetupLoggerWithoutFile(t *testing.T) {
	logger, cleanup := SetupLogger("", slog.LevelInfo)
	require.NotNil(t, logger)
	assert.NoError(t, cleanup())
}
