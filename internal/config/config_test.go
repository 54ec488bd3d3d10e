package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0.5, cfg.Assessment.DecisionThreshold)
	assert.Equal(t, 0.15, cfg.Assessment.StabilityBuffer)
	assert.Equal(t, 50, cfg.Assessment.BaselineWindow)
	assert.Equal(t, 10000, cfg.BufferSize)
	assert.Positive(t, cfg.WorkerCount)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("WORKER_COUNT", "7")
	t.Setenv("DECISION_THRESHOLD", "0.6")
	t.Setenv("MAX_SCORE", "20")
	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 7, cfg.WorkerCount)
	assert.Equal(t, 0.6, cfg.Assessment.DecisionThreshold)
	assert.Equal(t, 20, cfg.Assessment.MaxScore)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  addr: \":7070\"\nassessment:\n  stability_buffer: 0.2\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 0.2, cfg.Assessment.StabilityBuffer)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidThreshold(t *testing.T) {
	t.Setenv("DECISION_THRESHOLD", "1.5")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:      ServerConfig{Addr: ":8080"},
			Log:         LogConfig{Format: "console"},
			Assessment:  AssessmentConfig{DecisionThreshold: 0.5, StabilityBuffer: 0.15, BaselineWindow: 50},
			WorkerCount: 1,
			BufferSize:  1,
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"no workers", func(c *Config) { c.WorkerCount = 0 }},
		{"no buffer", func(c *Config) { c.BufferSize = -1 }},
		{"zero threshold", func(c *Config) { c.Assessment.DecisionThreshold = 0 }},
		{"zero buffer", func(c *Config) { c.Assessment.StabilityBuffer = 0 }},
		{"negative max score", func(c *Config) { c.Assessment.MaxScore = -1 }},
		{"zero window", func(c *Config) { c.Assessment.BaselineWindow = 0 }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "water", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=water sslmode=disable", c.GetDSN())
}
