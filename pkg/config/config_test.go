package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseURL  string   `env:"TEST_CFG_BASE_URL" envDefault:"http://localhost:8000"`
	Timeout  int      `env:"TEST_CFG_TIMEOUT" envDefault:"30"`
	Brokers  []string `env:"TEST_CFG_BROKERS" envSeparator:","`
	Dedup    bool     `env:"TEST_CFG_DEDUP" envDefault:"false"`
	LogLevel string   `env:"TEST_CFG_LOG_LEVEL" envDefault:"warn"`
}

type validatedConfig struct {
	Store string `env:"TEST_CFG_STORE" envDefault:"file"`
}

func (c *validatedConfig) Validate() error {
	switch c.Store {
	case "file", "memory", "redis":
		return nil
	}
	return errors.New("unknown store " + c.Store)
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, 30, cfg.Timeout)
	assert.Empty(t, cfg.Brokers)
	assert.False(t, cfg.Dedup)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_BASE_URL", "https://api.example.com")
	t.Setenv("TEST_CFG_TIMEOUT", "5")
	t.Setenv("TEST_CFG_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TEST_CFG_DEDUP", "true")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 5, cfg.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
	assert.True(t, cfg.Dedup)
}

func TestLoad_InvalidInt(t *testing.T) {
	t.Setenv("TEST_CFG_TIMEOUT", "soon")

	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("AHOUM_TEST_CFG_BASE_URL", "http://prefixed:8000")

	var cfg testConfig
	require.NoError(t, LoadWithPrefix(&cfg, "AHOUM_"))
	assert.Equal(t, "http://prefixed:8000", cfg.BaseURL)
}

func TestLoad_RunsValidate(t *testing.T) {
	t.Setenv("TEST_CFG_STORE", "sqlite")

	var cfg validatedConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Contains(t, err.Error(), "sqlite")
}

func TestLoad_ValidatePasses(t *testing.T) {
	t.Setenv("TEST_CFG_STORE", "redis")

	var cfg validatedConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "redis", cfg.Store)
}
