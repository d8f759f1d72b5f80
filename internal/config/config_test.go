package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, TokenStoreFile, cfg.TokenStore)
	assert.Equal(t, "127.0.0.1:8765", cfg.CallbackAddr)
	assert.False(t, cfg.RefreshDedup)
	assert.True(t, cfg.CBEnabled)
	assert.False(t, cfg.KafkaEnabled())
	assert.Empty(t, cfg.GoogleClientID)
	assert.Equal(t, 10*time.Minute, cfg.CallbackWait())
	assert.Equal(t, "http://127.0.0.1:8765/oauth/github/callback", cfg.GitHubCallbackURL())
}

func TestLoad_FromEnvironment(t *testing.T) {
	setEnvs(t, map[string]string{
		"API_BASE_URL":        "https://api.example.com",
		"TOKEN_STORE":         "redis",
		"REDIS_HOST":          "cache",
		"REDIS_PORT":          "6380",
		"KAFKA_BROKERS":       "k1:9092,k2:9092",
		"REFRESH_DEDUP":       "true",
		"RATE_LIMIT_RPS":      "2.5",
		"GITHUB_REDIRECT_URL": "https://app.example.com/gh",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.True(t, cfg.RefreshDedup)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, "cache:6380", cfg.Redis().Addr())
	assert.Equal(t, 2.5, cfg.HTTPClient().RateLimit)
	assert.Equal(t, "https://app.example.com/gh", cfg.GitHubCallbackURL())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
		want string
	}{
		{"bad token store", map[string]string{"TOKEN_STORE": "sqlite"}, "TOKEN_STORE"},
		{"relative api url", map[string]string{"API_BASE_URL": "/api"}, "API_BASE_URL"},
		{"ftp api url", map[string]string{"API_BASE_URL": "ftp://files"}, "API_BASE_URL"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "1.5"}, "OTEL_SAMPLE_RATE"},
		{"failure ratio", map[string]string{"CB_FAILURE_RATIO": "0"}, "CB_FAILURE_RATIO"},
		{"timeout", map[string]string{"HTTP_TIMEOUT_SECONDS": "-1"}, "HTTP_TIMEOUT_SECONDS"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT"},
		{"redis port", map[string]string{"TOKEN_STORE": "redis", "REDIS_PORT": "70000"}, "REDIS_PORT"},
		{"not a number", map[string]string{"REDIS_PORT": "abc"}, "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCircuitBreaker(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cb := cfg.CircuitBreaker()
	assert.Equal(t, "sessions-api", cb.Name)
	assert.Equal(t, 30*time.Second, cb.Timeout)
	assert.Equal(t, uint32(5), cb.MinRequests)
}

func TestTracing(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	cfg, err := Load()
	require.NoError(t, err)

	tc := cfg.Tracing()
	assert.True(t, tc.Enabled)
	assert.Equal(t, ServiceName, tc.ServiceName)
	assert.Equal(t, "localhost:4318", tc.OTLPEndpoint)
}
