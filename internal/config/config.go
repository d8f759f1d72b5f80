package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/HarshKochar9008/WINCE/pkg/config"
	"github.com/HarshKochar9008/WINCE/pkg/database"
	"github.com/HarshKochar9008/WINCE/pkg/httpclient"
	"github.com/HarshKochar9008/WINCE/pkg/tracing"
)

// Token store backends.
const (
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

// ServiceName labels logs, traces and events.
const ServiceName = "sessions-cli"

// Config holds all configuration for the sessions client.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`

	// Backend API
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:8000"`

	// OAuth providers; an empty id disables that provider.
	GoogleClientID    string `env:"GOOGLE_CLIENT_ID"`
	GitHubClientID    string `env:"GITHUB_CLIENT_ID"`
	GitHubRedirectURL string `env:"GITHUB_REDIRECT_URL"`

	// Token persistence
	TokenStore     string `env:"TOKEN_STORE" envDefault:"file"`
	TokenFile      string `env:"TOKEN_FILE"`
	RedisURL       string `env:"REDIS_URL"`
	RedisHost      string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort      int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"ahoum:"`

	// Outbound HTTP
	HTTPTimeoutSeconds  int     `env:"HTTP_TIMEOUT_SECONDS" envDefault:"30"`
	HTTPMaxConnsPerHost int     `env:"HTTP_MAX_CONNS_PER_HOST" envDefault:"10"`
	RateLimitRPS        float64 `env:"RATE_LIMIT_RPS" envDefault:"0"`
	RateLimitBurst      int     `env:"RATE_LIMIT_BURST" envDefault:"1"`
	RefreshDedup        bool    `env:"REFRESH_DEDUP" envDefault:"false"`

	// Circuit breaker settings for API calls
	CBEnabled      bool    `env:"CB_ENABLED" envDefault:"true"`
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Local callback listener for checkout returns and OAuth redirects
	CallbackAddr        string `env:"CALLBACK_ADDR" envDefault:"127.0.0.1:8765"`
	CallbackWaitSeconds int    `env:"CALLBACK_WAIT_SECONDS" envDefault:"600"`
	CheckoutURLTemplate string `env:"CHECKOUT_URL_TEMPLATE"`

	// Kafka; no brokers disables event publishing.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load sessions config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	u, err := url.ParseRequestURI(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API_BASE_URL %q", c.APIBaseURL)
	}
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreRedis, TokenStoreMemory:
	default:
		return fmt.Errorf("TOKEN_STORE must be one of file, redis, memory; got %q", c.TokenStore)
	}
	if c.TokenStore == TokenStoreRedis && (c.RedisPort < 1 || c.RedisPort > 65535) {
		return fmt.Errorf("invalid REDIS_PORT: %d", c.RedisPort)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %f", c.RateLimitRPS)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.CallbackWaitSeconds <= 0 {
		return fmt.Errorf("CALLBACK_WAIT_SECONDS must be positive, got %d", c.CallbackWaitSeconds)
	}
	return nil
}

// HTTPClient returns the outbound HTTP client settings.
func (c *Config) HTTPClient() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = time.Duration(c.HTTPTimeoutSeconds) * time.Second
	cfg.MaxConnsPerHost = c.HTTPMaxConnsPerHost
	cfg.RateLimit = c.RateLimitRPS
	cfg.RateBurst = c.RateLimitBurst
	return cfg
}

// CircuitBreaker returns the breaker settings for API calls.
func (c *Config) CircuitBreaker() httpclient.CircuitBreakerConfig {
	cfg := httpclient.DefaultCircuitBreakerConfig("sessions-api")
	cfg.MaxRequests = c.CBMaxRequests
	cfg.Interval = time.Duration(c.CBInterval) * time.Second
	cfg.Timeout = time.Duration(c.CBTimeout) * time.Second
	cfg.FailureRatio = c.CBFailureRatio
	cfg.MinRequests = c.CBMinRequests
	return cfg
}

// Redis returns the connection settings for the Redis token store.
func (c *Config) Redis() database.RedisConfig {
	cfg := database.DefaultRedisConfig()
	cfg.URL = c.RedisURL
	cfg.Host = c.RedisHost
	cfg.Port = c.RedisPort
	cfg.Password = c.RedisPassword
	cfg.DB = c.RedisDB
	return cfg
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing() tracing.Config {
	cfg := tracing.DefaultConfig(ServiceName)
	cfg.Environment = c.Environment
	cfg.OTLPEndpoint = c.OTELEndpoint
	cfg.SampleRate = c.OTELSampleRate
	cfg.Enabled = c.OTELEnabled
	return cfg
}

// KafkaEnabled reports whether booking events should be published.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// CallbackWait is how long commands wait for a browser redirect.
func (c *Config) CallbackWait() time.Duration {
	return time.Duration(c.CallbackWaitSeconds) * time.Second
}

// GitHubCallbackURL is the redirect URL registered with GitHub.
func (c *Config) GitHubCallbackURL() string {
	if c.GitHubRedirectURL != "" {
		return c.GitHubRedirectURL
	}
	return "http://" + c.CallbackAddr + "/oauth/github/callback"
}
