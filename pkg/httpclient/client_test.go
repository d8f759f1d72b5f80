package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarshKochar9008/WINCE/pkg/logger"
)

func newRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, http.NoBody)
	require.NoError(t, err)
	return req
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.MaxConnsPerHost)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, "sessions-cli", cfg.UserAgent)
}

func TestNew_LimiterOnlyWhenConfigured(t *testing.T) {
	assert.Nil(t, New(DefaultConfig()).limiter)

	cfg := DefaultConfig()
	cfg.RateLimit = 5
	cfg.RateBurst = 0
	c := New(cfg)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())
}

func TestDo_SetsCorrelationAndUserAgent(t *testing.T) {
	var gotID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(CorrelationHeader)
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(DefaultConfig())
	resp, err := client.Do(context.Background(), newRequest(t, http.MethodGet, server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Len(t, gotID, 36)
	assert.Equal(t, "sessions-cli", gotUA)
}

func TestDo_UsesCorrelationIDFromContext(t *testing.T) {
	var gotID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(CorrelationHeader)
	}))
	defer server.Close()

	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	resp, err := New(DefaultConfig()).Do(ctx, newRequest(t, http.MethodGet, server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "corr-1", gotID)
}

func TestDo_NeverRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp, err := New(DefaultConfig()).Do(context.Background(), newRequest(t, http.MethodGet, server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(DefaultConfig()).Do(context.Background(), newRequest(t, http.MethodGet, url))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http request")
}

func TestDo_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	_, err := New(cfg).Do(context.Background(), newRequest(t, http.MethodGet, server.URL))
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestDo_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	client := New(cfg)

	resp, err := client.Do(context.Background(), newRequest(t, http.MethodGet, server.URL))
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.Do(ctx, newRequest(t, http.MethodGet, server.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
