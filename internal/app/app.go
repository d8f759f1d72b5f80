// Package app builds the sessions client from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HarshKochar9008/WINCE/internal/auth"
	"github.com/HarshKochar9008/WINCE/internal/auth/store"
	"github.com/HarshKochar9008/WINCE/internal/booking"
	"github.com/HarshKochar9008/WINCE/internal/callback"
	"github.com/HarshKochar9008/WINCE/internal/catalog"
	"github.com/HarshKochar9008/WINCE/internal/config"
	"github.com/HarshKochar9008/WINCE/internal/event"
	"github.com/HarshKochar9008/WINCE/pkg/database"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
	"github.com/HarshKochar9008/WINCE/pkg/health"
	"github.com/HarshKochar9008/WINCE/pkg/httpclient"
	pkgkafka "github.com/HarshKochar9008/WINCE/pkg/kafka"
	"github.com/HarshKochar9008/WINCE/pkg/tracing"
)

// CodeCircuitOpen marks calls refused while the API breaker is open.
const CodeCircuitOpen = "CIRCUIT_OPEN"

// CircuitOpenFallback reports an open breaker as a network-class error, so
// it is never mistaken for an API response.
func CircuitOpenFallback(_ context.Context, err error) (*http.Response, error) {
	return nil, &apperrors.AppError{
		Code:    CodeCircuitOpen,
		Message: "The sessions API is temporarily unavailable, please retry in a moment.",
		Err:     apperrors.ErrNetwork,
		Cause:   err,
	}
}

// App holds the wired components of the client.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	redis          *redis.Client
	producer       *pkgkafka.Producer
	tracerShutdown func(context.Context) error

	doer     auth.HTTPDoer
	manager  *auth.Manager
	catalog  *catalog.Client
	flow     *booking.Flow
	health   *health.Handler
	callback *callback.Server
}

// New wires every component. redirect hands checkout URLs to the user.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, redirect booking.Redirector) (*App, error) {
	a := &App{cfg: cfg, logger: logger, health: health.NewHandler()}

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	st, err := a.openStore(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	baseClient := httpclient.New(cfg.HTTPClient())
	a.doer = baseClient
	if cfg.CBEnabled {
		cbCfg := cfg.CircuitBreaker()
		breaker := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger).
			WithFallback(CircuitOpenFallback)
		a.doer = breaker
		a.health.Register("api_breaker", breaker.Check)
		logger.Debug("circuit breaker initialized",
			slog.String("name", cbCfg.Name),
			slog.Int("timeout_seconds", cfg.CBTimeout),
			slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
		)
	}

	var opts []auth.Option
	if cfg.RefreshDedup {
		opts = append(opts, auth.WithRefreshDedup())
	}
	a.manager, err = auth.NewManager(ctx, cfg.APIBaseURL, a.doer, st, logger, opts...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load stored session: %w", err)
	}
	a.catalog = catalog.New(a.manager, logger)

	flowOpts := []booking.Option{booking.WithCheckoutTemplate(cfg.CheckoutURLTemplate)}
	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		flowOpts = append(flowOpts, booking.WithEvents(event.NewProducer(a.producer, logger)))
		a.health.Register("kafka", a.producer.Ping)
	}
	a.flow = booking.NewFlow(a.catalog, a.manager, redirect, logger, flowOpts...)

	a.health.Register("api", a.pingAPI)
	a.callback = callback.New(cfg.CallbackAddr, a.flow, a.health, logger)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.TokenStore {
	case config.TokenStoreMemory:
		return store.NewMemoryStore(), nil
	case config.TokenStoreRedis:
		client, err := database.NewRedisClient(ctx, a.cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		rs := store.NewRedisStore(client, a.cfg.RedisKeyPrefix)
		a.health.Register("token_store", rs.Ping)
		a.logger.Debug("using redis token store", slog.String("addr", a.cfg.Redis().Addr()))
		return rs, nil
	default:
		path := a.cfg.TokenFile
		if path == "" {
			path = store.DefaultPath()
		}
		return store.NewFileStore(path), nil
	}
}

// pingAPI reports the API as down only when it cannot be reached or
// answers with a server error.
func (a *App) pingAPI(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIBaseURL+"/api/sessions/", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := a.doer.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("api returned %d", resp.StatusCode)
	}
	return nil
}

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Manager returns the session manager.
func (a *App) Manager() *auth.Manager { return a.manager }

// Catalog returns the sessions API client.
func (a *App) Catalog() *catalog.Client { return a.catalog }

// Flow returns the booking flow.
func (a *App) Flow() *booking.Flow { return a.flow }

// Health returns the dependency health checks.
func (a *App) Health() *health.Handler { return a.health }

// Callback returns the callback listener; it is not started by New.
func (a *App) Callback() *callback.Server { return a.callback }

// Close stops all components in order:
// 1. Callback listener (drain in-flight redirects)
// 2. Tracer (flush pending spans)
// 3. Kafka producer
// 4. Redis client
func (a *App) Close() error {
	var errs []error

	if a.callback != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.callback.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("callback shutdown: %w", err))
		}
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka producer close: %w", err))
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	return errors.Join(errs...)
}
