// Package auth owns the token pair and is the single gateway for API calls.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/HarshKochar9008/WINCE/internal/auth/store"
	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
)

// Storage keys for the persisted token pair.
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
)

const (
	pathToken        = "/api/auth/token/"
	pathTokenRefresh = "/api/auth/token/refresh/"
	pathMe           = "/api/users/me/"
	pathRegister     = "/api/users/register/"
	pathGoogleLogin  = "/api/users/google-login/"
	pathGitHubLogin  = "/api/users/github-login/"
)

const (
	storeTimeout   = 5 * time.Second
	refreshTimeout = 30 * time.Second
)

// HTTPDoer sends a single HTTP request.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshDedup collapses concurrent refreshes into one call. Without it
// every request that sees a 401 runs its own refresh.
func WithRefreshDedup() Option {
	return func(m *Manager) { m.dedup = true }
}

// Manager holds the session state. It is safe for concurrent use; network
// calls never run with the lock held.
type Manager struct {
	baseURL string
	client  HTTPDoer
	store   store.Store
	logger  *slog.Logger

	dedup   bool
	refresh singleflight.Group

	// persistMu orders token writes; mu guards the in-memory copy only.
	persistMu sync.Mutex

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *domain.User
	loading      bool

	ready     chan struct{}
	readyOnce sync.Once
}

// NewManager loads any persisted tokens from st. The manager reports
// Loading until Restore has run.
func NewManager(ctx context.Context, baseURL string, client HTTPDoer, st store.Store, logger *slog.Logger, opts ...Option) (*Manager, error) {
	access, err := st.Get(ctx, AccessTokenKey)
	if err != nil {
		return nil, err
	}
	refresh, err := st.Get(ctx, RefreshTokenKey)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		baseURL:      baseURL,
		client:       client,
		store:        st,
		logger:       logger,
		accessToken:  access,
		refreshToken: refresh,
		loading:      true,
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Restore revalidates a persisted session: fetch the user, else one
// refresh-then-refetch, else clear. An unreachable API or a cancelled ctx
// leaves the tokens for the next run. It always ends the loading phase.
func (m *Manager) Restore(ctx context.Context) {
	defer m.markReady()

	if m.AccessToken() == "" {
		return
	}
	_, err := m.FetchMe(ctx)
	if err == nil {
		return
	}
	if interrupted(ctx, err) {
		m.logger.WarnContext(ctx, "stored session not verified, keeping tokens", slog.String("error", err.Error()))
		return
	}

	refreshed, err := m.refreshSession(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "stored session not verified, keeping tokens", slog.String("error", err.Error()))
		return
	}
	if refreshed {
		_, err = m.FetchMe(ctx)
		if err == nil {
			return
		}
		if interrupted(ctx, err) {
			m.logger.WarnContext(ctx, "stored session not verified, keeping tokens", slog.String("error", err.Error()))
			return
		}
	}
	m.logger.InfoContext(ctx, "stored session could not be restored")
	m.Logout()
}

// interrupted reports whether err means the API gave no answer.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, apperrors.ErrNetwork) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() {
		m.mu.Lock()
		m.loading = false
		m.mu.Unlock()
		close(m.ready)
	})
}

// Ready is closed once Restore has finished.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Loading is true until Restore has finished. Callers must treat it as
// "unknown", never as signed out.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// AccessToken returns the current access token.
func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// RefreshToken returns the current refresh token.
func (m *Manager) RefreshToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshToken
}

// User returns a copy of the signed-in user, or nil.
func (m *Manager) User() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Authenticated reports whether a user is signed in.
func (m *Manager) Authenticated() bool {
	return m.User() != nil
}

// Logout clears both tokens and the user. It makes no network call to the
// API and is idempotent.
func (m *Manager) Logout() {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	m.accessToken = ""
	m.refreshToken = ""
	m.user = nil
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	for _, key := range []string{AccessTokenKey, RefreshTokenKey} {
		if err := m.store.Delete(ctx, key); err != nil {
			m.logger.Warn("clearing stored token failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

// setTokens persists both tokens, then makes them current. On a store error
// the previous tokens stay in use.
func (m *Manager) setTokens(ctx context.Context, access, refresh string) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := m.store.Set(sctx, AccessTokenKey, access); err != nil {
		return err
	}
	if err := m.store.Set(sctx, RefreshTokenKey, refresh); err != nil {
		return err
	}

	m.mu.Lock()
	m.accessToken = access
	m.refreshToken = refresh
	m.mu.Unlock()
	return nil
}

// replaceAccessToken stores a refreshed access token, unless the session was
// cleared or replaced while the refresh was in flight.
func (m *Manager) replaceAccessToken(ctx context.Context, usedRefresh, access string) bool {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	// Writers all hold persistMu, so refreshToken cannot change below.
	if m.RefreshToken() != usedRefresh {
		return false
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := m.store.Set(sctx, AccessTokenKey, access); err != nil {
		m.logger.WarnContext(ctx, "persisting refreshed access token failed", slog.String("error", err.Error()))
	}

	m.mu.Lock()
	m.accessToken = access
	m.mu.Unlock()
	return true
}

func (m *Manager) setUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = u
}

func userIDString(u *domain.User) string {
	if u == nil {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}
