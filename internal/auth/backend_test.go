package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/HarshKochar9008/WINCE/internal/auth/store"
	"github.com/HarshKochar9008/WINCE/internal/domain"
	"github.com/HarshKochar9008/WINCE/pkg/httpclient"
	"github.com/HarshKochar9008/WINCE/pkg/logger"
)

// fakeBackend mimics the token and user endpoints of the API.
type fakeBackend struct {
	t *testing.T

	mu           sync.Mutex
	validAccess  string
	nextAccess   string
	refresh      string
	refreshFails bool
	meAlways401  bool
	user         domain.User

	loginCalls   int
	refreshCalls int
	meCalls      int
	authHeaders  []string

	// optional hooks
	onMe      func(call int)
	onRefresh func(call int)
	extra     map[string]http.HandlerFunc
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	b := &fakeBackend{
		t:           t,
		validAccess: "A1",
		nextAccess:  "A2",
		refresh:     "R1",
		user:        domain.User{ID: 7, Email: "asha@example.com", Name: "Asha", Role: domain.RoleUser},
		extra:       map[string]http.HandlerFunc{},
	}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	if h, ok := b.extra[r.Method+" "+r.URL.Path]; ok {
		h(w, r)
		return
	}

	switch r.Method + " " + r.URL.Path {
	case "POST /api/auth/token/":
		var in credentials
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		b.loginCalls++
		access, refresh := b.validAccess, b.refresh
		b.mu.Unlock()
		if in.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
			return
		}
		writeJSON(w, http.StatusOK, tokenPair{Access: access, Refresh: refresh})

	case "POST /api/auth/token/refresh/":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		b.refreshCalls++
		call := b.refreshCalls
		hook := b.onRefresh
		b.mu.Unlock()
		if hook != nil {
			hook(call)
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.refreshFails || in["refresh"] != b.refresh {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		b.validAccess = b.nextAccess
		writeJSON(w, http.StatusOK, map[string]string{"access": b.nextAccess})

	case "GET /api/users/me/", "PUT /api/users/me/":
		b.mu.Lock()
		b.meCalls++
		call := b.meCalls
		b.authHeaders = append(b.authHeaders, r.Header.Get("Authorization"))
		hook := b.onMe
		b.mu.Unlock()
		if hook != nil {
			hook(call)
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		if b.meAlways401 || r.Header.Get("Authorization") != "Bearer "+b.validAccess {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		if r.Method == http.MethodPut {
			var in ProfileUpdate
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.Name != "" {
				b.user.Name = in.Name
			}
			if in.Avatar != "" {
				b.user.Avatar = in.Avatar
			}
		}
		writeJSON(w, http.StatusOK, b.user)

	default:
		http.NotFound(w, r)
	}
}

// expireAccess makes the current access token invalid so the next
// authenticated call gets a 401.
func (b *fakeBackend) expireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.validAccess = "expired-" + b.validAccess
}

func (b *fakeBackend) counts() (login, refresh, me int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginCalls, b.refreshCalls, b.meCalls
}

func newTestManager(t *testing.T, baseURL string, st store.Store, opts ...Option) *Manager {
	t.Helper()
	if st == nil {
		st = store.NewMemoryStore()
	}
	client := httpclient.New(httpclient.Config{Timeout: 5 * time.Second, MaxConnsPerHost: 10})
	m, err := NewManager(context.Background(), baseURL, client, st, logger.Discard(), opts...)
	require.NoError(t, err)
	return m
}
