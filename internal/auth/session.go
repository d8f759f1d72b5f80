package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
	"github.com/HarshKochar9008/WINCE/pkg/validator"
)

var refreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_refresh_total",
		Help: "Silent token refresh attempts by result",
	},
	[]string{"result"},
)

// Provider names an OAuth identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type authResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *domain.User `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput is the new-account payload.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Avatar   string `json:"avatar,omitempty"`
}

// ProfileUpdate replaces the given user fields; empty fields are left alone.
type ProfileUpdate struct {
	Name   string `json:"name,omitempty" validate:"omitempty,max=150"`
	Avatar string `json:"avatar,omitempty"`
}

// Login exchanges credentials for a token pair, then loads the user.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.User, error) {
	var tokens tokenPair
	err := m.Request(ctx, pathToken, RequestOptions{
		Method: http.MethodPost,
		Body:   credentials{Email: email, Password: password},
	}, &tokens, SkipAuth())
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Status == http.StatusUnauthorized {
			return nil, apperrors.Auth(appErr.Message, appErr.Body)
		}
		return nil, err
	}

	if err := m.setTokens(ctx, tokens.Access, tokens.Refresh); err != nil {
		return nil, fmt.Errorf("persist tokens: %w", err)
	}
	return m.FetchMe(ctx)
}

// Register creates an account and signs it in. Field errors, whether found
// locally or reported by the API, come back as a validation error whose
// message reads "Email: already taken".
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := validator.Validate(in); err != nil {
		return nil, validator.ToAppError(err, FormatFieldErrors)
	}

	var resp authResponse
	err := m.Request(ctx, pathRegister, RequestOptions{Method: http.MethodPost, Body: in}, &resp, SkipAuth())
	if err != nil {
		return nil, registrationError(err)
	}
	return m.acceptAuthResponse(ctx, resp)
}

// OAuthExchange trades a provider credential (Google ID token) or code
// (GitHub) for a session and returns the signed-in user.
func (m *Manager) OAuthExchange(ctx context.Context, provider Provider, credentialOrCode string) (*domain.User, error) {
	var (
		path string
		body any
	)
	switch provider {
	case ProviderGoogle:
		path, body = pathGoogleLogin, map[string]string{"credential": credentialOrCode}
	case ProviderGitHub:
		path, body = pathGitHubLogin, map[string]string{"code": credentialOrCode}
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown OAuth provider %q", provider))
	}
	if credentialOrCode == "" {
		return nil, apperrors.InvalidInput(fmt.Sprintf("missing %s credential", provider))
	}

	var resp authResponse
	if err := m.Request(ctx, path, RequestOptions{Method: http.MethodPost, Body: body}, &resp, SkipAuth()); err != nil {
		if appErr, ok := apperrors.As(err); ok && appErr.Status == http.StatusUnauthorized {
			return nil, apperrors.Auth(appErr.Message, appErr.Body)
		}
		return nil, err
	}
	return m.acceptAuthResponse(ctx, resp)
}

func (m *Manager) acceptAuthResponse(ctx context.Context, resp authResponse) (*domain.User, error) {
	if err := m.setTokens(ctx, resp.Access, resp.Refresh); err != nil {
		return nil, fmt.Errorf("persist tokens: %w", err)
	}
	if resp.User == nil {
		return m.FetchMe(ctx)
	}
	m.setUser(resp.User)
	return m.User(), nil
}

// FetchMe loads and stores the current user.
func (m *Manager) FetchMe(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := m.Request(ctx, pathMe, RequestOptions{Method: http.MethodGet}, &u); err != nil {
		return nil, err
	}
	m.setUser(&u)
	return m.User(), nil
}

// UpdateProfile replaces user fields and stores the result.
func (m *Manager) UpdateProfile(ctx context.Context, in ProfileUpdate) (*domain.User, error) {
	if err := validator.Validate(in); err != nil {
		return nil, validator.ToAppError(err, FormatFieldErrors)
	}

	var u domain.User
	if err := m.Request(ctx, pathMe, RequestOptions{Method: http.MethodPut, Body: in}, &u); err != nil {
		return nil, err
	}
	m.setUser(&u)
	return m.User(), nil
}

// RefreshSession mints a new access token. With no refresh token it returns
// false without a network call. The session is cleared only when the API
// rejects the refresh; an unreachable API or a cancelled ctx returns false
// and keeps the stored tokens.
func (m *Manager) RefreshSession(ctx context.Context) bool {
	ok, _ := m.refreshSession(ctx)
	return ok
}

// refreshSession returns a non-nil error when the refresh reached no verdict.
func (m *Manager) refreshSession(ctx context.Context) (bool, error) {
	if !m.dedup {
		return m.refreshOnce(ctx)
	}

	// The shared call outlives any single waiter.
	ch := m.refresh.DoChan("refresh", func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refreshOnce(shared)
	})
	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok, res.Err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (m *Manager) refreshOnce(ctx context.Context) (bool, error) {
	refresh := m.RefreshToken()
	if refresh == "" {
		refreshTotal.WithLabelValues("skipped").Inc()
		return false, nil
	}

	var out struct {
		Access string `json:"access"`
	}
	err := m.Request(ctx, pathTokenRefresh, RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"refresh": refresh},
	}, &out, SkipAuth())
	if err != nil && !refreshRejected(err) {
		refreshTotal.WithLabelValues("interrupted").Inc()
		m.logger.WarnContext(ctx, "token refresh did not complete, keeping session", slog.String("error", err.Error()))
		return false, err
	}
	if err == nil && out.Access == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		refreshTotal.WithLabelValues("failed").Inc()
		m.logger.WarnContext(ctx, "token refresh failed, clearing session", slog.String("error", err.Error()))
		m.Logout()
		return false, nil
	}

	if !m.replaceAccessToken(ctx, refresh, out.Access) {
		refreshTotal.WithLabelValues("superseded").Inc()
		return false, nil
	}
	refreshTotal.WithLabelValues("ok").Inc()
	return true, nil
}

// refreshRejected reports whether the refresh endpoint answered with a
// non-2xx status.
func refreshRejected(err error) bool {
	return apperrors.Status(err) != 0
}
