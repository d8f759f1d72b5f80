package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
	"github.com/HarshKochar9008/WINCE/pkg/httpclient"
	"github.com/HarshKochar9008/WINCE/pkg/logger"
)

// RequestOptions describe one API call.
type RequestOptions struct {
	Method string
	// Body is sent as JSON unless it is a []byte or io.Reader, which are
	// sent as-is with ContentType.
	Body        any
	ContentType string
	Header      http.Header
}

type callConfig struct {
	skipAuth bool
}

// CallOption adjusts how Request treats authentication.
type CallOption func(*callConfig)

// SkipAuth sends the call without a bearer token and disables the
// refresh-and-retry path.
func SkipAuth() CallOption {
	return func(c *callConfig) { c.skipAuth = true }
}

// Requester is the request primitive other packages build on.
type Requester interface {
	Request(ctx context.Context, path string, opts RequestOptions, out any, callOpts ...CallOption) error
}

// Do is the generic form of Manager.Request.
func Do[T any](ctx context.Context, r Requester, path string, opts RequestOptions, callOpts ...CallOption) (T, error) {
	var out T
	err := r.Request(ctx, path, opts, &out, callOpts...)
	return out, err
}

// Request performs an API call and decodes a JSON response into out (which
// may be nil). A 401 on an authenticated call triggers exactly one refresh;
// if that succeeds the call is retried exactly once. A rejected refresh
// returns the original 401 as an auth error; a refresh that got no answer
// returns its own error.
func (m *Manager) Request(ctx context.Context, path string, opts RequestOptions, out any, callOpts ...CallOption) error {
	var cfg callConfig
	for _, o := range callOpts {
		o(&cfg)
	}

	payload, contentType, err := encodeBody(opts)
	if err != nil {
		return err
	}

	resp, err := m.send(ctx, path, opts, payload, contentType, cfg.skipAuth)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && !cfg.skipAuth {
		original := httpclient.ParseResponseError(resp)
		refreshed, err := m.refreshSession(ctx)
		if err != nil {
			return err
		}
		if !refreshed {
			return sessionExpired(original)
		}
		resp, err = m.send(ctx, path, opts, payload, contentType, false)
		if err != nil {
			return err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp)
	}
	return httpclient.DecodeJSON(resp, out)
}

func (m *Manager) send(ctx context.Context, path string, opts RequestOptions, payload []byte, contentType string, skipAuth bool) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, joinURL(m.baseURL, path), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if !skipAuth {
		if token := m.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := logger.WithContext(logger.WithUserID(ctx, userIDString(m.User())), m.logger)
	start := time.Now()
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		log.DebugContext(ctx, "api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Network(err)
	}

	log.DebugContext(ctx, "api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func encodeBody(opts RequestOptions) ([]byte, string, error) {
	switch b := opts.Body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, opts.ContentType, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("read request body: %w", err)
		}
		return data, opts.ContentType, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		ct := opts.ContentType
		if ct == "" {
			ct = "application/json"
		}
		return data, ct, nil
	}
}

// sessionExpired turns the 401 of an unrecoverable session into an auth error.
func sessionExpired(original error) error {
	appErr, ok := apperrors.As(original)
	if !ok {
		return original
	}
	return apperrors.Auth(appErr.Message, appErr.Body)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	return apperrors.Status(err) == http.StatusUnauthorized || errors.Is(err, apperrors.ErrAuth)
}
