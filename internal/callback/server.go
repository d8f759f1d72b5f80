// Package callback runs the local HTTP listener that hosted pages redirect
// back to: the checkout return and the GitHub OAuth callback.
package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HarshKochar9008/WINCE/internal/auth"
	"github.com/HarshKochar9008/WINCE/internal/booking"
	"github.com/HarshKochar9008/WINCE/pkg/health"
	"github.com/HarshKochar9008/WINCE/pkg/logger"
	"github.com/HarshKochar9008/WINCE/pkg/middleware"
)

// Paths served by the listener.
const (
	PathCheckoutReturn = "/checkout/return"
	PathDashboard      = "/dashboard"
	PathGitHubCallback = "/oauth/github/callback"
)

// ReturnHandler resolves a checkout return.
type ReturnHandler interface {
	HandleReturn(ctx context.Context, p booking.ReturnParams) (*booking.Attempt, error)
}

// ReturnResult is what a checkout return resolved to.
type ReturnResult struct {
	Attempt *booking.Attempt
	Err     error
}

// Server is the callback listener.
type Server struct {
	addr    string
	returns ReturnHandler
	health  *health.Handler
	logger  *slog.Logger

	returnCh chan ReturnResult
	codeCh   chan string

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// New creates a callback server for addr (host:port; port 0 picks a free one).
func New(addr string, returns ReturnHandler, h *health.Handler, log *slog.Logger) *Server {
	if h == nil {
		h = health.NewHandler()
	}
	return &Server{
		addr:     addr,
		returns:  returns,
		health:   h,
		logger:   log,
		returnCh: make(chan ReturnResult, 4),
		codeCh:   make(chan string, 1),
	}
}

// Router returns the handler with every route and middleware registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestLogging(s.logger))
	r.Use(middleware.Tracing("callback"))
	r.Use(middleware.PrometheusMetrics())

	r.Get("/healthz", s.health.LivenessHandler())
	r.Get("/readyz", s.health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Get(PathCheckoutReturn, s.handleReturn)
	r.Get(PathDashboard, s.handleReturn)
	r.Get(PathGitHubCallback, s.handleGitHub)

	return r
}

// Start begins serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.listener = ln
	s.mu.Unlock()

	go func() {
		s.logger.Info("starting callback server", slog.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("callback server stopped", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// BaseURL is the URL hosted pages should redirect to. It is only known
// after Start.
func (s *Server) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return "http://" + s.listener.Addr().String()
}

// Shutdown stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// WaitReturn blocks until a checkout return has been handled.
func (s *Server) WaitReturn(ctx context.Context) (*booking.Attempt, error) {
	select {
	case res := <-s.returnCh:
		return res.Attempt, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitOAuthCode blocks until the GitHub callback delivers a code.
func (s *Server) WaitOAuthCode(ctx context.Context) (string, error) {
	select {
	case code := <-s.codeCh:
		return code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	p, err := booking.ParseReturn(r.URL.Query())
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.returns == nil {
		writeText(w, http.StatusServiceUnavailable, "no booking flow is waiting for this return")
		return
	}

	a, err := s.returns.HandleReturn(ctx, p)
	s.deliver(ReturnResult{Attempt: a, Err: err})

	if a == nil {
		log.WarnContext(ctx, "checkout return rejected", slog.String("error", err.Error()))
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	writeText(w, http.StatusOK, a.Message+"\nYou can close this window and return to the terminal.")
}

// deliver hands res to a waiter without blocking; repeated returns beyond
// the buffer are dropped.
func (s *Server) deliver(res ReturnResult) {
	select {
	case s.returnCh <- res:
	default:
	}
}

func (s *Server) handleGitHub(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") != auth.GitHubState {
		writeText(w, http.StatusBadRequest, "unexpected OAuth state")
		return
	}
	if e := q.Get("error"); e != "" {
		writeText(w, http.StatusBadRequest, "GitHub login failed: "+e)
		return
	}
	code := q.Get("code")
	if code == "" {
		writeText(w, http.StatusBadRequest, "missing code")
		return
	}

	select {
	case s.codeCh <- code:
	default:
	}
	writeText(w, http.StatusOK, "GitHub login received. You can close this window and return to the terminal.")
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintln(w, msg)
}
