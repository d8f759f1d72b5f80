// Package catalog provides typed calls for the sessions and bookings
// endpoints, built on the auth request primitive.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/HarshKochar9008/WINCE/internal/auth"
	"github.com/HarshKochar9008/WINCE/internal/domain"
)

const (
	pathSessions      = "/api/sessions/"
	pathBookings      = "/api/bookings/"
	pathPaymentOrder  = "/api/bookings/create-payment-order/"
	pathVerifyPayment = "/api/bookings/%d/verify_payment/"
)

// Client calls the sessions API on behalf of the signed-in user.
type Client struct {
	api    auth.Requester
	logger *slog.Logger
}

// New creates a catalog client.
func New(api auth.Requester, logger *slog.Logger) *Client {
	return &Client{api: api, logger: logger}
}

func sessionPath(id int64) string {
	return pathSessions + strconv.FormatInt(id, 10) + "/"
}

// ListSessions returns all sessions. It needs no credentials.
func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	sessions, err := auth.Do[[]domain.Session](ctx, c.api, pathSessions, auth.RequestOptions{}, auth.SkipAuth())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session. It needs no credentials.
func (c *Client) GetSession(ctx context.Context, id int64) (*domain.Session, error) {
	s, err := auth.Do[domain.Session](ctx, c.api, sessionPath(id), auth.RequestOptions{}, auth.SkipAuth())
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return &s, nil
}

// ListBookings returns the bookings visible to the caller: their own as a
// user, or those of their sessions as a creator.
func (c *Client) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	bookings, err := auth.Do[[]domain.Booking](ctx, c.api, pathBookings, auth.RequestOptions{})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// Dashboard is a creator's view of their sessions and the bookings made
// against them.
type Dashboard struct {
	Sessions []domain.Session `json:"sessions"`
	Bookings []domain.Booking `json:"bookings"`
}

// CreatorDashboard loads the sessions owned by creatorID and the bookings of
// those sessions in parallel.
func (c *Client) CreatorDashboard(ctx context.Context, creatorID int64) (*Dashboard, error) {
	var (
		sessions []domain.Session
		bookings []domain.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		all, err := c.ListSessions(gctx)
		sessions = SessionsByCreator(all, creatorID)
		return err
	})
	g.Go(func() error {
		var err error
		bookings, err = c.ListBookings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	owned := make(map[int64]bool, len(sessions))
	for _, s := range sessions {
		owned[s.ID] = true
	}
	mine := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		if owned[b.SessionID()] {
			mine = append(mine, b)
		}
	}
	return &Dashboard{Sessions: sessions, Bookings: mine}, nil
}

// SessionsByCreator filters sessions down to those created by creatorID.
func SessionsByCreator(sessions []domain.Session, creatorID int64) []domain.Session {
	out := make([]domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.OwnedBy(creatorID) {
			out = append(out, s)
		}
	}
	return out
}

// DeleteSession removes a session owned by the caller.
func (c *Client) DeleteSession(ctx context.Context, id int64) error {
	if err := c.api.Request(ctx, sessionPath(id), auth.RequestOptions{Method: http.MethodDelete}, nil); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	c.logger.InfoContext(ctx, "session deleted", slog.Int64("session_id", id))
	return nil
}
