// Package booking runs the book-then-pay handshake for a session: create the
// booking, request a checkout, hand off to the hosted page, and verify on
// return.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
	"github.com/HarshKochar9008/WINCE/pkg/logger"
)

// ErrCannotBook is returned when the current user may not book the session.
// No network call is made in that case.
var ErrCannotBook = errors.New("user cannot book this session")

var attemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "booking_attempts_total",
		Help: "Booking attempts by the state they reached",
	},
	[]string{"state"},
)

// API is the subset of the sessions API the flow uses.
type API interface {
	Lister
	CreateBooking(ctx context.Context, sessionID int64) (*domain.Booking, error)
	CreatePaymentOrder(ctx context.Context, bookingID int64) (*domain.CheckoutSession, error)
	VerifyPayment(ctx context.Context, bookingID int64, ids domain.PaymentIdentifiers) (*domain.VerifyResult, error)
}

// UserSource reports the signed-in user, or nil.
type UserSource interface {
	User() *domain.User
}

// Redirector hands the user off to the hosted checkout.
type Redirector interface {
	Redirect(ctx context.Context, checkoutURL string, cs *domain.CheckoutSession) error
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(ctx context.Context, checkoutURL string, cs *domain.CheckoutSession) error

// Redirect calls f.
func (f RedirectFunc) Redirect(ctx context.Context, checkoutURL string, cs *domain.CheckoutSession) error {
	return f(ctx, checkoutURL, cs)
}

// EventPublisher receives attempt snapshots at each state change.
type EventPublisher interface {
	PublishAttempt(ctx context.Context, a *Attempt) error
}

type noopPublisher struct{}

func (noopPublisher) PublishAttempt(context.Context, *Attempt) error { return nil }

// Option configures a Flow.
type Option func(*Flow)

// WithEvents publishes attempt state changes to p.
func WithEvents(p EventPublisher) Option {
	return func(f *Flow) { f.events = p }
}

// WithCheckoutTemplate sets the URL used when the checkout descriptor has no
// url. {session_id}, {order_id} and {key} are substituted.
func WithCheckoutTemplate(tmpl string) Option {
	return func(f *Flow) { f.checkoutTemplate = tmpl }
}

// WithView shares a bookings view with other readers.
func WithView(v *View) Option {
	return func(f *Flow) { f.view = v }
}

// Flow runs booking attempts. It is safe for concurrent use; independent
// attempts do not coordinate.
type Flow struct {
	api              API
	users            UserSource
	redirect         Redirector
	events           EventPublisher
	view             *View
	checkoutTemplate string
	logger           *slog.Logger

	mu       sync.Mutex
	attempts map[int64]*Attempt
}

// NewFlow creates a booking flow.
func NewFlow(api API, users UserSource, redirect Redirector, log *slog.Logger, opts ...Option) *Flow {
	f := &Flow{
		api:      api,
		users:    users,
		redirect: redirect,
		events:   noopPublisher{},
		logger:   log,
		attempts: make(map[int64]*Attempt),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.view == nil {
		f.view = NewView(api)
	}
	return f
}

// View returns the bookings view the flow refreshes.
func (f *Flow) View() *View {
	return f.view
}

// Start books session for the current user and, for a paid session, hands
// off to checkout. The returned attempt describes where the flow stopped.
// The error is non-nil only when the booking itself could not be created;
// payment problems are reported through the attempt.
func (f *Flow) Start(ctx context.Context, session *domain.Session) (*Attempt, error) {
	if !domain.CanBook(f.users.User(), session) {
		return nil, ErrCannotBook
	}

	a := newAttempt(session.ID, session)
	ctx = logger.WithAttemptID(ctx, a.ID)
	log := logger.WithContext(ctx, f.logger)

	i := a.beginStep(StepCreateBooking)
	b, err := f.api.CreateBooking(ctx, session.ID)
	a.endStep(i, err)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicateBooking) {
			f.surfaceExisting(ctx, a, err)
			return f.finish(ctx, a), nil
		}
		a.transition(StateBookingFailed, msgBookingFailed(apperrors.Message(err)), err)
		log.WarnContext(ctx, "booking failed", slog.Int64("session_id", session.ID), slog.String("error", err.Error()))
		return f.finish(ctx, a), err
	}

	a.Booking = b
	a.transition(StateBookingCreated, "", nil)
	f.track(a)
	f.publish(ctx, a)

	if session.IsFree() || b.IsConfirmed() {
		if latest := f.refreshBooking(ctx, a); latest != nil {
			a.Booking = latest
		}
		a.transition(StatePaymentConfirmed, MsgFreeConfirmed, nil)
		return f.finish(ctx, a), nil
	}

	i = a.beginStep(StepCreatePaymentOrder)
	cs, err := f.api.CreatePaymentOrder(ctx, b.ID)
	a.endStep(i, err)
	if err != nil {
		if errors.Is(err, apperrors.ErrGatewayUnavailable) {
			a.transition(StateGatewayUnavailable, MsgGatewayUnavailable, nil)
			log.InfoContext(ctx, "payment gateway not configured, booking kept", slog.Int64("booking_id", b.ID))
			return f.finish(ctx, a), nil
		}
		a.transition(StatePaymentFailed, msgPaymentSetupFailed(apperrors.Message(err)), err)
		return f.finish(ctx, a), nil
	}
	a.Checkout = cs

	i = a.beginStep(StepRedirectCheckout)
	checkoutURL, err := CheckoutURL(cs, f.checkoutTemplate)
	if err == nil {
		a.CheckoutURL = checkoutURL
		err = f.redirect.Redirect(ctx, checkoutURL, cs)
	}
	a.endStep(i, err)
	if err != nil {
		a.transition(StatePaymentFailed, msgPaymentSetupFailed(err.Error()), err)
		return f.finish(ctx, a), nil
	}

	a.transition(StatePaymentInitiated, MsgRedirecting, nil)
	log.InfoContext(ctx, "checkout handed off",
		slog.Int64("booking_id", b.ID),
		slog.String("order_id", cs.OrderID),
	)
	return f.finish(ctx, a), nil
}

// surfaceExisting resolves a duplicate booking to the user's existing one.
func (f *Flow) surfaceExisting(ctx context.Context, a *Attempt, dupErr error) {
	i := a.beginStep(StepRefreshBookings)
	list, err := f.refresh(ctx)
	a.endStep(i, err)

	msg := MsgAlreadyBooked
	if err == nil {
		if existing, ok := domain.FindActiveForSession(list, a.SessionID); ok {
			b := *existing
			a.Booking = &b
		}
	}
	if a.Booking == nil {
		msg = apperrors.Message(dupErr)
	}
	a.transition(StateAlreadyBooked, msg, nil)
}

// refresh reloads the bookings view. A superseded refresh still hands its
// result to this caller.
func (f *Flow) refresh(ctx context.Context) ([]domain.Booking, error) {
	list, err := f.view.Refresh(ctx)
	if errors.Is(err, ErrSuperseded) {
		return list, nil
	}
	return list, err
}

// refreshBooking reloads bookings and returns the attempt's booking from
// the fresh list, or nil when it is missing or the reload failed.
func (f *Flow) refreshBooking(ctx context.Context, a *Attempt) *domain.Booking {
	i := a.beginStep(StepRefreshBookings)
	list, err := f.refresh(ctx)
	a.endStep(i, err)
	if err != nil {
		logger.WithContext(ctx, f.logger).WarnContext(ctx, "refreshing bookings failed", slog.String("error", err.Error()))
		return nil
	}
	b, ok := domain.FindBooking(list, a.BookingID())
	if !ok {
		return nil
	}
	out := *b
	return &out
}

func (f *Flow) track(a *Attempt) {
	if a.BookingID() == 0 {
		return
	}
	f.mu.Lock()
	f.attempts[a.BookingID()] = a.snapshot()
	f.mu.Unlock()
}

func (f *Flow) lookup(bookingID int64) (*Attempt, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[bookingID]
	if !ok {
		return nil, false
	}
	return a.snapshot(), true
}

// finish records a settled transition and returns a snapshot for the caller.
func (f *Flow) finish(ctx context.Context, a *Attempt) *Attempt {
	f.track(a)
	attemptsTotal.WithLabelValues(string(a.State)).Inc()
	f.publish(ctx, a)
	return a.snapshot()
}

func (f *Flow) publish(ctx context.Context, a *Attempt) {
	if err := f.events.PublishAttempt(ctx, a.snapshot()); err != nil {
		logger.WithContext(ctx, f.logger).ErrorContext(ctx, "failed to publish booking event",
			slog.String("state", string(a.State)),
			slog.String("error", err.Error()),
		)
	}
}

// CheckoutURL picks the hosted checkout URL: the descriptor's url when set,
// otherwise tmpl with {session_id}, {order_id} and {key} filled in.
func CheckoutURL(cs *domain.CheckoutSession, tmpl string) (string, error) {
	if cs == nil {
		return "", fmt.Errorf("no checkout descriptor")
	}
	if cs.URL != "" {
		return cs.URL, nil
	}
	if tmpl == "" {
		return "", fmt.Errorf("checkout descriptor has no url and no checkout URL template is configured")
	}

	handle := cs.SessionID
	if handle == "" {
		handle = cs.OrderID
	}
	key := cs.PublishableKey
	if key == "" {
		key = cs.KeyID
	}
	r := strings.NewReplacer(
		"{session_id}", url.QueryEscape(handle),
		"{order_id}", url.QueryEscape(cs.OrderID),
		"{key}", url.QueryEscape(key),
	)
	return r.Replace(tmpl), nil
}
