package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/HarshKochar9008/WINCE/internal/domain"
)

// User-facing outcome messages.
const (
	MsgConfirmed          = "Booking confirmed! Payment successful."
	MsgFreeConfirmed      = "Booked! This session is free."
	MsgGatewayUnavailable = "Booked! (Payment gateway not configured - booking confirmed without payment)"
	MsgAlreadyBooked      = "You have already booked this session."
	MsgRedirecting        = "Redirecting to checkout..."
	MsgCancelled          = "Payment cancelled. Booking created but payment pending."
	MsgNotConfirmed       = "Payment not confirmed yet. Booking created but payment pending."
)

func msgBookingFailed(reason string) string {
	return "Booking failed: " + reason
}

func msgPaymentSetupFailed(reason string) string {
	return "Payment setup failed: " + reason + ". Booking created but payment pending."
}

func msgVerifyFailed(reason string) string {
	return "Payment verification failed: " + reason
}

// Attempt is one run of the booking flow for one session.
type Attempt struct {
	ID          string                  `json:"id"`
	SessionID   int64                   `json:"session_id"`
	Session     *domain.Session         `json:"-"`
	Booking     *domain.Booking         `json:"booking,omitempty"`
	Checkout    *domain.CheckoutSession `json:"checkout,omitempty"`
	CheckoutURL string                  `json:"checkout_url,omitempty"`
	State       State                   `json:"state"`
	Message     string                  `json:"message"`
	Err         error                   `json:"-"`
	Steps       []Step                  `json:"steps"`
	StartedAt   time.Time               `json:"started_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

func newAttempt(sessionID int64, session *domain.Session) *Attempt {
	now := time.Now().UTC()
	return &Attempt{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Session:   session,
		State:     StateIdle,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// BookingID returns the id of the booking the attempt created or found.
func (a *Attempt) BookingID() int64 {
	if a.Booking == nil {
		return 0
	}
	return a.Booking.ID
}

// beginStep appends a pending step and returns its index.
func (a *Attempt) beginStep(name string) int {
	a.Steps = append(a.Steps, NewStep(name))
	return len(a.Steps) - 1
}

func (a *Attempt) endStep(i int, err error) {
	if err != nil {
		a.Steps[i].Fail(err.Error())
		return
	}
	a.Steps[i].Complete()
}

func (a *Attempt) transition(s State, msg string, err error) {
	a.State = s
	a.Message = msg
	a.Err = err
	a.UpdatedAt = time.Now().UTC()
}

// snapshot returns a copy that shares no mutable state with a.
func (a *Attempt) snapshot() *Attempt {
	c := *a
	c.Steps = append([]Step(nil), a.Steps...)
	if a.Booking != nil {
		b := *a.Booking
		c.Booking = &b
	}
	if a.Checkout != nil {
		cs := *a.Checkout
		c.Checkout = &cs
	}
	return &c
}
