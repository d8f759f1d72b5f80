package booking

import (
	"time"
)

// State is where a booking attempt stands.
type State string

const (
	StateIdle               State = "IDLE"
	StateBookingCreated     State = "BOOKING_CREATED"
	StatePaymentInitiated   State = "PAYMENT_INITIATED"
	StatePaymentConfirmed   State = "PAYMENT_CONFIRMED"
	StatePaymentFailed      State = "PAYMENT_FAILED"
	StateGatewayUnavailable State = "GATEWAY_UNAVAILABLE"
	StateBookingFailed      State = "BOOKING_FAILED"
	StateAlreadyBooked      State = "ALREADY_BOOKED"
)

// Terminal reports whether no further step follows s. PaymentInitiated is
// not terminal: it resolves when the checkout returns.
func (s State) Terminal() bool {
	switch s {
	case StatePaymentConfirmed, StatePaymentFailed, StateGatewayUnavailable,
		StateBookingFailed, StateAlreadyBooked:
		return true
	}
	return false
}

// BookingExists reports whether the attempt left a booking on the server.
func (s State) BookingExists() bool {
	return s != StateIdle && s != StateBookingFailed
}

// Step status constants.
const (
	StepPending   = "pending"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// Step names, in the order they can run.
const (
	StepCreateBooking      = "create_booking"
	StepRefreshBookings    = "refresh_bookings"
	StepCreatePaymentOrder = "create_payment_order"
	StepRedirectCheckout   = "redirect_checkout"
	StepVerifyPayment      = "verify_payment"
)

// Step records one network step of an attempt.
type Step struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at,omitempty"`
}

// NewStep creates a step in the pending state.
func NewStep(name string) Step {
	return Step{Name: name, Status: StepPending}
}

// Complete marks the step as done.
func (s *Step) Complete() {
	s.Status = StepCompleted
	s.ExecutedAt = time.Now().UTC()
}

// Fail marks the step as failed with err.
func (s *Step) Fail(err string) {
	s.Status = StepFailed
	s.Error = err
	s.ExecutedAt = time.Now().UTC()
}
