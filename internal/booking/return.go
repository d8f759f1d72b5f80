package booking

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
	"github.com/HarshKochar9008/WINCE/pkg/logger"
)

// Outcome is the marker the hosted checkout puts on the return URL.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
)

// ReturnParams are the values carried by the checkout return redirect.
type ReturnParams struct {
	Outcome   Outcome
	BookingID int64
	IDs       domain.PaymentIdentifiers
}

// ParseReturn reads a checkout return query such as
// ?payment=success&booking_id=5&session_id=cs_1.
func ParseReturn(q url.Values) (ReturnParams, error) {
	var p ReturnParams

	switch Outcome(q.Get("payment")) {
	case OutcomeSuccess:
		p.Outcome = OutcomeSuccess
	case OutcomeCancelled, "canceled", "failed":
		p.Outcome = OutcomeCancelled
	case "":
		return p, apperrors.InvalidInput("return is missing the payment marker")
	default:
		return p, apperrors.InvalidInput(fmt.Sprintf("unknown payment marker %q", q.Get("payment")))
	}

	id, err := strconv.ParseInt(q.Get("booking_id"), 10, 64)
	if err != nil || id <= 0 {
		return p, apperrors.InvalidInput("return is missing a valid booking_id")
	}
	p.BookingID = id

	p.IDs = domain.PaymentIdentifiers{
		SessionID: q.Get("session_id"),
		PaymentID: firstOf(q, "payment_id", "razorpay_payment_id"),
		OrderID:   q.Get("razorpay_order_id"),
		Signature: q.Get("razorpay_signature"),
	}
	return p, nil
}

func firstOf(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// HandleReturn resolves an attempt after the hosted checkout redirects back.
// It is safe to call more than once for the same booking: a booking already
// confirmed is reported without verifying again. The error is non-nil when
// the params are invalid or the payment did not go through; the attempt is
// returned in the latter case too.
func (f *Flow) HandleReturn(ctx context.Context, p ReturnParams) (*Attempt, error) {
	if p.BookingID <= 0 {
		return nil, apperrors.InvalidInput("booking id is required")
	}

	a, known := f.lookup(p.BookingID)
	if !known {
		a = newAttempt(0, nil)
		a.Booking = &domain.Booking{ID: p.BookingID}
		a.State = StatePaymentInitiated
	}
	if a.State == StatePaymentConfirmed {
		return a, nil
	}

	ctx = logger.WithAttemptID(ctx, a.ID)
	log := logger.WithContext(ctx, f.logger)

	if latest := f.refreshBooking(ctx, a); latest != nil {
		a.Booking = latest
		a.SessionID = latest.SessionID()
		if latest.IsConfirmed() {
			a.transition(StatePaymentConfirmed, MsgConfirmed, nil)
			return f.finish(ctx, a), nil
		}
	}

	if p.Outcome != OutcomeSuccess {
		err := apperrors.PaymentFailed(MsgCancelled)
		a.transition(StatePaymentFailed, MsgCancelled, err)
		log.InfoContext(ctx, "checkout abandoned", slog.Int64("booking_id", p.BookingID))
		return f.finish(ctx, a), err
	}

	i := a.beginStep(StepVerifyPayment)
	res, err := f.api.VerifyPayment(ctx, p.BookingID, p.IDs)
	a.endStep(i, err)
	if err != nil {
		msg := msgVerifyFailed(apperrors.Message(err))
		failure := apperrors.PaymentFailed(msg)
		failure.Cause = err
		a.transition(StatePaymentFailed, msg, failure)
		log.WarnContext(ctx, "payment verification failed",
			slog.Int64("booking_id", p.BookingID),
			slog.String("error", err.Error()),
		)
		return f.finish(ctx, a), failure
	}

	confirmed := res.Booking != nil && res.Booking.IsConfirmed()
	if res.Booking != nil {
		a.Booking = res.Booking
	}
	if latest := f.refreshBooking(ctx, a); latest != nil {
		a.Booking = latest
		confirmed = latest.IsConfirmed()
	}

	if !confirmed {
		err := apperrors.PaymentFailed(MsgNotConfirmed)
		a.transition(StatePaymentFailed, MsgNotConfirmed, err)
		return f.finish(ctx, a), err
	}
	a.transition(StatePaymentConfirmed, MsgConfirmed, nil)
	log.InfoContext(ctx, "payment confirmed", slog.Int64("booking_id", p.BookingID))
	return f.finish(ctx, a), nil
}
