package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/HarshKochar9008/WINCE/internal/auth"
	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
)

// Codes the API may attach to a duplicate booking.
var duplicateCodes = map[string]bool{
	"duplicate_booking": true,
	"ALREADY_EXISTS":    true,
	"unique":            true,
}

// Phrases that identify a duplicate when no code is present.
var duplicatePhrases = []string{
	"already booked",
	"must make a unique set",
}

// CreateBooking books sessionID for the caller. A second active booking of
// the same session fails with ErrDuplicateBooking.
func (c *Client) CreateBooking(ctx context.Context, sessionID int64) (*domain.Booking, error) {
	b, err := auth.Do[domain.Booking](ctx, c.api, pathBookings, auth.RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]int64{"session_id": sessionID},
	})
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", classifyBookingError(err))
	}
	c.logger.InfoContext(ctx, "booking created",
		slog.Int64("booking_id", b.ID),
		slog.Int64("session_id", sessionID),
		slog.String("status", string(b.Status)),
	)
	return &b, nil
}

func classifyBookingError(err error) error {
	appErr, ok := apperrors.As(err)
	if !ok || !errors.Is(err, apperrors.ErrRequest) {
		return err
	}
	if IsDuplicate(appErr) {
		return apperrors.DuplicateBooking(appErr.Message, appErr.Status, appErr.Body)
	}
	return err
}

// IsDuplicate reports whether a failed booking call means the booking
// already exists. A structured code or a 409 wins over message text.
func IsDuplicate(appErr *apperrors.AppError) bool {
	if appErr == nil {
		return false
	}
	if duplicateCodes[appErr.Code] || appErr.Status == http.StatusConflict {
		return true
	}
	text := strings.ToLower(appErr.Message + " " + string(appErr.Body))
	for _, phrase := range duplicatePhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// CreatePaymentOrder asks the API for a checkout descriptor for bookingID.
// When the API has no payment gateway configured the error is
// ErrGatewayUnavailable, which callers treat as a soft success.
func (c *Client) CreatePaymentOrder(ctx context.Context, bookingID int64) (*domain.CheckoutSession, error) {
	cs, err := auth.Do[domain.CheckoutSession](ctx, c.api, pathPaymentOrder, auth.RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]int64{"booking_id": bookingID},
	})
	if err != nil {
		if appErr, ok := apperrors.As(err); ok && IsGatewayUnavailable(appErr) {
			return nil, apperrors.GatewayUnavailable(appErr.Message, appErr.Status, appErr.Body)
		}
		return nil, fmt.Errorf("create payment order: %w", err)
	}
	return &cs, nil
}

// IsGatewayUnavailable reports whether a payment-order failure means the
// gateway is not configured.
func IsGatewayUnavailable(appErr *apperrors.AppError) bool {
	if appErr == nil || errors.Is(appErr, apperrors.ErrNetwork) {
		return false
	}
	return appErr.Status == http.StatusServiceUnavailable ||
		strings.Contains(strings.ToLower(appErr.Message), "not configured")
}

// VerifyPayment confirms a completed checkout for bookingID. Only the
// identifiers that are set are sent.
func (c *Client) VerifyPayment(ctx context.Context, bookingID int64, ids domain.PaymentIdentifiers) (*domain.VerifyResult, error) {
	path := fmt.Sprintf(pathVerifyPayment, bookingID)
	res, err := auth.Do[domain.VerifyResult](ctx, c.api, path, auth.RequestOptions{
		Method: http.MethodPost,
		Body:   ids,
	})
	if err != nil {
		return nil, fmt.Errorf("verify payment for booking %d: %w", bookingID, err)
	}
	return &res, nil
}
