package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, one per failure class surfaced to callers. Match them with
// errors.Is; the concrete value is always an *AppError.
var (
	ErrNetwork            = errors.New("network error")
	ErrAuth               = errors.New("authentication failed")
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateBooking   = errors.New("booking already exists")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrRequest            = errors.New("request failed")
	ErrInvalidInput       = errors.New("invalid input")
)

// Error codes carried in AppError.Code.
const (
	CodeNetwork            = "NETWORK_ERROR"
	CodeAuth               = "AUTH_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicateBooking   = "DUPLICATE_BOOKING"
	CodeGatewayUnavailable = "PAYMENT_GATEWAY_UNAVAILABLE"
	CodePaymentFailed      = "PAYMENT_FAILED"
	CodeRequestFailed      = "REQUEST_FAILED"
	CodeInvalidInput       = "INVALID_INPUT"
)

// FieldError holds the messages reported for one input field.
type FieldError struct {
	Field    string   `json:"field"`
	Messages []string `json:"messages"`
}

// AppError is the structured error returned by every client operation.
// Message is already suitable for showing to a user.
type AppError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Status  int             `json:"status,omitempty"`
	Fields  []FieldError    `json:"fields,omitempty"`
	Body    json.RawMessage `json:"-"`
	Err     error           `json:"-"`
	Cause   error           `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes both the class sentinel and the underlying cause.
func (e *AppError) Unwrap() []error {
	var errs []error
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Network creates an error for a request that never produced a response.
func Network(cause error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: "Network error: the server could not be reached",
		Err:     ErrNetwork,
		Cause:   cause,
	}
}

// Auth creates a 401 error for rejected credentials or an unrecoverable session.
func Auth(message string, body json.RawMessage) *AppError {
	return &AppError{
		Code:    CodeAuth,
		Message: message,
		Status:  http.StatusUnauthorized,
		Body:    body,
		Err:     ErrAuth,
	}
}

// Validation creates an error carrying field-level messages.
func Validation(message string, fields []FieldError, status int, body json.RawMessage) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Status:  status,
		Fields:  fields,
		Body:    body,
		Err:     ErrValidation,
	}
}

// DuplicateBooking creates an error for a second active booking of the same session.
func DuplicateBooking(message string, status int, body json.RawMessage) *AppError {
	return &AppError{
		Code:    CodeDuplicateBooking,
		Message: message,
		Status:  status,
		Body:    body,
		Err:     ErrDuplicateBooking,
	}
}

// GatewayUnavailable creates the soft failure used when checkout is not configured.
func GatewayUnavailable(message string, status int, body json.RawMessage) *AppError {
	return &AppError{
		Code:    CodeGatewayUnavailable,
		Message: message,
		Status:  status,
		Body:    body,
		Err:     ErrGatewayUnavailable,
	}
}

// PaymentFailed creates an error for a payment the checkout did not complete.
func PaymentFailed(message string) *AppError {
	return &AppError{
		Code:    CodePaymentFailed,
		Message: message,
		Err:     ErrPaymentFailed,
	}
}

// Request creates the generic error for a non-2xx response.
func Request(status int, code, message string, body json.RawMessage) *AppError {
	if code == "" {
		code = CodeRequestFailed
	}
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Body:    body,
		Err:     ErrRequest,
	}
}

// InvalidInput creates an error for input rejected before any network call.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
		Err:     ErrInvalidInput,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Status returns the HTTP status attached to err, or 0 when there is none.
func Status(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// Message returns the user-facing message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// As is a convenience around errors.As for *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
