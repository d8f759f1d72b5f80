package booking

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
	"github.com/HarshKochar9008/WINCE/pkg/logger"
)

// --- Mocks ---

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *mockAPI) CreateBooking(ctx context.Context, sessionID int64) (*domain.Booking, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockAPI) CreatePaymentOrder(ctx context.Context, bookingID int64) (*domain.CheckoutSession, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSession), args.Error(1)
}

func (m *mockAPI) VerifyPayment(ctx context.Context, bookingID int64, ids domain.PaymentIdentifiers) (*domain.VerifyResult, error) {
	args := m.Called(ctx, bookingID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VerifyResult), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishAttempt(ctx context.Context, a *Attempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

type staticUser struct{ u *domain.User }

func (s staticUser) User() *domain.User { return s.u }

type recordingRedirector struct {
	urls []string
	err  error
}

func (r *recordingRedirector) Redirect(_ context.Context, checkoutURL string, _ *domain.CheckoutSession) error {
	r.urls = append(r.urls, checkoutURL)
	return r.err
}

// --- Helpers ---

const checkoutTemplate = "https://checkout.test/pay?session={session_id}&key={key}"

var asha = &domain.User{ID: 7, Name: "Asha", Role: domain.RoleUser}

func paidSession() *domain.Session {
	return &domain.Session{ID: 3, Title: "Breathwork", Price: "25.00", Creator: 2}
}

func booking(id int64, status domain.BookingStatus) domain.Booking {
	return domain.Booking{ID: id, User: 7, Session: domain.SessionRef{ID: 3}, Status: status}
}

func bookingPtr(id int64, status domain.BookingStatus) *domain.Booking {
	b := booking(id, status)
	return &b
}

func newTestFlow(api *mockAPI, redirect *recordingRedirector, opts ...Option) *Flow {
	opts = append([]Option{WithCheckoutTemplate(checkoutTemplate)}, opts...)
	return NewFlow(api, staticUser{u: asha}, redirect, logger.Discard(), opts...)
}

// --- Start ---

func TestStart_CannotBookMakesNoCalls(t *testing.T) {
	api := new(mockAPI)
	redirect := &recordingRedirector{}

	anon := NewFlow(api, staticUser{}, redirect, logger.Discard())
	_, err := anon.Start(context.Background(), paidSession())
	assert.ErrorIs(t, err, ErrCannotBook)

	owner := NewFlow(api, staticUser{u: &domain.User{ID: 2, Role: domain.RoleCreator}}, redirect, logger.Discard())
	_, err = owner.Start(context.Background(), paidSession())
	assert.ErrorIs(t, err, ErrCannotBook)

	_, err = newTestFlow(api, redirect).Start(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCannotBook)

	api.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	assert.Empty(t, redirect.urls)
}

func TestStart_CreatorBooksAnotherCreatorsSession(t *testing.T) {
	api := new(mockAPI)
	api.On("CreateBooking", mock.Anything, int64(3)).Return(bookingPtr(5, domain.BookingPending), nil)
	api.On("CreatePaymentOrder", mock.Anything, int64(5)).Return(&domain.CheckoutSession{URL: "https://pay.test/x"}, nil)

	other := NewFlow(api, staticUser{u: &domain.User{ID: 9, Role: domain.RoleCreator}}, &recordingRedirector{}, logger.Discard())
	a, err := other.Start(context.Background(), paidSession())
	require.NoError(t, err)
	assert.Equal(t, StatePaymentInitiated, a.State)
}

func TestStart_PaidSessionHandsOffToCheckout(t *testing.T) {
	api := new(mockAPI)
	api.On("CreateBooking", mock.Anything, int64(3)).Return(bookingPtr(5, domain.BookingPending), nil)
	api.On("CreatePaymentOrder", mock.Anything, int64(5)).
		Return(&domain.CheckoutSession{SessionID: "cs_1", PublishableKey: "pk_test"}, nil)
	redirect := &recordingRedirector{}

	a, err := newTestFlow(api, redirect).Start(context.Background(), paidSession())
	require.NoError(t, err)

	assert.Equal(t, StatePaymentInitiated, a.State)
	assert.False(t, a.State.Terminal())
	assert.Equal(t, int64(5), a.BookingID())
	assert.Equal(t, []string{"https://checkout.test/pay?session=cs_1&key=pk_test"}, redirect.urls)
	assert.Equal(t, redirect.urls[0], a.CheckoutURL)

	require.Len(t, a.Steps, 3)
	for _, s := range a.Steps {
		assert.Equal(t, StepCompleted, s.Status, s.Name)
	}
	api.AssertExpectations(t)
}

func TestStart_FreeSessionSkipsPayment(t *testing.T) {
	api := new(mockAPI)
	free := paidSession()
	free.Price = "0.00"
	api.On("CreateBooking", mock.Anything, int64(3)).Return(bookingPtr(5, domain.BookingPending), nil)
	api.On("ListBookings", mock.Anything).Return([]domain.Booking{booking(5, domain.BookingConfirmed)}, nil)
	redirect := &recordingRedirector{}

	f := newTestFlow(api, redirect)
	a, err := f.Start(context.Background(), free)
	require.NoError(t, err)

	assert.Equal(t, StatePaymentConfirmed, a.State)
	assert.True(t, a.Booking.IsConfirmed())
	assert.Equal(t, MsgFreeConfirmed, a.Message)
	assert.Len(t, f.View().Bookings(), 1)
	api.AssertNotCalled(t, "CreatePaymentOrder", mock.Anything, mock.Anything)
	assert.Empty(t, redirect.urls)
}

func TestStart_DuplicateSurfacesExistingBooking(t *testing.T) {
	api := new(mockAPI)
	dup := apperrors.DuplicateBooking("You have already booked this session.", http.StatusBadRequest, nil)
	api.On("CreateBooking", mock.Anything, int64(3)).Return(nil, dup)
	api.On("ListBookings", mock.Anything).Return([]domain.Booking{
		booking(4, domain.BookingCancelled),
		booking(8, domain.BookingConfirmed),
	}, nil)

	a, err := newTestFlow(api, &recordingRedirector{}).Start(context.Background(), paidSession())
	require.NoError(t, err)

	assert.Equal(t, StateAlreadyBooked, a.State)
	assert.Equal(t, int64(8), a.BookingID())
	assert.Equal(t, MsgAlreadyBooked, a.Message)
	api.AssertNumberOfCalls(t, "CreateBooking", 1)
	api.AssertNotCalled(t, "CreatePaymentOrder", mock.Anything, mock.Anything)
}

func TestStart_BookingFailed(t *testing.T) {
	api := new(mockAPI)
	api.On("CreateBooking", mock.Anything, int64(3)).
		Return(nil, apperrors.Request(http.StatusBadRequest, "", "Session is full.", nil))

	a, err := newTestFlow(api, &recordingRedirector{}).Start(context.Background(), paidSession())
	require.Error(t, err)

	require.NotNil(t, a)
	assert.Equal(t, StateBookingFailed, a.State)
	assert.False(t, a.State.BookingExists())
	assert.Equal(t, "Booking failed: Session is full.", a.Message)
	assert.Equal(t, StepFailed, a.Steps[0].Status)
	api.AssertNotCalled(t, "CreatePaymentOrder", mock.Anything, mock.Anything)
}

func TestStart_GatewayUnavailableIsSoftSuccess(t *testing.T) {
	api := new(mockAPI)
	api.On("CreateBooking", mock.Anything, int64(3)).Return(bookingPtr(5, domain.BookingPending), nil)
	api.On("CreatePaymentOrder", mock.Anything, int64(5)).
		Return(nil, apperrors.GatewayUnavailable("Payment gateway is not configured.", http.StatusServiceUnavailable, nil))
	redirect := &recordingRedirector{}

	a, err := newTestFlow(api, redirect).Start(context.Background(), paidSession())
	require.NoError(t, err)

	assert.Equal(t, StateGatewayUnavailable, a.State)
	assert.True(t, a.State.BookingExists())
	assert.Equal(t, MsgGatewayUnavailable, a.Message)
	assert.Empty(t, redirect.urls)
}

func TestStart_PaymentSetupFailureKeepsBooking(t *testing.T) {
	api := new(mockAPI)
	api.On("CreateBooking", mock.Anything, int64(3)).Return(bookingPtr(5, domain.BookingPending), nil)
	api.On("CreatePaymentOrder", mock.Anything, int64(5)).
		Return(nil, apperrors.Request(http.StatusInternalServerError, "", "Request failed (500)", nil))

	a, err := newTestFlow(api, &recordingRedirector{}).Start(context.Background(), paidSession())
	require.NoError(t, err)

	assert.Equal(t, StatePaymentFailed, a.State)
	assert.Equal(t, "Payment setup failed: Request failed (500). Booking created but payment pending.", a.Message)
	assert.Equal(t, int64(5), a.BookingID())
	assert.Error(t, a.Err)
}

func TestStart_RedirectFailure(t *testing.T) {
	api := new(mockAPI)
	api.On("CreateBooking", mock.Anything, int64(3)).Return(bookingPtr(5, domain.BookingPending), nil)
	api.On("CreatePaymentOrder", mock.Anything, int64(5)).Return(&domain.CheckoutSession{OrderID: "order_1"}, nil)

	f := NewFlow(api, staticUser{u: asha}, &recordingRedirector{}, logger.Discard())
	a, err := f.Start(context.Background(), paidSession())
	require.NoError(t, err)

	assert.Equal(t, StatePaymentFailed, a.State)
	assert.Contains(t, a.Message, "no checkout URL template")
	assert.Equal(t, StepFailed, a.Steps[len(a.Steps)-1].Status)
}

func TestStart_PublishesStateChanges(t *testing.T) {
	api := new(mockAPI)
	api.On("CreateBooking", mock.Anything, int64(3)).Return(bookingPtr(5, domain.BookingPending), nil)
	api.On("CreatePaymentOrder", mock.Anything, int64(5)).Return(&domain.CheckoutSession{URL: "https://pay.test/x"}, nil)

	pub := new(mockPublisher)
	var states []State
	pub.On("PublishAttempt", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { states = append(states, args.Get(1).(*Attempt).State) }).
		Return(errors.New("broker down"))

	a, err := newTestFlow(api, &recordingRedirector{}, WithEvents(pub)).Start(context.Background(), paidSession())
	require.NoError(t, err, "publish failures never fail the flow")

	assert.Equal(t, StatePaymentInitiated, a.State)
	assert.Equal(t, []State{StateBookingCreated, StatePaymentInitiated}, states)
}

// --- HandleReturn ---

func startPaid(t *testing.T, api *mockAPI) *Flow {
	t.Helper()
	api.On("CreateBooking", mock.Anything, int64(3)).Return(bookingPtr(5, domain.BookingPending), nil)
	api.On("CreatePaymentOrder", mock.Anything, int64(5)).Return(&domain.CheckoutSession{URL: "https://pay.test/x"}, nil)
	f := newTestFlow(api, &recordingRedirector{})
	_, err := f.Start(context.Background(), paidSession())
	require.NoError(t, err)
	return f
}

func TestHandleReturn_SuccessVerifiesOnce(t *testing.T) {
	api := new(mockAPI)
	f := startPaid(t, api)

	ids := domain.PaymentIdentifiers{SessionID: "cs_1"}
	api.On("ListBookings", mock.Anything).Return([]domain.Booking{booking(5, domain.BookingPending)}, nil).Once()
	api.On("VerifyPayment", mock.Anything, int64(5), ids).
		Return(&domain.VerifyResult{Detail: "Payment verified.", Booking: bookingPtr(5, domain.BookingConfirmed)}, nil).Once()
	api.On("ListBookings", mock.Anything).Return([]domain.Booking{booking(5, domain.BookingConfirmed)}, nil)

	params := ReturnParams{Outcome: OutcomeSuccess, BookingID: 5, IDs: ids}
	a, err := f.HandleReturn(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, StatePaymentConfirmed, a.State)
	assert.Equal(t, MsgConfirmed, a.Message)

	again, err := f.HandleReturn(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, StatePaymentConfirmed, again.State)
	assert.Equal(t, a.ID, again.ID)

	api.AssertNumberOfCalls(t, "VerifyPayment", 1)
}

func TestHandleReturn_AlreadyConfirmedOnServer(t *testing.T) {
	api := new(mockAPI)
	api.On("ListBookings", mock.Anything).Return([]domain.Booking{booking(5, domain.BookingConfirmed)}, nil)

	f := newTestFlow(api, &recordingRedirector{})
	a, err := f.HandleReturn(context.Background(), ReturnParams{Outcome: OutcomeSuccess, BookingID: 5})
	require.NoError(t, err)

	assert.Equal(t, StatePaymentConfirmed, a.State)
	assert.Equal(t, int64(3), a.SessionID)
	api.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleReturn_Cancelled(t *testing.T) {
	api := new(mockAPI)
	f := startPaid(t, api)
	api.On("ListBookings", mock.Anything).Return([]domain.Booking{booking(5, domain.BookingPending)}, nil)

	a, err := f.HandleReturn(context.Background(), ReturnParams{Outcome: OutcomeCancelled, BookingID: 5})
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)

	require.NotNil(t, a)
	assert.Equal(t, StatePaymentFailed, a.State)
	assert.Equal(t, MsgCancelled, a.Message)
	assert.Equal(t, domain.BookingPending, a.Booking.Status, "the booking is left as the server reports it")
	api.AssertNotCalled(t, "VerifyPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleReturn_VerifyFails(t *testing.T) {
	api := new(mockAPI)
	f := startPaid(t, api)
	api.On("ListBookings", mock.Anything).Return([]domain.Booking{booking(5, domain.BookingPending)}, nil)
	api.On("VerifyPayment", mock.Anything, int64(5), mock.Anything).
		Return(nil, apperrors.Request(http.StatusBadRequest, "", "Invalid payment signature.", nil))

	a, err := f.HandleReturn(context.Background(), ReturnParams{Outcome: OutcomeSuccess, BookingID: 5})
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	assert.Equal(t, StatePaymentFailed, a.State)
	assert.Equal(t, "Payment verification failed: Invalid payment signature.", a.Message)
}

func TestHandleReturn_VerifiedButNotConfirmed(t *testing.T) {
	api := new(mockAPI)
	api.On("ListBookings", mock.Anything).Return([]domain.Booking{booking(5, domain.BookingPending)}, nil)
	api.On("VerifyPayment", mock.Anything, int64(5), mock.Anything).
		Return(&domain.VerifyResult{Detail: "Payment pending."}, nil)

	f := newTestFlow(api, &recordingRedirector{})
	a, err := f.HandleReturn(context.Background(), ReturnParams{Outcome: OutcomeSuccess, BookingID: 5})
	assert.ErrorIs(t, err, apperrors.ErrPaymentFailed)
	assert.Equal(t, MsgNotConfirmed, a.Message)
}

func TestHandleReturn_InvalidBooking(t *testing.T) {
	f := newTestFlow(new(mockAPI), &recordingRedirector{})
	_, err := f.HandleReturn(context.Background(), ReturnParams{Outcome: OutcomeSuccess})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestParseReturn(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    ReturnParams
		wantErr bool
	}{
		{
			name:  "success with session id",
			query: "payment=success&booking_id=5&session_id=cs_1",
			want:  ReturnParams{Outcome: OutcomeSuccess, BookingID: 5, IDs: domain.PaymentIdentifiers{SessionID: "cs_1"}},
		},
		{
			name:  "razorpay identifiers",
			query: "payment=success&booking_id=5&razorpay_payment_id=pay_1&razorpay_order_id=order_1&razorpay_signature=sig",
			want: ReturnParams{Outcome: OutcomeSuccess, BookingID: 5, IDs: domain.PaymentIdentifiers{
				PaymentID: "pay_1", OrderID: "order_1", Signature: "sig",
			}},
		},
		{
			name:  "cancelled",
			query: "payment=cancelled&booking_id=9",
			want:  ReturnParams{Outcome: OutcomeCancelled, BookingID: 9},
		},
		{name: "missing marker", query: "booking_id=5", wantErr: true},
		{name: "unknown marker", query: "payment=maybe&booking_id=5", wantErr: true},
		{name: "bad booking id", query: "payment=success&booking_id=abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := ParseReturn(q)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckoutURL(t *testing.T) {
	u, err := CheckoutURL(&domain.CheckoutSession{URL: "https://pay.test/direct", SessionID: "cs_1"}, checkoutTemplate)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/direct", u)

	u, err = CheckoutURL(&domain.CheckoutSession{OrderID: "order 1", KeyID: "rzp"}, checkoutTemplate)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/pay?session=order+1&key=rzp", u)

	_, err = CheckoutURL(&domain.CheckoutSession{SessionID: "cs_1"}, "")
	assert.Error(t, err)

	_, err = CheckoutURL(nil, checkoutTemplate)
	assert.Error(t, err)
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateIdle.Terminal())
	assert.False(t, StateBookingCreated.Terminal())
	assert.False(t, StatePaymentInitiated.Terminal())
	for _, s := range []State{StatePaymentConfirmed, StatePaymentFailed, StateGatewayUnavailable, StateBookingFailed, StateAlreadyBooked} {
		assert.True(t, s.Terminal(), s)
	}
}
