package domain

// CheckoutSession describes a hosted-checkout handoff. Which fields are set
// depends on the payment provider configured on the backend.
type CheckoutSession struct {
	SessionID      string `json:"session_id,omitempty"`
	URL            string `json:"url,omitempty"`
	PublishableKey string `json:"publishable_key,omitempty"`
	OrderID        string `json:"order_id,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	Currency       string `json:"currency,omitempty"`
	KeyID          string `json:"key_id,omitempty"`
}

// PaymentIdentifiers are the values handed back by the checkout on return.
// Empty fields are omitted from the verify call.
type PaymentIdentifiers struct {
	SessionID string `json:"session_id,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	OrderID   string `json:"razorpay_order_id,omitempty"`
	Signature string `json:"razorpay_signature,omitempty"`
}

// IsZero reports whether no identifier is set.
func (p PaymentIdentifiers) IsZero() bool {
	return p == PaymentIdentifiers{}
}

// VerifyResult is the verify-payment response.
type VerifyResult struct {
	Detail  string   `json:"detail"`
	Booking *Booking `json:"booking,omitempty"`
}
