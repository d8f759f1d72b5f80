package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// BookingStatus mirrors the backend status; the client never invents one.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// SessionRef is a booking's session, either a bare id or an expanded Session.
type SessionRef struct {
	ID      int64
	Session *Session
}

// UnmarshalJSON accepts a number or a session object.
func (r *SessionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = SessionRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		*r = SessionRef{ID: s.ID, Session: &s}
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("decode session id: %w", err)
	}
	*r = SessionRef{ID: id}
	return nil
}

// MarshalJSON writes the expanded session when known, else the id.
func (r SessionRef) MarshalJSON() ([]byte, error) {
	if r.Session != nil {
		return json.Marshal(r.Session)
	}
	return json.Marshal(r.ID)
}

// Booking is a user's reservation against a session.
type Booking struct {
	ID            int64         `json:"id"`
	User          int64         `json:"user"`
	Session       SessionRef    `json:"session"`
	Status        BookingStatus `json:"status"`
	PaymentID     string        `json:"payment_id,omitempty"`
	PaymentStatus string        `json:"payment_status,omitempty"`
	AmountPaid    string        `json:"amount_paid,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SessionID resolves the session id from either JSON shape.
func (b *Booking) SessionID() int64 {
	return b.Session.ID
}

// IsActive reports whether the booking still counts against the one active
// booking per user and session.
func (b *Booking) IsActive() bool {
	return b.Status != BookingCancelled
}

// IsConfirmed reports whether the backend confirmed the booking.
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingConfirmed
}

// FindBooking returns the booking with the given id.
func FindBooking(bookings []Booking, id int64) (*Booking, bool) {
	for i := range bookings {
		if bookings[i].ID == id {
			return &bookings[i], true
		}
	}
	return nil, false
}

// FindActiveForSession returns the first active booking of sessionID, which
// the API lists newest first.
func FindActiveForSession(bookings []Booking, sessionID int64) (*Booking, bool) {
	for i := range bookings {
		if bookings[i].SessionID() == sessionID && bookings[i].IsActive() {
			return &bookings[i], true
		}
	}
	return nil, false
}
