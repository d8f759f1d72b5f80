package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/HarshKochar9008/WINCE/internal/booking"
	"github.com/HarshKochar9008/WINCE/internal/domain"
	apperrors "github.com/HarshKochar9008/WINCE/pkg/errors"
)

// emit writes v as indented JSON with -o json, otherwise runs text.
func (rt *runtime) emit(v any, text func(w io.Writer) error) error {
	if rt.format == "json" {
		enc := json.NewEncoder(rt.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(rt.out)
}

func (rt *runtime) println(a ...any) error {
	if rt.format == "json" {
		return nil
	}
	_, err := fmt.Fprintln(rt.out, a...)
	return err
}

func writeUser(w io.Writer, u *domain.User) error {
	_, err := fmt.Fprintf(w, "%s <%s>\nid: %d\nrole: %s\n", u.Name, u.Email, u.ID, u.Role)
	return err
}

func writeSessions(w io.Writer, sessions []domain.Session) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tSTART\tDURATION\tCREATOR")
	for i := range sessions {
		s := &sessions[i]
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Title, priceLabel(s), formatTime(s.StartTime), durationLabel(s), s.Creator)
	}
	return tw.Flush()
}

func writeSession(w io.Writer, s *domain.Session) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%d\n", s.ID)
	fmt.Fprintf(tw, "title:\t%s\n", s.Title)
	fmt.Fprintf(tw, "price:\t%s\n", priceLabel(s))
	fmt.Fprintf(tw, "starts:\t%s\n", formatTime(s.StartTime))
	fmt.Fprintf(tw, "duration:\t%s\n", durationLabel(s))
	fmt.Fprintf(tw, "creator:\t%d\n", s.Creator)
	if img := s.ImageRef(); img != "" {
		fmt.Fprintf(tw, "image:\t%s\n", img)
	}
	if s.Description != "" {
		fmt.Fprintf(tw, "\n%s\n", s.Description)
	}
	return tw.Flush()
}

func writeBookings(w io.Writer, bookings []domain.Booking) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSESSION\tSTATUS\tPAYMENT\tBOOKED")
	for i := range bookings {
		b := &bookings[i]
		title := fmt.Sprint(b.SessionID())
		if b.Session.Session != nil && b.Session.Session.Title != "" {
			title = fmt.Sprintf("%d %s", b.SessionID(), b.Session.Session.Title)
		}
		payment := b.PaymentStatus
		if payment == "" {
			payment = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", b.ID, title, b.Status, payment, formatTime(b.CreatedAt))
	}
	return tw.Flush()
}

func writeAttempt(w io.Writer, a *booking.Attempt) error {
	if _, err := fmt.Fprintln(w, a.Message); err != nil {
		return err
	}
	if id := a.BookingID(); id > 0 {
		if _, err := fmt.Fprintf(w, "booking: %d (%s)\n", id, a.State); err != nil {
			return err
		}
	}
	return nil
}

func priceLabel(s *domain.Session) string {
	if s.IsFree() {
		return "free"
	}
	return s.Price
}

func durationLabel(s *domain.Session) string {
	d, err := s.ParsedDuration()
	if err != nil {
		return s.Duration
	}
	return domain.FormatDuration(d)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// UserMessage renders err for the terminal: wrapping context is kept, an
// API error is shown by its message instead of its code.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		msg = strings.Replace(msg, appErr.Error(), appErr.Message, 1)
	}
	return msg
}
