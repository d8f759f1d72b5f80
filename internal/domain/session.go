package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Session is a bookable timed event offered by a creator.
type Session struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	Creator     int64     `json:"creator"`
	Image       string    `json:"image"`
	ImageFile   string    `json:"image_file,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	StartTime   time.Time `json:"start_time"`
	Duration    string    `json:"duration"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsFree reports whether the price is exactly zero. Unparseable prices are
// never free.
func (s *Session) IsFree() bool {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s.Price))
	return ok && r.Sign() == 0
}

// ImageRef returns the best image reference for display.
func (s *Session) ImageRef() string {
	if s.ImageURL != "" {
		return s.ImageURL
	}
	return s.Image
}

// OwnedBy reports whether userID created the session.
func (s *Session) OwnedBy(userID int64) bool {
	return s.Creator == userID
}

// ParsedDuration decodes Duration.
func (s *Session) ParsedDuration() (time.Duration, error) {
	return ParseDuration(s.Duration)
}

// ParseDuration parses the API duration format "[D ][HH:[MM:]]ss[.ffffff]",
// e.g. "01:30:00" or "1 02:00:00".
func ParseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total time.Duration
	if days, rest, ok := strings.Cut(v, " "); ok {
		d, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		total += time.Duration(d) * 24 * time.Hour
		v = strings.TrimSpace(rest)
	}

	parts := strings.Split(v, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}

	secs, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid duration seconds %q", parts[len(parts)-1])
	}
	total += time.Duration(secs * float64(time.Second))

	units := []time.Duration{time.Minute, time.Hour}
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		total += time.Duration(n) * units[len(parts)-2-i]
	}
	return total, nil
}

// FormatDuration renders d in the API duration format.
func FormatDuration(d time.Duration) string {
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	out := fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	if days > 0 {
		out = fmt.Sprintf("%d %s", days, out)
	}
	return out
}
