package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HarshKochar9008/WINCE/internal/domain"
)

// ErrSuperseded is returned by View.Refresh when a newer refresh started
// before this one finished. The returned list is still valid but was not
// applied to the view.
var ErrSuperseded = errors.New("bookings refresh superseded")

// Lister loads the caller's bookings.
type Lister interface {
	ListBookings(ctx context.Context) ([]domain.Booking, error)
}

// View holds the most recent bookings list. Only the latest refresh may
// replace it.
type View struct {
	lister Lister

	mu        sync.RWMutex
	seq       uint64
	bookings  []domain.Booking
	updatedAt time.Time
}

// NewView creates an empty view over lister.
func NewView(lister Lister) *View {
	return &View{lister: lister}
}

// Refresh fetches bookings and applies them unless a newer refresh has
// started or ctx was cancelled in the meantime.
func (v *View) Refresh(ctx context.Context) ([]domain.Booking, error) {
	v.mu.Lock()
	v.seq++
	mine := v.seq
	v.mu.Unlock()

	list, err := v.lister.ListBookings(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if mine != v.seq {
		return list, ErrSuperseded
	}
	v.bookings = list
	v.updatedAt = time.Now().UTC()
	return list, nil
}

// Bookings returns a copy of the current list.
func (v *View) Bookings() []domain.Booking {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]domain.Booking(nil), v.bookings...)
}

// UpdatedAt is when the list was last applied; zero if never.
func (v *View) UpdatedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.updatedAt
}
