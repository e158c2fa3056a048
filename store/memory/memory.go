// Package memory provides in-memory store implementations for tests and
// development. Every store hands out copies, so callers can't mutate
// shared state behind the mutex.
package memory

import (
	"context"
	"sync"

	"github.com/warp/concierge-engine/booking"
	"github.com/warp/concierge-engine/lifecycle"
)

// =============================================================================
// BOOKING STORE
// =============================================================================

type Bookings struct {
	mu       sync.RWMutex
	bookings map[string]*booking.Booking
}

func NewBookings() *Bookings {
	return &Bookings{bookings: make(map[string]*booking.Booking)}
}

var _ booking.Store = (*Bookings)(nil)

func cloneBooking(b *booking.Booking) *booking.Booking {
	cp := *b
	cp.History = append([]lifecycle.Entry(nil), b.History...)
	cp.Pricing.Lines = append(cp.Pricing.Lines[:0:0], b.Pricing.Lines...)
	if b.Schedule != nil {
		sched := *b.Schedule
		cp.Schedule = &sched
	}
	return &cp
}

func (s *Bookings) Create(_ context.Context, b *booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (s *Bookings) Get(_ context.Context, id string) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return cloneBooking(b), nil
}

// Update applies the write only when the stored version matches the
// expected one, mirroring the conditional UPDATE of the SQLite store.
func (s *Bookings) Update(_ context.Context, b *booking.Booking, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.bookings[b.ID]
	if !ok {
		return booking.ErrNotFound
	}
	if current.Version != expectedVersion {
		return booking.ErrConcurrencyConflict
	}
	cp := cloneBooking(b)
	cp.Version = expectedVersion + 1
	s.bookings[b.ID] = cp
	b.Version = cp.Version
	return nil
}

func (s *Bookings) ListByHotel(_ context.Context, hotelID string) ([]*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*booking.Booking
	for _, b := range s.bookings {
		if b.HotelID == hotelID {
			out = append(out, cloneBooking(b))
		}
	}
	return out, nil
}

// =============================================================================
// FEEDBACK STORE
// =============================================================================

type Feedback struct {
	mu        sync.RWMutex
	byBooking map[string]*booking.Feedback
}

func NewFeedback() *Feedback {
	return &Feedback{byBooking: make(map[string]*booking.Feedback)}
}

var _ booking.FeedbackStore = (*Feedback)(nil)

func (s *Feedback) Create(_ context.Context, f *booking.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byBooking[f.BookingID]; ok {
		return booking.ErrFeedbackExists
	}
	cp := *f
	s.byBooking[f.BookingID] = &cp
	return nil
}

func (s *Feedback) GetByBooking(_ context.Context, bookingID string) (*booking.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.byBooking[bookingID]
	if !ok {
		return nil, booking.ErrNotFound
	}
	cp := *f
	return &cp, nil
}
