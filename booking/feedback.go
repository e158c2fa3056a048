package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/warp/concierge-engine/pricing"
)

// =============================================================================
// FEEDBACK - One per booking, gated on completion
// =============================================================================

// Feedback is a guest's rating of a completed booking. Uniqueness on
// booking id is enforced by the store.
type Feedback struct {
	ID        string
	BookingID string
	GuestID   string
	HotelID   string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

var (
	// ErrFeedbackExists is returned when a booking already has feedback.
	ErrFeedbackExists = errors.New("feedback already submitted for booking")

	// ErrFeedbackNotEligible is returned when the booking has not
	// reached a completed or confirmed-cash state.
	ErrFeedbackNotEligible = errors.New("booking is not eligible for feedback")
)

// FeedbackStore persists feedback. Create must reject a duplicate
// booking id with ErrFeedbackExists.
type FeedbackStore interface {
	Create(ctx context.Context, f *Feedback) error
	GetByBooking(ctx context.Context, bookingID string) (*Feedback, error)
}

// FeedbackEligible reports whether a booking may receive feedback:
// completed, or a cash booking whose payment has been confirmed.
func FeedbackEligible(b *Booking) bool {
	if b.IsCompleted() {
		return true
	}
	return b.Payment.Method == PaymentCash && b.IsPaid()
}

// SubmitFeedback validates eligibility and records the guest's feedback.
func (s *Service) SubmitFeedback(ctx context.Context, store FeedbackStore, bookingID string, rating int, comment string) (*Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, &pricing.ValidationError{Field: "rating", Message: "must be within [1, 5]"}
	}

	b, err := s.Bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !FeedbackEligible(b) {
		return nil, ErrFeedbackNotEligible
	}

	f := &Feedback{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		GuestID:   b.GuestID,
		HotelID:   b.HotelID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.Clock(),
	}
	if err := store.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}
