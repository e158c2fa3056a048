/*
Package booking holds the booking aggregate and the façade service that
external collaborators call.

PURPOSE:
  A booking is created once, moves forward through its kind's state
  machine, and is never deleted: cancellation and refund are terminal
  statuses, not removals. The pricing breakdown is set at creation and
  immutable except for an explicit admin reprice; the status history is
  append-only; SLA actuals are written once.

TWO KINDS, ONE SHAPE:
  Regular service bookings and transportation bookings share one struct
  and one engine. The difference is data: each kind registers its own
  status vocabulary (vocabularies.go) and the machine enforces whichever
  table governs the record.

SEE ALSO:
  - service.go: The façade (create / transition / SLA / reprice / pay)
  - events.go: The booking-completed event and in-process bus
  - lifecycle/: The kind-agnostic state machine engine
*/
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/warp/concierge-engine/lifecycle"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/sla"
)

// =============================================================================
// PAYMENT
// =============================================================================

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Payment is the booking's payment sub-record.
type Payment struct {
	Method PaymentMethod `json:"method,omitempty"`
	Status PaymentStatus `json:"status"`
	PaidAt *time.Time    `json:"paid_at,omitempty"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

// Schedule carries the booking's own stay window, the preferred source
// for stay-length (nights) on the completed event.
type Schedule struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Nights returns the stay length in whole nights, 0 when the window is
// empty or inverted.
func (s *Schedule) Nights() int {
	if s == nil || !s.EndDate.After(s.StartDate) {
		return 0
	}
	return int(s.EndDate.Sub(s.StartDate).Hours() / 24)
}

// =============================================================================
// BOOKING
// =============================================================================

// Booking is the aggregate shared by both kinds.
type Booking struct {
	ID        string
	Reference string
	HotelID   string
	GuestID   string
	ServiceID string
	// ProviderID is the provider resolved at pricing time for the
	// first line item; per-line providers live in Pricing.Lines.
	ProviderID string

	Kind        lifecycle.Kind
	ServiceType string

	Status  lifecycle.Status
	History []lifecycle.Entry

	Pricing pricing.Breakdown
	SLA     sla.Block
	Payment Payment

	Schedule *Schedule

	// Version backs optimistic concurrency on every write.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenericStatus returns the cross-kind display status. Presentation
// only; it never feeds back into transitions.
func (b *Booking) GenericStatus() lifecycle.GenericStatus {
	v, ok := lifecycle.VocabularyFor(b.Kind)
	if !ok {
		return lifecycle.GenericPending
	}
	return v.GenericFor(b.Status)
}

// IsTerminal reports whether the booking admits no further transitions.
func (b *Booking) IsTerminal() bool {
	v, ok := lifecycle.VocabularyFor(b.Kind)
	return ok && v.IsTerminal(b.Status)
}

// IsCompleted reports whether the booking reached its kind's completed
// status.
func (b *Booking) IsCompleted() bool {
	v, ok := lifecycle.VocabularyFor(b.Kind)
	return ok && b.Status == v.Completed
}

// IsPaid reports whether the payment sub-record is settled.
func (b *Booking) IsPaid() bool {
	return b.Payment.Status == PaymentPaid
}

// lastHistoryAt returns the timestamp of the newest history entry, so
// appended entries never go backwards in time.
func (b *Booking) lastHistoryAt() time.Time {
	if len(b.History) == 0 {
		return b.CreatedAt
	}
	return b.History[len(b.History)-1].At
}

// =============================================================================
// STORE
// =============================================================================

var (
	// ErrNotFound is returned when a booking is absent.
	ErrNotFound = errors.New("booking not found")

	// ErrConcurrencyConflict is returned when an optimistic-version
	// check fails. Callers should retry with fresh state.
	ErrConcurrencyConflict = errors.New("booking was modified concurrently")
)

// Store persists bookings. Update is conditional on the expected
// version: a stale version yields ErrConcurrencyConflict and the stored
// record is untouched.
type Store interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	Update(ctx context.Context, b *Booking, expectedVersion int) error
	ListByHotel(ctx context.Context, hotelID string) ([]*Booking, error)
}

// IsNotFound reports whether err indicates a missing booking.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is an optimistic-concurrency rejection.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}
