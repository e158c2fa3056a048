/*
service.go - The booking façade

PURPOSE:
  The only entry point external collaborators (the HTTP layer) call.
  Wraps the state machine, the revenue attribution engine, the SLA
  tracker, and the completed-event bus with validation and persistence.

FLOW OF A STATUS CHANGE:
  load booking -> state machine validates the edge -> history appended,
  SLA/payment bookkeeping applied -> conditional update on the expected
  version -> on the kind's completed status, publish the completed event.
  Event side effects (loyalty accrual) run best-effort after the commit;
  their failures are logged, never surfaced as a transition failure.

CONCURRENCY:
  Two admins changing the same booking race on the version column. The
  loser gets ErrConcurrencyConflict and retries with fresh state; history
  is never silently overwritten.
*/
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warp/concierge-engine/lifecycle"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/sla"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service is the booking façade.
type Service struct {
	Bookings Store
	Pricing  *pricing.Engine
	SLA      *sla.PolicyTable
	Bus      *Bus

	// Clock is injectable for tests; defaults to time.Now UTC.
	Clock func() time.Time
}

func NewService(bookings Store, engine *pricing.Engine, slaTable *sla.PolicyTable, bus *Bus) *Service {
	return &Service{
		Bookings: bookings,
		Pricing:  engine,
		SLA:      slaTable,
		Bus:      bus,
		Clock:    func() time.Time { return time.Now().UTC() },
	}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput is shared by both creation paths.
type CreateInput struct {
	HotelID     string
	GuestID     string
	ServiceID   string
	ServiceType string
	Currency    string
	LineItems   []pricing.LineItem
	Schedule    *Schedule
	ActorID     string
	// Payment method declared at creation; cash bookings settle later
	// via MarkPaid, online ones on the payment transition.
	PaymentMethod PaymentMethod
}

// CreateRegular creates a regular service booking in the pending state.
// Pricing failure is fatal here: a booking cannot exist without a price.
func (s *Service) CreateRegular(ctx context.Context, in CreateInput) (*Booking, error) {
	return s.create(ctx, KindRegular, in)
}

// CreateTransportation creates a transportation booking awaiting a quote.
func (s *Service) CreateTransportation(ctx context.Context, in CreateInput) (*Booking, error) {
	if in.ServiceType == "" {
		in.ServiceType = "transportation"
	}
	return s.create(ctx, KindTransportation, in)
}

func (s *Service) create(ctx context.Context, kind lifecycle.Kind, in CreateInput) (*Booking, error) {
	if in.HotelID == "" || in.GuestID == "" {
		return nil, &pricing.ValidationError{Field: "booking", Message: "hotel_id and guest_id are required"}
	}

	machine, err := lifecycle.NewMachine(kind)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.Pricing.PriceBooking(ctx, in.HotelID, in.Currency, in.LineItems)
	if err != nil {
		return nil, fmt.Errorf("price booking: %w", err)
	}

	now := s.Clock()
	id := uuid.NewString()
	b := &Booking{
		ID:          id,
		Reference:   referenceFor(kind, id),
		HotelID:     in.HotelID,
		GuestID:     in.GuestID,
		ServiceID:   in.ServiceID,
		Kind:        kind,
		ServiceType: in.ServiceType,
		Status:      machine.Vocabulary().Initial,
		History:     []lifecycle.Entry{machine.InitialEntry(in.ActorID, now)},
		Pricing:     *breakdown,
		SLA:         sla.NewBlock(s.SLA.For(in.ServiceType)),
		Payment:     Payment{Method: in.PaymentMethod, Status: PaymentUnpaid},
		Schedule:    in.Schedule,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if len(breakdown.Lines) > 0 {
		b.ProviderID = breakdown.Lines[0].ProviderID
	}

	if err := s.Bookings.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("persist booking: %w", err)
	}
	return b, nil
}

// referenceFor derives a human-readable reference from the uuid.
func referenceFor(kind lifecycle.Kind, id string) string {
	prefix := "BK"
	if kind == KindTransportation {
		prefix = "TR"
	}
	short := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(short) > 8 {
		short = short[:8]
	}
	return prefix + "-" + short
}

// =============================================================================
// TRANSITION
// =============================================================================

// TransitionStatus advances a booking to target. Propagates
// InvalidTransition, NotFound, and ConcurrencyConflict unchanged; the
// ownership check belongs to the caller.
func (s *Service) TransitionStatus(ctx context.Context, bookingID string, target lifecycle.Status, actorID, note string) (*Booking, error) {
	b, err := s.Bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	machine, err := lifecycle.NewMachine(b.Kind)
	if err != nil {
		return nil, err
	}

	now := s.Clock()
	outcome, err := machine.Apply(b.Status, b.lastHistoryAt(), lifecycle.Request{
		Target:  target,
		ActorID: actorID,
		Note:    note,
		At:      now,
	})
	if err != nil {
		return nil, err
	}

	expected := b.Version
	b.Status = outcome.Status
	b.History = append(b.History, outcome.Entry)
	b.UpdatedAt = now

	// The transportation payment step also settles the payment block.
	if target == StatusPaymentCompleted {
		b.Payment.Method = PaymentOnline
		b.Payment.Status = PaymentPaid
		paidAt := now
		b.Payment.PaidAt = &paidAt
	}

	if outcome.Completed {
		// Completion timestamps are written exactly once, at the
		// terminal transition.
		b.SLA.RecordCompletion(b.CreatedAt, now)
	}

	if err := s.Bookings.Update(ctx, b, expected); err != nil {
		return nil, err
	}

	if outcome.Completed && s.Bus != nil {
		s.Bus.Publish(ctx, CompletedEvent{
			Version:        CompletedEventVersion,
			BookingID:      b.ID,
			GuestID:        b.GuestID,
			HotelID:        b.HotelID,
			FinalPrice:     b.Pricing.TotalAmount,
			Currency:       b.Pricing.Currency,
			ServiceType:    b.ServiceType,
			BookingKind:    b.Kind,
			NumberOfNights: b.Schedule.Nights(),
			CompletedAt:    now,
		})
	}

	return b, nil
}

// =============================================================================
// SLA EVENTS
// =============================================================================

// SLAEventKind selects which clock RecordSLAEvent stamps.
type SLAEventKind string

const (
	SLAResponse   SLAEventKind = "response"
	SLACompletion SLAEventKind = "completion"
)

// RecordSLAEvent stamps a response or completion timestamp on the
// booking's SLA block. Both operations are idempotent; the first
// recorded value wins.
func (s *Service) RecordSLAEvent(ctx context.Context, bookingID string, kind SLAEventKind, at time.Time) (*Booking, error) {
	b, err := s.Bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = s.Clock()
	}

	expected := b.Version
	switch kind {
	case SLAResponse:
		b.SLA.RecordResponse(b.CreatedAt, at)
	case SLACompletion:
		b.SLA.RecordCompletion(b.CreatedAt, at)
	default:
		return nil, &pricing.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown SLA event kind %q", kind)}
	}
	b.UpdatedAt = s.Clock()

	if err := s.Bookings.Update(ctx, b, expected); err != nil {
		return nil, err
	}
	return b, nil
}

// SLAStatus evaluates the booking's SLA status as of now, including the
// lazily derived at_risk state. Nothing is stored.
func (s *Service) SLAStatus(b *Booking) sla.Status {
	return b.SLA.Evaluate(b.CreatedAt, s.Clock())
}

// =============================================================================
// PAYMENT
// =============================================================================

// MarkPaid settles the payment sub-record, typically for cash bookings
// confirmed by staff.
func (s *Service) MarkPaid(ctx context.Context, bookingID string, method PaymentMethod, actorID string) (*Booking, error) {
	if method != PaymentCash && method != PaymentOnline {
		return nil, &pricing.ValidationError{Field: "method", Message: "must be cash or online"}
	}

	b, err := s.Bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.IsPaid() {
		return b, nil
	}

	expected := b.Version
	now := s.Clock()
	b.Payment.Method = method
	b.Payment.Status = PaymentPaid
	b.Payment.PaidAt = &now
	b.UpdatedAt = now

	if err := s.Bookings.Update(ctx, b, expected); err != nil {
		return nil, err
	}
	return b, nil
}

// =============================================================================
// REPRICE
// =============================================================================

// Reprice recomputes the pricing breakdown for an admin correction.
// Allowed only while the booking is non-terminal and unpaid; everywhere
// else historical pricing stays frozen.
func (s *Service) Reprice(ctx context.Context, bookingID string, items []pricing.LineItem, actorID string) (*Booking, error) {
	b, err := s.Bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.IsTerminal() {
		return nil, &lifecycle.InvalidTransitionError{Kind: b.Kind, From: b.Status, To: b.Status, Terminal: true}
	}
	if b.IsPaid() {
		return nil, &pricing.ValidationError{Field: "booking", Message: "cannot reprice a paid booking"}
	}

	breakdown, err := s.Pricing.PriceBooking(ctx, b.HotelID, b.Pricing.Currency, items)
	if err != nil {
		return nil, fmt.Errorf("reprice booking: %w", err)
	}

	expected := b.Version
	b.Pricing = *breakdown
	if len(breakdown.Lines) > 0 {
		b.ProviderID = breakdown.Lines[0].ProviderID
	}
	b.UpdatedAt = s.Clock()

	if err := s.Bookings.Update(ctx, b, expected); err != nil {
		return nil, err
	}
	return b, nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, bookingID string) (*Booking, error) {
	return s.Bookings.Get(ctx, bookingID)
}

// HotelRevenue sums the pricing breakdowns of a hotel's completed
// bookings and verifies the reconciliation identity.
func (s *Service) HotelRevenue(ctx context.Context, hotelID string) (pricing.ReconciliationReport, error) {
	bookings, err := s.Bookings.ListByHotel(ctx, hotelID)
	if err != nil {
		return pricing.ReconciliationReport{}, err
	}
	var breakdowns []pricing.Breakdown
	for _, b := range bookings {
		if b.IsCompleted() {
			breakdowns = append(breakdowns, b.Pricing)
		}
	}
	return pricing.Reconcile(breakdowns), nil
}
