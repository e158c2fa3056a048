package booking_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/concierge-engine/booking"
	"github.com/warp/concierge-engine/lifecycle"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/provider"
	"github.com/warp/concierge-engine/sla"
	"github.com/warp/concierge-engine/store/memory"
)

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	svc       *booking.Service
	store     *memory.Bookings
	feedback  *memory.Feedback
	bus       *booking.Bus
	providers *memory.Providers
	now       time.Time
}

// newFixture wires the façade over in-memory stores with one internal
// and one external (20%) provider at hotel-1.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	providers := memory.NewProviders()
	assignments := memory.NewAssignments()
	ctx := context.Background()

	internal, err := provider.New("int-1", "hotel-1", "In-House Services", pricing.ProviderInternal, decimal.Zero, "admin", now)
	require.NoError(t, err)
	require.NoError(t, providers.Put(ctx, internal))

	external, err := provider.New("ext-1", "hotel-1", "City Laundry", pricing.ProviderExternal, decimal.NewFromInt(20), "admin", now)
	require.NoError(t, err)
	require.NoError(t, providers.Put(ctx, external))
	require.NoError(t, assignments.Assign(ctx, "hotel-1", "laundry", "ext-1"))

	engine := pricing.NewEngine(provider.NewResolver(providers, assignments), pricing.Config{DefaultCurrency: "USD"})

	f := &fixture{
		store:     memory.NewBookings(),
		feedback:  memory.NewFeedback(),
		bus:       booking.NewBus(),
		providers: providers,
		now:       now,
	}
	f.svc = booking.NewService(f.store, engine, sla.DefaultTable(), f.bus)
	f.svc.Clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) createRegular(t *testing.T) *booking.Booking {
	t.Helper()
	b, err := f.svc.CreateRegular(context.Background(), booking.CreateInput{
		HotelID:     "hotel-1",
		GuestID:     "guest-1",
		ServiceType: "laundry",
		LineItems: []pricing.LineItem{
			{Category: "laundry", Description: "Wash & fold", BasePrice: decimal.NewFromInt(80)},
		},
		ActorID:       "guest-1",
		PaymentMethod: booking.PaymentCash,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) createTransportation(t *testing.T) *booking.Booking {
	t.Helper()
	b, err := f.svc.CreateTransportation(context.Background(), booking.CreateInput{
		HotelID: "hotel-1",
		GuestID: "guest-1",
		LineItems: []pricing.LineItem{
			{Category: "transportation", Description: "Airport transfer", BasePrice: decimal.NewFromInt(45)},
		},
		ActorID: "guest-1",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) transition(t *testing.T, id string, path ...lifecycle.Status) *booking.Booking {
	t.Helper()
	var b *booking.Booking
	var err error
	for _, target := range path {
		f.advance(time.Minute)
		b, err = f.svc.TransitionStatus(context.Background(), id, target, "staff-1", "")
		require.NoError(t, err, "transition to %s", target)
	}
	return b
}

// =============================================================================
// CREATION
// =============================================================================

func TestCreateRegular(t *testing.T) {
	// GIVEN: A hotel with a laundry assignment to an external provider
	// WHEN: A regular laundry booking is created
	// THEN: It starts pending, priced with the 20% markup, version 1

	f := newFixture(t)
	b := f.createRegular(t)

	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, booking.KindRegular, b.Kind)
	assert.True(t, strings.HasPrefix(b.Reference, "BK-"))
	assert.Equal(t, 1, b.Version)
	require.Len(t, b.History, 1)
	assert.Equal(t, booking.StatusPending, b.History[0].Status)

	assert.True(t, b.Pricing.TotalAmount.Equal(decimal.NewFromInt(96)))
	assert.True(t, b.Pricing.HotelEarnings.Equal(decimal.NewFromInt(16)))
	assert.Equal(t, "ext-1", b.ProviderID)

	// SLA targets resolved from the laundry policy at creation.
	assert.EqualValues(t, 30, b.SLA.TargetResponseMinutes)
	assert.EqualValues(t, 1440, b.SLA.TargetCompletionMinutes)
}

func TestCreateTransportation(t *testing.T) {
	f := newFixture(t)
	b := f.createTransportation(t)

	assert.Equal(t, booking.StatusPendingQuote, b.Status)
	assert.Equal(t, "transportation", b.ServiceType)
	assert.True(t, strings.HasPrefix(b.Reference, "TR-"))
}

func TestCreate_RequiresIdentity(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateRegular(context.Background(), booking.CreateInput{
		GuestID:   "guest-1",
		LineItems: []pricing.LineItem{{Category: "laundry", BasePrice: decimal.NewFromInt(10)}},
	})
	require.Error(t, err)
	assert.True(t, pricing.IsValidation(err))
}

func TestCreate_PricingFailureIsFatal(t *testing.T) {
	// hotel-2 has no providers at all: creation must fail, a booking
	// cannot exist without a price.
	f := newFixture(t)
	_, err := f.svc.CreateRegular(context.Background(), booking.CreateInput{
		HotelID:   "hotel-2",
		GuestID:   "guest-1",
		LineItems: []pricing.LineItem{{Category: "laundry", BasePrice: decimal.NewFromInt(10)}},
	})
	require.Error(t, err)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestTransition_AppendsHistory(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)

	got := f.transition(t, b.ID, booking.StatusConfirmed, booking.StatusAssigned)

	assert.Equal(t, booking.StatusAssigned, got.Status)
	require.Len(t, got.History, 3)
	assert.Equal(t, booking.StatusConfirmed, got.History[1].Status)
	assert.Equal(t, "staff-1", got.History[1].ActorID)
	assert.Equal(t, 3, got.Version)
}

func TestTransition_IllegalEdgeRejected(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)

	_, err := f.svc.TransitionStatus(context.Background(), b.ID, booking.StatusCompleted, "staff-1", "")
	require.Error(t, err)
	assert.True(t, lifecycle.IsInvalidTransition(err))

	// Nothing persisted.
	got, err := f.svc.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, got.Status)
	assert.Len(t, got.History, 1)
}

func TestTransition_TerminalLockout(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)
	f.transition(t, b.ID, booking.StatusCancelled)

	_, err := f.svc.TransitionStatus(context.Background(), b.ID, booking.StatusConfirmed, "staff-1", "")
	require.Error(t, err)

	var iterr *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &iterr)
	assert.True(t, iterr.Terminal)
}

func TestTransition_CompletedPublishesEventOnce(t *testing.T) {
	// GIVEN: A subscriber counting completed events
	// WHEN: A booking runs its full path to completed
	// THEN: Exactly one event fires, after persistence, with the final price

	f := newFixture(t)
	var events []booking.CompletedEvent
	f.bus.Subscribe(func(_ context.Context, ev booking.CompletedEvent) error {
		events = append(events, ev)
		return nil
	})

	b := f.createRegular(t)
	f.transition(t, b.ID,
		booking.StatusConfirmed, booking.StatusAssigned, booking.StatusInProgress,
		booking.StatusCompleted)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, b.ID, ev.BookingID)
	assert.Equal(t, "guest-1", ev.GuestID)
	assert.True(t, ev.FinalPrice.Equal(decimal.NewFromInt(96)))
	assert.Equal(t, booking.CompletedEventVersion, ev.Version)

	// The persisted record is already completed when the event fires.
	got, _ := f.svc.Get(context.Background(), b.ID)
	assert.Equal(t, booking.StatusCompleted, got.Status)
	assert.NotNil(t, got.SLA.CompletionAt)
}

func TestTransition_CancellationPublishesNothing(t *testing.T) {
	f := newFixture(t)
	count := 0
	f.bus.Subscribe(func(_ context.Context, _ booking.CompletedEvent) error {
		count++
		return nil
	})

	b := f.createRegular(t)
	f.transition(t, b.ID, booking.StatusCancelled)
	assert.Zero(t, count)
}

func TestTransition_PanickingSubscriberDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.bus.Subscribe(func(_ context.Context, _ booking.CompletedEvent) error {
		panic("broken subscriber")
	})

	b := f.createRegular(t)
	got := f.transition(t, b.ID,
		booking.StatusConfirmed, booking.StatusAssigned, booking.StatusInProgress,
		booking.StatusCompleted)
	assert.Equal(t, booking.StatusCompleted, got.Status)
}

func TestTransition_PaymentCompletedStampsPayment(t *testing.T) {
	// The transportation payment step settles the payment block as a
	// paid online payment.
	f := newFixture(t)
	b := f.createTransportation(t)

	got := f.transition(t, b.ID,
		booking.StatusQuoteSent, booking.StatusQuoteAccepted,
		booking.StatusPaymentPending, booking.StatusPaymentCompleted)

	assert.Equal(t, booking.PaymentOnline, got.Payment.Method)
	assert.True(t, got.IsPaid())
	require.NotNil(t, got.Payment.PaidAt)
}

func TestTransition_VersionConflict(t *testing.T) {
	// GIVEN: A stale copy of the booking
	// WHEN: Another writer bumps the version first
	// THEN: The stale write is rejected with a conflict

	f := newFixture(t)
	b := f.createRegular(t)

	stale, err := f.svc.Get(context.Background(), b.ID)
	require.NoError(t, err)

	f.transition(t, b.ID, booking.StatusConfirmed)

	err = f.store.Update(context.Background(), stale, stale.Version)
	require.Error(t, err)
	assert.True(t, booking.IsConflict(err))
}

// =============================================================================
// SLA EVENTS
// =============================================================================

func TestRecordSLAEvent_Response(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)

	got, err := f.svc.RecordSLAEvent(context.Background(), b.ID, booking.SLAResponse, f.now.Add(10*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, got.SLA.ActualResponseMinutes)
	assert.EqualValues(t, 10, *got.SLA.ActualResponseMinutes)
	assert.True(t, *got.SLA.ResponseOnTime)
}

func TestRecordSLAEvent_UnknownKind(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)
	_, err := f.svc.RecordSLAEvent(context.Background(), b.ID, "escalation", time.Time{})
	require.Error(t, err)
	assert.True(t, pricing.IsValidation(err))
}

func TestSLAStatus_AtRisk(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)

	f.advance(2 * time.Hour) // past the 30-minute laundry response target
	got, _ := f.svc.Get(context.Background(), b.ID)
	assert.Equal(t, sla.StatusAtRisk, f.svc.SLAStatus(got))
}

// =============================================================================
// PAYMENT & REPRICE
// =============================================================================

func TestMarkPaid(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)

	got, err := f.svc.MarkPaid(context.Background(), b.ID, booking.PaymentCash, "staff-1")
	require.NoError(t, err)
	assert.True(t, got.IsPaid())

	// Second settle is a no-op, not an error.
	again, err := f.svc.MarkPaid(context.Background(), b.ID, booking.PaymentCash, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, got.Payment.PaidAt.Unix(), again.Payment.PaidAt.Unix())
}

func TestMarkPaid_InvalidMethod(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)
	_, err := f.svc.MarkPaid(context.Background(), b.ID, "barter", "staff-1")
	require.Error(t, err)
	assert.True(t, pricing.IsValidation(err))
}

func TestReprice_ReplacesBreakdown(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)

	got, err := f.svc.Reprice(context.Background(), b.ID, []pricing.LineItem{
		{Category: "laundry", BasePrice: decimal.NewFromInt(100)},
	}, "admin")
	require.NoError(t, err)
	assert.True(t, got.Pricing.TotalAmount.Equal(decimal.NewFromInt(120)))
}

func TestReprice_RejectedWhenPaid(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)
	_, err := f.svc.MarkPaid(context.Background(), b.ID, booking.PaymentCash, "staff-1")
	require.NoError(t, err)

	_, err = f.svc.Reprice(context.Background(), b.ID, []pricing.LineItem{
		{Category: "laundry", BasePrice: decimal.NewFromInt(100)},
	}, "admin")
	require.Error(t, err)
	assert.True(t, pricing.IsValidation(err))
}

func TestReprice_RejectedWhenTerminal(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)
	f.transition(t, b.ID, booking.StatusCancelled)

	_, err := f.svc.Reprice(context.Background(), b.ID, []pricing.LineItem{
		{Category: "laundry", BasePrice: decimal.NewFromInt(100)},
	}, "admin")
	require.Error(t, err)
	assert.True(t, lifecycle.IsInvalidTransition(err))
}

// =============================================================================
// FEEDBACK
// =============================================================================

func TestSubmitFeedback_RequiresEligibility(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)

	_, err := f.svc.SubmitFeedback(context.Background(), f.feedback, b.ID, 5, "great")
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrFeedbackNotEligible)
}

func TestSubmitFeedback_AfterCompletion(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)
	f.transition(t, b.ID,
		booking.StatusConfirmed, booking.StatusAssigned, booking.StatusInProgress,
		booking.StatusCompleted)

	fb, err := f.svc.SubmitFeedback(context.Background(), f.feedback, b.ID, 4, "fast")
	require.NoError(t, err)
	assert.Equal(t, b.ID, fb.BookingID)
	assert.Equal(t, "guest-1", fb.GuestID)

	// One feedback per booking.
	_, err = f.svc.SubmitFeedback(context.Background(), f.feedback, b.ID, 5, "again")
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrFeedbackExists)
}

func TestSubmitFeedback_CashPaidIsEligible(t *testing.T) {
	// A confirmed cash booking counts as served even before the status
	// reaches completed.
	f := newFixture(t)
	b := f.createRegular(t)
	_, err := f.svc.MarkPaid(context.Background(), b.ID, booking.PaymentCash, "staff-1")
	require.NoError(t, err)

	_, err = f.svc.SubmitFeedback(context.Background(), f.feedback, b.ID, 5, "")
	require.NoError(t, err)
}

func TestSubmitFeedback_RatingRange(t *testing.T) {
	f := newFixture(t)
	b := f.createRegular(t)
	for _, rating := range []int{0, 6, -1} {
		_, err := f.svc.SubmitFeedback(context.Background(), f.feedback, b.ID, rating, "")
		require.Error(t, err)
		assert.True(t, pricing.IsValidation(err))
	}
}

// =============================================================================
// REVENUE
// =============================================================================

func TestHotelRevenue_CompletedOnly(t *testing.T) {
	// GIVEN: One completed and one cancelled booking
	// WHEN: Revenue is reconciled
	// THEN: Only the completed booking counts and the report balances

	f := newFixture(t)
	done := f.createRegular(t)
	f.transition(t, done.ID,
		booking.StatusConfirmed, booking.StatusAssigned, booking.StatusInProgress,
		booking.StatusCompleted)

	dropped := f.createRegular(t)
	f.transition(t, dropped.ID, booking.StatusCancelled)

	report, err := f.svc.HotelRevenue(context.Background(), "hotel-1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Bookings)
	assert.True(t, report.Balanced)
	assert.True(t, report.TotalAmount.Equal(decimal.NewFromInt(96)))
	assert.True(t, report.HotelEarnings.Equal(decimal.NewFromInt(16)))
}
