package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/concierge-engine/booking"
	"github.com/warp/concierge-engine/lifecycle"
	"github.com/warp/concierge-engine/loyalty"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/provider"
	"github.com/warp/concierge-engine/sla"
	"github.com/warp/concierge-engine/store/sqlite"
)

var t0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleBooking(id string) *booking.Booking {
	return &booking.Booking{
		ID:          id,
		Reference:   "BK-TEST0001",
		HotelID:     "hotel-1",
		GuestID:     "guest-1",
		ProviderID:  "ext-1",
		Kind:        booking.KindRegular,
		ServiceType: "laundry",
		Status:      booking.StatusPending,
		History: []lifecycle.Entry{
			{Status: booking.StatusPending, ActorID: "guest-1", At: t0},
		},
		Pricing: pricing.Breakdown{
			Currency:         "USD",
			BasePrice:        decimal.NewFromInt(80),
			TotalAmount:      decimal.NewFromInt(96),
			ProviderEarnings: decimal.NewFromInt(80),
			HotelEarnings:    decimal.NewFromInt(16),
			Lines: []pricing.LineSplit{
				{Category: "laundry", ProviderID: "ext-1", Quantity: 1,
					BasePrice: decimal.NewFromInt(80), TotalAmount: decimal.NewFromInt(96),
					ProviderEarnings: decimal.NewFromInt(80), HotelEarnings: decimal.NewFromInt(16)},
			},
		},
		SLA:     sla.NewBlock(sla.Policy{Category: "laundry", TargetResponseMinutes: 30, TargetCompletionMinutes: 1440}),
		Payment: booking.Payment{Method: booking.PaymentCash, Status: booking.PaymentUnpaid},
		Schedule: &booking.Schedule{
			StartDate: t0,
			EndDate:   t0.AddDate(0, 0, 3),
		},
		Version:   1,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

// =============================================================================
// BOOKINGS
// =============================================================================

func TestBooking_RoundTrip(t *testing.T) {
	// GIVEN: A booking with history, pricing, SLA block and schedule
	// WHEN: Stored and loaded
	// THEN: Every block survives the trip through the row

	s := newStore(t)
	ctx := context.Background()
	b := sampleBooking("bk-1")
	require.NoError(t, s.Create(ctx, b))

	got, err := s.Get(ctx, "bk-1")
	require.NoError(t, err)

	assert.Equal(t, b.Reference, got.Reference)
	assert.Equal(t, booking.KindRegular, got.Kind)
	assert.Equal(t, booking.StatusPending, got.Status)
	assert.Equal(t, 1, got.Version)

	require.Len(t, got.History, 1)
	assert.Equal(t, "guest-1", got.History[0].ActorID)
	assert.True(t, got.History[0].At.Equal(t0))

	assert.True(t, got.Pricing.TotalAmount.Equal(decimal.NewFromInt(96)))
	require.Len(t, got.Pricing.Lines, 1)
	assert.Equal(t, "ext-1", got.Pricing.Lines[0].ProviderID)

	assert.EqualValues(t, 30, got.SLA.TargetResponseMinutes)
	assert.Equal(t, booking.PaymentCash, got.Payment.Method)
	assert.Nil(t, got.Payment.PaidAt)

	require.NotNil(t, got.Schedule)
	assert.Equal(t, 3, got.Schedule.Nights())
}

func TestBooking_GetMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestBooking_UpdateAppendsHistory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	b := sampleBooking("bk-1")
	require.NoError(t, s.Create(ctx, b))

	b.Status = booking.StatusConfirmed
	b.History = append(b.History, lifecycle.Entry{Status: booking.StatusConfirmed, ActorID: "staff-1", At: t0.Add(time.Minute)})
	b.UpdatedAt = t0.Add(time.Minute)
	require.NoError(t, s.Update(ctx, b, 1))
	assert.Equal(t, 2, b.Version, "caller's copy tracks the bumped version")

	got, err := s.Get(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, got.Status)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.History, 2)
	assert.Equal(t, booking.StatusPending, got.History[0].Status, "stored rows are never rewritten")
	assert.Equal(t, "staff-1", got.History[1].ActorID)
}

func TestBooking_UpdateStaleVersion(t *testing.T) {
	// GIVEN: A booking already at version 2
	// WHEN: A write still expecting version 1 lands
	// THEN: Conflict, and the stored record is untouched

	s := newStore(t)
	ctx := context.Background()
	b := sampleBooking("bk-1")
	require.NoError(t, s.Create(ctx, b))

	fresh, _ := s.Get(ctx, "bk-1")
	fresh.Status = booking.StatusConfirmed
	fresh.History = append(fresh.History, lifecycle.Entry{Status: booking.StatusConfirmed, At: t0.Add(time.Minute)})
	require.NoError(t, s.Update(ctx, fresh, 1))

	stale, _ := s.Get(ctx, "bk-1")
	stale.Status = booking.StatusCancelled
	err := s.Update(ctx, stale, 1)
	require.Error(t, err)
	assert.True(t, booking.IsConflict(err))

	got, _ := s.Get(ctx, "bk-1")
	assert.Equal(t, booking.StatusConfirmed, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestBooking_UpdateMissing(t *testing.T) {
	s := newStore(t)
	err := s.Update(context.Background(), sampleBooking("ghost"), 1)
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestBooking_ListByHotel(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, sampleBooking("bk-1")))
	b2 := sampleBooking("bk-2")
	b2.HotelID = "hotel-2"
	require.NoError(t, s.Create(ctx, b2))

	got, err := s.ListByHotel(ctx, "hotel-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bk-1", got[0].ID)
	assert.Len(t, got[0].History, 1, "listing includes history")
}

// =============================================================================
// PROVIDERS & ASSIGNMENTS
// =============================================================================

func TestProvider_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ps := s.ProviderStore()

	p, err := provider.New("ext-1", "hotel-1", "City Laundry", pricing.ProviderExternal, decimal.RequireFromString("12.5"), "admin", t0)
	require.NoError(t, err)
	require.NoError(t, ps.Put(ctx, p))

	got, err := ps.Get(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "City Laundry", got.Name)
	assert.True(t, got.Markup.Percent.Equal(decimal.RequireFromString("12.5")), "markup survives as exact decimal text")
	assert.Equal(t, "admin", got.Markup.SetBy)
	assert.True(t, got.Active)

	// Upsert replaces the markup in place.
	require.NoError(t, got.SetMarkup(decimal.NewFromInt(20), "manager", "renegotiated", t0.Add(time.Hour)))
	require.NoError(t, ps.Put(ctx, got))
	again, err := ps.Get(ctx, "ext-1")
	require.NoError(t, err)
	assert.True(t, again.Markup.Percent.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, "renegotiated", again.Markup.Reason)
}

func TestProvider_GetInternal(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ps := s.ProviderStore()

	internal, err := provider.New("int-1", "hotel-1", "In-House", pricing.ProviderInternal, decimal.Zero, "admin", t0)
	require.NoError(t, err)
	require.NoError(t, ps.Put(ctx, internal))

	got, err := ps.GetInternal(ctx, "hotel-1")
	require.NoError(t, err)
	assert.Equal(t, "int-1", got.ID)

	_, err = ps.GetInternal(ctx, "hotel-2")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestAssignments(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Assign(ctx, "hotel-1", "laundry", "ext-1"))
	require.NoError(t, s.Assign(ctx, "hotel-1", "laundry", "ext-2")) // upsert

	got, err := s.AssignedProvider(ctx, "hotel-1", "laundry")
	require.NoError(t, err)
	assert.Equal(t, "ext-2", got)

	none, err := s.AssignedProvider(ctx, "hotel-1", "spa")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// LOYALTY
// =============================================================================

func TestMember_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	ms := s.MemberStore()

	m := &loyalty.Member{
		GuestID:         "guest-1",
		HotelID:         "hotel-1",
		Tier:            loyalty.TierSilver,
		LifetimePoints:  520,
		AvailablePoints: 120,
		TierHistory: []loyalty.TierChange{
			{From: loyalty.TierBronze, To: loyalty.TierSilver, At: t0},
		},
		Active:       true,
		EnrolledAt:   t0.AddDate(-1, 0, 0),
		LastActivity: t0,
	}
	require.NoError(t, ms.Put(ctx, m))

	got, err := ms.Get(ctx, "guest-1", "hotel-1")
	require.NoError(t, err)
	assert.Equal(t, loyalty.TierSilver, got.Tier)
	assert.EqualValues(t, 520, got.LifetimePoints)
	require.Len(t, got.TierHistory, 1)
	assert.Equal(t, loyalty.TierBronze, got.TierHistory[0].From)

	_, err = ms.Get(ctx, "guest-2", "hotel-1")
	assert.ErrorIs(t, err, loyalty.ErrMemberNotFound)
}

func TestMarker_DuplicateRejected(t *testing.T) {
	// The primary key on booking_id is the engine's idempotency backstop:
	// a second insert for the same booking must come back as a duplicate.
	s := newStore(t)
	ctx := context.Background()
	ms := s.MarkerStore()

	marker := loyalty.Marker{BookingID: "bk-1", GuestID: "guest-1", HotelID: "hotel-1", Points: 40, AwardedAt: t0}
	require.NoError(t, ms.Put(ctx, marker))

	err := ms.Put(ctx, marker)
	require.Error(t, err)
	assert.ErrorIs(t, err, loyalty.ErrDuplicateAccrual)

	exists, err := ms.Exists(ctx, "bk-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMarker_DeleteReopensBooking(t *testing.T) {
	// Releasing a marker makes the booking id insertable again, which is
	// how a failed balance write hands recovery back to redelivery.
	s := newStore(t)
	ctx := context.Background()
	ms := s.MarkerStore()

	marker := loyalty.Marker{BookingID: "bk-1", GuestID: "guest-1", HotelID: "hotel-1", Points: 40, AwardedAt: t0}
	require.NoError(t, ms.Put(ctx, marker))
	require.NoError(t, ms.Delete(ctx, "bk-1"))

	exists, err := ms.Exists(ctx, "bk-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, ms.Put(ctx, marker))

	// Deleting a marker that is not there is not an error.
	assert.NoError(t, ms.Delete(ctx, "bk-ghost"))
}

func TestProgram_SaveAndFallback(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	custom := loyalty.DefaultProgram()
	custom.PointsPerCurrencyUnit = decimal.NewFromInt(5)
	require.NoError(t, s.SaveProgram(ctx, "hotel-1", custom))

	got, err := s.ProgramFor(ctx, "hotel-1")
	require.NoError(t, err)
	assert.Equal(t, "hotel-1", got.HotelID)
	assert.True(t, got.PointsPerCurrencyUnit.Equal(decimal.NewFromInt(5)))

	// Unconfigured hotels get the default program under their own id.
	fallback, err := s.ProgramFor(ctx, "hotel-2")
	require.NoError(t, err)
	assert.Equal(t, "hotel-2", fallback.HotelID)
	assert.True(t, fallback.PointsPerCurrencyUnit.Equal(decimal.NewFromInt(10)))
}

func TestStays(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := t0
	out := t0.AddDate(0, 0, 4)
	require.NoError(t, s.SaveStay(ctx, "guest-1", "hotel-1", in, out))

	gotIn, gotOut, ok, err := s.Stay(ctx, "guest-1", "hotel-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, gotIn.Equal(in))
	assert.True(t, gotOut.Equal(out))

	_, _, ok, err = s.Stay(ctx, "guest-2", "hotel-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// FEEDBACK
// =============================================================================

func TestFeedback_OnePerBooking(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	fs := s.FeedbackStore()

	f := &booking.Feedback{ID: "fb-1", BookingID: "bk-1", GuestID: "guest-1", HotelID: "hotel-1", Rating: 5, Comment: "spotless", CreatedAt: t0}
	require.NoError(t, fs.Create(ctx, f))

	dup := &booking.Feedback{ID: "fb-2", BookingID: "bk-1", GuestID: "guest-1", HotelID: "hotel-1", Rating: 1, CreatedAt: t0}
	err := fs.Create(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrFeedbackExists)

	got, err := fs.GetByBooking(ctx, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "fb-1", got.ID)
	assert.Equal(t, 5, got.Rating)
}

// =============================================================================
// FULL ENGINE OVER SQLITE
// =============================================================================

func TestService_CompletesOverSQLite(t *testing.T) {
	// GIVEN: The booking façade wired to the SQLite store
	// WHEN: A booking runs creation through completion and accrual
	// THEN: Version checks, history, and the accrual marker all hold

	s := newStore(t)
	ctx := context.Background()

	internal, err := provider.New("int-1", "hotel-1", "In-House", pricing.ProviderInternal, decimal.Zero, "admin", t0)
	require.NoError(t, err)
	require.NoError(t, s.ProviderStore().Put(ctx, internal))

	engine := pricing.NewEngine(provider.NewResolver(s.ProviderStore(), s), pricing.Config{DefaultCurrency: "USD"})
	bus := booking.NewBus()
	svc := booking.NewService(s, engine, sla.DefaultTable(), bus)

	trigger := loyalty.NewTrigger(s.MemberStore(), s.MarkerStore(), s, s)
	bus.Subscribe(func(ctx context.Context, ev booking.CompletedEvent) error {
		trigger.OnBookingCompleted(ctx, loyalty.CompletionEvent{
			BookingID:   ev.BookingID,
			GuestID:     ev.GuestID,
			HotelID:     ev.HotelID,
			FinalPrice:  ev.FinalPrice,
			ServiceType: ev.ServiceType,
			Nights:      ev.NumberOfNights,
			CompletedAt: ev.CompletedAt,
		})
		return nil
	})

	b, err := svc.CreateRegular(ctx, booking.CreateInput{
		HotelID:     "hotel-1",
		GuestID:     "guest-1",
		ServiceType: "housekeeping",
		LineItems:   []pricing.LineItem{{Category: "housekeeping", BasePrice: decimal.NewFromInt(100)}},
		ActorID:     "guest-1",
	})
	require.NoError(t, err)

	for _, target := range []lifecycle.Status{
		booking.StatusConfirmed, booking.StatusAssigned, booking.StatusInProgress, booking.StatusCompleted,
	} {
		_, err := svc.TransitionStatus(ctx, b.ID, target, "staff-1", "")
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, got.Status)
	assert.Equal(t, 5, got.Version)
	assert.Len(t, got.History, 5)

	// $100 at 1 point per 10 units, no nights.
	m, err := s.MemberStore().Get(ctx, "guest-1", "hotel-1")
	require.NoError(t, err)
	assert.EqualValues(t, 10, m.LifetimePoints)

	exists, err := s.MarkerStore().Exists(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}
