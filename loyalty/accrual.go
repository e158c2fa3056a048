/*
accrual.go - The loyalty accrual trigger

PURPOSE:
  Reacts to "booking completed" lifecycle events: looks up (or lazily
  creates) the guest's member record, computes points from spend and
  stay length, credits both balances, and records tier crossings.

FAILURE HANDLING:
  Accrual is a best-effort follow-up to a status transition. Every
  failure (missing program, inactive program, store error) comes back as
  AccrualResult{Success: false, Reason} and is logged by the caller; it
  never propagates in a way that could be mistaken for a state-machine
  failure. A completed booking must never appear un-completed because a
  rewards write failed.

CONCURRENCY:
  Accrual mutates a shared per-(guest, hotel) record, so it is serialized
  per that key with a keyed mutex. The persisted per-booking marker is
  the last line of defense against concurrent redelivery.
*/
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPLETION EVENT & RESULT
// =============================================================================

// CompletionEvent is the slice of the booking-completed payload the
// trigger consumes.
type CompletionEvent struct {
	BookingID   string
	GuestID     string
	HotelID     string
	FinalPrice  decimal.Decimal
	ServiceType string
	Nights      int
	CompletedAt time.Time
}

// AccrualResult is the structured outcome of one accrual attempt.
type AccrualResult struct {
	Success        bool
	AlreadyAwarded bool
	Reason         string
	PointsAwarded  int64
	NewTier        Tier
	TierChanged    bool
}

func failure(format string, args ...any) AccrualResult {
	return AccrualResult{Success: false, Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// TRIGGER
// =============================================================================

// Trigger awards loyalty points on booking completion, exactly once per
// booking.
type Trigger struct {
	Members  MemberStore
	Markers  MarkerStore
	Programs ProgramStore
	Stays    GuestStays

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTrigger(members MemberStore, markers MarkerStore, programs ProgramStore, stays GuestStays) *Trigger {
	return &Trigger{
		Members:  members,
		Markers:  markers,
		Programs: programs,
		Stays:    stays,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor serializes accrual per (guest, hotel) key.
func (t *Trigger) lockFor(guestID, hotelID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := guestID + "\x00" + hotelID
	l, ok := t.locks[k]
	if !ok {
		l = &sync.Mutex{}
		t.locks[k] = l
	}
	return l
}

// OnBookingCompleted credits points for a completed booking. Safe to
// call on redelivered events: the per-booking marker guard makes
// duplicates a successful no-op.
func (t *Trigger) OnBookingCompleted(ctx context.Context, ev CompletionEvent) AccrualResult {
	if ev.BookingID == "" || ev.GuestID == "" || ev.HotelID == "" {
		return failure("event missing booking/guest/hotel id")
	}

	program, err := t.Programs.ProgramFor(ctx, ev.HotelID)
	if err != nil {
		return failure("loyalty program lookup for hotel %s: %v", ev.HotelID, err)
	}
	if !program.Active {
		return failure("loyalty program for hotel %s is inactive", ev.HotelID)
	}

	lock := t.lockFor(ev.GuestID, ev.HotelID)
	lock.Lock()
	defer lock.Unlock()

	if done, err := t.Markers.Exists(ctx, ev.BookingID); err != nil {
		return failure("accrual marker lookup for booking %s: %v", ev.BookingID, err)
	} else if done {
		return AccrualResult{Success: true, AlreadyAwarded: true, Reason: "points already awarded"}
	}

	nights := ev.Nights
	if nights == 0 && t.Stays != nil {
		// Fall back to the guest's profile stay dates.
		checkIn, checkOut, ok, err := t.Stays.Stay(ctx, ev.GuestID, ev.HotelID)
		if err != nil {
			return failure("guest stay lookup for %s: %v", ev.GuestID, err)
		}
		if ok && checkOut.After(checkIn) {
			nights = int(checkOut.Sub(checkIn).Hours() / 24)
		}
	}

	points := program.Points(ev.FinalPrice, nights)

	member, err := t.Members.Get(ctx, ev.GuestID, ev.HotelID)
	if err != nil && !errors.Is(err, ErrMemberNotFound) {
		return failure("member lookup for %s@%s: %v", ev.GuestID, ev.HotelID, err)
	}
	now := ev.CompletedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if member == nil {
		// First qualifying completion enrolls the guest.
		member = &Member{
			GuestID:    ev.GuestID,
			HotelID:    ev.HotelID,
			Tier:       TierBronze,
			Active:     true,
			EnrolledAt: now,
		}
	}
	if !member.Active {
		return failure("member %s@%s is deactivated", ev.GuestID, ev.HotelID)
	}

	member.LifetimePoints += points
	member.AvailablePoints += points
	member.LastActivity = now

	result := AccrualResult{Success: true, PointsAwarded: points, NewTier: member.Tier}
	if next := program.TierFor(member.LifetimePoints); next != member.Tier {
		member.TierHistory = append(member.TierHistory, TierChange{From: member.Tier, To: next, At: now})
		member.Tier = next
		result.NewTier = next
		result.TierChanged = true
	}

	// Write the marker before the balance so a concurrent redelivery
	// loses on the unique booking id, not on the member row.
	if err := t.Markers.Put(ctx, Marker{
		BookingID: ev.BookingID,
		GuestID:   ev.GuestID,
		HotelID:   ev.HotelID,
		Points:    points,
		AwardedAt: now,
	}); err != nil {
		if errors.Is(err, ErrDuplicateAccrual) {
			return AccrualResult{Success: true, AlreadyAwarded: true, Reason: "points already awarded"}
		}
		return failure("persist accrual marker for booking %s: %v", ev.BookingID, err)
	}

	if err := t.Members.Put(ctx, member); err != nil {
		// Release the marker so a redelivery can retry the credit;
		// otherwise the marker is burned with no points behind it.
		if delErr := t.Markers.Delete(ctx, ev.BookingID); delErr != nil {
			return failure("persist member %s@%s: %v (marker for booking %s left behind: %v)",
				ev.GuestID, ev.HotelID, err, ev.BookingID, delErr)
		}
		return failure("persist member %s@%s: %v", ev.GuestID, ev.HotelID, err)
	}

	return result
}
