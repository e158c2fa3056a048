/*
Package loyalty manages loyalty members and point accrual.

PURPOSE:
  Guests earn points when a qualifying booking completes: a spend
  component (floor of final price over the program's currency-per-point
  rate) plus a per-night bonus when a stay length is known. Points land
  on both the lifetime and the spendable balance; lifetime points drive
  tier progression.

KEY CONCEPTS IN THIS FILE (types.go):
  - Member: one loyalty record per (guest, hotel), never deleted,
    only deactivated
  - Program: the per-hotel accrual and tier configuration
  - Marker: the persisted "points already awarded for booking X" guard

IDEMPOTENCY:
  Completion events can be redelivered. A Marker row keyed by booking id
  is checked and written inside the accrual, so redelivery never
  double-credits. The store's uniqueness constraint is the last line of
  defense under concurrent redelivery.

SEE ALSO:
  - accrual.go: The trigger that reacts to booking completion
  - store/sqlite: Persistence with the unique accrual-marker index
*/
package loyalty

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIERS
// =============================================================================

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// TierThreshold maps lifetime points to a tier.
type TierThreshold struct {
	Tier              Tier  `json:"tier"`
	MinLifetimePoints int64 `json:"min_lifetime_points"`
}

// TierChange is one row of a member's tier history.
type TierChange struct {
	From Tier      `json:"from"`
	To   Tier      `json:"to"`
	At   time.Time `json:"at"`
}

// =============================================================================
// MEMBER
// =============================================================================

// Member is a guest's loyalty record at one hotel. At most one active
// member exists per (GuestID, HotelID). Members are never deleted.
type Member struct {
	GuestID         string       `json:"guest_id"`
	HotelID         string       `json:"hotel_id"`
	Tier            Tier         `json:"tier"`
	LifetimePoints  int64        `json:"lifetime_points"`
	AvailablePoints int64        `json:"available_points"`
	TierHistory     []TierChange `json:"tier_history,omitempty"`
	Active          bool         `json:"active"`
	EnrolledAt      time.Time    `json:"enrolled_at"`
	LastActivity    time.Time    `json:"last_activity"`
}

// =============================================================================
// PROGRAM
// =============================================================================

// Program is a hotel's loyalty configuration.
type Program struct {
	HotelID string `json:"hotel_id,omitempty"`
	Active  bool   `json:"active"`

	// PointsPerCurrencyUnit: one point per this much spend.
	// E.g. 10 means $100 earns 10 points.
	PointsPerCurrencyUnit decimal.Decimal `json:"points_per_currency_unit"`

	// NightBonusPoints is awarded per night of the stay.
	NightBonusPoints int64 `json:"night_bonus_points"`

	Tiers []TierThreshold `json:"tiers,omitempty"`
}

// DefaultTiers is the standard four-tier ladder.
func DefaultTiers() []TierThreshold {
	return []TierThreshold{
		{Tier: TierBronze, MinLifetimePoints: 0},
		{Tier: TierSilver, MinLifetimePoints: 500},
		{Tier: TierGold, MinLifetimePoints: 2000},
		{Tier: TierPlatinum, MinLifetimePoints: 5000},
	}
}

// DefaultProgram returns a sane program: 1 point per 10 currency units,
// 10 points per night, standard tiers.
func DefaultProgram() Program {
	return Program{
		Active:                true,
		PointsPerCurrencyUnit: decimal.NewFromInt(10),
		NightBonusPoints:      10,
		Tiers:                 DefaultTiers(),
	}
}

// TierFor returns the highest tier whose threshold is covered by
// lifetimePoints.
func (p Program) TierFor(lifetimePoints int64) Tier {
	tiers := append([]TierThreshold(nil), p.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinLifetimePoints < tiers[j].MinLifetimePoints })
	tier := TierBronze
	for _, t := range tiers {
		if lifetimePoints >= t.MinLifetimePoints {
			tier = t.Tier
		}
	}
	return tier
}

// Points computes the accrual for a completed booking.
func (p Program) Points(finalPrice decimal.Decimal, nights int) int64 {
	var pts int64
	if p.PointsPerCurrencyUnit.IsPositive() && finalPrice.IsPositive() {
		pts = finalPrice.Div(p.PointsPerCurrencyUnit).Floor().IntPart()
	}
	if nights > 0 {
		pts += int64(nights) * p.NightBonusPoints
	}
	return pts
}

// =============================================================================
// ACCRUAL MARKER - Per-booking idempotency guard
// =============================================================================

// Marker records that points were awarded for a booking. One row per
// booking id, enforced by the store.
type Marker struct {
	BookingID string    `json:"booking_id"`
	GuestID   string    `json:"guest_id"`
	HotelID   string    `json:"hotel_id"`
	Points    int64     `json:"points"`
	AwardedAt time.Time `json:"awarded_at"`
}

// =============================================================================
// STORES
// =============================================================================

var (
	// ErrMemberNotFound is returned when no member exists for a
	// (guest, hotel) pair.
	ErrMemberNotFound = errors.New("loyalty member not found")

	// ErrDuplicateAccrual is returned when a marker already exists for
	// a booking id. Expected under event redelivery.
	ErrDuplicateAccrual = errors.New("points already awarded for booking")
)

// MemberStore persists loyalty members.
type MemberStore interface {
	Get(ctx context.Context, guestID, hotelID string) (*Member, error)
	Put(ctx context.Context, m *Member) error
}

// MarkerStore persists accrual markers. Put must reject a duplicate
// booking id with ErrDuplicateAccrual. Delete releases a marker whose
// balance write never landed; deleting a missing marker is not an error.
type MarkerStore interface {
	Put(ctx context.Context, m Marker) error
	Exists(ctx context.Context, bookingID string) (bool, error)
	Delete(ctx context.Context, bookingID string) error
}

// ProgramStore resolves the loyalty program for a hotel.
type ProgramStore interface {
	ProgramFor(ctx context.Context, hotelID string) (Program, error)
}

// GuestStays looks up a guest's profile check-in/check-out at a hotel.
// Used as the stay-length fallback when a booking carries no schedule.
type GuestStays interface {
	Stay(ctx context.Context, guestID, hotelID string) (checkIn, checkOut time.Time, ok bool, err error)
}
