/*
Package pricing provides the ledger math and revenue attribution engine.

PURPOSE:
  Everything money-related for a booking lives here: how a provider's base
  price is split between the provider and the hotel, and how per-line-item
  splits aggregate into the persisted pricing breakdown of a booking.

KEY CONCEPTS IN THIS FILE (split.go):
  - ProviderType: internal (hotel-operated) vs external (third party)
  - Split: the three-way outcome of one line item: provider earnings,
    hotel earnings, total charged to the guest
  - ComputeSplit: the pure function at the heart of revenue attribution

DESIGN PRINCIPLES:
  1. Purity: ComputeSplit performs no I/O and is fully deterministic.
  2. Precision: decimal.Decimal everywhere; rounding to 2 places happens
     only at display/persistence boundaries, never mid-calculation.
  3. Internal providers are an accounting fiction for in-house staff,
     not a payee: they carry zero markup and the hotel keeps the total.

USAGE:
  split, err := pricing.ComputeSplit(base, markup, pricing.ProviderExternal)
  // split.ProviderEarnings + split.HotelEarnings == split.TotalAmount

SEE ALSO:
  - engine.go: Aggregation across line items into a booking breakdown
  - provider/: Markup configuration and the internal-provider rule
*/
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PROVIDER TYPE
// =============================================================================

// ProviderType distinguishes hotel-operated providers from third parties.
type ProviderType string

const (
	ProviderInternal ProviderType = "internal"
	ProviderExternal ProviderType = "external"
)

func (t ProviderType) Valid() bool {
	return t == ProviderInternal || t == ProviderExternal
}

// =============================================================================
// SPLIT - Three-way outcome of one priced line item
// =============================================================================

// Split is the result of attributing one line item's revenue.
// Invariant: ProviderEarnings + HotelEarnings == TotalAmount, exactly.
type Split struct {
	ProviderEarnings decimal.Decimal
	HotelEarnings    decimal.Decimal
	TotalAmount      decimal.Decimal
}

var (
	hundred = decimal.NewFromInt(100)

	// ErrValidation is the sentinel wrapped by every ValidationError.
	ErrValidation = errors.New("pricing validation failed")
)

// ValidationError reports malformed pricing input. These are rejected
// before any state change and are fully recoverable by the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pricing: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsValidation reports whether err is a pricing input rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// ComputeSplit attributes one line item's revenue between provider and hotel.
//
//	totalAmount = basePrice * (1 + markupPercent/100)
//
// External providers receive the base price; the hotel keeps the markup.
// Internal providers must carry zero markup and the hotel keeps the full
// total. A non-zero markup on an internal provider is rejected, never
// silently clamped, so a misconfigured provider record surfaces loudly.
func ComputeSplit(basePrice, markupPercent decimal.Decimal, providerType ProviderType) (Split, error) {
	if !providerType.Valid() {
		return Split{}, &ValidationError{Field: "provider_type", Message: fmt.Sprintf("unknown provider type %q", providerType)}
	}
	if basePrice.IsNegative() {
		return Split{}, &ValidationError{Field: "base_price", Message: "must not be negative"}
	}
	if markupPercent.IsNegative() || markupPercent.GreaterThan(hundred) {
		return Split{}, &ValidationError{Field: "markup_percent", Message: "must be within [0, 100]"}
	}

	if providerType == ProviderInternal {
		if !markupPercent.IsZero() {
			return Split{}, &ValidationError{Field: "markup_percent", Message: "internal providers must have zero markup"}
		}
		return Split{
			ProviderEarnings: decimal.Zero,
			HotelEarnings:    basePrice,
			TotalAmount:      basePrice,
		}, nil
	}

	total := basePrice.Mul(decimal.NewFromInt(1).Add(markupPercent.Div(hundred)))
	return Split{
		ProviderEarnings: basePrice,
		HotelEarnings:    total.Sub(basePrice),
		TotalAmount:      total,
	}, nil
}

// RoundForDisplay rounds a decimal to 2 places. Use only at the
// persistence/display boundary, never between calculations.
func RoundForDisplay(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
