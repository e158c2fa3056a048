/*
engine.go - Revenue attribution across a booking's line items

PURPOSE:
  Orchestrates ComputeSplit over every line item of a booking and produces
  the booking-level Breakdown that is persisted with the record. Pricing is
  computed at creation time and stored, never recomputed at read time, so
  historical bookings keep their original numbers even if a provider's
  markup changes later.

PROVIDER RESOLUTION:
  A hotel may assign different providers per service category. The engine
  resolves the effective provider for each line item through a
  ProviderResolver, which falls back from the explicit provider on the
  line item, to the hotel's category-level assignment, to the hotel's own
  internal provider.

RECONCILIATION:
  Across any set of breakdowns, sum(ProviderEarnings) + sum(HotelEarnings)
  equals sum(TotalAmount) exactly. Reconcile verifies that identity; it is
  used by tests and by the analytics layer, not enforced at write time
  beyond per-booking correctness.

SEE ALSO:
  - split.go: The per-line-item math
  - booking/service.go: Calls PriceBooking at creation and Reprice on
    admin correction
*/
package pricing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LINE ITEMS & BREAKDOWN
// =============================================================================

// LineItem is one priced unit of a booking (a service, a trip leg, an
// add-on). ProviderID and Category drive effective-provider resolution.
type LineItem struct {
	Description string
	Category    string
	ProviderID  string
	BasePrice   decimal.Decimal
	Quantity    int
}

// LineSplit records how one line item was attributed.
type LineSplit struct {
	Description      string          `json:"description,omitempty"`
	Category         string          `json:"category,omitempty"`
	ProviderID       string          `json:"provider_id"`
	ProviderType     ProviderType    `json:"provider_type"`
	BasePrice        decimal.Decimal `json:"base_price"`
	MarkupPercent    decimal.Decimal `json:"markup_percent"`
	Quantity         int             `json:"quantity"`
	ProviderEarnings decimal.Decimal `json:"provider_earnings"`
	HotelEarnings    decimal.Decimal `json:"hotel_earnings"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}

// Breakdown is the persisted pricing block of a booking.
// Invariant: TotalAmount == ProviderEarnings + HotelEarnings.
type Breakdown struct {
	BasePrice        decimal.Decimal `json:"base_price"`
	MarkupPercent    decimal.Decimal `json:"markup_percent"`
	MarkupAmount     decimal.Decimal `json:"markup_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	ProviderEarnings decimal.Decimal `json:"provider_earnings"`
	HotelEarnings    decimal.Decimal `json:"hotel_earnings"`
	Currency         string          `json:"currency"`
	Lines            []LineSplit     `json:"lines,omitempty"`
}

// =============================================================================
// PROVIDER RESOLUTION
// =============================================================================

// ProviderInfo is the slice of a provider record the engine needs.
type ProviderInfo struct {
	ID            string
	Type          ProviderType
	MarkupPercent decimal.Decimal
}

// ProviderResolver finds the effective provider for a line item.
// Implementations fall back: explicit providerID -> hotel's category
// assignment -> hotel's internal provider. A resolution failure is fatal
// at booking creation, since a booking cannot exist without a price.
type ProviderResolver interface {
	Resolve(ctx context.Context, hotelID, category, providerID string) (ProviderInfo, error)
}

// =============================================================================
// ENGINE
// =============================================================================

// Config carries the injected pricing defaults. Fallback policy lives
// here rather than in scattered literals so it is testable in isolation.
type Config struct {
	DefaultCurrency string
}

// Engine computes and aggregates pricing breakdowns.
type Engine struct {
	Resolver ProviderResolver
	Config   Config
}

func NewEngine(resolver ProviderResolver, cfg Config) *Engine {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	return &Engine{Resolver: resolver, Config: cfg}
}

// PriceBooking resolves the effective provider per line item, applies the
// split, and sums into the booking-level breakdown. Currency defaults to
// the configured currency when empty.
func (e *Engine) PriceBooking(ctx context.Context, hotelID, currency string, items []LineItem) (*Breakdown, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Field: "line_items", Message: "at least one line item is required"}
	}
	if currency == "" {
		currency = e.Config.DefaultCurrency
	}

	bd := &Breakdown{
		BasePrice:        decimal.Zero,
		MarkupAmount:     decimal.Zero,
		TotalAmount:      decimal.Zero,
		ProviderEarnings: decimal.Zero,
		HotelEarnings:    decimal.Zero,
		Currency:         currency,
	}

	for i, item := range items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		info, err := e.Resolver.Resolve(ctx, hotelID, item.Category, item.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("resolve provider for line %d (%s): %w", i, item.Category, err)
		}

		lineBase := item.BasePrice.Mul(decimal.NewFromInt(int64(qty)))
		split, err := ComputeSplit(lineBase, info.MarkupPercent, info.Type)
		if err != nil {
			return nil, fmt.Errorf("line %d (%s): %w", i, item.Category, err)
		}

		bd.Lines = append(bd.Lines, LineSplit{
			Description:      item.Description,
			Category:         item.Category,
			ProviderID:       info.ID,
			ProviderType:     info.Type,
			BasePrice:        lineBase,
			MarkupPercent:    info.MarkupPercent,
			Quantity:         qty,
			ProviderEarnings: split.ProviderEarnings,
			HotelEarnings:    split.HotelEarnings,
			TotalAmount:      split.TotalAmount,
		})

		bd.BasePrice = bd.BasePrice.Add(lineBase)
		bd.ProviderEarnings = bd.ProviderEarnings.Add(split.ProviderEarnings)
		bd.HotelEarnings = bd.HotelEarnings.Add(split.HotelEarnings)
		bd.TotalAmount = bd.TotalAmount.Add(split.TotalAmount)
	}

	bd.MarkupAmount = bd.TotalAmount.Sub(bd.BasePrice)
	if bd.BasePrice.IsPositive() {
		// Effective booking-level percentage; per-line percentages live in Lines.
		bd.MarkupPercent = bd.MarkupAmount.Div(bd.BasePrice).Mul(hundred)
	}

	return bd, nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconciliationReport sums a set of breakdowns and checks the revenue
// identity across them.
type ReconciliationReport struct {
	Bookings         int
	ProviderEarnings decimal.Decimal
	HotelEarnings    decimal.Decimal
	TotalAmount      decimal.Decimal
	Balanced         bool
}

// Reconcile verifies sum(provider) + sum(hotel) == sum(total), exactly.
func Reconcile(breakdowns []Breakdown) ReconciliationReport {
	r := ReconciliationReport{
		ProviderEarnings: decimal.Zero,
		HotelEarnings:    decimal.Zero,
		TotalAmount:      decimal.Zero,
	}
	for _, bd := range breakdowns {
		r.Bookings++
		r.ProviderEarnings = r.ProviderEarnings.Add(bd.ProviderEarnings)
		r.HotelEarnings = r.HotelEarnings.Add(bd.HotelEarnings)
		r.TotalAmount = r.TotalAmount.Add(bd.TotalAmount)
	}
	r.Balanced = r.ProviderEarnings.Add(r.HotelEarnings).Equal(r.TotalAmount)
	return r
}
