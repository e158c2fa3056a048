package pricing_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/concierge-engine/pricing"
)

// mapResolver resolves from a fixed table keyed by explicit provider id,
// then category, then the hotel's internal fallback.
type mapResolver struct {
	byID       map[string]pricing.ProviderInfo
	byCategory map[string]pricing.ProviderInfo
	internal   *pricing.ProviderInfo
}

func (r *mapResolver) Resolve(_ context.Context, hotelID, category, providerID string) (pricing.ProviderInfo, error) {
	if providerID != "" {
		if info, ok := r.byID[providerID]; ok {
			return info, nil
		}
	}
	if info, ok := r.byCategory[category]; ok {
		return info, nil
	}
	if r.internal != nil {
		return *r.internal, nil
	}
	return pricing.ProviderInfo{}, assert.AnError
}

func external(id, markup string) pricing.ProviderInfo {
	return pricing.ProviderInfo{ID: id, Type: pricing.ProviderExternal, MarkupPercent: d(markup)}
}

func internal(id string) pricing.ProviderInfo {
	return pricing.ProviderInfo{ID: id, Type: pricing.ProviderInternal, MarkupPercent: decimal.Zero}
}

func TestPriceBooking_MixedLines(t *testing.T) {
	// GIVEN: A laundry line via an external provider (20%) and a
	//        housekeeping line via the internal provider
	// WHEN: The booking is priced
	// THEN: Per-line splits aggregate and the identity holds booking-wide

	resolver := &mapResolver{
		byCategory: map[string]pricing.ProviderInfo{
			"laundry": external("ext-1", "20"),
		},
	}
	in := internal("int-1")
	resolver.internal = &in

	engine := pricing.NewEngine(resolver, pricing.Config{DefaultCurrency: "USD"})
	bd, err := engine.PriceBooking(context.Background(), "hotel-1", "", []pricing.LineItem{
		{Category: "laundry", BasePrice: d("80"), Quantity: 1},
		{Category: "housekeeping", BasePrice: d("40"), Quantity: 1},
	})
	require.NoError(t, err)

	// laundry: 80 -> 96 total (80 provider / 16 hotel)
	// housekeeping: 40 -> 40 total (0 provider / 40 hotel)
	assert.True(t, bd.TotalAmount.Equal(d("136")), "total %s", bd.TotalAmount)
	assert.True(t, bd.ProviderEarnings.Equal(d("80")))
	assert.True(t, bd.HotelEarnings.Equal(d("56")))
	assert.True(t, bd.ProviderEarnings.Add(bd.HotelEarnings).Equal(bd.TotalAmount))
	assert.Equal(t, "USD", bd.Currency)
	require.Len(t, bd.Lines, 2)
	assert.Equal(t, "ext-1", bd.Lines[0].ProviderID)
	assert.Equal(t, "int-1", bd.Lines[1].ProviderID)
}

func TestPriceBooking_QuantityMultiplies(t *testing.T) {
	// GIVEN: A line item with quantity 3
	// WHEN: Priced
	// THEN: The base is multiplied before the split

	resolver := &mapResolver{byID: map[string]pricing.ProviderInfo{"ext-1": external("ext-1", "10")}}
	engine := pricing.NewEngine(resolver, pricing.Config{})

	bd, err := engine.PriceBooking(context.Background(), "hotel-1", "EUR", []pricing.LineItem{
		{ProviderID: "ext-1", BasePrice: d("10"), Quantity: 3},
	})
	require.NoError(t, err)
	assert.True(t, bd.BasePrice.Equal(d("30")))
	assert.True(t, bd.TotalAmount.Equal(d("33")))
	assert.Equal(t, "EUR", bd.Currency)
}

func TestPriceBooking_ZeroQuantityDefaultsToOne(t *testing.T) {
	resolver := &mapResolver{byID: map[string]pricing.ProviderInfo{"ext-1": external("ext-1", "0")}}
	engine := pricing.NewEngine(resolver, pricing.Config{})

	bd, err := engine.PriceBooking(context.Background(), "hotel-1", "", []pricing.LineItem{
		{ProviderID: "ext-1", BasePrice: d("10")},
	})
	require.NoError(t, err)
	assert.True(t, bd.TotalAmount.Equal(d("10")))
	assert.Equal(t, 1, bd.Lines[0].Quantity)
}

func TestPriceBooking_NoLineItems(t *testing.T) {
	engine := pricing.NewEngine(&mapResolver{}, pricing.Config{})
	_, err := engine.PriceBooking(context.Background(), "hotel-1", "", nil)
	require.Error(t, err)
	assert.True(t, pricing.IsValidation(err))
}

func TestPriceBooking_ResolutionFailureIsFatal(t *testing.T) {
	// A booking cannot exist without a price: an unresolvable line item
	// fails the whole creation.
	engine := pricing.NewEngine(&mapResolver{}, pricing.Config{})
	_, err := engine.PriceBooking(context.Background(), "hotel-1", "", []pricing.LineItem{
		{Category: "spa", BasePrice: d("10")},
	})
	require.Error(t, err)
}

func TestReconcile(t *testing.T) {
	// GIVEN: Breakdowns from several bookings
	// WHEN: Reconciled
	// THEN: The report sums and the identity holds

	resolver := &mapResolver{byID: map[string]pricing.ProviderInfo{
		"ext-1": external("ext-1", "20"),
		"ext-2": external("ext-2", "7.5"),
	}}
	engine := pricing.NewEngine(resolver, pricing.Config{})

	var breakdowns []pricing.Breakdown
	for _, in := range [][]pricing.LineItem{
		{{ProviderID: "ext-1", BasePrice: d("80")}},
		{{ProviderID: "ext-2", BasePrice: d("33.33")}},
		{{ProviderID: "ext-1", BasePrice: d("12.40"), Quantity: 2}},
	} {
		bd, err := engine.PriceBooking(context.Background(), "hotel-1", "", in)
		require.NoError(t, err)
		breakdowns = append(breakdowns, *bd)
	}

	report := pricing.Reconcile(breakdowns)
	assert.Equal(t, 3, report.Bookings)
	assert.True(t, report.Balanced, "provider %s + hotel %s != total %s",
		report.ProviderEarnings, report.HotelEarnings, report.TotalAmount)
}
