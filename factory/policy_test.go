package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/concierge-engine/factory"
	"github.com/warp/concierge-engine/loyalty"
)

const fullConfig = `{
	"hotel_id": "hotel-1",
	"currency": "EUR",
	"sla_policies": [
		{"category": "housekeeping", "response_minutes": 5, "completion_minutes": 45},
		{"category": "valet", "response_minutes": 10, "completion_minutes": 30}
	],
	"loyalty": {
		"active": true,
		"points_per_currency_unit": 5,
		"night_bonus_points": 25,
		"tiers": [
			{"tier": "silver", "min_lifetime_points": 300},
			{"tier": "gold", "min_lifetime_points": 1500},
			{"tier": "platinum", "min_lifetime_points": 4000}
		]
	}
}`

func TestParseHotelConfig_Full(t *testing.T) {
	// GIVEN: A complete per-hotel configuration document
	// WHEN: Parsed
	// THEN: SLA overrides, currency, and the loyalty ladder all land

	f := factory.NewConfigFactory()
	cfg, err := f.ParseHotelConfig(fullConfig)
	require.NoError(t, err)

	assert.Equal(t, "hotel-1", cfg.HotelID)
	assert.Equal(t, "EUR", cfg.Pricing.DefaultCurrency)

	// Overridden category.
	hk := cfg.SLATable.For("housekeeping")
	assert.EqualValues(t, 5, hk.TargetResponseMinutes)
	assert.EqualValues(t, 45, hk.TargetCompletionMinutes)

	// New category added on top of the defaults.
	valet := cfg.SLATable.For("valet")
	assert.EqualValues(t, 10, valet.TargetResponseMinutes)

	// Untouched defaults survive.
	laundry := cfg.SLATable.For("laundry")
	assert.EqualValues(t, 30, laundry.TargetResponseMinutes)

	require.True(t, cfg.Program.Active)
	assert.True(t, cfg.Program.PointsPerCurrencyUnit.Equal(decimal.NewFromInt(5)))
	assert.EqualValues(t, 25, cfg.Program.NightBonusPoints)

	// Bronze is always present at zero, ahead of the configured tiers.
	require.Len(t, cfg.Program.Tiers, 4)
	assert.Equal(t, loyalty.TierBronze, cfg.Program.Tiers[0].Tier)
	assert.EqualValues(t, 0, cfg.Program.Tiers[0].MinLifetimePoints)
	assert.Equal(t, loyalty.TierPlatinum, cfg.Program.Tiers[3].Tier)
	assert.EqualValues(t, 4000, cfg.Program.Tiers[3].MinLifetimePoints)
}

func TestParseHotelConfig_Defaults(t *testing.T) {
	// A minimal document gets the default table, the default program,
	// and USD.
	f := factory.NewConfigFactory()
	cfg, err := f.ParseHotelConfig(`{"hotel_id": "hotel-2"}`)
	require.NoError(t, err)

	assert.Equal(t, "USD", cfg.Pricing.DefaultCurrency)
	assert.True(t, cfg.Program.Active)
	assert.Equal(t, "hotel-2", cfg.Program.HotelID)
	assert.EqualValues(t, 15, cfg.SLATable.For("housekeeping").TargetResponseMinutes)
}

func TestParseHotelConfig_Invalid(t *testing.T) {
	f := factory.NewConfigFactory()
	cases := []struct {
		name string
		in   string
	}{
		{"malformed json", `{"hotel_id": `},
		{"missing hotel id", `{"currency": "USD"}`},
		{"sla without category", `{"hotel_id": "h", "sla_policies": [{"response_minutes": 5, "completion_minutes": 10}]}`},
		{"non-positive sla target", `{"hotel_id": "h", "sla_policies": [{"category": "spa", "response_minutes": 0, "completion_minutes": 10}]}`},
		{"unknown tier", `{"hotel_id": "h", "loyalty": {"active": true, "tiers": [{"tier": "diamond", "min_lifetime_points": 100}]}}`},
		{"tier threshold not positive", `{"hotel_id": "h", "loyalty": {"active": true, "tiers": [{"tier": "silver", "min_lifetime_points": 0}]}}`},
		{"negative accrual rate", `{"hotel_id": "h", "loyalty": {"active": true, "points_per_currency_unit": -2}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ParseHotelConfig(tc.in)
			assert.Error(t, err)
		})
	}
}

func TestParseHotelConfig_InactiveLoyalty(t *testing.T) {
	f := factory.NewConfigFactory()
	cfg, err := f.ParseHotelConfig(`{"hotel_id": "h", "loyalty": {"active": false}}`)
	require.NoError(t, err)
	assert.False(t, cfg.Program.Active)
}

func TestToJSON_RoundTrip(t *testing.T) {
	// GIVEN: A parsed configuration
	// WHEN: Serialized back and parsed again
	// THEN: The second parse is equivalent to the first

	f := factory.NewConfigFactory()
	cfg, err := f.ParseHotelConfig(fullConfig)
	require.NoError(t, err)

	cj := f.ToJSON(cfg)
	assert.Equal(t, "hotel-1", cj.HotelID)
	assert.Equal(t, "EUR", cj.Currency)
	require.NotNil(t, cj.Loyalty)
	assert.Equal(t, float64(5), cj.Loyalty.PointsPerCurrencyUnit)

	again, err := f.FromJSON(cj)
	require.NoError(t, err)
	assert.Equal(t, cfg.Program.Tiers, again.Program.Tiers)
	assert.EqualValues(t, 5, again.SLATable.For("housekeeping").TargetResponseMinutes)
	assert.EqualValues(t, 10, again.SLATable.For("valet").TargetResponseMinutes)
}
