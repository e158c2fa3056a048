/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON hotel configuration into sla.PolicyTable, loyalty.Program
  and pricing.Config objects. This enables per-hotel tuning without code
  changes - operations staff can define SLA targets and loyalty rules in
  JSON, and the factory creates the proper Go structs.

WHY JSON?
  - Non-developers can modify hotel configuration
  - Easy integration with admin UI
  - Version control for configuration
  - Database storage of hotel configs

JSON SCHEMA:
  {
    "hotel_id": "hotel-1",
    "currency": "USD",
    "sla_policies": [
      {"category": "housekeeping", "response_minutes": 15, "completion_minutes": 60},
      {"category": "transportation", "response_minutes": 20, "completion_minutes": 480}
    ],
    "loyalty": {
      "active": true,
      "points_per_currency_unit": 10,
      "night_bonus_points": 10,
      "tiers": [
        {"tier": "silver", "min_lifetime_points": 500},
        {"tier": "gold", "min_lifetime_points": 2000}
      ]
    }
  }

KEY FEATURES:
  - Validates JSON structure
  - Sets sensible defaults (default SLA table, default program)
  - Unknown categories fall through to the table's fallback policy
  - Round-trips back to JSON for the admin API

USAGE:
  factory := NewConfigFactory()

  cfg, err := factory.ParseHotelConfig(jsonString)
  service.SLA = cfg.SLATable

SEE ALSO:
  - sla/policy.go: PolicyTable definition
  - loyalty/types.go: Program definition
  - api/handlers.go: PUT /api/hotels/{id}/config
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/concierge-engine/loyalty"
	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/sla"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// HotelConfigJSON is the JSON representation of a hotel's configuration.
type HotelConfigJSON struct {
	HotelID     string          `json:"hotel_id"`
	Currency    string          `json:"currency,omitempty"`
	SLAPolicies []SLAPolicyJSON `json:"sla_policies,omitempty"`
	Loyalty     *LoyaltyJSON    `json:"loyalty,omitempty"`
}

// SLAPolicyJSON represents one category's SLA targets.
type SLAPolicyJSON struct {
	Category          string `json:"category"`
	ResponseMinutes   int    `json:"response_minutes"`
	CompletionMinutes int    `json:"completion_minutes"`
}

// LoyaltyJSON represents loyalty program configuration.
type LoyaltyJSON struct {
	Active                bool       `json:"active"`
	PointsPerCurrencyUnit float64    `json:"points_per_currency_unit,omitempty"`
	NightBonusPoints      int        `json:"night_bonus_points,omitempty"`
	Tiers                 []TierJSON `json:"tiers,omitempty"`
}

// TierJSON represents one loyalty tier threshold.
type TierJSON struct {
	Tier              string `json:"tier"`
	MinLifetimePoints int    `json:"min_lifetime_points"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// HotelConfig is the parsed result.
type HotelConfig struct {
	HotelID  string
	SLATable *sla.PolicyTable
	Program  loyalty.Program
	Pricing  pricing.Config
}

// ConfigFactory converts JSON hotel configuration to Go structs.
type ConfigFactory struct{}

// NewConfigFactory creates a new config factory.
func NewConfigFactory() *ConfigFactory {
	return &ConfigFactory{}
}

// ParseHotelConfig parses a JSON string into a HotelConfig.
func (f *ConfigFactory) ParseHotelConfig(jsonStr string) (*HotelConfig, error) {
	var cj HotelConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse hotel config JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts HotelConfigJSON to a HotelConfig. Missing sections
// fall back to engine defaults.
func (f *ConfigFactory) FromJSON(cj HotelConfigJSON) (*HotelConfig, error) {
	if cj.HotelID == "" {
		return nil, fmt.Errorf("hotel config requires hotel_id")
	}

	cfg := &HotelConfig{
		HotelID:  cj.HotelID,
		SLATable: sla.DefaultTable(),
		Program:  loyalty.DefaultProgram(),
		Pricing:  pricing.Config{DefaultCurrency: "USD"},
	}
	if cj.Currency != "" {
		cfg.Pricing.DefaultCurrency = cj.Currency
	}

	for _, pj := range cj.SLAPolicies {
		if pj.Category == "" {
			return nil, fmt.Errorf("sla policy requires category")
		}
		if pj.ResponseMinutes <= 0 || pj.CompletionMinutes <= 0 {
			return nil, fmt.Errorf("sla policy for %q requires positive targets", pj.Category)
		}
		cfg.SLATable.Set(sla.Policy{
			Category:                pj.Category,
			TargetResponseMinutes:   int64(pj.ResponseMinutes),
			TargetCompletionMinutes: int64(pj.CompletionMinutes),
		})
	}

	if cj.Loyalty != nil {
		program, err := parseProgram(*cj.Loyalty)
		if err != nil {
			return nil, err
		}
		program.HotelID = cj.HotelID
		cfg.Program = program
	}
	cfg.Program.HotelID = cj.HotelID

	return cfg, nil
}

func parseProgram(lj LoyaltyJSON) (loyalty.Program, error) {
	program := loyalty.DefaultProgram()
	program.Active = lj.Active

	if lj.PointsPerCurrencyUnit != 0 {
		if lj.PointsPerCurrencyUnit < 0 {
			return loyalty.Program{}, fmt.Errorf("points_per_currency_unit must be non-negative")
		}
		program.PointsPerCurrencyUnit = decimal.NewFromFloat(lj.PointsPerCurrencyUnit)
	}
	if lj.NightBonusPoints != 0 {
		if lj.NightBonusPoints < 0 {
			return loyalty.Program{}, fmt.Errorf("night_bonus_points must be non-negative")
		}
		program.NightBonusPoints = int64(lj.NightBonusPoints)
	}

	if len(lj.Tiers) > 0 {
		tiers := []loyalty.TierThreshold{{Tier: loyalty.TierBronze, MinLifetimePoints: 0}}
		for _, tj := range lj.Tiers {
			tier, err := parseTier(tj.Tier)
			if err != nil {
				return loyalty.Program{}, err
			}
			if tier == loyalty.TierBronze {
				continue // base tier is always at zero
			}
			if tj.MinLifetimePoints <= 0 {
				return loyalty.Program{}, fmt.Errorf("tier %q requires a positive threshold", tj.Tier)
			}
			tiers = append(tiers, loyalty.TierThreshold{
				Tier:              tier,
				MinLifetimePoints: int64(tj.MinLifetimePoints),
			})
		}
		sort.Slice(tiers, func(i, j int) bool {
			return tiers[i].MinLifetimePoints < tiers[j].MinLifetimePoints
		})
		program.Tiers = tiers
	}

	return program, nil
}

func parseTier(s string) (loyalty.Tier, error) {
	switch s {
	case "bronze":
		return loyalty.TierBronze, nil
	case "silver":
		return loyalty.TierSilver, nil
	case "gold":
		return loyalty.TierGold, nil
	case "platinum":
		return loyalty.TierPlatinum, nil
	default:
		return "", fmt.Errorf("unknown tier: %s", s)
	}
}

// ToJSON converts a HotelConfig back to its JSON representation.
func (f *ConfigFactory) ToJSON(cfg *HotelConfig) HotelConfigJSON {
	cj := HotelConfigJSON{
		HotelID:  cfg.HotelID,
		Currency: cfg.Pricing.DefaultCurrency,
	}

	for _, category := range cfg.SLATable.Categories() {
		p := cfg.SLATable.For(category)
		cj.SLAPolicies = append(cj.SLAPolicies, SLAPolicyJSON{
			Category:          p.Category,
			ResponseMinutes:   int(p.TargetResponseMinutes),
			CompletionMinutes: int(p.TargetCompletionMinutes),
		})
	}

	lj := &LoyaltyJSON{
		Active:                cfg.Program.Active,
		PointsPerCurrencyUnit: cfg.Program.PointsPerCurrencyUnit.InexactFloat64(),
		NightBonusPoints:      int(cfg.Program.NightBonusPoints),
	}
	for _, t := range cfg.Program.Tiers {
		lj.Tiers = append(lj.Tiers, TierJSON{
			Tier:              string(t.Tier),
			MinLifetimePoints: int(t.MinLifetimePoints),
		})
	}
	cj.Loyalty = lj

	return cj
}
