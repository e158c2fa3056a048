/*
Package provider manages service providers and their markup configuration.

PURPOSE:
  A hotel onboards internal providers (in-house staff) and external
  providers (third parties). External providers carry a markup percentage
  the hotel retains as commission; internal providers always carry zero
  markup. That rule is enforced here, at the write boundary, before any
  booking pricing can ever see a bad markup.

SEE ALSO:
  - resolver.go: Effective-provider resolution for the pricing engine
  - pricing/split.go: The math that consumes the markup
*/
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/concierge-engine/pricing"
)

// =============================================================================
// SERVICE PROVIDER
// =============================================================================

// Markup records the commission configuration of a provider, with the
// audit trail of who set it and why.
type Markup struct {
	Percent decimal.Decimal `json:"percent"`
	SetBy   string          `json:"set_by,omitempty"`
	SetAt   time.Time       `json:"set_at,omitempty"`
	Reason  string          `json:"reason,omitempty"`
}

// Provider is a service provider registered with a hotel.
// Invariant: Type == internal forces Markup.Percent == 0 at all times.
type Provider struct {
	ID        string
	HotelID   string
	Name      string
	Type      pricing.ProviderType
	Markup    Markup
	Active    bool
	CreatedAt time.Time
}

var (
	// ErrNotFound is returned when a provider is absent.
	ErrNotFound = errors.New("provider not found")

	// ErrInternalMarkup is returned when a write attempts a non-zero
	// markup on an internal provider. Rejected, never clamped.
	ErrInternalMarkup = errors.New("internal providers must have zero markup")
)

// New validates and builds a provider. Internal providers are created
// with zero markup regardless of omitted input; an explicit non-zero
// markup is rejected.
func New(id, hotelID, name string, providerType pricing.ProviderType, markupPercent decimal.Decimal, actorID string, now time.Time) (*Provider, error) {
	if !providerType.Valid() {
		return nil, &pricing.ValidationError{Field: "provider_type", Message: "must be internal or external"}
	}
	p := &Provider{
		ID:        id,
		HotelID:   hotelID,
		Name:      name,
		Type:      providerType,
		Active:    true,
		CreatedAt: now,
	}
	if err := p.SetMarkup(markupPercent, actorID, "initial configuration", now); err != nil {
		return nil, err
	}
	return p, nil
}

// SetMarkup applies a markup change, enforcing the internal-provider rule
// and the [0, 100] range before anything touches pricing.
func (p *Provider) SetMarkup(percent decimal.Decimal, actorID, reason string, now time.Time) error {
	if p.Type == pricing.ProviderInternal && !percent.IsZero() {
		return ErrInternalMarkup
	}
	if percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
		return &pricing.ValidationError{Field: "markup_percent", Message: "must be within [0, 100]"}
	}
	p.Markup = Markup{Percent: percent, SetBy: actorID, SetAt: now, Reason: reason}
	return nil
}

// Info exposes the slice of the record the pricing engine consumes.
func (p *Provider) Info() pricing.ProviderInfo {
	return pricing.ProviderInfo{ID: p.ID, Type: p.Type, MarkupPercent: p.Markup.Percent}
}

// =============================================================================
// STORES
// =============================================================================

// Store persists providers.
type Store interface {
	Put(ctx context.Context, p *Provider) error
	Get(ctx context.Context, id string) (*Provider, error)
	// GetInternal returns the hotel's internal provider, the last
	// fallback of effective-provider resolution.
	GetInternal(ctx context.Context, hotelID string) (*Provider, error)
	ListByHotel(ctx context.Context, hotelID string) ([]*Provider, error)
}

// AssignmentStore persists a hotel's category-level provider assignments.
type AssignmentStore interface {
	Assign(ctx context.Context, hotelID, category, providerID string) error
	AssignedProvider(ctx context.Context, hotelID, category string) (string, error)
}
