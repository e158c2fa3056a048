package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/warp/concierge-engine/pricing"
)

// Resolver finds the effective provider for a line item. The fallback
// chain is explicit and injected, not scattered inline:
//
//  1. the provider named on the line item,
//  2. the hotel's category-level assignment,
//  3. the hotel's own internal provider.
//
// Inactive providers are skipped down the chain. Exhausting the chain
// yields ErrNotFound, which is fatal at booking creation.
type Resolver struct {
	Providers   Store
	Assignments AssignmentStore
}

var _ pricing.ProviderResolver = (*Resolver)(nil)

func NewResolver(providers Store, assignments AssignmentStore) *Resolver {
	return &Resolver{Providers: providers, Assignments: assignments}
}

func (r *Resolver) Resolve(ctx context.Context, hotelID, category, providerID string) (pricing.ProviderInfo, error) {
	if providerID != "" {
		p, err := r.Providers.Get(ctx, providerID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return pricing.ProviderInfo{}, err
		}
		if p != nil && p.Active {
			return p.Info(), nil
		}
	}

	if category != "" && r.Assignments != nil {
		assigned, err := r.Assignments.AssignedProvider(ctx, hotelID, category)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return pricing.ProviderInfo{}, err
		}
		if assigned != "" {
			p, err := r.Providers.Get(ctx, assigned)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return pricing.ProviderInfo{}, err
			}
			if p != nil && p.Active {
				return p.Info(), nil
			}
		}
	}

	p, err := r.Providers.GetInternal(ctx, hotelID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pricing.ProviderInfo{}, fmt.Errorf("hotel %s has no provider for category %q: %w", hotelID, category, ErrNotFound)
		}
		return pricing.ProviderInfo{}, err
	}
	return p.Info(), nil
}
