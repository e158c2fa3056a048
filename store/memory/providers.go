package memory

import (
	"context"
	"sync"

	"github.com/warp/concierge-engine/pricing"
	"github.com/warp/concierge-engine/provider"
)

// =============================================================================
// PROVIDER STORE
// =============================================================================

type Providers struct {
	mu        sync.RWMutex
	providers map[string]*provider.Provider
}

func NewProviders() *Providers {
	return &Providers{providers: make(map[string]*provider.Provider)}
}

var _ provider.Store = (*Providers)(nil)

func (s *Providers) Put(_ context.Context, p *provider.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.providers[p.ID] = &cp
	return nil
}

func (s *Providers) Get(_ context.Context, id string) (*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Providers) GetInternal(_ context.Context, hotelID string) (*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.HotelID == hotelID && p.Type == pricing.ProviderInternal && p.Active {
			cp := *p
			return &cp, nil
		}
	}
	return nil, provider.ErrNotFound
}

func (s *Providers) ListByHotel(_ context.Context, hotelID string) ([]*provider.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*provider.Provider
	for _, p := range s.providers {
		if p.HotelID == hotelID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// =============================================================================
// CATEGORY ASSIGNMENT STORE
// =============================================================================

type Assignments struct {
	mu       sync.RWMutex
	assigned map[assignmentKey]string
}

type assignmentKey struct {
	HotelID  string
	Category string
}

func NewAssignments() *Assignments {
	return &Assignments{assigned: make(map[assignmentKey]string)}
}

var _ provider.AssignmentStore = (*Assignments)(nil)

func (s *Assignments) Assign(_ context.Context, hotelID, category, providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assigned[assignmentKey{hotelID, category}] = providerID
	return nil
}

func (s *Assignments) AssignedProvider(_ context.Context, hotelID, category string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assigned[assignmentKey{hotelID, category}], nil
}
