package memory

import (
	"context"
	"sync"
	"time"

	"github.com/warp/concierge-engine/loyalty"
)

// =============================================================================
// LOYALTY MEMBER STORE
// =============================================================================

type Members struct {
	mu      sync.RWMutex
	members map[memberKey]*loyalty.Member
}

type memberKey struct {
	GuestID string
	HotelID string
}

func NewMembers() *Members {
	return &Members{members: make(map[memberKey]*loyalty.Member)}
}

var _ loyalty.MemberStore = (*Members)(nil)

func cloneMember(m *loyalty.Member) *loyalty.Member {
	cp := *m
	cp.TierHistory = append([]loyalty.TierChange(nil), m.TierHistory...)
	return &cp
}

func (s *Members) Get(_ context.Context, guestID, hotelID string) (*loyalty.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{guestID, hotelID}]
	if !ok {
		return nil, loyalty.ErrMemberNotFound
	}
	return cloneMember(m), nil
}

func (s *Members) Put(_ context.Context, m *loyalty.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey{m.GuestID, m.HotelID}] = cloneMember(m)
	return nil
}

// =============================================================================
// ACCRUAL MARKER STORE
// =============================================================================

type Markers struct {
	mu      sync.RWMutex
	markers map[string]loyalty.Marker
}

func NewMarkers() *Markers {
	return &Markers{markers: make(map[string]loyalty.Marker)}
}

var _ loyalty.MarkerStore = (*Markers)(nil)

func (s *Markers) Put(_ context.Context, m loyalty.Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[m.BookingID]; ok {
		return loyalty.ErrDuplicateAccrual
	}
	s.markers[m.BookingID] = m
	return nil
}

func (s *Markers) Delete(_ context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, bookingID)
	return nil
}

func (s *Markers) Exists(_ context.Context, bookingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.markers[bookingID]
	return ok, nil
}

// =============================================================================
// PROGRAM STORE
// =============================================================================

type Programs struct {
	mu       sync.RWMutex
	programs map[string]loyalty.Program
	fallback loyalty.Program
}

// NewPrograms creates a program store with a fallback for hotels
// without explicit configuration.
func NewPrograms(fallback loyalty.Program) *Programs {
	return &Programs{programs: make(map[string]loyalty.Program), fallback: fallback}
}

var _ loyalty.ProgramStore = (*Programs)(nil)

func (s *Programs) Set(hotelID string, p loyalty.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.HotelID = hotelID
	s.programs[hotelID] = p
}

func (s *Programs) ProgramFor(_ context.Context, hotelID string) (loyalty.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.programs[hotelID]; ok {
		return p, nil
	}
	p := s.fallback
	p.HotelID = hotelID
	return p, nil
}

// =============================================================================
// GUEST STAYS
// =============================================================================

type Stays struct {
	mu    sync.RWMutex
	stays map[memberKey]stay
}

type stay struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func NewStays() *Stays {
	return &Stays{stays: make(map[memberKey]stay)}
}

var _ loyalty.GuestStays = (*Stays)(nil)

func (s *Stays) Set(guestID, hotelID string, checkIn, checkOut time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stays[memberKey{guestID, hotelID}] = stay{CheckIn: checkIn, CheckOut: checkOut}
}

func (s *Stays) Stay(_ context.Context, guestID, hotelID string) (time.Time, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stays[memberKey{guestID, hotelID}]
	if !ok {
		return time.Time{}, time.Time{}, false, nil
	}
	return st.CheckIn, st.CheckOut, true, nil
}
