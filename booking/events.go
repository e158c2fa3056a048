package booking

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/concierge-engine/lifecycle"
)

// =============================================================================
// COMPLETED EVENT - Versioned payload for downstream consumers
// =============================================================================

// CompletedEventVersion identifies the payload shape for external
// consumers (message brokers, future subscribers).
const CompletedEventVersion = "v1"

// CompletedEvent is raised exactly once, after the transition into a
// kind's completed status has been persisted. Loyalty accrual consumes
// it in-process; it is also the extension point for future collaborators
// (feedback-request emails, analytics).
type CompletedEvent struct {
	Version        string          `json:"version"`
	BookingID      string          `json:"booking_id"`
	GuestID        string          `json:"guest_id"`
	HotelID        string          `json:"hotel_id"`
	FinalPrice     decimal.Decimal `json:"final_price"`
	Currency       string          `json:"currency"`
	ServiceType    string          `json:"service_type"`
	BookingKind    lifecycle.Kind  `json:"booking_kind"`
	NumberOfNights int             `json:"number_of_nights"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// =============================================================================
// BUS - In-process completed-event fan-out
// =============================================================================

// Subscriber reacts to a completed event. Errors are logged, never
// propagated: a rewards or notification failure must not make a
// completed booking appear un-completed.
type Subscriber func(ctx context.Context, ev CompletedEvent) error

// Bus dispatches completed events to subscribers synchronously, after
// the state change has been persisted. Panics are recovered so a broken
// subscriber cannot fail the transition either.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe attaches a consumer. Subscribers attach here instead of
// being called inline by the state machine, so future consumers need no
// machine changes.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, s)
}

// Publish fans the event out. Best effort: every subscriber runs, every
// failure is logged with booking id and stage for manual reconciliation.
func (b *Bus) Publish(ctx context.Context, ev CompletedEvent) {
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for i, s := range subs {
		func(i int, s Subscriber) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("booking %s: completed-event subscriber %d panicked: %v", ev.BookingID, i, r)
				}
			}()
			if err := s(ctx, ev); err != nil {
				log.Printf("booking %s: completed-event subscriber %d failed: %v", ev.BookingID, i, err)
			}
		}(i, s)
	}
}
