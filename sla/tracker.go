package sla

import "time"

// =============================================================================
// STATUS
// =============================================================================

// Status is the overall SLA outcome of a booking.
type Status string

const (
	// StatusUnset means no completion has been recorded yet.
	StatusUnset Status = ""
	// StatusMet: response and completion were on time or not tracked.
	StatusMet Status = "met"
	// StatusMissed: response or completion was late.
	StatusMissed Status = "missed"
	// StatusAtRisk: still open and past a target. Derived lazily by
	// Evaluate, never stored.
	StatusAtRisk Status = "at_risk"
)

// =============================================================================
// BLOCK - Per-booking SLA state
// =============================================================================

// Block is the SLA state persisted with a booking. Targets are fixed at
// creation; actuals are written once.
type Block struct {
	TargetResponseMinutes   int64 `json:"target_response_minutes"`
	TargetCompletionMinutes int64 `json:"target_completion_minutes"`

	ActualResponseMinutes   *int64 `json:"actual_response_minutes,omitempty"`
	ActualCompletionMinutes *int64 `json:"actual_completion_minutes,omitempty"`

	ResponseAt   *time.Time `json:"response_at,omitempty"`
	CompletionAt *time.Time `json:"completion_at,omitempty"`

	ResponseOnTime   *bool `json:"response_on_time,omitempty"`
	CompletionOnTime *bool `json:"completion_on_time,omitempty"`

	ResponseDelayMinutes   int64 `json:"response_delay_minutes"`
	CompletionDelayMinutes int64 `json:"completion_delay_minutes"`

	Status Status `json:"status,omitempty"`
}

// NewBlock starts the SLA clock for a booking using the category policy.
func NewBlock(p Policy) Block {
	return Block{
		TargetResponseMinutes:   p.TargetResponseMinutes,
		TargetCompletionMinutes: p.TargetCompletionMinutes,
	}
}

func minutesBetween(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		d = 0
	}
	return int64(d / time.Minute)
}

// RecordResponse records the provider's first response. Idempotent: a
// second call leaves the first-recorded values untouched.
func (b *Block) RecordResponse(createdAt, at time.Time) {
	if b.ResponseAt != nil {
		return
	}
	actual := minutesBetween(createdAt, at)
	onTime := b.TargetResponseMinutes == 0 || actual <= b.TargetResponseMinutes
	b.ActualResponseMinutes = &actual
	b.ResponseAt = &at
	b.ResponseOnTime = &onTime
	if !onTime {
		b.ResponseDelayMinutes = actual - b.TargetResponseMinutes
	}
}

// RecordCompletion records service completion and settles the overall
// status. Idempotent: duplicate event delivery is a no-op returning the
// existing values, not an error.
func (b *Block) RecordCompletion(createdAt, at time.Time) {
	if b.CompletionAt != nil {
		return
	}
	actual := minutesBetween(createdAt, at)
	onTime := b.TargetCompletionMinutes == 0 || actual <= b.TargetCompletionMinutes
	b.ActualCompletionMinutes = &actual
	b.CompletionAt = &at
	b.CompletionOnTime = &onTime
	if !onTime {
		b.CompletionDelayMinutes = actual - b.TargetCompletionMinutes
	}

	responseOK := b.ResponseOnTime == nil || *b.ResponseOnTime
	if onTime && responseOK {
		b.Status = StatusMet
	} else {
		b.Status = StatusMissed
	}
}

// Evaluate returns the booking's SLA status as of now. Settled statuses
// pass through; for open bookings past a target it reports at_risk
// without writing anything.
func (b Block) Evaluate(createdAt, now time.Time) Status {
	if b.Status != StatusUnset {
		return b.Status
	}
	elapsed := minutesBetween(createdAt, now)
	if b.ResponseAt == nil && b.TargetResponseMinutes > 0 && elapsed > b.TargetResponseMinutes {
		return StatusAtRisk
	}
	if b.TargetCompletionMinutes > 0 && elapsed > b.TargetCompletionMinutes {
		return StatusAtRisk
	}
	return StatusUnset
}
