/*
Package sla tracks service-level-agreement timing for bookings.

PURPOSE:
  Each service category carries target response and completion times.
  Targets are resolved once from the policy table at booking creation
  and never recomputed afterward; actuals are recorded as the booking
  progresses and derived metrics (on-time booleans, delay magnitudes,
  overall status) fall out of the recorded timestamps.

KEY CONCEPTS:
  - Policy: target minutes for one service category
  - PolicyTable: category -> Policy with a default fallback
  - Block (tracker.go): the per-booking SLA state persisted with the record

STATUS SEMANTICS:
  "met" and "missed" are stored once completion is recorded. "at_risk"
  (open and past a target) is evaluated lazily at query time, never
  stored, so it can't go stale.

SEE ALSO:
  - tracker.go: RecordResponse / RecordCompletion / Evaluate
  - factory/: Builds tables from hotel configuration JSON
*/
package sla

import "sort"

// Policy holds the SLA targets for one service category, in minutes.
// A zero target means the dimension is not tracked for that category.
type Policy struct {
	Category                string `json:"category"`
	TargetResponseMinutes   int64  `json:"target_response_minutes"`
	TargetCompletionMinutes int64  `json:"target_completion_minutes"`
}

// PolicyTable resolves SLA policy by service category.
type PolicyTable struct {
	policies map[string]Policy
	fallback Policy
}

// NewPolicyTable builds a table. The fallback applies to categories
// without an explicit entry.
func NewPolicyTable(fallback Policy, policies ...Policy) *PolicyTable {
	t := &PolicyTable{policies: make(map[string]Policy, len(policies)), fallback: fallback}
	for _, p := range policies {
		t.policies[p.Category] = p
	}
	return t
}

// For returns the policy for a category, falling back to the default.
func (t *PolicyTable) For(category string) Policy {
	if p, ok := t.policies[category]; ok {
		return p
	}
	p := t.fallback
	p.Category = category
	return p
}

// Set adds or replaces a category policy.
func (t *PolicyTable) Set(p Policy) {
	t.policies[p.Category] = p
}

// Categories lists the explicitly configured categories, sorted.
func (t *PolicyTable) Categories() []string {
	out := make([]string, 0, len(t.policies))
	for c := range t.policies {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// DefaultTable covers the common hotel service categories. Hotels
// override via configuration (factory.ParseHotelConfig).
func DefaultTable() *PolicyTable {
	return NewPolicyTable(
		Policy{TargetResponseMinutes: 30, TargetCompletionMinutes: 240},
		Policy{Category: "housekeeping", TargetResponseMinutes: 15, TargetCompletionMinutes: 60},
		Policy{Category: "laundry", TargetResponseMinutes: 30, TargetCompletionMinutes: 1440},
		Policy{Category: "dining", TargetResponseMinutes: 10, TargetCompletionMinutes: 60},
		Policy{Category: "transportation", TargetResponseMinutes: 20, TargetCompletionMinutes: 480},
		Policy{Category: "spa", TargetResponseMinutes: 30, TargetCompletionMinutes: 180},
	)
}
