/*
Package lifecycle provides the booking status state machine engine.

PURPOSE:
  This package contains the kind-agnostic machinery for moving a booking
  through a constrained sequence of statuses. Whether the booking is a
  regular service booking or a transportation booking, the same engine
  validates edges, appends history, and reports completion.

KEY CONCEPTS IN THIS FILE (vocabulary.go):
  - Status: A named state in a booking's lifecycle (e.g., "confirmed")
  - Vocabulary: The complete ruleset for one booking kind: allowed edges,
    terminal states, the initial and completed statuses, and the mapping
    to the cross-kind generic status used for display
  - Registry: Domain packages register their vocabularies on init()

DESIGN PRINCIPLES:
  1. Data over code: each booking kind is a transition TABLE, not a
     hand-written flow. Adding a kind means registering a Vocabulary.
  2. Terminal lockout: once a booking reaches a terminal status, no
     further transition succeeds. Cancellation and refund are statuses,
     never record deletions.
  3. One-way mapping: the generic status exists for UI/reporting only
     and never feeds back into transition decisions.

USAGE:
  vocab, ok := lifecycle.VocabularyFor("regular")
  if vocab.CanTransition("pending", "confirmed") { ... }

SEE ALSO:
  - machine.go: Transition application and history append
  - booking/vocabularies.go: The two concrete booking vocabularies
*/
package lifecycle

import (
	"fmt"
	"sort"
	"sync"
)

// =============================================================================
// STATUS & KIND
// =============================================================================

// Status is a named state in a booking's lifecycle.
type Status string

// Kind identifies which vocabulary governs a booking ("regular",
// "transportation", ...).
type Kind string

// GenericStatus is the cross-kind status used for UI and reporting.
// It is derived from the authoritative Status via the vocabulary's
// mapping table and is presentation-only.
type GenericStatus string

const (
	GenericPending    GenericStatus = "pending"
	GenericConfirmed  GenericStatus = "confirmed"
	GenericInProgress GenericStatus = "in_progress"
	GenericCompleted  GenericStatus = "completed"
	GenericCancelled  GenericStatus = "cancelled"
	GenericRefunded   GenericStatus = "refunded"
	GenericDisputed   GenericStatus = "disputed"
)

// =============================================================================
// VOCABULARY - Transition table for one booking kind
// =============================================================================

// Vocabulary defines the legal lifecycle of one booking kind.
type Vocabulary struct {
	Kind Kind

	// Initial is the status a new booking of this kind starts in.
	Initial Status

	// Completed is the status whose entry raises the completed event.
	// It must be terminal.
	Completed Status

	// Edges lists the allowed targets from each status.
	// A status absent from Edges has no outgoing edges.
	Edges map[Status][]Status

	// Terminal statuses admit no further transitions.
	Terminal []Status

	// Generic maps every status of this kind to its cross-kind
	// display status. Presentation-only.
	Generic map[Status]GenericStatus
}

// CanTransition reports whether from -> to is a legal edge.
// Terminal statuses never have legal outgoing edges.
func (v Vocabulary) CanTransition(from, to Status) bool {
	if v.IsTerminal(from) {
		return false
	}
	for _, t := range v.Edges[from] {
		if t == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func (v Vocabulary) IsTerminal(s Status) bool {
	for _, t := range v.Terminal {
		if t == s {
			return true
		}
	}
	return false
}

// Contains reports whether s belongs to this vocabulary at all.
func (v Vocabulary) Contains(s Status) bool {
	if _, ok := v.Generic[s]; ok {
		return true
	}
	return false
}

// GenericFor returns the cross-kind display status for s.
// Unknown statuses fall back to GenericPending so a display layer
// never sees an empty value.
func (v Vocabulary) GenericFor(s Status) GenericStatus {
	if g, ok := v.Generic[s]; ok {
		return g
	}
	return GenericPending
}

// Statuses returns every status of the vocabulary, sorted for
// deterministic iteration in tests and table dumps.
func (v Vocabulary) Statuses() []Status {
	out := make([]Status, 0, len(v.Generic))
	for s := range v.Generic {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks the table's internal consistency:
// every edge endpoint is declared, terminal statuses have no outgoing
// edges, and the initial/completed statuses exist.
func (v Vocabulary) Validate() error {
	if v.Kind == "" {
		return fmt.Errorf("vocabulary: kind is empty")
	}
	if !v.Contains(v.Initial) {
		return fmt.Errorf("vocabulary %s: initial status %q not declared", v.Kind, v.Initial)
	}
	if !v.Contains(v.Completed) {
		return fmt.Errorf("vocabulary %s: completed status %q not declared", v.Kind, v.Completed)
	}
	if !v.IsTerminal(v.Completed) {
		return fmt.Errorf("vocabulary %s: completed status %q must be terminal", v.Kind, v.Completed)
	}
	for _, t := range v.Terminal {
		if !v.Contains(t) {
			return fmt.Errorf("vocabulary %s: terminal status %q not declared", v.Kind, t)
		}
		if len(v.Edges[t]) > 0 {
			return fmt.Errorf("vocabulary %s: terminal status %q has outgoing edges", v.Kind, t)
		}
	}
	for from, targets := range v.Edges {
		if !v.Contains(from) {
			return fmt.Errorf("vocabulary %s: edge source %q not declared", v.Kind, from)
		}
		for _, to := range targets {
			if !v.Contains(to) {
				return fmt.Errorf("vocabulary %s: edge target %q not declared", v.Kind, to)
			}
		}
	}
	return nil
}

// =============================================================================
// VOCABULARY REGISTRY
// =============================================================================

var (
	vocabRegistry = make(map[Kind]Vocabulary)
	registryMu    sync.RWMutex
)

// MustRegister adds a vocabulary to the global registry, panicking on an
// inconsistent table. Call from domain package init() functions so a bad
// table fails at startup, not mid-request.
func MustRegister(v Vocabulary) {
	if err := v.Validate(); err != nil {
		panic(err)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	vocabRegistry[v.Kind] = v
}

// VocabularyFor finds a registered vocabulary by kind.
func VocabularyFor(kind Kind) (Vocabulary, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	v, ok := vocabRegistry[kind]
	return v, ok
}

// Kinds returns all registered kinds, sorted.
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Kind, 0, len(vocabRegistry))
	for k := range vocabRegistry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
