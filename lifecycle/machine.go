package lifecycle

import (
	"fmt"
	"time"
)

// =============================================================================
// HISTORY
// =============================================================================

// Entry is one row of a booking's status history. History is append-only
// and non-decreasing in time.
type Entry struct {
	Status  Status    `json:"status"`
	ActorID string    `json:"actor_id,omitempty"`
	At      time.Time `json:"at"`
	Note    string    `json:"note,omitempty"`
}

// =============================================================================
// MACHINE - Applies transitions against one vocabulary
// =============================================================================

// Machine applies transition requests against a single vocabulary.
// It is a pure rules evaluator: it holds no booking state and performs
// no I/O, so one Machine per kind can be shared across goroutines.
type Machine struct {
	vocab Vocabulary
}

// NewMachine looks up the registered vocabulary for kind.
func NewMachine(kind Kind) (*Machine, error) {
	v, ok := VocabularyFor(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return &Machine{vocab: v}, nil
}

// MachineFor wraps an explicit vocabulary, bypassing the registry.
// Used by tests that exercise tables not registered globally.
func MachineFor(v Vocabulary) *Machine {
	return &Machine{vocab: v}
}

// Vocabulary returns the table this machine enforces.
func (m *Machine) Vocabulary() Vocabulary {
	return m.vocab
}

// Request asks the machine to move a booking to Target. At defaults to
// time.Now() when zero.
type Request struct {
	Target  Status
	ActorID string
	Note    string
	At      time.Time
}

// Outcome is the result of a successful transition.
type Outcome struct {
	Status    Status
	Entry     Entry
	Completed bool
}

// Apply validates current -> req.Target against the vocabulary and, when
// legal, returns the new status plus the history entry to append.
//
// History time never goes backwards: if the request carries a timestamp
// earlier than lastAt (clock skew between callers), the entry is pinned
// to lastAt.
func (m *Machine) Apply(current Status, lastAt time.Time, req Request) (*Outcome, error) {
	if m.vocab.IsTerminal(current) {
		return nil, &InvalidTransitionError{Kind: m.vocab.Kind, From: current, To: req.Target, Terminal: true}
	}
	if !m.vocab.Contains(req.Target) || !m.vocab.CanTransition(current, req.Target) {
		return nil, &InvalidTransitionError{Kind: m.vocab.Kind, From: current, To: req.Target}
	}

	at := req.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if at.Before(lastAt) {
		at = lastAt
	}

	return &Outcome{
		Status: req.Target,
		Entry: Entry{
			Status:  req.Target,
			ActorID: req.ActorID,
			At:      at,
			Note:    req.Note,
		},
		Completed: req.Target == m.vocab.Completed,
	}, nil
}

// InitialEntry builds the first history row for a brand-new booking of
// this machine's kind.
func (m *Machine) InitialEntry(actorID string, at time.Time) Entry {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Entry{Status: m.vocab.Initial, ActorID: actorID, At: at}
}
