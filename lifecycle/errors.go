package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel errors for the state machine. Wrap with %w so callers can
// match with errors.Is.
var (
	// ErrInvalidTransition is returned when a requested edge is not in
	// the vocabulary's table, including any move out of a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownKind is returned when no vocabulary is registered for
	// the requested booking kind.
	ErrUnknownKind = errors.New("unknown booking kind")
)

// InvalidTransitionError carries enough context for a caller to build a
// useful client-facing message: the kind, both endpoints, and whether
// the rejection was due to terminal lockout.
type InvalidTransitionError struct {
	Kind     Kind
	From     Status
	To       Status
	Terminal bool
}

func (e *InvalidTransitionError) Error() string {
	if e.Terminal {
		return fmt.Sprintf("%s booking: %q is terminal, cannot transition to %q", e.Kind, e.From, e.To)
	}
	return fmt.Sprintf("%s booking: transition %q -> %q is not allowed", e.Kind, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsInvalidTransition reports whether err is a transition rejection.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
