package booking

import "github.com/warp/concierge-engine/lifecycle"

// The two booking kinds and their status vocabularies. Each kind is a
// transition table, not a hand-written flow; the lifecycle engine
// enforces whichever table governs the record.

const (
	KindRegular        lifecycle.Kind = "regular"
	KindTransportation lifecycle.Kind = "transportation"
)

// Regular booking statuses.
const (
	StatusPending           lifecycle.Status = "pending"
	StatusConfirmed         lifecycle.Status = "confirmed"
	StatusAssigned          lifecycle.Status = "assigned"
	StatusInProgress        lifecycle.Status = "in-progress"
	StatusPickupScheduled   lifecycle.Status = "pickup-scheduled"
	StatusPickedUp          lifecycle.Status = "picked-up"
	StatusInService         lifecycle.Status = "in-service"
	StatusDeliveryScheduled lifecycle.Status = "delivery-scheduled"
	StatusCompleted         lifecycle.Status = "completed"
	StatusCancelled         lifecycle.Status = "cancelled"
	StatusRefunded          lifecycle.Status = "refunded"
	StatusDisputed          lifecycle.Status = "disputed"
)

// Transportation booking statuses.
const (
	StatusPendingQuote     lifecycle.Status = "pending_quote"
	StatusQuoteSent        lifecycle.Status = "quote_sent"
	StatusQuoteAccepted    lifecycle.Status = "quote_accepted"
	StatusQuoteRejected    lifecycle.Status = "quote_rejected"
	StatusQuoteExpired     lifecycle.Status = "quote_expired"
	StatusPaymentPending   lifecycle.Status = "payment_pending"
	StatusPaymentCompleted lifecycle.Status = "payment_completed"
	StatusServiceActive    lifecycle.Status = "service_active"
)

// withSideBranches appends the cancel/refund/dispute targets shared by every
// non-terminal regular status.
func withSideBranches(targets ...lifecycle.Status) []lifecycle.Status {
	return append(targets, StatusCancelled, StatusRefunded, StatusDisputed)
}

func regularVocabulary() lifecycle.Vocabulary {
	return lifecycle.Vocabulary{
		Kind:      KindRegular,
		Initial:   StatusPending,
		Completed: StatusCompleted,
		Edges: map[lifecycle.Status][]lifecycle.Status{
			StatusPending:           withSideBranches(StatusConfirmed),
			StatusConfirmed:         withSideBranches(StatusAssigned),
			StatusAssigned:          withSideBranches(StatusInProgress),
			StatusInProgress:        withSideBranches(StatusPickupScheduled, StatusCompleted),
			StatusPickupScheduled:   withSideBranches(StatusPickedUp),
			StatusPickedUp:          withSideBranches(StatusInService),
			StatusInService:         withSideBranches(StatusDeliveryScheduled),
			StatusDeliveryScheduled: withSideBranches(StatusCompleted),
			// Disputed is a side branch, not terminal: it can still
			// settle into refund or cancellation.
			StatusDisputed: {StatusCancelled, StatusRefunded},
		},
		Terminal: []lifecycle.Status{StatusCompleted, StatusCancelled, StatusRefunded},
		Generic: map[lifecycle.Status]lifecycle.GenericStatus{
			StatusPending:           lifecycle.GenericPending,
			StatusConfirmed:         lifecycle.GenericConfirmed,
			StatusAssigned:          lifecycle.GenericConfirmed,
			StatusInProgress:        lifecycle.GenericInProgress,
			StatusPickupScheduled:   lifecycle.GenericInProgress,
			StatusPickedUp:          lifecycle.GenericInProgress,
			StatusInService:         lifecycle.GenericInProgress,
			StatusDeliveryScheduled: lifecycle.GenericInProgress,
			StatusCompleted:         lifecycle.GenericCompleted,
			StatusCancelled:         lifecycle.GenericCancelled,
			StatusRefunded:          lifecycle.GenericRefunded,
			StatusDisputed:          lifecycle.GenericDisputed,
		},
	}
}

func transportationVocabulary() lifecycle.Vocabulary {
	// Rejection, expiry, and cancellation are reachable from every
	// pre-service_active state.
	preActive := func(targets ...lifecycle.Status) []lifecycle.Status {
		return append(targets, StatusQuoteRejected, StatusQuoteExpired, StatusCancelled)
	}
	return lifecycle.Vocabulary{
		Kind:      KindTransportation,
		Initial:   StatusPendingQuote,
		Completed: StatusCompleted,
		Edges: map[lifecycle.Status][]lifecycle.Status{
			StatusPendingQuote:     preActive(StatusQuoteSent),
			StatusQuoteSent:        preActive(StatusQuoteAccepted),
			StatusQuoteAccepted:    preActive(StatusPaymentPending),
			StatusPaymentPending:   preActive(StatusPaymentCompleted),
			StatusPaymentCompleted: preActive(StatusServiceActive),
			StatusServiceActive:    {StatusCompleted},
		},
		Terminal: []lifecycle.Status{StatusCompleted, StatusCancelled, StatusQuoteRejected, StatusQuoteExpired},
		Generic: map[lifecycle.Status]lifecycle.GenericStatus{
			StatusPendingQuote:     lifecycle.GenericPending,
			StatusQuoteSent:        lifecycle.GenericPending,
			StatusQuoteAccepted:    lifecycle.GenericConfirmed,
			StatusQuoteRejected:    lifecycle.GenericCancelled,
			StatusQuoteExpired:     lifecycle.GenericCancelled,
			StatusPaymentPending:   lifecycle.GenericConfirmed,
			StatusPaymentCompleted: lifecycle.GenericConfirmed,
			StatusServiceActive:    lifecycle.GenericInProgress,
			StatusCompleted:        lifecycle.GenericCompleted,
			StatusCancelled:        lifecycle.GenericCancelled,
		},
	}
}

func init() {
	lifecycle.MustRegister(regularVocabulary())
	lifecycle.MustRegister(transportationVocabulary())
}
