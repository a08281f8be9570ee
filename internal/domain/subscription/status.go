package subscription

import "github.com/web3radar/billing-api/internal/domain/user"

// Status is the canonical subscription lifecycle state. The machine is
//
//	none → trialing → active ⇄ past_due → canceled
//
// with active → canceled also reachable directly. Canceled is terminal: a
// canceled subscription is never resurrected; a later checkout creates a
// fresh subscription with a new identifier.
type Status string

const (
	StatusNone     Status = "none"
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// ParseStatus maps a provider-reported status string onto the canonical
// machine. Provider states outside the machine collapse onto the nearest
// canonical state: payment trouble maps to past_due, dead subscriptions to
// canceled.
func ParseStatus(s string) Status {
	switch s {
	case "", "none":
		return StatusNone
	case "trialing":
		return StatusTrialing
	case "active":
		return StatusActive
	case "past_due", "incomplete", "unpaid", "payment_failed":
		return StatusPastDue
	case "canceled", "cancelled", "incomplete_expired":
		return StatusCanceled
	default:
		return StatusPastDue
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCanceled
}

// ActiveAccess reports whether the status grants product access.
func (s Status) ActiveAccess() bool {
	return s == StatusTrialing || s == StatusActive
}

// Tier maps a subscription status onto the product access tier. Past-due
// subscriptions keep pro access during the provider's grace window.
func (s Status) Tier() user.Tier {
	switch s {
	case StatusTrialing:
		return user.TierTrial
	case StatusActive, StatusPastDue:
		return user.TierPro
	default:
		return user.TierFree
	}
}

// CanTransition reports whether the machine permits moving from s to next.
// Self-transitions are always allowed (repeated provider reports of the same
// state are routine).
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusNone:
		return next == StatusTrialing || next == StatusActive
	case StatusTrialing:
		return next == StatusActive || next == StatusPastDue || next == StatusCanceled
	case StatusActive:
		return next == StatusPastDue || next == StatusCanceled
	case StatusPastDue:
		return next == StatusActive || next == StatusCanceled
	default:
		return false
	}
}
