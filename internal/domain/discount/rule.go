package discount

import (
	"time"

	"github.com/go-faster/errors"
)

// Duration enumerates how long a discount applies once redeemed, mirroring
// the payment provider's coupon duration classes.
type Duration string

const (
	// DurationOnce applies the discount to the first invoice only.
	DurationOnce Duration = "once"
	// DurationRepeating applies the discount for a limited number of billing cycles.
	DurationRepeating Duration = "repeating"
	// DurationForever applies the discount to every invoice of the subscription.
	DurationForever Duration = "forever"
)

// Rule defines the discount terms configured for a single code. Rules are
// loaded once at startup and never mutated afterwards.
type Rule struct {
	Code       Code
	Percentage int
	Duration   Duration
	// DurationMonths is how many billing cycles a repeating discount lasts.
	// Only meaningful when Duration is DurationRepeating.
	DurationMonths int
	Active         bool
	ExpiresAt      *time.Time
	MaxUses        int // 0 means unlimited
	Description    string
}

// Validate reports whether the rule's terms are internally consistent.
// Invalid rules are excluded from the table at load time rather than
// crashing the process.
func (r Rule) Validate() error {
	if r.Percentage <= 0 || r.Percentage > 100 {
		return errors.Errorf("rule %s: percentage %d out of range (0, 100]", r.Code, r.Percentage)
	}
	switch r.Duration {
	case DurationOnce, DurationForever:
	case DurationRepeating:
		if r.DurationMonths <= 0 {
			return errors.Errorf("rule %s: repeating duration requires duration_months", r.Code)
		}
	default:
		return errors.Errorf("rule %s: unknown duration %q", r.Code, r.Duration)
	}
	if r.MaxUses < 0 {
		return errors.Errorf("rule %s: negative max uses %d", r.Code, r.MaxUses)
	}
	return nil
}

// Expired reports whether the rule's expiry timestamp has passed at the
// given instant. Rules without an expiry never expire.
func (r Rule) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
