package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Reason identifies why a discount code was rejected.
type Reason string

const (
	ReasonMalformed      Reason = "malformed"
	ReasonUnknown        Reason = "unknown"
	ReasonInactive       Reason = "inactive"
	ReasonExpired        Reason = "expired"
	ReasonUsageExhausted Reason = "usage_exhausted"
)

// Message returns the user-facing explanation for a rejection reason.
// Each reason maps to a distinct message; none of them leak configuration
// details beyond what the user submitted.
func (r Reason) Message() string {
	switch r {
	case ReasonMalformed:
		return "Discount code must be between 3 and 50 characters and contain only letters and numbers"
	case ReasonUnknown:
		return "Invalid discount code"
	case ReasonInactive:
		return "This discount code is no longer active"
	case ReasonExpired:
		return "This discount code has expired"
	case ReasonUsageExhausted:
		return "This discount code has reached its redemption limit"
	default:
		return "Invalid discount code"
	}
}

// Decision is the outcome of evaluating a raw discount code. Rejection is an
// expected, routine outcome, so it is modeled as a value rather than an
// error: exactly one of Accepted or Reason is meaningful.
type Decision struct {
	Accepted bool
	Code     Code
	Rule     Rule
	Reason   Reason
}

func accepted(code Code, rule Rule) Decision {
	return Decision{Accepted: true, Code: code, Rule: rule}
}

func rejected(reason Reason) Decision {
	return Decision{Reason: reason}
}

// UsageLookup reports how many times a code has been redeemed. Implementations
// must be read-only; the evaluator never records usage itself.
type UsageLookup interface {
	UsedCount(ctx context.Context, code Code) (int, error)
}

// Evaluator applies the rule table, the current time, and recorded usage to a
// raw discount code, producing an accept/reject decision.
type Evaluator struct {
	table *Table
	usage UsageLookup
	now   func() time.Time
}

// NewEvaluator creates an Evaluator over the given table and usage store.
func NewEvaluator(table *Table, usage UsageLookup) *Evaluator {
	return &Evaluator{table: table, usage: usage, now: time.Now}
}

// Evaluate checks a raw code and returns a Decision. The checks run in fixed
// precedence (malformed, unknown, inactive, expired, usage-exhausted), so
// the first failing check determines the reported reason and a malformed code
// never reaches the table or the usage store. A non-nil error is returned
// only when the usage store itself fails; rejections are never errors.
func (e *Evaluator) Evaluate(ctx context.Context, raw string) (Decision, error) {
	code, err := Normalize(raw)
	if err != nil {
		return rejected(ReasonMalformed), nil
	}

	rule, ok := e.table.Lookup(code)
	if !ok {
		return rejected(ReasonUnknown), nil
	}

	if !rule.Active {
		return rejected(ReasonInactive), nil
	}

	if rule.Expired(e.now()) {
		return rejected(ReasonExpired), nil
	}

	if rule.MaxUses > 0 {
		used, err := e.usage.UsedCount(ctx, code)
		if err != nil {
			return Decision{}, errors.Wrap(err, "lookup code usage")
		}
		if used >= rule.MaxUses {
			return rejected(ReasonUsageExhausted), nil
		}
	}

	return accepted(code, rule), nil
}
