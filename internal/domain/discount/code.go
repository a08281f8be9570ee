package discount

import (
	"strings"

	"github.com/go-faster/errors"
)

// Code is a normalized discount code: trimmed, upper-cased, and restricted to
// 3-50 alphanumeric characters. A Code value only ever exists in normalized
// form; raw user input becomes a Code through Normalize.
type Code string

// ErrInvalidFormat is returned when raw input cannot be normalized into a
// valid discount code.
var ErrInvalidFormat = errors.New("discount code must be 3-50 letters or digits")

const (
	minCodeLen = 3
	maxCodeLen = 50
)

// Normalize trims and upper-cases raw input and validates its shape.
// It is deterministic and idempotent: normalizing an already-normalized code
// returns the same value.
func Normalize(raw string) (Code, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) < minCodeLen || len(s) > maxCodeLen {
		return "", ErrInvalidFormat
	}
	for i := range len(s) {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", ErrInvalidFormat
		}
	}
	return Code(s), nil
}

// CouponID derives the stable payment-provider coupon identifier for a code.
// The same code always maps to the same coupon object at the provider.
func (c Code) CouponID() string {
	return "discount_" + strings.ToLower(string(c))
}
