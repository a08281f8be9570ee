// Package payment records invoice outcomes reported by the payment provider.
package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status of a recorded payment attempt.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment is one provider-reported invoice outcome. Amount carries the exact
// invoice total; it is never recomputed locally.
type Payment struct {
	UserID         string
	InvoiceID      string
	SubscriptionID string
	Amount         decimal.Decimal
	Currency       string
	Status         Status
	OccurredAt     time.Time
}

// Store persists payment records. Recording the same invoice id twice is a
// no-op so webhook redeliveries stay idempotent.
type Store interface {
	Record(ctx context.Context, p Payment) error
	ListByUser(ctx context.Context, userID string) ([]Payment, error)
}
