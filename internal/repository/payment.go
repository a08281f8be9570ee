package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/web3radar/billing-api/internal/domain/payment"
)

const (
	// Invoice ids are the natural key; Stripe redelivers events, so the
	// insert has to be idempotent.
	recordPaymentSQL = `INSERT INTO payments
		(invoice_id, user_id, subscription_id, amount, currency, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (invoice_id) DO NOTHING`

	listPaymentsByUserSQL = `SELECT invoice_id, user_id, subscription_id,
		amount, currency, status, occurred_at
		FROM payments WHERE user_id = $1 ORDER BY occurred_at DESC`
)

var _ payment.Store = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Store backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Record persists a provider-reported invoice outcome.
func (r *PaymentRepository) Record(ctx context.Context, p payment.Payment) error {
	_, err := r.pool.Exec(ctx, recordPaymentSQL,
		p.InvoiceID, p.UserID, p.SubscriptionID,
		p.Amount, p.Currency, string(p.Status), p.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("recording payment %q: %w", p.InvoiceID, err)
	}
	return nil
}

// ListByUser returns the user's payment history, newest first.
func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]payment.Payment, error) {
	rows, err := r.pool.Query(ctx, listPaymentsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing payments for user %q: %w", userID, err)
	}

	payments, err := pgx.CollectRows(rows, scanPayment)
	if err != nil {
		return nil, fmt.Errorf("listing payments for user %q: %w", userID, err)
	}
	return payments, nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p      payment.Payment
		amount decimal.Decimal
		status string
	)
	err := row.Scan(
		&p.InvoiceID, &p.UserID, &p.SubscriptionID,
		&amount, &p.Currency, &status, &p.OccurredAt,
	)
	p.Amount = amount
	p.Status = payment.Status(status)
	return p, err
}
