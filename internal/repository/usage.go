package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3radar/billing-api/internal/domain/discount"
)

const (
	countUsageSQL = `SELECT COUNT(*) FROM discount_usage WHERE code = $1`

	recordRedemptionSQL = `INSERT INTO discount_usage (code, user_id) VALUES ($1, $2)`
)

var _ discount.UsageLookup = (*UsageRepository)(nil)

// UsageRepository tracks discount redemptions backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// UsedCount returns how many times the code has been redeemed.
func (r *UsageRepository) UsedCount(ctx context.Context, code discount.Code) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, countUsageSQL, string(code)).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting redemptions for %q: %w", code, err)
	}
	return count, nil
}

// RecordRedemption appends one redemption of the code by the given user.
func (r *UsageRepository) RecordRedemption(ctx context.Context, code discount.Code, userID string) error {
	_, err := r.pool.Exec(ctx, recordRedemptionSQL, string(code), userID)
	if err != nil {
		return fmt.Errorf("recording redemption of %q: %w", code, err)
	}
	return nil
}
