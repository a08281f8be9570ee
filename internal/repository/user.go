package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/web3radar/billing-api/internal/domain/user"
)

const (
	userColumns = `id, email, first_name, last_name, email_verified,
		tier, subscription_status, trial_start, trial_end,
		COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, '')`

	getUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByCustomerIDSQL = `SELECT ` + userColumns + ` FROM users
		WHERE stripe_customer_id = $1`

	getUserBySubscriptionIDSQL = `SELECT ` + userColumns + ` FROM users
		WHERE stripe_subscription_id = $1`

	// Set-once: the WHERE clause refuses the write when an id is already
	// present, so the first assignment wins and redeliveries are no-ops.
	setCustomerIDSQL = `UPDATE users
		SET stripe_customer_id = $2, updated_at = NOW()
		WHERE id = $1 AND stripe_customer_id IS NULL`

	setSubscriptionIDSQL = `UPDATE users
		SET stripe_subscription_id = $2, updated_at = NOW()
		WHERE id = $1 AND stripe_subscription_id IS NULL`

	mergeSubscriptionSQL = `UPDATE users SET
		tier = $2,
		subscription_status = $3,
		trial_start = CASE WHEN $4::bool THEN $5 ELSE trial_start END,
		trial_end = CASE WHEN $4::bool THEN $6 ELSE trial_end END,
		stripe_subscription_id = CASE WHEN $7::bool THEN NULL ELSE stripe_subscription_id END,
		updated_at = NOW()
		WHERE id = $1`
)

var _ user.Store = (*UserRepository)(nil)

// UserRepository implements user.Store backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// GetByID loads a user record by its primary key.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserByIDSQL, id)
}

// GetByCustomerID loads the user holding the given provider customer id.
func (r *UserRepository) GetByCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	return r.getOne(ctx, getUserByCustomerIDSQL, customerID)
}

// GetBySubscriptionID loads the user holding the given provider subscription id.
func (r *UserRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*user.User, error) {
	return r.getOne(ctx, getUserBySubscriptionIDSQL, subscriptionID)
}

func (r *UserRepository) getOne(ctx context.Context, sql, arg string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// SetCustomerID assigns the provider customer id unless one is already
// stored. Losing the race is not an error.
func (r *UserRepository) SetCustomerID(ctx context.Context, userID, customerID string) error {
	_, err := r.pool.Exec(ctx, setCustomerIDSQL, userID, customerID)
	if err != nil {
		return fmt.Errorf("setting customer id for user %q: %w", userID, err)
	}
	return nil
}

// SetSubscriptionID assigns the provider subscription id unless one is
// already stored.
func (r *UserRepository) SetSubscriptionID(ctx context.Context, userID, subscriptionID string) error {
	_, err := r.pool.Exec(ctx, setSubscriptionIDSQL, userID, subscriptionID)
	if err != nil {
		return fmt.Errorf("setting subscription id for user %q: %w", userID, err)
	}
	return nil
}

// MergeSubscription folds provider-reported billing fields into the record.
// The trial window is only written when the merge carries one, and the
// subscription id is only released when the merge says so.
func (r *UserRepository) MergeSubscription(ctx context.Context, userID string, m user.SubscriptionMerge) error {
	tag, err := r.pool.Exec(ctx, mergeSubscriptionSQL,
		userID, string(m.Tier), m.Status,
		m.SetTrialWindow, m.TrialStart, m.TrialEnd,
		m.ClearSubscriptionID,
	)
	if err != nil {
		return fmt.Errorf("merging subscription state for user %q: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u    user.User
		tier string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.EmailVerified,
		&tier, &u.SubscriptionStatus, &u.TrialStart, &u.TrialEnd,
		&u.StripeCustomerID, &u.StripeSubscriptionID,
	)
	u.Tier = user.Tier(tier)
	return u, err
}
