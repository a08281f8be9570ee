package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("user not found")

// Tier is the product access level derived from billing state.
type Tier string

const (
	TierFree  Tier = "free"
	TierTrial Tier = "trial"
	TierPro   Tier = "pro"
)

// User is the locally persisted account record. The billing fields are a
// cache of provider-authoritative truth: they are only ever written through
// merge operations, never as authoritative overrides.
type User struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	EmailVerified bool

	Tier               Tier
	SubscriptionStatus string // provider-reported, "none" before first checkout
	TrialStart         *time.Time
	TrialEnd           *time.Time

	// Provider identifiers. The customer id is assigned exactly once and
	// never reassigned. The subscription id is assigned once per live
	// subscription and cleared only when the provider reports deletion.
	StripeCustomerID     string
	StripeSubscriptionID string
}

// SubscriptionMerge carries the provider-reported billing fields to fold
// into a user record. Nil trial pointers clear the stored window when
// SetTrialWindow is true, and leave it untouched otherwise.
type SubscriptionMerge struct {
	Tier           Tier
	Status         string
	TrialStart     *time.Time
	TrialEnd       *time.Time
	SetTrialWindow bool

	// ClearSubscriptionID releases the stored subscription id so a future
	// checkout can assign a fresh one. Used only on provider-reported
	// deletion; the customer id is never cleared.
	ClearSubscriptionID bool
}

// Store provides persistence for user records.
type Store interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByCustomerID(ctx context.Context, customerID string) (*User, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*User, error)

	// SetCustomerID assigns the provider customer id if and only if the
	// stored value is empty. A concurrent assignment wins exactly once;
	// the call is a no-op when an id is already present.
	SetCustomerID(ctx context.Context, userID, customerID string) error

	// SetSubscriptionID assigns the provider subscription id if and only if
	// the stored value is empty.
	SetSubscriptionID(ctx context.Context, userID, subscriptionID string) error

	// MergeSubscription folds provider-reported billing state into the
	// record, following the merge-only invariant.
	MergeSubscription(ctx context.Context, userID string, m SubscriptionMerge) error
}
