package subscription

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/web3radar/billing-api/internal/domain/user"
)

// State is the reconciled subscription snapshot returned to callers. When
// Stale is true the provider could not be reached and every field reflects
// the last locally cached value.
type State struct {
	Tier               user.Tier
	Status             Status
	IsActive           bool
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CustomerID         string
	SubscriptionID     string
	Stale              bool
}

// Reconciler merges locally cached subscription state with the provider's
// authoritative view. Writes are merge-only: provider-reported status and
// trial window overwrite the cache, identifiers follow the set-once rule,
// and a transient provider failure never wipes known-good local state.
type Reconciler struct {
	users    user.Store
	provider Provider
	now      func() time.Time
}

// NewReconciler creates a Reconciler over the given store and provider.
func NewReconciler(users user.Store, provider Provider) *Reconciler {
	return &Reconciler{users: users, provider: provider, now: time.Now}
}

// Reconcile fetches the provider's view of the user's subscription, folds it
// into the local record, and returns the merged state. When the provider is
// unreachable the prior cached state is returned alongside an error wrapping
// ErrProviderUnavailable, so the caller keeps its previous knowledge. Users
// without a provider subscription reconcile purely from local state with no
// outbound call.
func (r *Reconciler) Reconcile(ctx context.Context, userID string) (*State, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}

	if u.StripeSubscriptionID == "" {
		return r.localState(u), nil
	}

	sub, err := r.provider.GetSubscription(ctx, u.StripeSubscriptionID)
	if err != nil {
		st := r.localState(u)
		st.Stale = true
		return st, errors.Wrap(err, "fetch subscription")
	}

	merge := user.SubscriptionMerge{
		Tier:           sub.Status.Tier(),
		Status:         string(sub.Status),
		TrialStart:     sub.TrialStart,
		TrialEnd:       sub.TrialEnd,
		SetTrialWindow: true,
	}
	if sub.Status.Terminal() {
		// Canceled subscriptions are never resurrected. Releasing the id lets
		// a later checkout attach a fresh subscription; the customer id stays.
		merge.ClearSubscriptionID = true
	}
	if err := r.users.MergeSubscription(ctx, u.ID, merge); err != nil {
		return nil, errors.Wrap(err, "merge subscription state")
	}

	return &State{
		Tier:              sub.Status.Tier(),
		Status:            sub.Status,
		IsActive:          sub.Status.ActiveAccess(),
		TrialStart:        sub.TrialStart,
		TrialEnd:          sub.TrialEnd,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CustomerID:        u.StripeCustomerID,
		SubscriptionID:    sub.ID,
	}, nil
}

// localState derives a State from the cached record alone. A locally tracked
// trial whose end has passed degrades to past_due rather than keeping access
// open indefinitely.
func (r *Reconciler) localState(u *user.User) *State {
	status := ParseStatus(u.SubscriptionStatus)
	if status == StatusTrialing && u.TrialEnd != nil && r.now().After(*u.TrialEnd) {
		status = StatusPastDue
	}

	var periodEnd *time.Time
	if status == StatusTrialing {
		periodEnd = u.TrialEnd
	}

	return &State{
		Tier:             u.Tier,
		Status:           status,
		IsActive:         status.ActiveAccess(),
		TrialStart:       u.TrialStart,
		TrialEnd:         u.TrialEnd,
		CurrentPeriodEnd: periodEnd,
		CustomerID:       u.StripeCustomerID,
		SubscriptionID:   u.StripeSubscriptionID,
	}
}

// Cancel schedules the user's subscription to end at the close of the current
// billing period. It returns ErrNoSubscription when the user has no provider
// subscription, and the updated provider state otherwise. Repeat calls on an
// already-cancelling subscription are reported, not re-applied.
func (r *Reconciler) Cancel(ctx context.Context, userID string) (*Subscription, bool, error) {
	u, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, false, errors.Wrap(err, "load user")
	}
	if u.StripeSubscriptionID == "" {
		return nil, false, ErrNoSubscription
	}

	current, err := r.provider.GetSubscription(ctx, u.StripeSubscriptionID)
	if err != nil {
		return nil, false, errors.Wrap(err, "fetch subscription")
	}
	if current.CancelAtPeriodEnd {
		return current, true, nil
	}

	updated, err := r.provider.CancelAtPeriodEnd(ctx, u.StripeSubscriptionID)
	if err != nil {
		return nil, false, errors.Wrap(err, "cancel subscription")
	}
	return updated, false, nil
}
