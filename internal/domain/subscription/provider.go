package subscription

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/web3radar/billing-api/internal/domain/discount"
)

// ErrProviderUnavailable is returned when the payment provider cannot be
// reached or responds with an invalid payload. It is transient: the caller
// may retry, the core never does.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// ErrNoSubscription is returned when an operation requires a provider
// subscription the user does not have.
var ErrNoSubscription = errors.New("no active subscription")

// Subscription is the provider's authoritative view of one subscription.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            Status
	TrialStart        *time.Time
	TrialEnd          *time.Time
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// Session is a created checkout session the client is redirected to.
type Session struct {
	ID          string
	RedirectURL string
}

// CheckoutParams describes one checkout-session request. CouponID is empty
// when no discount applies; TrialDays is zero when no trial attaches.
type CheckoutParams struct {
	CustomerID string
	CouponID   string
	TrialDays  int
	Metadata   map[string]string
}

// Provider is the port to the payment provider's billing API. Every method
// performs at most one outbound call; failures surface as errors wrapping
// ErrProviderUnavailable.
type Provider interface {
	// CreateCustomer registers a new billing customer and returns its id.
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)

	// EnsureCoupon creates the provider coupon object for a discount rule if
	// it does not already exist, and returns the coupon id. The id is derived
	// deterministically from the code, so repeated calls converge.
	EnsureCoupon(ctx context.Context, rule discount.Rule) (string, error)

	// CreateCheckoutSession requests a new checkout session.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)

	// GetSubscription fetches the authoritative state of a subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// CancelAtPeriodEnd schedules the subscription to end at the close of the
	// current billing period and returns the updated state.
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error)
}
