package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/web3radar/billing-api/internal/domain/discount"
	"github.com/web3radar/billing-api/internal/domain/subscription"
	"github.com/web3radar/billing-api/internal/domain/user"
)

// ErrAlreadySubscribed is returned when checkout is requested for a user who
// already holds an active paid subscription.
var ErrAlreadySubscribed = errors.New("user already has an active subscription")

// Scenario names for the created session, surfaced to the client so it can
// phrase the redirect appropriately.
const (
	ScenarioTrial   = "trial"
	ScenarioPayment = "payment"
)

// Result describes a successfully created checkout session.
type Result struct {
	SessionID   string
	RedirectURL string
	Scenario    string
	TrialDays   int
	Amount      decimal.Decimal
	Currency    string
	HasDiscount bool
}

// Service orchestrates checkout-session creation: it ensures the provider
// customer exists, materializes the coupon for an accepted discount decision,
// and requests the session. It never retries a failed provider call and never
// downgrades a session by dropping a requested discount.
type Service struct {
	users    user.Store
	provider subscription.Provider
	pricing  Pricing
}

// NewService creates a checkout Service.
func NewService(users user.Store, provider subscription.Provider, pricing Pricing) *Service {
	return &Service{users: users, provider: provider, pricing: pricing}
}

// CreateSession builds a checkout session for the user. decision is nil when
// no discount was requested; a rejected decision is a programming error at
// this boundary, callers resolve rejections before orchestration. On any
// provider failure the caller receives the error unchanged: a session is
// never silently created without the requested discount.
func (s *Service) CreateSession(ctx context.Context, userID string, decision *discount.Decision) (*Result, error) {
	if decision != nil && !decision.Accepted {
		return nil, errors.New("cannot create session from a rejected discount decision")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}

	status := subscription.ParseStatus(u.SubscriptionStatus)
	if u.Tier == user.TierPro && status == subscription.StatusActive {
		return nil, ErrAlreadySubscribed
	}

	// The customer-ensure and coupon-ensure calls are independent provider
	// round-trips; run them concurrently. The provider itself serializes any
	// conflicting writes.
	var (
		customerID = u.StripeCustomerID
		couponID   string
	)
	g, gctx := errgroup.WithContext(ctx)

	if customerID == "" {
		g.Go(func() error {
			id, err := s.provider.CreateCustomer(gctx, u.Email, displayName(u), map[string]string{
				"userId": u.ID,
			})
			if err != nil {
				return errors.Wrap(err, "create customer")
			}
			if err := s.users.SetCustomerID(gctx, u.ID, id); err != nil {
				return errors.Wrap(err, "persist customer id")
			}
			customerID = id
			return nil
		})
	}

	if decision != nil {
		g.Go(func() error {
			id, err := s.provider.EnsureCoupon(gctx, decision.Rule)
			if err != nil {
				return errors.Wrap(err, "ensure coupon")
			}
			couponID = id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Set-once: if a concurrent checkout assigned a customer id first, the
	// stored value wins and this session must use it.
	if u.StripeCustomerID == "" {
		fresh, err := s.users.GetByID(ctx, u.ID)
		if err != nil {
			return nil, errors.Wrap(err, "reload user")
		}
		if fresh.StripeCustomerID != "" {
			customerID = fresh.StripeCustomerID
		}
	}

	// Trials attach only to first-time subscribers. A user whose previous
	// subscription ended pays from the first invoice.
	isNew := u.StripeSubscriptionID == "" && status == subscription.StatusNone
	trialDays := 0
	scenario := ScenarioPayment
	if isNew && s.pricing.TrialDays > 0 {
		trialDays = s.pricing.TrialDays
		scenario = ScenarioTrial
	}

	metadata := map[string]string{
		"userId":    u.ID,
		"userEmail": u.Email,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
	}
	if decision != nil {
		// Carried through to the completed-checkout webhook, which records
		// the redemption against the code's usage limit.
		metadata["discountCode"] = string(decision.Code)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, subscription.CheckoutParams{
		CustomerID: customerID,
		CouponID:   couponID,
		TrialDays:  trialDays,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create checkout session")
	}

	amount := s.pricing.FirstCharge(0)
	hasDiscount := decision != nil
	if hasDiscount {
		amount = s.pricing.FirstCharge(decision.Rule.Percentage)
	}

	return &Result{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		Scenario:    scenario,
		TrialDays:   trialDays,
		Amount:      amount,
		Currency:    strings.ToUpper(s.pricing.Currency),
		HasDiscount: hasDiscount,
	}, nil
}

func displayName(u *user.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
