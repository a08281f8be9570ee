// Package stripeprovider implements the payment-provider port on top of the
// Stripe billing API, along with the webhook endpoint that folds Stripe's
// asynchronous notifications into the local user store.
package stripeprovider

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	stripecoupon "github.com/stripe/stripe-go/v82/coupon"
	stripecustomer "github.com/stripe/stripe-go/v82/customer"
	stripesub "github.com/stripe/stripe-go/v82/subscription"

	"github.com/web3radar/billing-api/internal/domain/discount"
	"github.com/web3radar/billing-api/internal/domain/subscription"
)

// Config holds the Stripe account credentials and the subscription plan the
// checkout flow sells.
type Config struct {
	APIKey string

	// PriceID references a price created in the Stripe dashboard. When empty,
	// the plan is priced inline from the fields below.
	PriceID            string
	ProductName        string
	ProductDescription string
	MonthlyPriceCents  int64
	Currency           string

	SuccessURL string
	CancelURL  string
}

var _ subscription.Provider = (*Client)(nil)

// Client talks to the Stripe API. The raw API calls are injectable so tests
// can exercise the mapping logic without network access.
type Client struct {
	cfg Config

	createCustomer     func(params *stripe.CustomerParams) (*stripe.Customer, error)
	getCoupon          func(id string, params *stripe.CouponParams) (*stripe.Coupon, error)
	createCoupon       func(params *stripe.CouponParams) (*stripe.Coupon, error)
	createSession      func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSubscription    func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	updateSubscription func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

// NewClient creates a Client bound to the real Stripe API.
func NewClient(cfg Config) *Client {
	stripe.Key = strings.TrimSpace(cfg.APIKey)
	return &Client{
		cfg:                cfg,
		createCustomer:     stripecustomer.New,
		getCoupon:          stripecoupon.Get,
		createCoupon:       stripecoupon.New,
		createSession:      stripesession.New,
		getSubscription:    stripesub.Get,
		updateSubscription: stripesub.Update,
	}
}

// providerErr marks a Stripe API failure as the transient
// ErrProviderUnavailable the rest of the service keys on. The underlying
// cause is preserved in the message only; callers branch on the sentinel.
func providerErr(op string, err error) error {
	return errors.Wrapf(subscription.ErrProviderUnavailable, "%s: %v", op, err)
}

// CreateCustomer registers a new Stripe customer.
func (c *Client) CreateCustomer(_ context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	cust, err := c.createCustomer(params)
	if err != nil {
		return "", providerErr("create customer", err)
	}
	return cust.ID, nil
}

// EnsureCoupon retrieves the coupon derived from the rule's code, creating it
// on first use. The coupon id is deterministic, so concurrent callers and
// repeated checkouts converge on the same Stripe object.
func (c *Client) EnsureCoupon(_ context.Context, rule discount.Rule) (string, error) {
	id := rule.Code.CouponID()

	if _, err := c.getCoupon(id, nil); err == nil {
		return id, nil
	} else if !isResourceMissing(err) {
		return "", providerErr("retrieve coupon", err)
	}

	params := &stripe.CouponParams{
		ID:         stripe.String(id),
		PercentOff: stripe.Float64(float64(rule.Percentage)),
		Duration:   stripe.String(string(rule.Duration)),
		Name:       stripe.String(rule.Description),
	}
	if rule.Duration == discount.DurationRepeating {
		params.DurationInMonths = stripe.Int64(int64(rule.DurationMonths))
	}
	if rule.MaxUses > 0 {
		params.MaxRedemptions = stripe.Int64(int64(rule.MaxUses))
	}

	created, err := c.createCoupon(params)
	if err != nil {
		return "", providerErr("create coupon", err)
	}
	return created.ID, nil
}

// CreateCheckoutSession opens a subscription-mode checkout session. When a
// coupon is attached, manual promotion-code entry stays disabled; otherwise
// the session allows Stripe-managed promotion codes, matching the behavior
// of the web checkout this API fronts.
func (c *Client) CreateCheckoutSession(_ context.Context, p subscription.CheckoutParams) (*subscription.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:                     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:               stripe.String(c.cfg.SuccessURL),
		CancelURL:                stripe.String(c.cfg.CancelURL),
		Customer:                 stripe.String(p.CustomerID),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		LineItems:                []*stripe.CheckoutSessionLineItemParams{c.lineItem()},
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.TrialDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(int64(p.TrialDays)),
		}
	}
	if p.CouponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(p.CouponID)},
		}
	} else {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	sess, err := c.createSession(params)
	if err != nil {
		return nil, providerErr("create checkout session", err)
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return nil, providerErr("create checkout session", errors.New("empty redirect URL"))
	}

	return &subscription.Session{
		ID:          sess.ID,
		RedirectURL: strings.TrimSpace(sess.URL),
	}, nil
}

func (c *Client) lineItem() *stripe.CheckoutSessionLineItemParams {
	if c.cfg.PriceID != "" {
		return &stripe.CheckoutSessionLineItemParams{
			Price:    stripe.String(c.cfg.PriceID),
			Quantity: stripe.Int64(1),
		}
	}
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(c.cfg.Currency),
			UnitAmount: stripe.Int64(c.cfg.MonthlyPriceCents),
			Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
				Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
			},
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name:        stripe.String(c.cfg.ProductName),
				Description: stripe.String(c.cfg.ProductDescription),
			},
		},
	}
}

// GetSubscription fetches the authoritative subscription state.
func (c *Client) GetSubscription(_ context.Context, subscriptionID string) (*subscription.Subscription, error) {
	sub, err := c.getSubscription(subscriptionID, nil)
	if err != nil {
		return nil, providerErr("get subscription", err)
	}
	return mapSubscription(sub), nil
}

// CancelAtPeriodEnd schedules the subscription to end with the current
// billing period. The subscription is never deleted immediately; the user
// keeps access through the period they paid for.
func (c *Client) CancelAtPeriodEnd(_ context.Context, subscriptionID string) (*subscription.Subscription, error) {
	sub, err := c.updateSubscription(subscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, providerErr("cancel subscription", err)
	}
	return mapSubscription(sub), nil
}

func mapSubscription(sub *stripe.Subscription) *subscription.Subscription {
	out := &subscription.Subscription{
		ID:                sub.ID,
		Status:            subscription.ParseStatus(string(sub.Status)),
		TrialStart:        unixTime(sub.TrialStart),
		TrialEnd:          unixTime(sub.TrialEnd),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}

	// Billing periods live on the subscription items; use the latest end.
	// For trialing subscriptions the trial end is the effective period end.
	var periodEnd int64
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.CurrentPeriodEnd > periodEnd {
				periodEnd = item.CurrentPeriodEnd
			}
		}
	}
	if out.Status == subscription.StatusTrialing && sub.TrialEnd > 0 {
		periodEnd = sub.TrialEnd
	}
	out.CurrentPeriodEnd = unixTime(periodEnd)

	return out
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

// isResourceMissing reports whether err is Stripe's "no such object" error,
// as opposed to a transport or auth failure.
func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}
