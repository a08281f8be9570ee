package stripeprovider

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/web3radar/billing-api/internal/domain/discount"
	"github.com/web3radar/billing-api/internal/domain/subscription"
)

func testClient() *Client {
	return &Client{cfg: Config{
		MonthlyPriceCents: 2900,
		Currency:          "usd",
		ProductName:       "Pro subscription",
		SuccessURL:        "https://example.com/success",
		CancelURL:         "https://example.com/cancel",
	}}
}

func missingErr() error {
	return &stripe.Error{Code: stripe.ErrorCodeResourceMissing}
}

func TestEnsureCoupon(t *testing.T) {
	rule := discount.Rule{
		Code:        "PROSPECTINGGOAT12",
		Percentage:  70,
		Duration:    discount.DurationOnce,
		Active:      true,
		Description: "70% off first month",
	}

	t.Run("existing coupon reused", func(t *testing.T) {
		c := testClient()
		c.getCoupon = func(id string, _ *stripe.CouponParams) (*stripe.Coupon, error) {
			return &stripe.Coupon{ID: id}, nil
		}
		c.createCoupon = func(*stripe.CouponParams) (*stripe.Coupon, error) {
			t.Fatal("create must not be called")
			return nil, nil
		}

		id, err := c.EnsureCoupon(context.Background(), rule)
		require.NoError(t, err)
		assert.Equal(t, "discount_prospectinggoat12", id)
	})

	t.Run("missing coupon created", func(t *testing.T) {
		c := testClient()
		c.getCoupon = func(string, *stripe.CouponParams) (*stripe.Coupon, error) {
			return nil, missingErr()
		}
		var created *stripe.CouponParams
		c.createCoupon = func(p *stripe.CouponParams) (*stripe.Coupon, error) {
			created = p
			return &stripe.Coupon{ID: *p.ID}, nil
		}

		id, err := c.EnsureCoupon(context.Background(), rule)
		require.NoError(t, err)
		assert.Equal(t, "discount_prospectinggoat12", id)

		require.NotNil(t, created)
		assert.Equal(t, float64(70), *created.PercentOff)
		assert.Equal(t, "once", *created.Duration)
		assert.Nil(t, created.DurationInMonths)
		assert.Nil(t, created.MaxRedemptions)
	})

	t.Run("repeating rule carries months and cap", func(t *testing.T) {
		c := testClient()
		c.getCoupon = func(string, *stripe.CouponParams) (*stripe.Coupon, error) {
			return nil, missingErr()
		}
		var created *stripe.CouponParams
		c.createCoupon = func(p *stripe.CouponParams) (*stripe.Coupon, error) {
			created = p
			return &stripe.Coupon{ID: *p.ID}, nil
		}

		repeating := discount.Rule{
			Code: "TEAMPLAN30", Percentage: 30,
			Duration: discount.DurationRepeating, DurationMonths: 6,
			MaxUses: 100, Active: true,
		}
		_, err := c.EnsureCoupon(context.Background(), repeating)
		require.NoError(t, err)
		assert.Equal(t, int64(6), *created.DurationInMonths)
		assert.Equal(t, int64(100), *created.MaxRedemptions)
	})

	t.Run("transport failure surfaces as provider unavailable", func(t *testing.T) {
		c := testClient()
		c.getCoupon = func(string, *stripe.CouponParams) (*stripe.Coupon, error) {
			return nil, errors.New("connection reset")
		}

		_, err := c.EnsureCoupon(context.Background(), rule)
		require.ErrorIs(t, err, subscription.ErrProviderUnavailable)
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Run("with coupon", func(t *testing.T) {
		c := testClient()
		var got *stripe.CheckoutSessionParams
		c.createSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			got = p
			return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
		}

		sess, err := c.CreateCheckoutSession(context.Background(), subscription.CheckoutParams{
			CustomerID: "cus_1",
			CouponID:   "discount_prospectinggoat12",
			TrialDays:  7,
			Metadata:   map[string]string{"userId": "u1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "cs_1", sess.ID)
		assert.Equal(t, "https://checkout.example/cs_1", sess.RedirectURL)

		require.NotNil(t, got)
		assert.Equal(t, "subscription", *got.Mode)
		assert.Equal(t, "required", *got.BillingAddressCollection)
		require.Len(t, got.Discounts, 1)
		assert.Equal(t, "discount_prospectinggoat12", *got.Discounts[0].Coupon)
		assert.Nil(t, got.AllowPromotionCodes)
		require.NotNil(t, got.SubscriptionData)
		assert.Equal(t, int64(7), *got.SubscriptionData.TrialPeriodDays)
	})

	t.Run("without coupon allows promotion codes", func(t *testing.T) {
		c := testClient()
		var got *stripe.CheckoutSessionParams
		c.createSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			got = p
			return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
		}

		_, err := c.CreateCheckoutSession(context.Background(), subscription.CheckoutParams{
			CustomerID: "cus_1",
		})
		require.NoError(t, err)
		assert.Empty(t, got.Discounts)
		require.NotNil(t, got.AllowPromotionCodes)
		assert.True(t, *got.AllowPromotionCodes)
		assert.Nil(t, got.SubscriptionData)
	})

	t.Run("inline price when no price id configured", func(t *testing.T) {
		c := testClient()
		var got *stripe.CheckoutSessionParams
		c.createSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			got = p
			return &stripe.CheckoutSession{ID: "cs_1", URL: "https://x"}, nil
		}

		_, err := c.CreateCheckoutSession(context.Background(), subscription.CheckoutParams{CustomerID: "cus_1"})
		require.NoError(t, err)
		require.Len(t, got.LineItems, 1)
		require.NotNil(t, got.LineItems[0].PriceData)
		assert.Equal(t, int64(2900), *got.LineItems[0].PriceData.UnitAmount)
		assert.Equal(t, "month", *got.LineItems[0].PriceData.Recurring.Interval)
	})

	t.Run("dashboard price id wins", func(t *testing.T) {
		c := testClient()
		c.cfg.PriceID = "price_123"
		var got *stripe.CheckoutSessionParams
		c.createSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			got = p
			return &stripe.CheckoutSession{ID: "cs_1", URL: "https://x"}, nil
		}

		_, err := c.CreateCheckoutSession(context.Background(), subscription.CheckoutParams{CustomerID: "cus_1"})
		require.NoError(t, err)
		require.Len(t, got.LineItems, 1)
		assert.Equal(t, "price_123", *got.LineItems[0].Price)
		assert.Nil(t, got.LineItems[0].PriceData)
	})

	t.Run("missing redirect URL is a provider failure", func(t *testing.T) {
		c := testClient()
		c.createSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			return &stripe.CheckoutSession{ID: "cs_1"}, nil
		}

		_, err := c.CreateCheckoutSession(context.Background(), subscription.CheckoutParams{CustomerID: "cus_1"})
		require.ErrorIs(t, err, subscription.ErrProviderUnavailable)
	})
}

func TestGetSubscriptionMapping(t *testing.T) {
	trialEnd := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("active uses item period end", func(t *testing.T) {
		c := testClient()
		c.getSubscription = func(id string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
			return &stripe.Subscription{
				ID:       id,
				Status:   stripe.SubscriptionStatusActive,
				Customer: &stripe.Customer{ID: "cus_1"},
				Items: &stripe.SubscriptionItemList{Data: []*stripe.SubscriptionItem{
					{CurrentPeriodEnd: periodEnd.Unix()},
				}},
			}, nil
		}

		sub, err := c.GetSubscription(context.Background(), "sub_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, "cus_1", sub.CustomerID)
		require.NotNil(t, sub.CurrentPeriodEnd)
		assert.Equal(t, periodEnd, *sub.CurrentPeriodEnd)
	})

	t.Run("trialing uses trial end as period end", func(t *testing.T) {
		c := testClient()
		c.getSubscription = func(id string, _ *stripe.SubscriptionParams) (*stripe.Subscription, error) {
			return &stripe.Subscription{
				ID:       id,
				Status:   stripe.SubscriptionStatusTrialing,
				TrialEnd: trialEnd.Unix(),
			}, nil
		}

		sub, err := c.GetSubscription(context.Background(), "sub_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, sub.Status)
		require.NotNil(t, sub.TrialEnd)
		assert.Equal(t, trialEnd, *sub.TrialEnd)
		require.NotNil(t, sub.CurrentPeriodEnd)
		assert.Equal(t, trialEnd, *sub.CurrentPeriodEnd)
	})

	t.Run("api failure", func(t *testing.T) {
		c := testClient()
		c.getSubscription = func(string, *stripe.SubscriptionParams) (*stripe.Subscription, error) {
			return nil, errors.New("timeout")
		}

		_, err := c.GetSubscription(context.Background(), "sub_1")
		require.ErrorIs(t, err, subscription.ErrProviderUnavailable)
	})
}

func TestCancelAtPeriodEnd(t *testing.T) {
	c := testClient()
	var gotParams *stripe.SubscriptionParams
	c.updateSubscription = func(id string, p *stripe.SubscriptionParams) (*stripe.Subscription, error) {
		gotParams = p
		return &stripe.Subscription{
			ID:                id,
			Status:            stripe.SubscriptionStatusActive,
			CancelAtPeriodEnd: true,
		}, nil
	}

	sub, err := c.CancelAtPeriodEnd(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, gotParams.CancelAtPeriodEnd)
	assert.True(t, *gotParams.CancelAtPeriodEnd)
}

func TestCreateCustomer(t *testing.T) {
	c := testClient()
	var got *stripe.CustomerParams
	c.createCustomer = func(p *stripe.CustomerParams) (*stripe.Customer, error) {
		got = p
		return &stripe.Customer{ID: "cus_1"}, nil
	}

	id, err := c.CreateCustomer(context.Background(), "a@b.c", "Ada L", map[string]string{"userId": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", id)
	assert.Equal(t, "a@b.c", *got.Email)
	assert.Equal(t, "Ada L", *got.Name)
}
