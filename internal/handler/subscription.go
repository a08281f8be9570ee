package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/web3radar/billing-api/internal/domain/subscription"
	"github.com/web3radar/billing-api/internal/domain/user"
)

// subscriptionStatus returns the reconciled subscription state. When the
// provider cannot be reached the last cached state is returned with a
// providerError marker instead of failing the read.
func (h *Handler) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := principal(ctx)

	state, err := h.reconciler.Reconcile(ctx, p.UserID)
	if err != nil && state == nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		zctx.From(ctx).Error("Subscription reconcile failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load subscription status")
		return
	}
	if err != nil {
		zctx.From(ctx).Warn("Returning cached subscription state", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("tier")
		e.Str(string(state.Tier))
		e.FieldStart("status")
		e.Str(string(state.Status))
		e.FieldStart("isActive")
		e.Bool(state.IsActive)
		encodeOptTime(e, "trialStart", state.TrialStart)
		encodeOptTime(e, "trialEnd", state.TrialEnd)
		encodeOptTime(e, "currentPeriodEnd", state.CurrentPeriodEnd)
		e.FieldStart("cancelAtPeriodEnd")
		e.Bool(state.CancelAtPeriodEnd)
		if state.CustomerID != "" {
			e.FieldStart("customerId")
			e.Str(state.CustomerID)
		}
		if state.SubscriptionID != "" {
			e.FieldStart("subscriptionId")
			e.Str(state.SubscriptionID)
		}
		if state.Stale {
			e.FieldStart("providerError")
			e.Bool(true)
		}
	})
}

// cancelSubscription schedules the user's subscription to end with the
// current billing period.
func (h *Handler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := principal(ctx)

	sub, alreadyCancelling, err := h.reconciler.Cancel(ctx, p.UserID)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, subscription.ErrNoSubscription):
			writeError(w, http.StatusNotFound, "No active subscription found")
		case errors.Is(err, subscription.ErrProviderUnavailable):
			zctx.From(ctx).Error("Subscription cancel failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "Payment service is temporarily unavailable, please try again")
		default:
			zctx.From(ctx).Error("Subscription cancel failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to cancel subscription")
		}
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("status")
		e.Str(string(sub.Status))
		encodeOptTime(e, "cancelAt", sub.CurrentPeriodEnd)
		e.FieldStart("alreadyCancelling")
		e.Bool(alreadyCancelling)
	})
}

func encodeOptTime(e *jx.Encoder, field string, t *time.Time) {
	e.FieldStart(field)
	if t == nil {
		e.Null()
		return
	}
	e.Str(t.UTC().Format(time.RFC3339))
}
