package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/web3radar/billing-api/internal/domain/checkout"
	"github.com/web3radar/billing-api/internal/domain/discount"
	"github.com/web3radar/billing-api/internal/domain/subscription"
	"github.com/web3radar/billing-api/internal/domain/user"
)

// createCheckoutSession starts a provider checkout for the authenticated
// user. A requested discount is evaluated first: rejected codes fail the
// request rather than silently creating an undiscounted session.
func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := principal(ctx)

	var rawCode string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "discountCode":
			v, err := d.Str()
			if err != nil {
				return err
			}
			rawCode = v
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var decision *discount.Decision
	if rawCode != "" {
		d, err := h.evaluator.Evaluate(ctx, rawCode)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to validate discount code")
			return
		}
		if !d.Accepted {
			writeError(w, http.StatusBadRequest, d.Reason.Message())
			return
		}
		decision = &d
	}

	result, err := h.checkout.CreateSession(ctx, p.UserID, decision)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, checkout.ErrAlreadySubscribed):
			writeError(w, http.StatusBadRequest, "You already have an active subscription")
		case errors.Is(err, subscription.ErrProviderUnavailable):
			zctx.From(ctx).Error("Checkout session creation failed", zap.Error(err))
			writeError(w, http.StatusBadGateway, "Payment service is temporarily unavailable, please try again")
		default:
			zctx.From(ctx).Error("Checkout session creation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		}
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.FieldStart("sessionId")
		e.Str(result.SessionID)
		e.FieldStart("redirectUrl")
		e.Str(result.RedirectURL)
		e.FieldStart("scenario")
		e.Str(result.Scenario)
		e.FieldStart("trialDays")
		e.Int(result.TrialDays)
		e.FieldStart("amount")
		e.Float64(result.Amount.InexactFloat64())
		e.FieldStart("currency")
		e.Str(result.Currency)
		e.FieldStart("hasDiscount")
		e.Bool(result.HasDiscount)
	})
}
