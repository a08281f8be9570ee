// Package handler exposes the billing API over HTTP. Endpoints decode their
// requests, delegate to the domain services, and map domain outcomes onto the
// wire shapes; no business logic lives here.
package handler

import (
	"net/http"

	"github.com/web3radar/billing-api/internal/domain/auth"
	"github.com/web3radar/billing-api/internal/domain/checkout"
	"github.com/web3radar/billing-api/internal/domain/discount"
	"github.com/web3radar/billing-api/internal/domain/subscription"
)

// Handler holds the domain services behind the HTTP surface.
type Handler struct {
	evaluator  *discount.Evaluator
	checkout   *checkout.Service
	reconciler *subscription.Reconciler
	verifier   auth.Verifier

	webhook http.Handler
}

// NewHandler constructs a Handler with the required domain dependencies.
// webhook is mounted as-is; it authenticates by signature, not bearer token.
func NewHandler(
	evaluator *discount.Evaluator,
	checkoutSvc *checkout.Service,
	reconciler *subscription.Reconciler,
	verifier auth.Verifier,
	webhook http.Handler,
) *Handler {
	return &Handler{
		evaluator:  evaluator,
		checkout:   checkoutSvc,
		reconciler: reconciler,
		verifier:   verifier,
		webhook:    webhook,
	}
}

// Routes mounts every endpoint on a fresh mux. Authenticated routes reject
// missing or invalid credentials before the endpoint body runs.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /validate-discount-code", h.authenticated(h.validateDiscountCode))
	mux.Handle("POST /create-checkout-session", h.authenticated(h.createCheckoutSession))
	mux.Handle("GET /subscription-status", h.authenticated(h.subscriptionStatus))
	mux.Handle("POST /cancel-subscription", h.authenticated(h.cancelSubscription))
	mux.Handle("POST /stripe-webhook", h.webhook)
	return mux
}
