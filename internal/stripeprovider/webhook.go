package stripeprovider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/web3radar/billing-api/internal/domain/discount"
	"github.com/web3radar/billing-api/internal/domain/payment"
	"github.com/web3radar/billing-api/internal/domain/subscription"
	"github.com/web3radar/billing-api/internal/domain/user"
)

const webhookBodyLimit = 1 << 20 // 1MiB

// dedupeCapacity bounds the in-memory set of seen event ids. Stripe retries
// within hours; a thousand ids comfortably covers the redelivery window.
const dedupeCapacity = 1000

// UsageRecorder counts a redeemed discount against its usage limit.
type UsageRecorder interface {
	RecordRedemption(ctx context.Context, code discount.Code, userID string) error
}

// WebhookHandler receives Stripe's asynchronous event notifications and folds
// them into local state. Signature verification is the authentication
// mechanism for this endpoint; unsigned or mis-signed requests are rejected
// before any payload is inspected.
type WebhookHandler struct {
	secret   string
	users    user.Store
	usage    UsageRecorder
	payments payment.Store

	mux  sync.Mutex
	seen map[string]struct{}
	// order tracks insertion so the oldest id is evicted at capacity.
	order []string
}

// NewWebhookHandler creates a handler verifying events against the given
// endpoint secret.
func NewWebhookHandler(secret string, users user.Store, usage UsageRecorder, payments payment.Store) *WebhookHandler {
	return &WebhookHandler{
		secret:   secret,
		users:    users,
		usage:    usage,
		payments: payments,
		seen:     make(map[string]struct{}, dedupeCapacity),
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sig := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	if sig == "" {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		lg.Warn("Webhook signature verification failed", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if h.alreadySeen(event.ID) {
		lg.Debug("Duplicate webhook event", zap.String("event_id", event.ID))
		writeReceived(w, "duplicate")
		return
	}

	if err := h.handleEvent(ctx, &event); err != nil {
		// Forget the id so Stripe's retry gets another attempt.
		h.forget(event.ID)
		lg.Error("Webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	writeReceived(w, "processed")
}

func writeReceived(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true,"status":"` + status + `"}`))
}

func (h *WebhookHandler) alreadySeen(id string) bool {
	h.mux.Lock()
	defer h.mux.Unlock()
	if _, ok := h.seen[id]; ok {
		return true
	}
	if len(h.order) >= dedupeCapacity {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.seen, oldest)
	}
	h.seen[id] = struct{}{}
	h.order = append(h.order, id)
	return false
}

func (h *WebhookHandler) forget(id string) {
	h.mux.Lock()
	defer h.mux.Unlock()
	delete(h.seen, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess wireCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return errors.Wrap(err, "decode checkout session")
		}
		return h.checkoutCompleted(ctx, sess)
	case "customer.subscription.created", "customer.subscription.updated":
		var sub wireSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return errors.Wrap(err, "decode subscription")
		}
		return h.subscriptionChanged(ctx, sub)
	case "customer.subscription.deleted":
		var sub wireSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return errors.Wrap(err, "decode subscription")
		}
		return h.subscriptionDeleted(ctx, sub)
	case "invoice.payment_succeeded":
		var inv wireInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return errors.Wrap(err, "decode invoice")
		}
		return h.invoiceFinished(ctx, inv, payment.StatusSucceeded)
	case "invoice.payment_failed":
		var inv wireInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return errors.Wrap(err, "decode invoice")
		}
		return h.invoiceFinished(ctx, inv, payment.StatusFailed)
	case "customer.subscription.trial_will_end":
		var sub wireSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return errors.Wrap(err, "decode subscription")
		}
		zctx.From(ctx).Info("Trial ending soon",
			zap.String("subscription_id", sub.ID),
			zap.String("customer_id", sub.Customer),
			zap.Int64("trial_end", sub.TrialEnd),
		)
		return nil
	default:
		zctx.From(ctx).Debug("Ignoring webhook event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID),
		)
		return nil
	}
}

// Wire payloads are decoded into local structs rather than the SDK's API
// types: webhook bodies are pinned to the endpoint's API version, which can
// lag the SDK's.
type wireCheckoutSession struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type wireSubscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	TrialStart        int64             `json:"trial_start"`
	TrialEnd          int64             `json:"trial_end"`
	Metadata          map[string]string `json:"metadata"`
}

type wireInvoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	AmountDue    int64  `json:"amount_due"`
	Currency     string `json:"currency"`
	Created      int64  `json:"created"`
}

// checkoutCompleted binds the provider identifiers from a finished checkout
// to the user who started it and counts the discount redemption, if any.
// Both identifier writes are set-once, so a redelivered event cannot
// reassign them.
func (h *WebhookHandler) checkoutCompleted(ctx context.Context, sess wireCheckoutSession) error {
	u, err := h.findUser(ctx, sess.Metadata["userId"], sess.Customer, "")
	if err != nil {
		return err
	}

	if sess.Customer != "" {
		if err := h.users.SetCustomerID(ctx, u.ID, sess.Customer); err != nil {
			return errors.Wrap(err, "set customer id")
		}
	}
	if sess.Subscription != "" {
		if err := h.users.SetSubscriptionID(ctx, u.ID, sess.Subscription); err != nil {
			return errors.Wrap(err, "set subscription id")
		}
	}

	if raw := sess.Metadata["discountCode"]; raw != "" {
		code, err := discount.Normalize(raw)
		if err != nil {
			// Metadata is provider round-tripped from our own checkout call;
			// a malformed code here is logged, not fatal.
			zctx.From(ctx).Warn("Malformed discount code in checkout metadata",
				zap.String("session_id", sess.ID), zap.String("code", raw))
			return nil
		}
		if err := h.usage.RecordRedemption(ctx, code, u.ID); err != nil {
			return errors.Wrap(err, "record discount redemption")
		}
	}
	return nil
}

// subscriptionChanged folds a created or updated subscription into the local
// record. The tier and trial window always follow the provider's view.
func (h *WebhookHandler) subscriptionChanged(ctx context.Context, sub wireSubscription) error {
	u, err := h.findUser(ctx, sub.Metadata["userId"], sub.Customer, sub.ID)
	if err != nil {
		return err
	}

	if err := h.users.SetSubscriptionID(ctx, u.ID, sub.ID); err != nil {
		return errors.Wrap(err, "set subscription id")
	}

	status := subscription.ParseStatus(sub.Status)
	merge := user.SubscriptionMerge{
		Tier:           status.Tier(),
		Status:         string(status),
		TrialStart:     unixTime(sub.TrialStart),
		TrialEnd:       unixTime(sub.TrialEnd),
		SetTrialWindow: true,
	}
	if status.Terminal() {
		merge.ClearSubscriptionID = true
	}
	if err := h.users.MergeSubscription(ctx, u.ID, merge); err != nil {
		return errors.Wrap(err, "merge subscription state")
	}
	return nil
}

// subscriptionDeleted marks the subscription terminally canceled and releases
// the stored id so a future checkout can attach a fresh subscription.
func (h *WebhookHandler) subscriptionDeleted(ctx context.Context, sub wireSubscription) error {
	u, err := h.findUser(ctx, sub.Metadata["userId"], sub.Customer, sub.ID)
	if err != nil {
		return err
	}
	merge := user.SubscriptionMerge{
		Tier:                user.TierFree,
		Status:              string(subscription.StatusCanceled),
		SetTrialWindow:      true,
		ClearSubscriptionID: true,
	}
	if err := h.users.MergeSubscription(ctx, u.ID, merge); err != nil {
		return errors.Wrap(err, "merge subscription state")
	}
	return nil
}

// invoiceFinished records the invoice outcome and nudges the cached status.
// A successful payment confirms active paid access; a failed one degrades the
// status to past_due until the provider reports otherwise.
func (h *WebhookHandler) invoiceFinished(ctx context.Context, inv wireInvoice, st payment.Status) error {
	u, err := h.findUser(ctx, "", inv.Customer, inv.Subscription)
	if err != nil {
		return err
	}

	amountCents := inv.AmountPaid
	if st == payment.StatusFailed {
		amountCents = inv.AmountDue
	}
	occurredAt := time.Now().UTC()
	if inv.Created > 0 {
		occurredAt = time.Unix(inv.Created, 0).UTC()
	}
	if err := h.payments.Record(ctx, payment.Payment{
		UserID:         u.ID,
		InvoiceID:      inv.ID,
		SubscriptionID: inv.Subscription,
		Amount:         decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100)),
		Currency:       strings.ToUpper(inv.Currency),
		Status:         st,
		OccurredAt:     occurredAt,
	}); err != nil {
		return errors.Wrap(err, "record payment")
	}

	merge := user.SubscriptionMerge{
		Tier:   user.TierPro,
		Status: string(subscription.StatusActive),
	}
	if st == payment.StatusFailed {
		// A failed charge revokes paid access immediately; the provider's
		// own retry cycle will report recovery through subsequent events.
		merge.Tier = user.TierFree
		merge.Status = string(subscription.StatusPastDue)
	}
	if err := h.users.MergeSubscription(ctx, u.ID, merge); err != nil {
		return errors.Wrap(err, "merge subscription state")
	}
	return nil
}

// findUser resolves the event's subject, preferring the explicit userId
// metadata our checkout call attached, then the provider identifiers.
func (h *WebhookHandler) findUser(ctx context.Context, userID, customerID, subscriptionID string) (*user.User, error) {
	if userID != "" {
		u, err := h.users.GetByID(ctx, userID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, user.ErrNotFound) {
			return nil, errors.Wrap(err, "load user by id")
		}
	}
	if subscriptionID != "" {
		u, err := h.users.GetBySubscriptionID(ctx, subscriptionID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, user.ErrNotFound) {
			return nil, errors.Wrap(err, "load user by subscription")
		}
	}
	if customerID != "" {
		u, err := h.users.GetByCustomerID(ctx, customerID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, user.ErrNotFound) {
			return nil, errors.Wrap(err, "load user by customer")
		}
	}
	return nil, errors.Wrap(user.ErrNotFound, "resolve webhook subject")
}
