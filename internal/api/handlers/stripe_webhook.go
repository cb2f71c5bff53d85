// The Stripe webhook handler is NOT behind auth middleware; it is called
// directly by Stripe. Security comes from verifying the Stripe-Signature
// header against the webhook signing secret.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"postroom/internal/core"
	"postroom/internal/external"
	"postroom/internal/types"
)

// maxWebhookBodySize caps Stripe webhook payloads (64 KB). They are small;
// the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// PlanUpdater writes billing state onto the workspace. Subscription expiry is
// stored as-is; enforcement happens at read time through the plan resolver.
type PlanUpdater interface {
	UpdatePlan(ctx context.Context, id string, tier types.PlanTier, subscriptionEnd *time.Time) error
}

// stripeWebhookEvent is the outer Stripe event envelope.
type stripeWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// StripeWebhookHandler synchronizes Stripe subscription state into workspace
// plan columns.
type StripeWebhookHandler struct {
	verifier   external.WebhookVerifier
	workspaces PlanUpdater
	secret     string
	logger     *slog.Logger
	now        func() time.Time
}

// NewStripeWebhookHandler creates a StripeWebhookHandler.
func NewStripeWebhookHandler(verifier external.WebhookVerifier, workspaces PlanUpdater, secret string, l *slog.Logger) *StripeWebhookHandler {
	if l == nil {
		l = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:   verifier,
		workspaces: workspaces,
		secret:     secret,
		logger:     l,
		now:        time.Now,
	}
}

// RegisterRoutes mounts the webhook endpoint. Kept separate from the
// authenticated billing routes; this path is on the auth middleware's public
// list.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle processes incoming Stripe webhook events. Internal processing
// failures are logged but still acknowledged with 200, per Stripe's retry
// semantics; only unverifiable requests are rejected.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidInput,
			"failed to read webhook body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if sigHeader == "" {
		h.logger.WarnContext(r.Context(), "missing Stripe-Signature header")
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"missing Stripe-Signature header",
			nil,
		))
		return
	}
	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidInput,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
	}

	w.WriteHeader(http.StatusOK)
}

// routeEvent dispatches by event type. Unhandled types are acknowledged
// silently.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *stripeWebhookEvent) error {
	switch event.Type {
	case external.EventStripeCheckoutCompleted:
		return h.handleCheckoutCompleted(ctx, event)
	case external.EventStripeSubUpdated, external.EventStripeSubDeleted:
		return h.handleSubscriptionChanged(ctx, event)
	default:
		h.logger.DebugContext(ctx, "ignoring unhandled stripe event type",
			"event_type", event.Type,
		)
		return nil
	}
}

// handleCheckoutCompleted upgrades the workspace to pro. The subscription has
// no stored expiry yet; subsequent subscription.updated events set the period
// end.
func (h *StripeWebhookHandler) handleCheckoutCompleted(ctx context.Context, event *stripeWebhookEvent) error {
	var session external.CheckoutSessionCompleted
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return fmt.Errorf("decoding checkout session: %w", err)
	}

	workspaceID := session.ClientReferenceID
	if workspaceID == "" {
		workspaceID = session.Metadata["workspace_id"]
	}
	if workspaceID == "" {
		return fmt.Errorf("checkout session %s has no workspace reference", session.ID)
	}

	if err := h.workspaces.UpdatePlan(ctx, workspaceID, types.PlanPro, nil); err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "workspace upgraded to pro",
		"workspace_id", workspaceID,
		"session_id", session.ID,
	)
	return nil
}

// handleSubscriptionChanged records the subscription's current period end.
// The tier stays pro in storage even when the subscription lapses or is
// deleted; the plan resolver degrades lapsed workspaces on read, so there is
// no downgrade write here.
func (h *StripeWebhookHandler) handleSubscriptionChanged(ctx context.Context, event *stripeWebhookEvent) error {
	var sub external.SubscriptionEvent
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return fmt.Errorf("decoding subscription event: %w", err)
	}

	workspaceID := sub.Metadata["workspace_id"]
	if workspaceID == "" {
		return fmt.Errorf("subscription %s has no workspace metadata", sub.ID)
	}

	var end *time.Time
	if periodEnd := sub.PeriodEnd(); !periodEnd.IsZero() {
		end = &periodEnd
	} else if event.Type == external.EventStripeSubDeleted {
		now := h.now().UTC()
		end = &now
	}

	if err := h.workspaces.UpdatePlan(ctx, workspaceID, types.PlanPro, end); err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "workspace subscription state updated",
		"workspace_id", workspaceID,
		"subscription_id", sub.ID,
		"status", sub.Status,
	)
	return nil
}
