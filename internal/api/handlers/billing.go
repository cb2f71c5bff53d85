package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"postroom/internal/core"
	"postroom/internal/external"
)

// CheckoutResponse carries the hosted checkout URL for the dashboard to
// redirect to.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// CheckoutRequest is the request body for POST .../billing/checkout.
type CheckoutRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// BillingHandler starts the pro upgrade flow. The webhook handler completes
// it when Stripe reports the session as paid.
type BillingHandler struct {
	workspaces WorkspaceGetter
	billing    external.BillingGateway
	validator  *core.Validator
	logger     *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(workspaces WorkspaceGetter, billing external.BillingGateway, v *core.Validator, l *slog.Logger) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BillingHandler{
		workspaces: workspaces,
		billing:    billing,
		validator:  v,
		logger:     l,
	}
}

// RegisterRoutes mounts billing routes on the provided chi.Router.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/workspaces/{workspaceID}/billing/checkout", h.Checkout)
}

// Checkout handles POST /v1/workspaces/{workspaceID}/billing/checkout.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	checkoutURL, sessionID, err := h.billing.CreateCheckoutSession(r.Context(), ws.ID, req.Email)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "checkout session started",
		"workspace_id", ws.ID,
		"session_id", sessionID,
	)
	core.Data(w, r, http.StatusOK, CheckoutResponse{
		CheckoutURL: checkoutURL,
		SessionID:   sessionID,
	})
}
