package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"postroom/internal/core"
	"postroom/internal/plan"
	"postroom/internal/types"
)

// AdminWorkspaceRepo defines the data access contract for the admin plan and
// limit operations.
type AdminWorkspaceRepo interface {
	GetByID(ctx context.Context, id string) (*types.Workspace, error)
	UpdatePlan(ctx context.Context, id string, tier types.PlanTier, subscriptionEnd *time.Time) error
	UpdateOverrides(ctx context.Context, id string, o types.LimitOverrides) error
}

// SetPlanRequest is the request body for PUT /v1/admin/workspaces/{workspaceID}/plan.
// SubscriptionEnd is ignored for basic; nil on a paid tier grants a
// subscription with no expiry.
type SetPlanRequest struct {
	Tier            string     `json:"tier" validate:"required,plan_tier"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
}

// SetLimitsRequest is the request body for PUT /v1/admin/workspaces/{workspaceID}/limits.
// Absent or null fields clear the corresponding override back to the tier
// default. Zero is a legitimate frozen limit. Negative values are rejected
// here at the write path; the sentinel for "no cap" is the custom tier, not a
// hand-written -1.
type SetLimitsRequest struct {
	MaxMembers      *int64 `json:"max_members"`
	MaxWorkspaces   *int64 `json:"max_workspaces"`
	MaxStorageBytes *int64 `json:"max_storage_bytes"`
	MaxSparksMonth  *int64 `json:"max_sparks_month"`
}

// AdminHandler exposes the support-team operations: granting plans and
// overriding limits on individual workspaces. All routes require an admin
// token.
type AdminHandler struct {
	workspaces   AdminWorkspaceRepo
	catalog      plan.Catalog
	validator    *core.Validator
	logger       *slog.Logger
	requireAdmin func(http.Handler) http.Handler
	now          func() time.Time
}

// NewAdminHandler creates an AdminHandler. requireAdmin is the middleware
// that rejects non-admin actors.
func NewAdminHandler(
	workspaces AdminWorkspaceRepo,
	catalog plan.Catalog,
	v *core.Validator,
	l *slog.Logger,
	requireAdmin func(http.Handler) http.Handler,
) *AdminHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AdminHandler{
		workspaces:   workspaces,
		catalog:      catalog,
		validator:    v,
		logger:       l,
		requireAdmin: requireAdmin,
		now:          time.Now,
	}
}

// RegisterRoutes mounts admin routes on the provided chi.Router.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/workspaces/{workspaceID}", func(r chi.Router) {
		if h.requireAdmin != nil {
			r.Use(h.requireAdmin)
		}
		r.Put("/plan", h.SetPlan)
		r.Put("/limits", h.SetLimits)
	})
}

// SetPlan handles PUT /v1/admin/workspaces/{workspaceID}/plan.
func (h *AdminHandler) SetPlan(w http.ResponseWriter, r *http.Request) {
	var req SetPlanRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	workspaceID := chi.URLParam(r, "workspaceID")
	tier := types.PlanTier(req.Tier)

	// Basic has no subscription to expire.
	end := req.SubscriptionEnd
	if tier == types.PlanBasic {
		end = nil
	}

	if err := h.workspaces.UpdatePlan(r.Context(), workspaceID, tier, end); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "plan updated by admin",
		"workspace_id", workspaceID,
		"tier", req.Tier,
	)
	h.respondWithWorkspace(w, r, workspaceID)
}

// SetLimits handles PUT /v1/admin/workspaces/{workspaceID}/limits.
func (h *AdminHandler) SetLimits(w http.ResponseWriter, r *http.Request) {
	var req SetLimitsRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	overrides := types.LimitOverrides{
		MaxMembers:      req.MaxMembers,
		MaxWorkspaces:   req.MaxWorkspaces,
		MaxStorageBytes: req.MaxStorageBytes,
		MaxSparksMonth:  req.MaxSparksMonth,
	}
	if err := rejectNegativeOverrides(overrides); err != nil {
		core.Error(w, r, err)
		return
	}

	workspaceID := chi.URLParam(r, "workspaceID")
	if err := h.workspaces.UpdateOverrides(r.Context(), workspaceID, overrides); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "limit overrides updated by admin",
		"workspace_id", workspaceID,
	)
	h.respondWithWorkspace(w, r, workspaceID)
}

// rejectNegativeOverrides enforces the write-path rule: overrides are
// non-negative caps. Zero freezes a resource; clearing is done with null.
func rejectNegativeOverrides(o types.LimitOverrides) error {
	fields := map[string]*int64{
		"max_members":       o.MaxMembers,
		"max_workspaces":    o.MaxWorkspaces,
		"max_storage_bytes": o.MaxStorageBytes,
		"max_sparks_month":  o.MaxSparksMonth,
	}
	for name, v := range fields {
		if v != nil && *v < 0 {
			return types.NewAppErrorWithDetails(
				types.ErrCodeValidationNegativeLimit,
				"limit overrides must be non-negative",
				nil,
				map[string]any{"field": name, "value": *v},
			)
		}
	}
	return nil
}

func (h *AdminHandler) respondWithWorkspace(w http.ResponseWriter, r *http.Request, workspaceID string) {
	ws, err := h.workspaces.GetByID(r.Context(), workspaceID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, WorkspaceView{
		Workspace: ws,
		Effective: plan.Resolve(h.catalog, ws, h.now()),
	})
}
