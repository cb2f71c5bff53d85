package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"postroom/internal/core"
	"postroom/internal/plan"
	"postroom/internal/types"
)

// WorkspaceRepo defines the data access contract for workspace operations.
type WorkspaceRepo interface {
	Create(ctx context.Context, ws *types.Workspace) error
	GetByID(ctx context.Context, id string) (*types.Workspace, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*types.Workspace, error)
	Update(ctx context.Context, ws *types.Workspace) error
	Delete(ctx context.Context, id string) error
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
}

// CreateWorkspaceRequest is the request body for POST /v1/workspaces.
type CreateWorkspaceRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// UpdateWorkspaceRequest is the request body for PATCH /v1/workspaces/{workspaceID}.
type UpdateWorkspaceRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,max=200"`
}

// WorkspaceView is a workspace plus its resolved plan state. The stored tier
// is never shown raw; it always passes through expiry resolution first.
type WorkspaceView struct {
	*types.Workspace
	Effective types.EffectiveLimits `json:"effective"`
}

// WorkspaceHandler manages workspace CRUD.
type WorkspaceHandler struct {
	workspaces WorkspaceRepo
	catalog    plan.Catalog
	validator  *core.Validator
	logger     *slog.Logger
	now        func() time.Time
}

// NewWorkspaceHandler creates a WorkspaceHandler.
func NewWorkspaceHandler(workspaces WorkspaceRepo, catalog plan.Catalog, v *core.Validator, l *slog.Logger) *WorkspaceHandler {
	if l == nil {
		l = slog.Default()
	}
	return &WorkspaceHandler{
		workspaces: workspaces,
		catalog:    catalog,
		validator:  v,
		logger:     l,
		now:        time.Now,
	}
}

// RegisterRoutes mounts workspace routes on the provided chi.Router.
func (h *WorkspaceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/workspaces", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{workspaceID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// Create handles POST /v1/workspaces. The account's workspace-count ceiling
// is the max effective workspace limit across everything it already owns
// (basic defaults for a fresh account).
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateWorkspaceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ceiling, err := h.workspaceCeiling(r.Context(), actor.AccountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !types.IsUnlimited(ceiling) {
		count, err := h.workspaces.CountByOwner(r.Context(), actor.AccountID)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		if count >= ceiling {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeLimitWorkspaces,
				"workspace limit reached for this account",
				nil,
				map[string]any{"current": count, "limit": ceiling},
			))
			return
		}
	}

	now := h.now().UTC()
	ws := &types.Workspace{
		ID:        "ws_" + uuid.NewString(),
		OwnerID:   actor.AccountID,
		Name:      req.Name,
		PlanTier:  types.PlanBasic,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.workspaces.Create(r.Context(), ws); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "workspace created",
		"workspace_id", ws.ID,
		"account_id", actor.AccountID,
	)
	core.Data(w, r, http.StatusCreated, h.view(ws))
}

// List handles GET /v1/workspaces.
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	owned, err := h.workspaces.ListByOwner(r.Context(), actor.AccountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	views := make([]WorkspaceView, 0, len(owned))
	for _, ws := range owned {
		views = append(views, h.view(ws))
	}
	core.Data(w, r, http.StatusOK, views)
}

// Get handles GET /v1/workspaces/{workspaceID}.
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, h.view(ws))
}

// Update handles PATCH /v1/workspaces/{workspaceID}.
func (h *WorkspaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req UpdateWorkspaceRequest
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

	if req.Name != nil {
		ws.Name = *req.Name
	}
	if err := h.workspaces.Update(r.Context(), ws); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, h.view(ws))
}

// Delete handles DELETE /v1/workspaces/{workspaceID}. Soft delete; the
// workspace's ledger rows stay behind for billing history.
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.workspaces.Delete(r.Context(), ws.ID); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "workspace deleted",
		"workspace_id", ws.ID,
		"account_id", actor.AccountID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// workspaceCeiling folds the effective workspace limit across the account's
// workspaces, mirroring how spark ceilings pool. Unlimited absorbs; a fresh
// account gets the basic default.
func (h *WorkspaceHandler) workspaceCeiling(ctx context.Context, accountID string) (int64, error) {
	owned, err := h.workspaces.ListByOwner(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if len(owned) == 0 {
		return h.catalog.DefaultLimits(types.PlanBasic).MaxWorkspaces, nil
	}

	now := h.now()
	ceiling := int64(0)
	for _, ws := range owned {
		limit := plan.Resolve(h.catalog, ws, now).Limits.MaxWorkspaces
		if types.IsUnlimited(limit) {
			return types.Unlimited, nil
		}
		if limit > ceiling {
			ceiling = limit
		}
	}
	return ceiling, nil
}

func (h *WorkspaceHandler) view(ws *types.Workspace) WorkspaceView {
	return WorkspaceView{
		Workspace: ws,
		Effective: plan.Resolve(h.catalog, ws, h.now()),
	}
}
