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

// UsageCounters reads the per-workspace consumption figures.
type UsageCounters interface {
	MonthlyCount(ctx context.Context, workspaceID string, month time.Time) (int64, error)
	StorageBytesUsed(ctx context.Context, workspaceID string) (int64, error)
}

// AccountAggregator provides the account-wide pooled spark figures.
type AccountAggregator interface {
	GlobalCeiling(ctx context.Context, accountID string) (int64, error)
	GlobalUsage(ctx context.Context, accountID string) (int64, error)
}

// UsageHandler serves the consumption dashboard view: the workspace's own
// monthly counter and storage footprint next to the pooled account figures it
// is enforced against. Everything here is computed fresh per request.
type UsageHandler struct {
	workspaces WorkspaceGetter
	counters   UsageCounters
	aggregator AccountAggregator
	catalog    plan.Catalog
	logger     *slog.Logger
	now        func() time.Time
}

// NewUsageHandler creates a UsageHandler.
func NewUsageHandler(
	workspaces WorkspaceGetter,
	counters UsageCounters,
	aggregator AccountAggregator,
	catalog plan.Catalog,
	l *slog.Logger,
) *UsageHandler {
	if l == nil {
		l = slog.Default()
	}
	return &UsageHandler{
		workspaces: workspaces,
		counters:   counters,
		aggregator: aggregator,
		catalog:    catalog,
		logger:     l,
		now:        time.Now,
	}
}

// RegisterRoutes mounts the usage route on the provided chi.Router.
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/workspaces/{workspaceID}/usage", h.Get)
}

// Get handles GET /v1/workspaces/{workspaceID}/usage.
func (h *UsageHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.now()
	workspaceSparks, err := h.counters.MonthlyCount(r.Context(), ws.ID, types.MonthKey(now))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	storageBytes, err := h.counters.StorageBytesUsed(r.Context(), ws.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	ceiling, err := h.aggregator.GlobalCeiling(r.Context(), ws.OwnerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	accountSparks, err := h.aggregator.GlobalUsage(r.Context(), ws.OwnerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snapshot := types.UsageSnapshot{
		WorkspaceID:     ws.ID,
		WorkspaceSparks: workspaceSparks,
		AccountSparks:   accountSparks,
		AccountCeiling:  ceiling,
		StorageBytes:    storageBytes,
		Effective:       plan.Resolve(h.catalog, ws, now),
	}
	core.Data(w, r, http.StatusOK, snapshot)
}
