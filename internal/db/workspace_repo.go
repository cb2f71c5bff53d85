package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"postroom/internal/types"
)

// WorkspaceRepository provides data access for the workspaces table.
// It is the only component that reads the raw plan_tier and
// subscription_end_date columns; everything downstream interprets them
// through the plan resolver.
type WorkspaceRepository struct {
	db DBTX
}

// NewWorkspaceRepository creates a new WorkspaceRepository backed by the
// given database connection (pool or transaction).
func NewWorkspaceRepository(db DBTX) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// wsColumns defines the standard set of columns selected for workspace
// queries. Used consistently across all query methods to avoid column drift.
const wsColumns = `w.id, w.owner_id, w.name, w.plan_tier, w.subscription_end_date,
	w.custom_member_limit, w.custom_workspace_limit, w.custom_storage_limit,
	w.custom_spark_limit, w.created_at, w.updated_at, w.deleted_at`

// scanWorkspace scans a single workspace row into a types.Workspace struct.
// The columns must match the order defined in wsColumns.
func scanWorkspace(row pgx.Row) (*types.Workspace, error) {
	var ws types.Workspace
	err := row.Scan(
		&ws.ID,
		&ws.OwnerID,
		&ws.Name,
		&ws.PlanTier,
		&ws.SubscriptionEnd,
		&ws.Overrides.MaxMembers,
		&ws.Overrides.MaxWorkspaces,
		&ws.Overrides.MaxStorageBytes,
		&ws.Overrides.MaxSparksMonth,
		&ws.CreatedAt,
		&ws.UpdatedAt,
		&ws.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// Create inserts a new workspace record. The caller must set the ID
// (prefixed UUID, e.g. "ws_...") and required fields before calling.
// New workspaces start on the basic tier unless the caller says otherwise.
func (r *WorkspaceRepository) Create(ctx context.Context, ws *types.Workspace) error {
	tier := ws.PlanTier
	if tier == "" {
		tier = types.PlanBasic
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO workspaces (id, owner_id, name, plan_tier, subscription_end_date,
		 custom_member_limit, custom_workspace_limit, custom_storage_limit,
		 custom_spark_limit, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()), COALESCE($11, NOW()))`,
		ws.ID,
		ws.OwnerID,
		ws.Name,
		tier,
		ws.SubscriptionEnd,
		ws.Overrides.MaxMembers,
		ws.Overrides.MaxWorkspaces,
		ws.Overrides.MaxStorageBytes,
		ws.Overrides.MaxSparksMonth,
		nilIfZeroTime(ws.CreatedAt),
		nilIfZeroTime(ws.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create workspace", err)
	}
	return nil
}

// GetByID retrieves a workspace by its ID. Excludes soft-deleted workspaces.
// Returns ErrCodeNotFoundWorkspace if no active workspace is found.
func (r *WorkspaceRepository) GetByID(ctx context.Context, id string) (*types.Workspace, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+wsColumns+`
		 FROM workspaces w
		 WHERE w.id = $1 AND w.deleted_at IS NULL`,
		id,
	)

	ws, err := scanWorkspace(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundWorkspace, "workspace not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve workspace", err)
	}
	return ws, nil
}

// ListByOwner returns every active workspace owned by the given account,
// oldest first. An account with no workspaces yields an empty slice, not an
// error; usage checks must never hard-fail on a missing owner.
func (r *WorkspaceRepository) ListByOwner(ctx context.Context, ownerID string) ([]*types.Workspace, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+wsColumns+`
		 FROM workspaces w
		 WHERE w.owner_id = $1 AND w.deleted_at IS NULL
		 ORDER BY w.created_at ASC`,
		ownerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list workspaces", err)
	}
	defer rows.Close()

	var result []*types.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan workspace row", err)
		}
		result = append(result, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating workspace rows", err)
	}
	return result, nil
}

// Update applies changes to a workspace's mutable profile fields (name).
// Billing fields are written only through UpdatePlan and UpdateOverrides.
func (r *WorkspaceRepository) Update(ctx context.Context, ws *types.Workspace) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE workspaces
		 SET name = $1, updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`,
		ws.Name,
		ws.ID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update workspace", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundWorkspace, "workspace not found", nil)
	}
	return nil
}

// UpdatePlan writes the stored tier and subscription end date. Used by the
// admin console and by the payment webhook after a verified checkout.
// A nil subscriptionEnd stores NULL, which the resolver reads as a
// permanent grant.
func (r *WorkspaceRepository) UpdatePlan(ctx context.Context, id string, tier types.PlanTier, subscriptionEnd *time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE workspaces
		 SET plan_tier = $1,
		     subscription_end_date = $2,
		     updated_at = NOW()
		 WHERE id = $3 AND deleted_at IS NULL`,
		tier,
		subscriptionEnd,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update workspace plan", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundWorkspace, "workspace not found", nil)
	}
	return nil
}

// UpdateOverrides replaces all four override columns at once. Callers pass
// the full override set; nil fields clear the corresponding column back to
// "use tier default". Validation of the values (no negatives) is the admin
// handler's responsibility.
func (r *WorkspaceRepository) UpdateOverrides(ctx context.Context, id string, o types.LimitOverrides) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE workspaces
		 SET custom_member_limit = $1,
		     custom_workspace_limit = $2,
		     custom_storage_limit = $3,
		     custom_spark_limit = $4,
		     updated_at = NOW()
		 WHERE id = $5 AND deleted_at IS NULL`,
		o.MaxMembers,
		o.MaxWorkspaces,
		o.MaxStorageBytes,
		o.MaxSparksMonth,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update workspace overrides", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundWorkspace, "workspace not found", nil)
	}
	return nil
}

// CountByOwner returns the number of active workspaces owned by the account.
// Used for workspace-count limit checks at creation time.
func (r *WorkspaceRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM workspaces
		 WHERE owner_id = $1 AND deleted_at IS NULL`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count workspaces", err)
	}
	return count, nil
}

// Delete performs a soft delete by setting deleted_at = NOW().
// Usage rows for the workspace are intentionally left in place; the ledger
// is additive and never cleaned up automatically.
func (r *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE workspaces SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete workspace", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundWorkspace, "workspace not found or already deleted", nil)
	}
	return nil
}
