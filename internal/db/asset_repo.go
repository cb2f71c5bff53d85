package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"postroom/internal/types"
)

// AssetRepository provides data access for the assets table. The binary
// content lives in object storage; only metadata and review state are here.
type AssetRepository struct {
	db DBTX
}

// NewAssetRepository creates a new AssetRepository backed by the given
// database connection (pool or transaction).
func NewAssetRepository(db DBTX) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetColumns = `a.id, a.workspace_id, a.object_key, a.filename,
	a.size_bytes, a.status, a.review_status, a.created_at`

func scanAsset(row pgx.Row) (*types.Asset, error) {
	var a types.Asset
	err := row.Scan(
		&a.ID,
		&a.WorkspaceID,
		&a.ObjectKey,
		&a.Filename,
		&a.SizeBytes,
		&a.Status,
		&a.ReviewStatus,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new asset record in 'uploading' state with review
// pending. The declared size is recorded up front so the storage limit
// check covers in-flight uploads.
func (r *AssetRepository) Create(ctx context.Context, a *types.Asset) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO assets (id, workspace_id, object_key, filename, size_bytes,
		 status, review_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, 'uploading', 'pending', NOW())`,
		a.ID,
		a.WorkspaceID,
		a.ObjectKey,
		a.Filename,
		a.SizeBytes,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create asset", err)
	}
	return nil
}

// GetByID retrieves an asset scoped to a workspace.
func (r *AssetRepository) GetByID(ctx context.Context, workspaceID, assetID string) (*types.Asset, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+assetColumns+`
		 FROM assets a
		 WHERE a.id = $1 AND a.workspace_id = $2`,
		assetID,
		workspaceID,
	)
	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAsset, "asset not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve asset", err)
	}
	return a, nil
}

// Finalize marks an upload complete, recording the actual stored size.
func (r *AssetRepository) Finalize(ctx context.Context, workspaceID, assetID string, sizeBytes int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE assets
		 SET status = 'ready', size_bytes = $1
		 WHERE id = $2 AND workspace_id = $3 AND status = 'uploading'`,
		sizeBytes,
		assetID,
		workspaceID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finalize asset", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAsset, "asset not found or already finalized", nil)
	}
	return nil
}

// SetReviewStatus records a client review decision.
func (r *AssetRepository) SetReviewStatus(ctx context.Context, workspaceID, assetID string, status types.ReviewStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE assets
		 SET review_status = $1
		 WHERE id = $2 AND workspace_id = $3`,
		status,
		assetID,
		workspaceID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update review status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAsset, "asset not found", nil)
	}
	return nil
}

// ListByWorkspace returns the workspace's assets, newest first.
func (r *AssetRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*types.Asset, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+assetColumns+`
		 FROM assets a
		 WHERE a.workspace_id = $1
		 ORDER BY a.created_at DESC`,
		workspaceID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list assets", err)
	}
	defer rows.Close()

	var result []*types.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan asset row", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating asset rows", err)
	}
	return result, nil
}
