package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"postroom/internal/types"
)

// GenerationRepository provides data access for the generations history
// table. Quota accounting does not depend on these rows; the ledger lives in
// monthly_usage.
type GenerationRepository struct {
	db DBTX
}

// NewGenerationRepository creates a new GenerationRepository backed by the
// given database connection (pool or transaction).
func NewGenerationRepository(db DBTX) *GenerationRepository {
	return &GenerationRepository{db: db}
}

const generationColumns = `g.id, g.workspace_id, g.prompt, g.output, g.model, g.created_at`

func scanGeneration(row pgx.Row) (*types.Generation, error) {
	var g types.Generation
	err := row.Scan(
		&g.ID,
		&g.WorkspaceID,
		&g.Prompt,
		&g.Output,
		&g.Model,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create records one completed generation.
func (r *GenerationRepository) Create(ctx context.Context, g *types.Generation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO generations (id, workspace_id, prompt, output, model, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())`,
		g.ID,
		g.WorkspaceID,
		g.Prompt,
		g.Output,
		g.Model,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record generation", err)
	}
	return nil
}

// ListByWorkspace returns recent generations for the workspace, newest first,
// capped at limit rows.
func (r *GenerationRepository) ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]*types.Generation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+generationColumns+`
		 FROM generations g
		 WHERE g.workspace_id = $1
		 ORDER BY g.created_at DESC
		 LIMIT $2`,
		workspaceID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list generations", err)
	}
	defer rows.Close()

	var result []*types.Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan generation row", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating generation rows", err)
	}
	return result, nil
}
