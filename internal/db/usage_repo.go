package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"postroom/internal/types"
)

// UsageRepository provides data access for the monthly_usage spark ledger.
// One row exists per (workspace, month) pair; rows are only ever created
// with count 1 or incremented.
type UsageRepository struct {
	db DBTX
}

// NewUsageRepository creates a new UsageRepository backed by the given
// database connection (pool or transaction).
func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// MonthlyCount returns the spark counter for the given workspace and month
// key. A missing row reads as zero consumption, not an error.
func (r *UsageRepository) MonthlyCount(ctx context.Context, workspaceID string, month time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT spark_count
		 FROM monthly_usage
		 WHERE workspace_id = $1 AND usage_month = $2`,
		workspaceID,
		month,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to read monthly usage", err)
	}
	return count, nil
}

// IncrementSparks records one unit of consumption against the workspace's
// counter for the given month and returns the new per-workspace value.
//
// The write is a single atomic upsert: INSERT ... ON CONFLICT DO UPDATE with
// an increment expression, so concurrent increments against the same
// (workspace, month) row cannot lose updates. The counter never decreases.
func (r *UsageRepository) IncrementSparks(ctx context.Context, workspaceID string, month time.Time) (int64, error) {
	var newCount int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO monthly_usage (workspace_id, usage_month, spark_count, updated_at)
		 VALUES ($1, $2, 1, NOW())
		 ON CONFLICT (workspace_id, usage_month)
		 DO UPDATE SET spark_count = monthly_usage.spark_count + 1,
		               updated_at = NOW()
		 RETURNING spark_count`,
		workspaceID,
		month,
	).Scan(&newCount)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to increment spark usage", err)
	}
	return newCount, nil
}

// StorageBytesUsed sums the size of all finalized assets in the workspace.
// This is a full scan at call time, not a maintained running total.
func (r *UsageRepository) StorageBytesUsed(ctx context.Context, workspaceID string) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(size_bytes), 0)
		 FROM assets
		 WHERE workspace_id = $1 AND status = 'ready'`,
		workspaceID,
	).Scan(&total)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to sum asset storage", err)
	}
	return total, nil
}
