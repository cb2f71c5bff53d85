package quota

import (
	"context"
	"log/slog"

	"postroom/internal/plan"
	"postroom/internal/types"
)

// Ledger records spark consumption in the monthly_usage table. One call is
// one spark. The write is a single atomic upsert, so concurrent increments
// against the same (workspace, month) row serialize in the database and no
// update is ever lost. Counters only go up; there is no decrement path.
type Ledger struct {
	workspaces WorkspaceStore
	usage      UsageStore
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewLedger creates a Ledger sharing the given aggregator.
func NewLedger(workspaces WorkspaceStore, usage UsageStore, aggregator *Aggregator, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		workspaces: workspaces,
		usage:      usage,
		aggregator: aggregator,
		logger:     logger,
	}
}

// Increment records one spark against the workspace's current-month counter
// and returns a snapshot with the account-wide figures re-aggregated after
// the write. Callers invoke this only after the gate admitted the action and
// the metered work succeeded; a generation that failed upstream costs
// nothing.
func (l *Ledger) Increment(ctx context.Context, workspaceID string) (types.UsageSnapshot, error) {
	month := types.MonthKey(l.aggregator.now())

	newCount, err := l.usage.IncrementSparks(ctx, workspaceID, month)
	if err != nil {
		return types.UsageSnapshot{}, err
	}

	snapshot := types.UsageSnapshot{
		WorkspaceID:     workspaceID,
		WorkspaceSparks: newCount,
	}

	ws, err := l.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		// The spark is already recorded; the snapshot enrichment is
		// best-effort on top of that.
		l.logger.WarnContext(ctx, "spark recorded but workspace lookup failed, returning partial snapshot",
			slog.String("workspace_id", workspaceID), slog.Any("error", err))
		return snapshot, nil
	}
	snapshot.Effective = plan.Resolve(l.aggregator.catalog, ws, l.aggregator.now())

	ceiling, err := l.aggregator.GlobalCeiling(ctx, ws.OwnerID)
	if err != nil {
		return types.UsageSnapshot{}, err
	}
	usage, err := l.aggregator.GlobalUsage(ctx, ws.OwnerID)
	if err != nil {
		return types.UsageSnapshot{}, err
	}
	snapshot.AccountCeiling = ceiling
	snapshot.AccountSparks = usage

	l.logger.InfoContext(ctx, "spark recorded",
		slog.String("workspace_id", workspaceID),
		slog.Int64("workspace_sparks", newCount),
		slog.Int64("account_sparks", usage),
		slog.Int64("account_ceiling", ceiling))
	return snapshot, nil
}
