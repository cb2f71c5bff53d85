package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"postroom/internal/types"
)

// Gate is the admission check in front of every spark-consuming action.
// It answers "may this workspace consume one more spark right now" against
// the account-wide pooled ceiling.
//
// The gate never hard-fails a usage check on missing data: a workspace that
// cannot be resolved to an owner is checked against basic defaults with zero
// usage, which always admits. Denial is expressed only through the decision
// value, never as an error.
type Gate struct {
	workspaces WorkspaceStore
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewGate creates a Gate sharing the given aggregator.
func NewGate(workspaces WorkspaceStore, aggregator *Aggregator, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		workspaces: workspaces,
		aggregator: aggregator,
		logger:     logger,
	}
}

// CheckAllowed decides whether the workspace may consume one spark.
// Unlimited ceilings always admit. Otherwise admission requires current
// account-wide usage strictly below the ceiling; a denial carries an
// advisory upgrade message.
func (g *Gate) CheckAllowed(ctx context.Context, workspaceID string) (types.QuotaDecision, error) {
	ws, err := g.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundWorkspace {
			// No owner to pool against: fall back to basic defaults and
			// zero usage instead of blocking the caller.
			g.logger.WarnContext(ctx, "quota check on unresolvable workspace, admitting with basic defaults",
				slog.String("workspace_id", workspaceID))
			return types.QuotaDecision{
				Allowed:      true,
				CurrentUsage: 0,
				Limit:        g.aggregator.catalog.DefaultLimits(types.PlanBasic).MaxSparksMonth,
			}, nil
		}
		return types.QuotaDecision{}, err
	}

	ceiling, err := g.aggregator.GlobalCeiling(ctx, ws.OwnerID)
	if err != nil {
		return types.QuotaDecision{}, err
	}

	if types.IsUnlimited(ceiling) {
		return types.QuotaDecision{
			Allowed: true,
			Limit:   types.Unlimited,
		}, nil
	}

	usage, err := g.aggregator.GlobalUsage(ctx, ws.OwnerID)
	if err != nil {
		return types.QuotaDecision{}, err
	}

	decision := types.QuotaDecision{
		Allowed:      usage < ceiling,
		CurrentUsage: usage,
		Limit:        ceiling,
	}
	if !decision.Allowed {
		decision.Message = fmt.Sprintf(
			"monthly spark limit reached (%d of %d used across your workspaces); upgrade your plan to continue generating",
			usage, ceiling)
	}
	return decision, nil
}
