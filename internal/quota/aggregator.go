// Package quota implements spark quota enforcement: account-wide ceiling and
// usage aggregation, the admission gate for metered actions, and the monthly
// ledger writer. All reads resolve plan state fresh through internal/plan;
// nothing in this package persists a tier or a limit.
package quota

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"postroom/internal/plan"
	"postroom/internal/types"
)

// WorkspaceStore is the slice of the workspace repository the quota engine
// needs.
type WorkspaceStore interface {
	GetByID(ctx context.Context, id string) (*types.Workspace, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*types.Workspace, error)
}

// UsageStore is the slice of the usage repository the quota engine needs.
type UsageStore interface {
	MonthlyCount(ctx context.Context, workspaceID string, month time.Time) (int64, error)
	IncrementSparks(ctx context.Context, workspaceID string, month time.Time) (int64, error)
}

// Aggregator computes account-wide spark figures. Sparks are pooled at the
// account level: every workspace an account owns draws from one shared
// ceiling, so both the ceiling and the usage are folds over all owned
// workspaces. Both methods are read-only and safe to call repeatedly.
type Aggregator struct {
	workspaces WorkspaceStore
	usage      UsageStore
	catalog    plan.Catalog
	now        func() time.Time
}

// NewAggregator creates an Aggregator. A nil now defaults to time.Now.
func NewAggregator(workspaces WorkspaceStore, usage UsageStore, catalog plan.Catalog, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		workspaces: workspaces,
		usage:      usage,
		catalog:    catalog,
		now:        now,
	}
}

// GlobalCeiling folds the effective spark limit across every workspace the
// account owns and returns the maximum. Unlimited absorbs: one unlimited
// workspace makes the whole account unlimited, and the fold short-circuits as
// soon as it sees one. An account with no workspaces gets the basic tier
// default rather than zero, so a fresh account is never locked out.
func (a *Aggregator) GlobalCeiling(ctx context.Context, accountID string) (int64, error) {
	owned, err := a.workspaces.ListByOwner(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if len(owned) == 0 {
		return a.catalog.DefaultLimits(types.PlanBasic).MaxSparksMonth, nil
	}

	now := a.now()
	ceiling := int64(0)
	for _, ws := range owned {
		limit := plan.Resolve(a.catalog, ws, now).Limits.MaxSparksMonth
		if types.IsUnlimited(limit) {
			return types.Unlimited, nil
		}
		if limit > ceiling {
			ceiling = limit
		}
	}
	return ceiling, nil
}

// GlobalUsage sums the current-month spark counters of every workspace the
// account owns. Workspaces without a ledger row this month contribute zero.
// The per-workspace reads fan out concurrently; any single failure fails the
// whole aggregation.
func (a *Aggregator) GlobalUsage(ctx context.Context, accountID string) (int64, error) {
	owned, err := a.workspaces.ListByOwner(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if len(owned) == 0 {
		return 0, nil
	}

	month := types.MonthKey(a.now())
	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, ws := range owned {
		g.Go(func() error {
			count, err := a.usage.MonthlyCount(gctx, ws.ID, month)
			if err != nil {
				return err
			}
			total.Add(count)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return total.Load(), nil
}
