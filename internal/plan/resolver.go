package plan

import (
	"time"

	"postroom/internal/types"
)

// ResolveTier decides which tier is actually in force for a workspace given
// its stored tier and subscription end date. It is a pure function of its
// inputs and must be re-evaluated on every read: a lapsed subscription is
// degraded here and ONLY here -- nothing ever writes the degraded tier back
// to storage, so any code path that bypasses this function sees a stale tier.
//
// Rules:
//   - basic has no expiry concept and is returned unchanged.
//   - pro/custom with a nil subscriptionEnd are permanent grants and are
//     returned unchanged.
//   - pro/custom with subscriptionEnd in the past degrade to basic.
//   - an unrecognized stored tier resolves to basic.
func ResolveTier(stored types.PlanTier, subscriptionEnd *time.Time, now time.Time) types.PlanTier {
	if !stored.Valid() {
		return types.PlanBasic
	}
	if stored == types.PlanBasic {
		return types.PlanBasic
	}
	if subscriptionEnd != nil && subscriptionEnd.Before(now) {
		return types.PlanBasic
	}
	return stored
}

// Resolve returns the workspace's effective tier and merged limits in one
// step. This is the only accessor the rest of the codebase should use to
// read a workspace's billing state; the raw stored tier stays inside this
// package's callers.
func Resolve(catalog Catalog, ws *types.Workspace, now time.Time) types.EffectiveLimits {
	tier := ResolveTier(ws.PlanTier, ws.SubscriptionEnd, now)
	return types.EffectiveLimits{
		Tier:   tier,
		Limits: EffectiveLimits(catalog, tier, ws.Overrides),
	}
}
