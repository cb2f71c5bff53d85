package plan

import "postroom/internal/types"

// EffectiveLimits merges a resolved tier's catalog defaults with the
// workspace's admin overrides. For each of the four resource fields a
// non-nil override replaces the tier default; a nil override leaves it
// alone. An override of 0 is honored as a frozen resource, and an override
// of types.Unlimited lifts the cap entirely.
//
// Write-side validation (rejecting negative overrides) happens in the admin
// handler; by the time values reach this merger they are taken at face value.
func EffectiveLimits(catalog Catalog, tier types.PlanTier, overrides types.LimitOverrides) types.PlanLimits {
	limits := catalog.DefaultLimits(tier)

	if overrides.MaxMembers != nil {
		limits.MaxMembers = *overrides.MaxMembers
	}
	if overrides.MaxWorkspaces != nil {
		limits.MaxWorkspaces = *overrides.MaxWorkspaces
	}
	if overrides.MaxStorageBytes != nil {
		limits.MaxStorageBytes = *overrides.MaxStorageBytes
	}
	if overrides.MaxSparksMonth != nil {
		limits.MaxSparksMonth = *overrides.MaxSparksMonth
	}

	return limits
}
