// Package plan owns the tier catalog and the read-time rules that turn a
// workspace's stored billing state into enforceable limits: subscription
// expiry resolution and override merging.
package plan

import "postroom/internal/types"

// Catalog defines the authoritative default limits for each tier.
// This is the single source of truth for what each plan allows.
type Catalog interface {
	// DefaultLimits returns the resource limits for the given plan tier.
	// Unknown tiers return the basic limits to fail safely.
	DefaultLimits(tier types.PlanTier) types.PlanLimits
}

// staticCatalog is a compile-time catalog backed by an in-memory map.
// It implements Catalog and is the standard implementation for production use.
type staticCatalog struct {
	limits map[types.PlanTier]types.PlanLimits
}

// tierDefaults defines the hardcoded plan limits.
//
//	| Plan   | Members   | Workspaces | Storage   | Sparks/Month |
//	|--------|-----------|------------|-----------|--------------|
//	| Basic  | 3         | 1          | 1 GiB     | 30           |
//	| Pro    | 10        | 5          | 50 GiB    | 500          |
//	| Custom | unlimited | unlimited  | unlimited | unlimited    |
//
// Custom uses the types.Unlimited sentinel on every field; enforcement must
// never compare it as a finite number.
var tierDefaults = map[types.PlanTier]types.PlanLimits{
	types.PlanBasic: {
		MaxMembers:      3,
		MaxWorkspaces:   1,
		MaxStorageBytes: 1 << 30,
		MaxSparksMonth:  30,
	},
	types.PlanPro: {
		MaxMembers:      10,
		MaxWorkspaces:   5,
		MaxStorageBytes: 50 << 30,
		MaxSparksMonth:  500,
	},
	types.PlanCustom: {
		MaxMembers:      types.Unlimited,
		MaxWorkspaces:   types.Unlimited,
		MaxStorageBytes: types.Unlimited,
		MaxSparksMonth:  types.Unlimited,
	},
}

// basicLimits is cached to avoid map lookups on the fallback path.
var basicLimits = tierDefaults[types.PlanBasic]

// NewStaticCatalog returns a Catalog backed by the hardcoded tier limits.
// No database or external service is required.
func NewStaticCatalog() Catalog {
	// Copy the defaults into a new map so callers cannot mutate the
	// package-level variable.
	m := make(map[types.PlanTier]types.PlanLimits, len(tierDefaults))
	for k, v := range tierDefaults {
		m[k] = v
	}
	return &staticCatalog{limits: m}
}

// DefaultLimits returns the resource limits for the given plan tier.
// If the tier is unknown, it returns the basic tier limits as a safe default.
func (c *staticCatalog) DefaultLimits(tier types.PlanTier) types.PlanLimits {
	if limits, ok := c.limits[tier]; ok {
		return limits
	}
	return basicLimits
}
