package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"postroom/internal/types"
)

func int64Ptr(v int64) *int64 { return &v }

func TestEffectiveLimits_NoOverrides(t *testing.T) {
	cat := NewStaticCatalog()

	limits := EffectiveLimits(cat, types.PlanPro, types.LimitOverrides{})
	assert.Equal(t, cat.DefaultLimits(types.PlanPro), limits)
}

func TestEffectiveLimits_OverridePrecedence(t *testing.T) {
	// Every combination of present/absent across the four fields. An
	// override must win whenever present, including zero; absent fields
	// keep the tier default.
	cat := NewStaticCatalog()
	defaults := cat.DefaultLimits(types.PlanBasic)

	overrideVals := [4]int64{7, 2, 123456, 0}

	for mask := 0; mask < 16; mask++ {
		var o types.LimitOverrides
		if mask&1 != 0 {
			o.MaxMembers = int64Ptr(overrideVals[0])
		}
		if mask&2 != 0 {
			o.MaxWorkspaces = int64Ptr(overrideVals[1])
		}
		if mask&4 != 0 {
			o.MaxStorageBytes = int64Ptr(overrideVals[2])
		}
		if mask&8 != 0 {
			o.MaxSparksMonth = int64Ptr(overrideVals[3])
		}

		got := EffectiveLimits(cat, types.PlanBasic, o)

		want := defaults
		if o.MaxMembers != nil {
			want.MaxMembers = overrideVals[0]
		}
		if o.MaxWorkspaces != nil {
			want.MaxWorkspaces = overrideVals[1]
		}
		if o.MaxStorageBytes != nil {
			want.MaxStorageBytes = overrideVals[2]
		}
		if o.MaxSparksMonth != nil {
			want.MaxSparksMonth = overrideVals[3]
		}

		assert.Equalf(t, want, got, "mask %04b", mask)
	}
}

func TestEffectiveLimits_ZeroOverrideFreezesResource(t *testing.T) {
	cat := NewStaticCatalog()

	limits := EffectiveLimits(cat, types.PlanPro, types.LimitOverrides{
		MaxSparksMonth: int64Ptr(0),
	})

	assert.Equal(t, int64(0), limits.MaxSparksMonth)
	assert.False(t, types.IsUnlimited(limits.MaxSparksMonth))
}

func TestEffectiveLimits_UnlimitedOverride(t *testing.T) {
	cat := NewStaticCatalog()

	limits := EffectiveLimits(cat, types.PlanBasic, types.LimitOverrides{
		MaxStorageBytes: int64Ptr(types.Unlimited),
	})

	assert.True(t, types.IsUnlimited(limits.MaxStorageBytes))
	assert.Equal(t, int64(3), limits.MaxMembers)
}

func TestEffectiveLimits_CustomTierStaysUnlimitedWithoutOverrides(t *testing.T) {
	cat := NewStaticCatalog()

	limits := EffectiveLimits(cat, types.PlanCustom, types.LimitOverrides{})
	assert.True(t, types.IsUnlimited(limits.MaxSparksMonth))

	// A finite override on a custom workspace caps that one resource.
	limits = EffectiveLimits(cat, types.PlanCustom, types.LimitOverrides{
		MaxSparksMonth: int64Ptr(1000),
	})
	assert.Equal(t, int64(1000), limits.MaxSparksMonth)
	assert.True(t, types.IsUnlimited(limits.MaxMembers))
}
