package types

// Unlimited is the sentinel ceiling for resources without a cap. It is a
// distinguished value, never a finite limit, so enforcement code can tell
// "no cap" apart from both a real limit and an unset override (nil).
//
// An admin override of 0 is a legitimate "frozen" limit and is NOT the same
// as Unlimited or unset.
const Unlimited int64 = -1

// IsUnlimited reports whether the given limit value is the unlimited sentinel.
func IsUnlimited(limit int64) bool {
	return limit == Unlimited
}

// PlanLimits holds the per-resource ceilings for one plan tier, or the
// effective (merged) ceilings for one workspace. Each field is either a
// non-negative cap or Unlimited.
type PlanLimits struct {
	MaxMembers      int64 `json:"max_members"`
	MaxWorkspaces   int64 `json:"max_workspaces"`
	MaxStorageBytes int64 `json:"max_storage_bytes"`
	MaxSparksMonth  int64 `json:"max_sparks_month"`
}

// LimitOverrides carries the per-workspace admin overrides for the four
// metered resources. A nil field means "use the tier default"; a non-nil
// field (including 0) replaces it. The admin write path rejects negatives,
// but the merger does not re-validate: it defines meaning, not write policy.
type LimitOverrides struct {
	MaxMembers      *int64 `json:"max_members,omitempty" db:"custom_member_limit"`
	MaxWorkspaces   *int64 `json:"max_workspaces,omitempty" db:"custom_workspace_limit"`
	MaxStorageBytes *int64 `json:"max_storage_bytes,omitempty" db:"custom_storage_limit"`
	MaxSparksMonth  *int64 `json:"max_sparks_month,omitempty" db:"custom_spark_limit"`
}

// Empty reports whether no override field is set.
func (o LimitOverrides) Empty() bool {
	return o.MaxMembers == nil && o.MaxWorkspaces == nil &&
		o.MaxStorageBytes == nil && o.MaxSparksMonth == nil
}

// EffectiveLimits is the derived, non-persisted view of one workspace's
// ceilings: the tier that survived subscription-expiry resolution plus the
// merged per-resource limits. Computed fresh on every read; never stored.
type EffectiveLimits struct {
	Tier   PlanTier   `json:"tier"`
	Limits PlanLimits `json:"limits"`
}

// QuotaDecision is the result of a spark quota gate check. Denial is
// communicated exclusively through Allowed=false and the advisory Message;
// there is no "quota exceeded" error type anywhere in the engine.
type QuotaDecision struct {
	Allowed      bool   `json:"allowed"`
	CurrentUsage int64  `json:"current_usage"`
	Limit        int64  `json:"limit"`
	Message      string `json:"message,omitempty"`
}

// UsageSnapshot combines a single workspace's monthly counter with the
// account-wide pooled figures it is enforced against.
type UsageSnapshot struct {
	WorkspaceID     string     `json:"workspace_id"`
	WorkspaceSparks int64      `json:"workspace_sparks"`
	AccountSparks   int64      `json:"account_sparks"`
	AccountCeiling  int64      `json:"account_ceiling"`
	StorageBytes    int64      `json:"storage_bytes"`
	Effective       EffectiveLimits `json:"effective"`
}
