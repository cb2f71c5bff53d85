package types

// PlanTier identifies the billing plan stored on a workspace.
//
// The stored tier is never exposed directly outside the plan package:
// any tier a caller sees has already been through subscription-expiry
// resolution (a lapsed pro/custom subscription reads as basic).
type PlanTier string

const (
	PlanBasic  PlanTier = "basic"
	PlanPro    PlanTier = "pro"
	PlanCustom PlanTier = "custom"
)

// Valid reports whether the tier is one of the recognized plan tiers.
// Anything else is treated as basic by the resolver.
func (t PlanTier) Valid() bool {
	switch t {
	case PlanBasic, PlanPro, PlanCustom:
		return true
	}
	return false
}

// ResourceType identifies a metered resource.
type ResourceType string

const (
	ResourceMembers    ResourceType = "members"
	ResourceWorkspaces ResourceType = "workspaces"
	ResourceStorage    ResourceType = "storage_bytes"
	ResourceSparks     ResourceType = "sparks"
)

// MemberRole defines authorization levels within a workspace.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleEditor MemberRole = "editor"
	RoleClient MemberRole = "client"
)

// MemberStatus represents the lifecycle state of a workspace member.
type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusInvited MemberStatus = "invited"
)

// AssetStatus tracks the upload lifecycle of an asset.
type AssetStatus string

const (
	AssetStatusUploading AssetStatus = "uploading"
	AssetStatusReady     AssetStatus = "ready"
)

// ReviewStatus tracks the client review workflow for an asset.
type ReviewStatus string

const (
	ReviewPending          ReviewStatus = "pending"
	ReviewApproved         ReviewStatus = "approved"
	ReviewChangesRequested ReviewStatus = "changes_requested"
)

// PostStatus tracks a scheduled post through the calendar workflow.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
)

// Channel identifies a social network a post targets.
type Channel string

const (
	ChannelInstagram Channel = "instagram"
	ChannelTikTok    Channel = "tiktok"
	ChannelLinkedIn  Channel = "linkedin"
	ChannelX         Channel = "x"
)
