package types

import "time"

// Workspace is the unit of tenancy: a client project owned by one account.
// The stored PlanTier and SubscriptionEnd must always be interpreted through
// the plan resolver before enforcement or display; a lapsed subscription is
// degraded on read and never written back.
type Workspace struct {
	ID      string `json:"id" db:"id"`
	OwnerID string `json:"owner_id" db:"owner_id"`
	Name    string `json:"name" db:"name"`

	// Billing state. PlanTier is the raw stored tier; SubscriptionEnd is nil
	// for basic workspaces and for manually granted permanent subscriptions.
	PlanTier        PlanTier   `json:"-" db:"plan_tier"`
	SubscriptionEnd *time.Time `json:"-" db:"subscription_end_date"`

	// Admin limit overrides; nil fields fall through to tier defaults.
	Overrides LimitOverrides `json:"-" db:"-"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// MonthlyUsage is one row of the spark ledger: the consumption counter for
// one workspace in one calendar month. Rows are only ever created with
// count 1 or incremented; they are never decremented or deleted.
type MonthlyUsage struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	UsageMonth  time.Time `json:"usage_month" db:"usage_month"`
	SparkCount  int64     `json:"spark_count" db:"spark_count"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Member is a person attached to a workspace, either active or holding a
// pending invitation.
type Member struct {
	ID          string       `json:"id" db:"id"`
	WorkspaceID string       `json:"workspace_id" db:"workspace_id"`
	Email       string       `json:"email" db:"email"`
	Role        MemberRole   `json:"role" db:"role"`
	Status      MemberStatus `json:"status" db:"status"`

	InviteTokenHash string     `json:"-" db:"invite_token_hash"`
	InvitedAt       *time.Time `json:"invited_at,omitempty" db:"invited_at"`
	JoinedAt        *time.Time `json:"joined_at,omitempty" db:"joined_at"`
}

// Asset is an uploaded media file going through the client review workflow.
// The file itself lives in object storage under ObjectKey; only metadata is
// persisted here.
type Asset struct {
	ID           string       `json:"id" db:"id"`
	WorkspaceID  string       `json:"workspace_id" db:"workspace_id"`
	ObjectKey    string       `json:"-" db:"object_key"`
	Filename     string       `json:"filename" db:"filename"`
	SizeBytes    int64        `json:"size_bytes" db:"size_bytes"`
	Status       AssetStatus  `json:"status" db:"status"`
	ReviewStatus ReviewStatus `json:"review_status" db:"review_status"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Post is an entry on the scheduling calendar.
type Post struct {
	ID          string     `json:"id" db:"id"`
	WorkspaceID string     `json:"workspace_id" db:"workspace_id"`
	Body        string     `json:"body" db:"body"`
	Channels    []Channel  `json:"channels" db:"channels"`
	Status      PostStatus `json:"status" db:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// AccessToken is a personal access token used for API authentication.
// Only the bcrypt hash of the secret half is stored.
type AccessToken struct {
	ID         string     `json:"id" db:"id"`
	AccountID  string     `json:"account_id" db:"account_id"`
	Name       string     `json:"name" db:"name"`
	TokenHash  string     `json:"-" db:"token_hash"`
	IsAdmin    bool       `json:"is_admin" db:"is_admin"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt  *time.Time `json:"-" db:"revoked_at"`
}

// Generation captures one AI content generation request and its result.
// Persisting these gives the dashboard a history view; the quota ledger is
// tracked separately in monthly_usage.
type Generation struct {
	ID          string    `json:"id" db:"id"`
	WorkspaceID string    `json:"workspace_id" db:"workspace_id"`
	Prompt      string    `json:"prompt" db:"prompt"`
	Output      string    `json:"output" db:"output"`
	Model       string    `json:"model" db:"model"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// MonthKey truncates t to the first instant of its calendar month in UTC.
// This is the canonical key for monthly_usage rows; every reader and writer
// of the ledger must derive the month through this function.
func MonthKey(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
