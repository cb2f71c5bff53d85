package external

import (
	"context"
	"time"
)

// LLMGateway abstracts the AI provider used to draft post copy. Implementations
// translate between domain requests and the provider's chat completion API.
type LLMGateway interface {
	// GenerateDraft produces post copy for the given request. It blocks until
	// the provider responds or ctx is done.
	GenerateDraft(ctx context.Context, req DraftRequest) (*DraftResult, error)
}

// DraftRequest describes one content generation.
type DraftRequest struct {
	Prompt  string
	Channel string // target social channel, informs tone and length
	Tone    string // optional brand voice hint
}

// DraftResult is the provider's completion plus attribution metadata.
type DraftResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// EmailSender abstracts the transactional email provider (SendGrid).
type EmailSender interface {
	// SendInvite delivers a workspace invitation email. Returns the provider's
	// message ID for correlation.
	SendInvite(ctx context.Context, input InviteEmail) (providerMsgID string, err error)
}

// InviteEmail carries everything needed to render and send one invitation.
type InviteEmail struct {
	To            string
	WorkspaceName string
	Role          string
	AcceptURL     string
	ExpiresAt     time.Time
}

// BillingGateway abstracts checkout flows against the payment provider.
type BillingGateway interface {
	// CreateCheckoutSession generates a hosted checkout URL for upgrading the
	// workspace to the pro plan. workspaceID is set as client_reference_id so
	// the webhook can correlate the completed session back to the workspace.
	CreateCheckoutSession(ctx context.Context, workspaceID, customerEmail string) (checkoutURL string, sessionID string, err error)

	// CreatePortalSession generates a billing portal URL for self-serve
	// subscription management.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (portalURL string, err error)
}

// WebhookVerifier abstracts Stripe webhook signature checking.
type WebhookVerifier interface {
	// Verify validates a webhook payload against the provided signature header
	// and signing secret. Returns nil on success, an error on failure.
	Verify(payload []byte, header string, secret string) error
}

// Stripe event type constants prevent magic strings in webhook handlers.
const (
	EventStripeCheckoutCompleted = "checkout.session.completed"
	EventStripeInvoicePaid       = "invoice.paid"
	EventStripePaymentFailed     = "invoice.payment_failed"
	EventStripeSubUpdated        = "customer.subscription.updated"
	EventStripeSubDeleted        = "customer.subscription.deleted"
)

// ObjectStore abstracts presigned access to the asset bucket. The API never
// proxies file bytes; clients upload and download directly against these URLs.
type ObjectStore interface {
	// PresignUpload returns a time-limited PUT URL for the given object key.
	PresignUpload(ctx context.Context, key, contentType string) (string, error)

	// PresignDownload returns a time-limited GET URL for the given object key.
	PresignDownload(ctx context.Context, key string) (string, error)
}
