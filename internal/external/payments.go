package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"postroom/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey  string
	ProPriceID string
	SuccessURL string
	CancelURL  string
	BaseURL    string // Override for testing; defaults to stripeAPIBase
	Logger     *slog.Logger
}

// StripeClient implements BillingGateway by making direct HTTP calls to the
// Stripe REST API through BaseClient. Form-encoded requests keep us off the
// stripe-go client while still sharing its API version and webhook
// verification helpers.
type StripeClient struct {
	base       *BaseClient
	secretKey  string
	proPriceID string
	successURL string
	cancelURL  string
	baseURL    string
	logger     *slog.Logger
}

// NewStripeClient creates a new StripeClient. The httpClient timeout should be
// around 20 seconds; checkout session creation is synchronous on Stripe's side.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig) *StripeClient {
	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Postroom/1.0",
		types.ErrCodeUpstreamStripe,
	)
	return NewStripeClientWithBase(base, cfg)
}

// NewStripeClientWithBase creates a StripeClient with a pre-configured
// BaseClient. Useful in tests to control retry behavior.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:       base,
		secretKey:  cfg.SecretKey,
		proPriceID: cfg.ProPriceID,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

// stripeCheckoutSession is the subset of the checkout session response we use.
type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// stripePortalSession is the billing portal session response.
type stripePortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckoutSession generates a Stripe Checkout URL for upgrading the
// workspace to the pro plan. The workspace ID rides along as
// client_reference_id and metadata so the completed-session webhook can
// correlate the payment back to the workspace.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, workspaceID, customerEmail string) (string, string, error) {
	params := url.Values{}
	params.Set("mode", "subscription")
	params.Set("client_reference_id", workspaceID)
	params.Set("customer_email", customerEmail)
	params.Set("success_url", s.successURL)
	params.Set("cancel_url", s.cancelURL)
	params.Set("metadata[workspace_id]", workspaceID)
	params.Set("line_items[0][price]", s.proPriceID)
	params.Set("line_items[0][quantity]", "1")

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return "", "", s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe checkout session response",
			err,
		)
	}

	s.logger.InfoContext(ctx, "checkout session created",
		"workspace_id", workspaceID,
		"session_id", session.ID,
	)
	return session.URL, session.ID, nil
}

// CreatePortalSession generates a Stripe Billing Portal URL.
func (s *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("return_url", returnURL)

	resp, err := s.doPost(ctx, "/v1/billing_portal/sessions", params)
	if err != nil {
		return "", s.wrapStripeError("CreatePortalSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreatePortalSession")
	}

	var session stripePortalSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe portal session response",
			err,
		)
	}

	return session.URL, nil
}

// doPost performs an authenticated POST to the Stripe API with a
// form-encoded body.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)

	return s.base.Do(req)
}

// stripeErrorResponse is the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// handleErrorResponse reads a Stripe error response and maps it to an AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	s.logger.Error("Stripe API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"stripe_code", stripeErr.Error.Code,
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimit,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message),
			nil,
		)
	}
}

// wrapStripeError wraps a BaseClient transport error with context.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	// BaseClient errors (breaker open, retries exhausted) already carry the
	// right code.
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed", operation),
		err,
	)
}

// StripeVerifier implements WebhookVerifier using stripe-go's webhook
// signature verification: HMAC-SHA256 with timestamp tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the signature header and
// signing secret.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}

// CheckoutSessionCompleted is the webhook payload slice the billing handler
// consumes from a checkout.session.completed event.
type CheckoutSessionCompleted struct {
	ID                string            `json:"id"`
	ClientReferenceID string            `json:"client_reference_id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	Metadata          map[string]string `json:"metadata"`
}

// SubscriptionEvent is the payload slice consumed from
// customer.subscription.updated and .deleted events.
type SubscriptionEvent struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

// PeriodEnd converts the epoch period end to UTC time; zero if unset.
func (e SubscriptionEvent) PeriodEnd() time.Time {
	if e.CurrentPeriodEnd == 0 {
		return time.Time{}
	}
	return time.Unix(e.CurrentPeriodEnd, 0).UTC()
}

// Compile-time interface compliance checks.
var (
	_ BillingGateway  = (*StripeClient)(nil)
	_ WebhookVerifier = (*StripeVerifier)(nil)
)
