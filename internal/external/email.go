package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"postroom/internal/types"
)

// sendGridAPIBase is the default SendGrid API base URL.
// Overridable in tests via SendGridClientConfig.BaseURL.
const sendGridAPIBase = "https://api.sendgrid.com"

// SendGridClientConfig holds the configuration for creating a SendGridClient.
type SendGridClientConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
	BaseURL     string // Override for testing; defaults to sendGridAPIBase
	Logger      *slog.Logger
}

// SendGridClient implements EmailSender against the SendGrid v3 mail/send API
// through BaseClient.
type SendGridClient struct {
	base        *BaseClient
	apiKey      string
	fromAddress string
	fromName    string
	baseURL     string
	logger      *slog.Logger
}

// NewSendGridClient creates a new SendGridClient.
func NewSendGridClient(httpClient *http.Client, cfg SendGridClientConfig) *SendGridClient {
	base := NewBaseClient(
		httpClient,
		"sendgrid",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Postroom/1.0",
		types.ErrCodeUpstreamEmail,
	)
	return NewSendGridClientWithBase(base, cfg)
}

// NewSendGridClientWithBase creates a SendGridClient with a pre-configured
// BaseClient. Useful in tests to control retry behavior.
func NewSendGridClientWithBase(base *BaseClient, cfg SendGridClientConfig) *SendGridClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendGridAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SendGridClient{
		base:        base,
		apiKey:      cfg.APIKey,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		logger:      logger,
	}
}

// sendGridRequest is the SendGrid v3 mail/send payload.
type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// SendInvite delivers a workspace invitation email via POST /v3/mail/send.
// SendGrid responds 202 with the message ID in the X-Message-Id header.
func (c *SendGridClient) SendInvite(ctx context.Context, input InviteEmail) (string, error) {
	if input.To == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"recipient address is required",
			nil,
		)
	}

	subject := fmt.Sprintf("You're invited to %s on Postroom", input.WorkspaceName)
	payload := sendGridRequest{
		Personalizations: []sendGridPersonalization{
			{To: []sendGridAddress{{Email: input.To}}},
		},
		From:    sendGridAddress{Email: c.fromAddress, Name: c.fromName},
		Subject: subject,
		Content: []sendGridContent{
			{Type: "text/plain", Value: inviteTextBody(input)},
			{Type: "text/html", Value: inviteHTMLBody(input)},
		},
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize invite email",
			err,
		)
	}

	url := c.baseURL + "/v3/mail/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create mail/send request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.base.Do(req)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return "", err
		}
		return "", types.NewAppError(types.ErrCodeUpstreamEmail, "mail/send request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", c.handleErrorResponse(resp)
	}

	msgID := resp.Header.Get("X-Message-Id")
	c.logger.InfoContext(ctx, "invite email accepted",
		"workspace", input.WorkspaceName,
		"message_id", msgID,
	)
	return msgID, nil
}

// handleErrorResponse maps a non-202 SendGrid response to an AppError.
func (c *SendGridClient) handleErrorResponse(resp *http.Response) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("SendGrid API error",
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return types.NewAppError(
			types.ErrCodeUpstreamEmail,
			fmt.Sprintf("SendGrid authentication failed (%d)", resp.StatusCode),
			fmt.Errorf("mail/send returned %d: %s", resp.StatusCode, bodyStr),
		)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return types.NewAppError(
			types.ErrCodeUpstreamEmail,
			fmt.Sprintf("SendGrid rejected the message (%d)", resp.StatusCode),
			fmt.Errorf("mail/send returned %d: %s", resp.StatusCode, bodyStr),
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamEmail,
			fmt.Sprintf("SendGrid server error (%d)", resp.StatusCode),
			fmt.Errorf("mail/send returned %d: %s", resp.StatusCode, bodyStr),
		)
	}
}

func inviteTextBody(input InviteEmail) string {
	return fmt.Sprintf(
		"You've been invited to join the workspace %q as a %s.\n\nAccept the invitation: %s\n\nThis invitation expires on %s.\n",
		input.WorkspaceName,
		input.Role,
		input.AcceptURL,
		input.ExpiresAt.Format("January 2, 2006"),
	)
}

func inviteHTMLBody(input InviteEmail) string {
	return fmt.Sprintf(
		`<p>You've been invited to join the workspace <strong>%s</strong> as a %s.</p><p><a href="%s">Accept the invitation</a></p><p>This invitation expires on %s.</p>`,
		html.EscapeString(input.WorkspaceName),
		html.EscapeString(input.Role),
		html.EscapeString(input.AcceptURL),
		input.ExpiresAt.Format("January 2, 2006"),
	)
}

// Compile-time interface compliance check.
var _ EmailSender = (*SendGridClient)(nil)
