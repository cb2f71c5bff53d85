package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"postroom/internal/types"
)

// llmAPIBase is the default chat completion API base URL.
// Overridable via LLMClientConfig.BaseURL for tests and alternate providers.
const llmAPIBase = "https://api.openai.com"

// defaultMaxWords caps draft length when the config leaves it unset.
const defaultMaxWords = 120

// LLMClientConfig holds the configuration for creating an LLMHTTPClient.
type LLMClientConfig struct {
	APIKey   string
	BaseURL  string // Override for testing; defaults to llmAPIBase
	Model    string
	MaxWords int
	Logger   *slog.Logger
}

// chatCompletionRequest is the provider's chat completion request body.
type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the subset of the provider response we consume.
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// LLMHTTPClient implements LLMGateway by calling an OpenAI-compatible chat
// completion API through BaseClient, so every generation request goes through
// the platform's resilience infrastructure (circuit breaker, retries, error
// mapping) and is testable with httptest.
type LLMHTTPClient struct {
	base     *BaseClient
	apiKey   string
	baseURL  string
	model    string
	maxWords int
	logger   *slog.Logger
}

// NewLLMClient creates a new LLMHTTPClient. The httpClient timeout should be
// generous; completions routinely take tens of seconds.
func NewLLMClient(httpClient *http.Client, cfg LLMClientConfig) *LLMHTTPClient {
	base := NewBaseClient(
		httpClient,
		"llm",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    1 * time.Second,
			MaxWait:    10 * time.Second,
		},
		"Postroom/1.0",
		types.ErrCodeUpstreamLLM,
	)
	return NewLLMClientWithBase(base, cfg)
}

// NewLLMClientWithBase creates an LLMHTTPClient with a pre-configured
// BaseClient. Useful in tests to control retry behavior.
func NewLLMClientWithBase(base *BaseClient, cfg LLMClientConfig) *LLMHTTPClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = llmAPIBase
	}

	maxWords := cfg.MaxWords
	if maxWords <= 0 {
		maxWords = defaultMaxWords
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LLMHTTPClient{
		base:     base,
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		model:    cfg.Model,
		maxWords: maxWords,
		logger:   logger,
	}
}

// GenerateDraft POSTs a chat completion request and returns the first choice.
func (c *LLMHTTPClient) GenerateDraft(ctx context.Context, draftReq DraftRequest) (*DraftResult, error) {
	if strings.TrimSpace(draftReq.Prompt) == "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"prompt is required for content generation",
			nil,
		)
	}

	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemPrompt(draftReq)},
			{Role: "user", Content: draftReq.Prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize completion request",
			err,
		)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create completion request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.InfoContext(ctx, "requesting content draft",
		"model", c.model,
		"channel", draftReq.Channel,
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError("GenerateDraft", err)
	}
	defer resp.Body.Close()

	// BaseClient returns 4xx responses (other than 429) as-is without error.
	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "GenerateDraft")
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode completion response",
			err,
		)
	}

	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamLLM,
			"provider returned an empty completion",
			nil,
		)
	}

	result := &DraftResult{
		Text:             completion.Choices[0].Message.Content,
		Model:            completion.Model,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}
	if result.Model == "" {
		result.Model = c.model
	}

	c.logger.InfoContext(ctx, "content draft generated",
		"model", result.Model,
		"completion_tokens", result.CompletionTokens,
	)

	return result, nil
}

// systemPrompt builds the instruction message from the draft request.
func (c *LLMHTTPClient) systemPrompt(req DraftRequest) string {
	var b strings.Builder
	b.WriteString("You are a social media copywriter. Write a single post draft")
	if req.Channel != "" {
		fmt.Fprintf(&b, " for %s", req.Channel)
	}
	fmt.Fprintf(&b, " of at most %d words.", c.maxWords)
	if req.Tone != "" {
		fmt.Fprintf(&b, " Use a %s tone.", req.Tone)
	}
	b.WriteString(" Return only the post text, no commentary.")
	return b.String()
}

// handleErrorResponse reads and logs the error body from a non-2xx response.
func (c *LLMHTTPClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Error("LLM API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return types.NewAppError(
			types.ErrCodeUpstreamLLM,
			"LLM provider authentication failed (401)",
			fmt.Errorf("%s returned 401: %s", operation, bodyStr),
		)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return types.NewAppError(
			types.ErrCodeUpstreamLLM,
			fmt.Sprintf("LLM provider rejected the request (%d)", resp.StatusCode),
			fmt.Errorf("%s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamLLM,
			fmt.Sprintf("LLM provider server error (%d)", resp.StatusCode),
			fmt.Errorf("%s returned %d: %s", operation, resp.StatusCode, bodyStr),
		)
	}
}

// wrapError converts errors from BaseClient.Do, preserving AppError codes.
func (c *LLMHTTPClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("%s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamLLM,
		fmt.Sprintf("%s failed", operation),
		err,
	)
}

// Compile-time interface compliance check.
var _ LLMGateway = (*LLMHTTPClient)(nil)
