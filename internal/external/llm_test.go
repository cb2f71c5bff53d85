package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"postroom/internal/types"
)

func newTestLLMClient(t *testing.T, serverURL string) *LLMHTTPClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"test-llm",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond},
		"Postroom-Test/1.0",
		types.ErrCodeUpstreamLLM,
		WithSleepFunc(noopSleep),
	)
	return NewLLMClientWithBase(base, LLMClientConfig{
		APIKey:   "sk-test",
		BaseURL:  serverURL,
		Model:    "gpt-4o-mini",
		MaxWords: 80,
	})
}

func TestGenerateDraft_Success(t *testing.T) {
	var received chatCompletionRequest
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		receivedAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Launch day is here!"}},
			},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 9},
		})
	}))
	defer server.Close()

	client := newTestLLMClient(t, server.URL)

	result, err := client.GenerateDraft(context.Background(), DraftRequest{
		Prompt:  "announce our product launch",
		Channel: "linkedin",
		Tone:    "excited",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if result.Text != "Launch day is here!" {
		t.Errorf("unexpected draft text: %q", result.Text)
	}
	if result.Model != "gpt-4o-mini" {
		t.Errorf("unexpected model: %q", result.Model)
	}
	if result.CompletionTokens != 9 {
		t.Errorf("unexpected completion tokens: %d", result.CompletionTokens)
	}
	if receivedAuth != "Bearer sk-test" {
		t.Errorf("unexpected auth header: %q", receivedAuth)
	}

	if received.Model != "gpt-4o-mini" {
		t.Errorf("unexpected request model: %q", received.Model)
	}
	if len(received.Messages) != 2 || received.Messages[0].Role != "system" {
		t.Fatalf("expected system+user messages, got %+v", received.Messages)
	}
	system := received.Messages[0].Content
	if !strings.Contains(system, "linkedin") || !strings.Contains(system, "80 words") || !strings.Contains(system, "excited") {
		t.Errorf("system prompt missing channel/limit/tone: %q", system)
	}
	if received.Messages[1].Content != "announce our product launch" {
		t.Errorf("unexpected user message: %q", received.Messages[1].Content)
	}
}

func TestGenerateDraft_EmptyPromptRejectedLocally(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be made for an empty prompt")
	}))
	defer server.Close()

	client := newTestLLMClient(t, server.URL)

	_, err := client.GenerateDraft(context.Background(), DraftRequest{Prompt: "   "})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeValidationMissingField {
		t.Errorf("expected validation code, got %s", appErr.Code)
	}
}

func TestGenerateDraft_EmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := newTestLLMClient(t, server.URL)

	_, err := client.GenerateDraft(context.Background(), DraftRequest{Prompt: "hello"})
	if err == nil {
		t.Fatal("expected error for empty completion")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamLLM {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamLLM, appErr.Code)
	}
}

func TestGenerateDraft_ProviderClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer server.Close()

	client := newTestLLMClient(t, server.URL)

	_, err := client.GenerateDraft(context.Background(), DraftRequest{Prompt: "hello"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamLLM {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamLLM, appErr.Code)
	}
}

func TestGenerateDraft_ServerErrorExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestLLMClient(t, server.URL)

	_, err := client.GenerateDraft(context.Background(), DraftRequest{Prompt: "hello"})
	if err == nil {
		t.Fatal("expected error for persistent 500s")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeUpstreamLLM {
		t.Errorf("expected %s, got %s", types.ErrCodeUpstreamLLM, appErr.Code)
	}
}
