package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postroom/internal/core"
	"postroom/internal/external"
	"postroom/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockGenerationRepo struct {
	createFn func(ctx context.Context, g *types.Generation) error
	listFn   func(ctx context.Context, workspaceID string, limit int) ([]*types.Generation, error)

	lastCreated *types.Generation
}

func (m *mockGenerationRepo) Create(ctx context.Context, g *types.Generation) error {
	m.lastCreated = g
	if m.createFn != nil {
		return m.createFn(ctx, g)
	}
	return nil
}

func (m *mockGenerationRepo) ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]*types.Generation, error) {
	if m.listFn != nil {
		return m.listFn(ctx, workspaceID, limit)
	}
	return nil, nil
}

type mockSparkGate struct {
	checkFn func(ctx context.Context, workspaceID string) (types.QuotaDecision, error)
}

func (m *mockSparkGate) CheckAllowed(ctx context.Context, workspaceID string) (types.QuotaDecision, error) {
	if m.checkFn != nil {
		return m.checkFn(ctx, workspaceID)
	}
	return types.QuotaDecision{Allowed: true, CurrentUsage: 3, Limit: 30}, nil
}

type mockSparkLedger struct {
	incrementFn func(ctx context.Context, workspaceID string) (types.UsageSnapshot, error)

	incrementCalls []string
}

func (m *mockSparkLedger) Increment(ctx context.Context, workspaceID string) (types.UsageSnapshot, error) {
	m.incrementCalls = append(m.incrementCalls, workspaceID)
	if m.incrementFn != nil {
		return m.incrementFn(ctx, workspaceID)
	}
	return types.UsageSnapshot{WorkspaceID: workspaceID, WorkspaceSparks: 4, AccountSparks: 4, AccountCeiling: 30}, nil
}

type mockLLMGateway struct {
	generateFn func(ctx context.Context, req external.DraftRequest) (*external.DraftResult, error)

	calls []external.DraftRequest
}

func (m *mockLLMGateway) GenerateDraft(ctx context.Context, req external.DraftRequest) (*external.DraftResult, error) {
	m.calls = append(m.calls, req)
	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return &external.DraftResult{Text: "Fresh coffee, fresh starts.", Model: "gpt-4o-mini"}, nil
}

func newTestGenerationHandler() (*GenerationHandler, *mockGenerationRepo, *mockSparkGate, *mockSparkLedger, *mockLLMGateway) {
	repo := &mockGenerationRepo{}
	gate := &mockSparkGate{}
	ledger := &mockSparkLedger{}
	llm := &mockLLMGateway{}

	h := NewGenerationHandler(
		&mockWorkspaceGetter{},
		repo,
		gate,
		ledger,
		llm,
		core.NewValidator(),
		nil,
	)
	return h, repo, gate, ledger, llm
}

// =============================================================================
// Generate Tests
// =============================================================================

func TestGenerationHandler_Generate_Success(t *testing.T) {
	h, repo, _, ledger, llm := newTestGenerationHandler()

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/generations",
		GenerateRequest{Prompt: "caption for a latte photo", Channel: "instagram"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	require.Len(t, llm.calls, 1)
	assert.Equal(t, "caption for a latte photo", llm.calls[0].Prompt)
	assert.Equal(t, "instagram", llm.calls[0].Channel)

	require.NotNil(t, repo.lastCreated)
	assert.Equal(t, "ws_1", repo.lastCreated.WorkspaceID)
	assert.Equal(t, "Fresh coffee, fresh starts.", repo.lastCreated.Output)
	assert.Equal(t, "gpt-4o-mini", repo.lastCreated.Model)

	assert.Equal(t, []string{"ws_1"}, ledger.incrementCalls)

	var resp GenerateResponse
	decodeData(t, rr, &resp)
	assert.Equal(t, int64(4), resp.Usage.WorkspaceSparks)
}

func TestGenerationHandler_Generate_QuotaDenied(t *testing.T) {
	h, repo, gate, ledger, llm := newTestGenerationHandler()
	gate.checkFn = func(ctx context.Context, workspaceID string) (types.QuotaDecision, error) {
		return types.QuotaDecision{
			Allowed:      false,
			CurrentUsage: 30,
			Limit:        30,
			Message:      "monthly spark limit reached (30/30); upgrade to pro for more",
		}, nil
	}

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/generations",
		GenerateRequest{Prompt: "another caption"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, string(types.ErrCodeLimitSparks), decodeErrorCode(t, rr))

	// Denial must stop the pipeline cold: no provider call, no persisted
	// generation, no ledger write.
	assert.Empty(t, llm.calls)
	assert.Nil(t, repo.lastCreated)
	assert.Empty(t, ledger.incrementCalls)
}

func TestGenerationHandler_Generate_ProviderFailureCostsNothing(t *testing.T) {
	h, repo, _, ledger, llm := newTestGenerationHandler()
	llm.generateFn = func(ctx context.Context, req external.DraftRequest) (*external.DraftResult, error) {
		return nil, types.NewAppError(types.ErrCodeUpstreamLLM, "upstream unavailable", nil)
	}

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/generations",
		GenerateRequest{Prompt: "caption"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, string(types.ErrCodeUpstreamLLM), decodeErrorCode(t, rr))
	assert.Nil(t, repo.lastCreated)
	assert.Empty(t, ledger.incrementCalls)
}

func TestGenerationHandler_Generate_LedgerFailureSurfaces(t *testing.T) {
	h, repo, _, ledger, _ := newTestGenerationHandler()
	ledger.incrementFn = func(ctx context.Context, workspaceID string) (types.UsageSnapshot, error) {
		return types.UsageSnapshot{}, errors.New("connection reset")
	}

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/generations",
		GenerateRequest{Prompt: "caption"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotNil(t, repo.lastCreated, "draft is persisted before the ledger write")
}

func TestGenerationHandler_Generate_GateErrorIsInternal(t *testing.T) {
	h, _, gate, _, llm := newTestGenerationHandler()
	gate.checkFn = func(ctx context.Context, workspaceID string) (types.QuotaDecision, error) {
		return types.QuotaDecision{}, errors.New("db down")
	}

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/generations",
		GenerateRequest{Prompt: "caption"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, llm.calls)
}

func TestGenerationHandler_Generate_EmptyPrompt(t *testing.T) {
	h, _, _, _, llm := newTestGenerationHandler()

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/generations", GenerateRequest{})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, llm.calls)
}

// =============================================================================
// List Tests
// =============================================================================

func TestGenerationHandler_List_PassesLimit(t *testing.T) {
	h, repo, _, _, _ := newTestGenerationHandler()
	var gotLimit int
	repo.listFn = func(ctx context.Context, workspaceID string, limit int) ([]*types.Generation, error) {
		gotLimit = limit
		return []*types.Generation{}, nil
	}

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodGet, "/workspaces/ws_1/generations?limit=25", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 25, gotLimit)
}

func TestGenerationHandler_List_RejectsBadLimit(t *testing.T) {
	h, _, _, _, _ := newTestGenerationHandler()

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodGet, "/workspaces/ws_1/generations?limit=0", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
