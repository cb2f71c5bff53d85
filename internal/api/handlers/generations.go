package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"postroom/internal/core"
	"postroom/internal/external"
	"postroom/internal/types"
)

// GenerationRepo persists generation history.
type GenerationRepo interface {
	Create(ctx context.Context, g *types.Generation) error
	ListByWorkspace(ctx context.Context, workspaceID string, limit int) ([]*types.Generation, error)
}

// SparkGate is the quota admission check consulted before any generation.
type SparkGate interface {
	CheckAllowed(ctx context.Context, workspaceID string) (types.QuotaDecision, error)
}

// SparkLedger records consumption after the generation succeeded.
type SparkLedger interface {
	Increment(ctx context.Context, workspaceID string) (types.UsageSnapshot, error)
}

// GenerateRequest is the request body for POST /v1/workspaces/{workspaceID}/generations.
type GenerateRequest struct {
	Prompt  string `json:"prompt" validate:"required,max=4000"`
	Channel string `json:"channel,omitempty" validate:"omitempty,oneof=instagram tiktok linkedin x"`
	Tone    string `json:"tone,omitempty" validate:"omitempty,max=100"`
}

// GenerateResponse pairs the new generation with the post-write usage figures.
type GenerateResponse struct {
	Generation *types.Generation   `json:"generation"`
	Usage      types.UsageSnapshot `json:"usage"`
}

// GenerationHandler runs the gate -> provider -> ledger pipeline for spark
// generations. The order is deliberate: the gate admits, the provider does the
// metered work, and only a successful result is written to the ledger. A
// failed upstream call costs the account nothing.
type GenerationHandler struct {
	workspaces  WorkspaceGetter
	generations GenerationRepo
	gate        SparkGate
	ledger      SparkLedger
	llm         external.LLMGateway
	validator   *core.Validator
	logger      *slog.Logger
}

// NewGenerationHandler creates a GenerationHandler.
func NewGenerationHandler(
	workspaces WorkspaceGetter,
	generations GenerationRepo,
	gate SparkGate,
	ledger SparkLedger,
	llm external.LLMGateway,
	v *core.Validator,
	l *slog.Logger,
) *GenerationHandler {
	if l == nil {
		l = slog.Default()
	}
	return &GenerationHandler{
		workspaces:  workspaces,
		generations: generations,
		gate:        gate,
		ledger:      ledger,
		llm:         llm,
		validator:   v,
		logger:      l,
	}
}

// RegisterRoutes mounts generation routes on the provided chi.Router.
func (h *GenerationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/generations", func(r chi.Router) {
		r.Post("/", h.Generate)
		r.Get("/", h.List)
	})
}

// Generate handles POST /v1/workspaces/{workspaceID}/generations.
//
//  1. Authorize the workspace.
//  2. Ask the gate whether one more spark is admissible.
//  3. On denial, return 403 with the advisory message; this is a decision,
//     not an internal error.
//  4. Call the provider.
//  5. Persist the generation and record the spark. The ledger write happens
//     only after the provider succeeded.
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	decision, err := h.gate.CheckAllowed(r.Context(), ws.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if !decision.Allowed {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeLimitSparks,
			decision.Message,
			nil,
			map[string]any{
				"current_usage": decision.CurrentUsage,
				"limit":         decision.Limit,
			},
		))
		return
	}

	draft, err := h.llm.GenerateDraft(r.Context(), external.DraftRequest{
		Prompt:  req.Prompt,
		Channel: req.Channel,
		Tone:    req.Tone,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	gen := &types.Generation{
		ID:          "gen_" + uuid.NewString(),
		WorkspaceID: ws.ID,
		Prompt:      req.Prompt,
		Output:      draft.Text,
		Model:       draft.Model,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.generations.Create(r.Context(), gen); err != nil {
		core.Error(w, r, err)
		return
	}

	snapshot, err := h.ledger.Increment(r.Context(), ws.ID)
	if err != nil {
		// The draft exists but the counter write failed; surface the error so
		// the caller knows usage accounting is behind.
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusCreated, GenerateResponse{
		Generation: gen,
		Usage:      snapshot,
	})
}

// List handles GET /v1/workspaces/{workspaceID}/generations.
func (h *GenerationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 200 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidInput,
				"limit must be a number between 1 and 200",
				nil,
			))
			return
		}
		limit = parsed
	}

	items, err := h.generations.ListByWorkspace(r.Context(), ws.ID, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, items)
}
