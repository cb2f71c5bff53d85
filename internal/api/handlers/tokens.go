package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"postroom/internal/core"
	"postroom/internal/types"
)

// TokenMinter creates new personal access tokens.
type TokenMinter interface {
	Mint(ctx context.Context, accountID, name string, isAdmin bool) (*types.AccessToken, string, error)
}

// TokenRepo is the token persistence slice the handler needs beyond minting.
type TokenRepo interface {
	ListByAccount(ctx context.Context, accountID string) ([]*types.AccessToken, error)
	Revoke(ctx context.Context, accountID, id string) error
}

// CreateTokenRequest is the request body for POST /v1/tokens.
type CreateTokenRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	IsAdmin bool   `json:"is_admin,omitempty"`
}

// CreateTokenResponse carries the one-time plaintext token alongside the
// stored record. The plaintext cannot be recovered later.
type CreateTokenResponse struct {
	Token     *types.AccessToken `json:"token"`
	Plaintext string             `json:"plaintext"`
}

// TokenHandler manages personal access tokens for the authenticated account.
type TokenHandler struct {
	minter    TokenMinter
	tokens    TokenRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewTokenHandler creates a TokenHandler.
func NewTokenHandler(minter TokenMinter, tokens TokenRepo, v *core.Validator, l *slog.Logger) *TokenHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TokenHandler{
		minter:    minter,
		tokens:    tokens,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts token routes on the provided chi.Router.
func (h *TokenHandler) RegisterRoutes(r chi.Router) {
	r.Route("/tokens", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Delete("/{tokenID}", h.Revoke)
	})
}

// Create handles POST /v1/tokens. Only an admin token may mint another admin
// token; privilege never escalates through self-service.
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateTokenRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.IsAdmin && !actor.IsAdmin {
		core.Error(w, r, types.NewAppError(
			types.ErrCodePermissionAdmin,
			"only an admin token can mint admin tokens",
			nil,
		))
		return
	}

	record, plaintext, err := h.minter.Mint(r.Context(), actor.AccountID, req.Name, req.IsAdmin)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusCreated, CreateTokenResponse{
		Token:     record,
		Plaintext: plaintext,
	})
}

// List handles GET /v1/tokens.
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	tokens, err := h.tokens.ListByAccount(r.Context(), actor.AccountID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, tokens)
}

// Revoke handles DELETE /v1/tokens/{tokenID}. Revocation is scoped to the
// actor's own account; a token ID belonging to someone else reads as
// not-found.
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.tokens.Revoke(r.Context(), actor.AccountID, chi.URLParam(r, "tokenID")); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "access token revoked",
		"account_id", actor.AccountID,
	)
	w.WriteHeader(http.StatusNoContent)
}
