package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"postroom/internal/auth"
	"postroom/internal/core"
	"postroom/internal/external"
	"postroom/internal/plan"
	"postroom/internal/types"
)

// inviteValidity is how long an invitation stays acceptable.
const inviteValidity = 14 * 24 * time.Hour

// MemberRepo defines the data access contract for membership operations.
type MemberRepo interface {
	CountActive(ctx context.Context, workspaceID string) (int64, error)
	CreateInvited(ctx context.Context, m *types.Member, tokenHash string, invitedAt time.Time) error
	GetInvitedByWorkspaceAndEmail(ctx context.Context, workspaceID, email string) (*types.Member, error)
	Accept(ctx context.Context, memberID string, joinedAt time.Time) error
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*types.Member, error)
	Delete(ctx context.Context, workspaceID, memberID string) error
}

// InviteTokens mints and hashes invitation tokens. The default implementation
// wraps the auth package; tests substitute deterministic tokens.
type InviteTokens interface {
	New() (raw, hash string, err error)
	Hash(raw string) string
}

type authInviteTokens struct{}

func (authInviteTokens) New() (string, string, error) { return auth.NewInviteToken() }
func (authInviteTokens) Hash(raw string) string       { return auth.HashToken(raw) }

// NewInviteTokens returns the production InviteTokens implementation.
func NewInviteTokens() InviteTokens { return authInviteTokens{} }

// InviteMemberRequest is the request body for POST .../members/invites.
// The owner role is never assignable; it belongs to the account that created
// the workspace.
type InviteMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,member_role"`
}

// AcceptInviteRequest is the request body for POST /v1/invites/accept.
type AcceptInviteRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
}

// MemberHandler manages workspace membership: invites, acceptance, listing,
// and removal.
type MemberHandler struct {
	workspaces WorkspaceGetter
	members    MemberRepo
	tokens     InviteTokens
	email      external.EmailSender
	catalog    plan.Catalog
	validator  *core.Validator
	logger     *slog.Logger
	now        func() time.Time

	// acceptURLBase is the dashboard URL invitation links point at.
	acceptURLBase string
}

// NewMemberHandler creates a MemberHandler.
func NewMemberHandler(
	workspaces WorkspaceGetter,
	members MemberRepo,
	tokens InviteTokens,
	email external.EmailSender,
	catalog plan.Catalog,
	v *core.Validator,
	l *slog.Logger,
	acceptURLBase string,
) *MemberHandler {
	if l == nil {
		l = slog.Default()
	}
	return &MemberHandler{
		workspaces:    workspaces,
		members:       members,
		tokens:        tokens,
		email:         email,
		catalog:       catalog,
		validator:     v,
		logger:        l,
		now:           time.Now,
		acceptURLBase: acceptURLBase,
	}
}

// RegisterRoutes mounts membership routes on the provided chi.Router.
func (h *MemberHandler) RegisterRoutes(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/members", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/invites", h.Invite)
		r.Delete("/{memberID}", h.Remove)
	})
	// Acceptance is workspace-scoped by body, not URL: the invitee is not the
	// workspace owner, so the usual ownership check does not apply.
	r.Post("/invites/accept", h.Accept)
}

// Invite handles POST /v1/workspaces/{workspaceID}/members/invites.
//
// The member limit counts active members plus pending invitations, so an
// account cannot stage unlimited invites under a finite cap. Email delivery
// is best-effort: the invitation exists once persisted, and the owner can
// re-send the link from the dashboard.
func (h *MemberHandler) Invite(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req InviteMemberRequest
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

	now := h.now().UTC()
	limit := plan.Resolve(h.catalog, ws, now).Limits.MaxMembers
	if !types.IsUnlimited(limit) {
		count, err := h.members.CountActive(r.Context(), ws.ID)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		if count >= limit {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeLimitMembers,
				"member limit reached for this workspace",
				nil,
				map[string]any{"current": count, "limit": limit},
			))
			return
		}
	}

	raw, hash, err := h.tokens.New()
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to generate invite token",
			err,
		))
		return
	}

	member := &types.Member{
		ID:          "mem_" + uuid.NewString(),
		WorkspaceID: ws.ID,
		Email:       req.Email,
		Role:        types.MemberRole(req.Role),
		Status:      types.MemberStatusInvited,
	}
	if err := h.members.CreateInvited(r.Context(), member, hash, now); err != nil {
		core.Error(w, r, err)
		return
	}

	if h.email != nil {
		_, err := h.email.SendInvite(r.Context(), external.InviteEmail{
			To:            req.Email,
			WorkspaceName: ws.Name,
			Role:          req.Role,
			AcceptURL:     h.acceptURLBase + "/invites/accept?token=" + raw,
			ExpiresAt:     now.Add(inviteValidity),
		})
		if err != nil {
			h.logger.WarnContext(r.Context(), "invite email delivery failed",
				"workspace_id", ws.ID,
				"member_id", member.ID,
				"error", err,
			)
		}
	}

	core.Data(w, r, http.StatusCreated, member)
}

// Accept handles POST /v1/invites/accept. The presented token is hashed and
// compared against the stored invite hash; mismatches and expired invitations
// both read as not-found so callers cannot probe invite state.
func (h *MemberHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	var req AcceptInviteRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	member, err := h.members.GetInvitedByWorkspaceAndEmail(r.Context(), req.WorkspaceID, req.Email)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if h.tokens.Hash(req.Token) != member.InviteTokenHash {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundInvite,
			"invitation not found",
			nil,
		))
		return
	}

	now := h.now().UTC()
	if member.InvitedAt != nil && now.After(member.InvitedAt.Add(inviteValidity)) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeNotFoundInvite,
			"invitation has expired",
			nil,
		))
		return
	}

	if err := h.members.Accept(r.Context(), member.ID, now); err != nil {
		core.Error(w, r, err)
		return
	}

	member.Status = types.MemberStatusActive
	member.JoinedAt = &now
	h.logger.InfoContext(r.Context(), "invitation accepted",
		"workspace_id", member.WorkspaceID,
		"member_id", member.ID,
	)
	core.Data(w, r, http.StatusOK, member)
}

// List handles GET /v1/workspaces/{workspaceID}/members.
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	members, err := h.members.ListByWorkspace(r.Context(), ws.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, members)
}

// Remove handles DELETE /v1/workspaces/{workspaceID}/members/{memberID}.
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.members.Delete(r.Context(), ws.ID, chi.URLParam(r, "memberID")); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
