package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postroom/internal/core"
	"postroom/internal/external"
	"postroom/internal/plan"
	"postroom/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockMemberRepo struct {
	countActiveFn   func(ctx context.Context, workspaceID string) (int64, error)
	createInvitedFn func(ctx context.Context, m *types.Member, tokenHash string, invitedAt time.Time) error
	getInvitedFn    func(ctx context.Context, workspaceID, email string) (*types.Member, error)
	acceptFn        func(ctx context.Context, memberID string, joinedAt time.Time) error
	listFn          func(ctx context.Context, workspaceID string) ([]*types.Member, error)
	deleteFn        func(ctx context.Context, workspaceID, memberID string) error

	lastInvited   *types.Member
	lastTokenHash string
	acceptedIDs   []string
}

func (m *mockMemberRepo) CountActive(ctx context.Context, workspaceID string) (int64, error) {
	if m.countActiveFn != nil {
		return m.countActiveFn(ctx, workspaceID)
	}
	return 0, nil
}

func (m *mockMemberRepo) CreateInvited(ctx context.Context, member *types.Member, tokenHash string, invitedAt time.Time) error {
	m.lastInvited = member
	m.lastTokenHash = tokenHash
	if m.createInvitedFn != nil {
		return m.createInvitedFn(ctx, member, tokenHash, invitedAt)
	}
	return nil
}

func (m *mockMemberRepo) GetInvitedByWorkspaceAndEmail(ctx context.Context, workspaceID, email string) (*types.Member, error) {
	if m.getInvitedFn != nil {
		return m.getInvitedFn(ctx, workspaceID, email)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundInvite, "invitation not found", nil)
}

func (m *mockMemberRepo) Accept(ctx context.Context, memberID string, joinedAt time.Time) error {
	m.acceptedIDs = append(m.acceptedIDs, memberID)
	if m.acceptFn != nil {
		return m.acceptFn(ctx, memberID, joinedAt)
	}
	return nil
}

func (m *mockMemberRepo) ListByWorkspace(ctx context.Context, workspaceID string) ([]*types.Member, error) {
	if m.listFn != nil {
		return m.listFn(ctx, workspaceID)
	}
	return nil, nil
}

func (m *mockMemberRepo) Delete(ctx context.Context, workspaceID, memberID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, workspaceID, memberID)
	}
	return nil
}

// mockInviteTokens issues a fixed raw token whose "hash" is a reversible
// prefix, keeping acceptance assertions deterministic.
type mockInviteTokens struct {
	raw string
}

func (m *mockInviteTokens) New() (string, string, error) {
	return m.raw, "hashed:" + m.raw, nil
}

func (m *mockInviteTokens) Hash(raw string) string { return "hashed:" + raw }

type mockEmailSender struct {
	sendFn func(ctx context.Context, msg external.InviteEmail) (string, error)

	sent []external.InviteEmail
}

func (m *mockEmailSender) SendInvite(ctx context.Context, msg external.InviteEmail) (string, error) {
	m.sent = append(m.sent, msg)
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return "msg_123", nil
}

func newTestMemberHandler(members *mockMemberRepo, email *mockEmailSender) *MemberHandler {
	return NewMemberHandler(
		&mockWorkspaceGetter{},
		members,
		&mockInviteTokens{raw: "invite_raw_token"},
		email,
		plan.NewStaticCatalog(),
		core.NewValidator(),
		nil,
		"https://app.postroom.io",
	)
}

// =============================================================================
// Invite Tests
// =============================================================================

func TestMemberHandler_Invite_Success(t *testing.T) {
	members := &mockMemberRepo{}
	email := &mockEmailSender{}
	h := newTestMemberHandler(members, email)

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/members/invites",
		InviteMemberRequest{Email: "editor@example.com", Role: "editor"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	require.NotNil(t, members.lastInvited)
	assert.Equal(t, "ws_1", members.lastInvited.WorkspaceID)
	assert.Equal(t, types.RoleEditor, members.lastInvited.Role)
	assert.Equal(t, types.MemberStatusInvited, members.lastInvited.Status)
	assert.Equal(t, "hashed:invite_raw_token", members.lastTokenHash)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "editor@example.com", email.sent[0].To)
	assert.Contains(t, email.sent[0].AcceptURL, "token=invite_raw_token")
}

func TestMemberHandler_Invite_LimitReached(t *testing.T) {
	// Basic caps members at 3; active plus pending already fills it.
	members := &mockMemberRepo{
		countActiveFn: func(ctx context.Context, workspaceID string) (int64, error) {
			return 3, nil
		},
	}
	h := newTestMemberHandler(members, &mockEmailSender{})

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/members/invites",
		InviteMemberRequest{Email: "fourth@example.com", Role: "client"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, string(types.ErrCodeLimitMembers), decodeErrorCode(t, rr))
	assert.Nil(t, members.lastInvited)
}

func TestMemberHandler_Invite_EmailFailureIsNotFatal(t *testing.T) {
	members := &mockMemberRepo{}
	email := &mockEmailSender{
		sendFn: func(ctx context.Context, msg external.InviteEmail) (string, error) {
			return "", errors.New("sendgrid 503")
		},
	}
	h := newTestMemberHandler(members, email)

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/members/invites",
		InviteMemberRequest{Email: "editor@example.com", Role: "editor"})
	rr := serveVia(h, req)

	// The invitation exists once persisted; delivery is best-effort.
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NotNil(t, members.lastInvited)
}

func TestMemberHandler_Invite_RejectsOwnerRole(t *testing.T) {
	h := newTestMemberHandler(&mockMemberRepo{}, &mockEmailSender{})

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/members/invites",
		InviteMemberRequest{Email: "boss@example.com", Role: "owner"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// Accept Tests
// =============================================================================

func invitedMember(invitedAt time.Time) *types.Member {
	return &types.Member{
		ID:              "mem_1",
		WorkspaceID:     "ws_1",
		Email:           "editor@example.com",
		Role:            types.RoleEditor,
		Status:          types.MemberStatusInvited,
		InviteTokenHash: "hashed:invite_raw_token",
		InvitedAt:       &invitedAt,
	}
}

func TestMemberHandler_Accept_Success(t *testing.T) {
	invitedAt := time.Now().UTC().Add(-24 * time.Hour)
	members := &mockMemberRepo{
		getInvitedFn: func(ctx context.Context, workspaceID, email string) (*types.Member, error) {
			return invitedMember(invitedAt), nil
		},
	}
	h := newTestMemberHandler(members, &mockEmailSender{})

	req := newJSONRequest(t, ctxWithActor("acc_invitee", false),
		http.MethodPost, "/invites/accept",
		AcceptInviteRequest{WorkspaceID: "ws_1", Email: "editor@example.com", Token: "invite_raw_token"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"mem_1"}, members.acceptedIDs)

	var member types.Member
	decodeData(t, rr, &member)
	assert.Equal(t, types.MemberStatusActive, member.Status)
	assert.NotNil(t, member.JoinedAt)
}

func TestMemberHandler_Accept_WrongToken(t *testing.T) {
	invitedAt := time.Now().UTC().Add(-24 * time.Hour)
	members := &mockMemberRepo{
		getInvitedFn: func(ctx context.Context, workspaceID, email string) (*types.Member, error) {
			return invitedMember(invitedAt), nil
		},
	}
	h := newTestMemberHandler(members, &mockEmailSender{})

	req := newJSONRequest(t, ctxWithActor("acc_invitee", false),
		http.MethodPost, "/invites/accept",
		AcceptInviteRequest{WorkspaceID: "ws_1", Email: "editor@example.com", Token: "guessed"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundInvite), decodeErrorCode(t, rr))
	assert.Empty(t, members.acceptedIDs)
}

func TestMemberHandler_Accept_Expired(t *testing.T) {
	invitedAt := time.Now().UTC().Add(-15 * 24 * time.Hour)
	members := &mockMemberRepo{
		getInvitedFn: func(ctx context.Context, workspaceID, email string) (*types.Member, error) {
			return invitedMember(invitedAt), nil
		},
	}
	h := newTestMemberHandler(members, &mockEmailSender{})

	req := newJSONRequest(t, ctxWithActor("acc_invitee", false),
		http.MethodPost, "/invites/accept",
		AcceptInviteRequest{WorkspaceID: "ws_1", Email: "editor@example.com", Token: "invite_raw_token"})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundInvite), decodeErrorCode(t, rr))
	assert.Empty(t, members.acceptedIDs)
}

// =============================================================================
// List / Remove Tests
// =============================================================================

func TestMemberHandler_List_Success(t *testing.T) {
	members := &mockMemberRepo{
		listFn: func(ctx context.Context, workspaceID string) ([]*types.Member, error) {
			return []*types.Member{
				{ID: "mem_1", WorkspaceID: workspaceID, Status: types.MemberStatusActive},
				{ID: "mem_2", WorkspaceID: workspaceID, Status: types.MemberStatusInvited},
			}, nil
		},
	}
	h := newTestMemberHandler(members, &mockEmailSender{})

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodGet, "/workspaces/ws_1/members", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	var list []*types.Member
	decodeData(t, rr, &list)
	assert.Len(t, list, 2)
}

func TestMemberHandler_Remove_Success(t *testing.T) {
	var removed string
	members := &mockMemberRepo{
		deleteFn: func(ctx context.Context, workspaceID, memberID string) error {
			removed = memberID
			return nil
		},
	}
	h := newTestMemberHandler(members, &mockEmailSender{})

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodDelete, "/workspaces/ws_1/members/mem_9", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "mem_9", removed)
}
