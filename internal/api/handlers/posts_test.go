package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postroom/internal/core"
	"postroom/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockPostRepo struct {
	createFn func(ctx context.Context, p *types.Post) error
	getFn    func(ctx context.Context, workspaceID, postID string) (*types.Post, error)
	listFn   func(ctx context.Context, workspaceID string, start, end time.Time) ([]*types.Post, error)
	updateFn func(ctx context.Context, p *types.Post) error
	deleteFn func(ctx context.Context, workspaceID, postID string) error

	lastCreated *types.Post
	lastUpdated *types.Post
}

func (m *mockPostRepo) Create(ctx context.Context, p *types.Post) error {
	m.lastCreated = p
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	return nil
}

func (m *mockPostRepo) GetByID(ctx context.Context, workspaceID, postID string) (*types.Post, error) {
	if m.getFn != nil {
		return m.getFn(ctx, workspaceID, postID)
	}
	return &types.Post{
		ID:          postID,
		WorkspaceID: workspaceID,
		Body:        "hello",
		Channels:    []types.Channel{types.ChannelInstagram},
		Status:      types.PostStatusDraft,
	}, nil
}

func (m *mockPostRepo) ListByWorkspaceBetween(ctx context.Context, workspaceID string, start, end time.Time) ([]*types.Post, error) {
	if m.listFn != nil {
		return m.listFn(ctx, workspaceID, start, end)
	}
	return nil, nil
}

func (m *mockPostRepo) Update(ctx context.Context, p *types.Post) error {
	m.lastUpdated = p
	if m.updateFn != nil {
		return m.updateFn(ctx, p)
	}
	return nil
}

func (m *mockPostRepo) Delete(ctx context.Context, workspaceID, postID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, workspaceID, postID)
	}
	return nil
}

func newTestPostHandler(posts *mockPostRepo) *PostHandler {
	h := NewPostHandler(&mockWorkspaceGetter{}, posts, core.NewValidator(), nil)
	h.now = func() time.Time {
		return time.Date(2026, 3, 17, 9, 30, 0, 0, time.UTC)
	}
	return h
}

// =============================================================================
// Create Tests
// =============================================================================

func TestPostHandler_Create_DraftWithoutSchedule(t *testing.T) {
	posts := &mockPostRepo{}
	h := newTestPostHandler(posts)

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/posts",
		CreatePostRequest{Body: "spring menu drop", Channels: []string{"instagram", "tiktok"}})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, posts.lastCreated)
	assert.Equal(t, types.PostStatusDraft, posts.lastCreated.Status)
	assert.Nil(t, posts.lastCreated.ScheduledAt)
	assert.Equal(t, []types.Channel{types.ChannelInstagram, types.ChannelTikTok}, posts.lastCreated.Channels)
}

func TestPostHandler_Create_ScheduledWithTime(t *testing.T) {
	posts := &mockPostRepo{}
	h := newTestPostHandler(posts)

	at := time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)
	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/posts",
		CreatePostRequest{Body: "launch day", Channels: []string{"linkedin"}, ScheduledAt: &at})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	require.NotNil(t, posts.lastCreated)
	assert.Equal(t, types.PostStatusScheduled, posts.lastCreated.Status)
	require.NotNil(t, posts.lastCreated.ScheduledAt)
	assert.True(t, posts.lastCreated.ScheduledAt.Equal(at))
}

func TestPostHandler_Create_RejectsUnknownChannel(t *testing.T) {
	h := newTestPostHandler(&mockPostRepo{})

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPost, "/workspaces/ws_1/posts",
		CreatePostRequest{Body: "hi", Channels: []string{"myspace"}})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// List Tests
// =============================================================================

func TestPostHandler_List_DefaultsToCurrentMonth(t *testing.T) {
	var gotStart, gotEnd time.Time
	posts := &mockPostRepo{
		listFn: func(ctx context.Context, workspaceID string, start, end time.Time) ([]*types.Post, error) {
			gotStart, gotEnd = start, end
			return []*types.Post{}, nil
		},
	}
	h := newTestPostHandler(posts)

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodGet, "/workspaces/ws_1/posts", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), gotStart)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), gotEnd)
}

func TestPostHandler_List_ExplicitWindow(t *testing.T) {
	var gotStart, gotEnd time.Time
	posts := &mockPostRepo{
		listFn: func(ctx context.Context, workspaceID string, start, end time.Time) ([]*types.Post, error) {
			gotStart, gotEnd = start, end
			return []*types.Post{}, nil
		},
	}
	h := newTestPostHandler(posts)

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodGet, "/workspaces/ws_1/posts?start=2026-04-01T00:00:00Z&end=2026-04-08T00:00:00Z", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), gotStart)
	assert.Equal(t, time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC), gotEnd)
}

func TestPostHandler_List_RejectsInvertedWindow(t *testing.T) {
	h := newTestPostHandler(&mockPostRepo{})

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodGet, "/workspaces/ws_1/posts?start=2026-04-08T00:00:00Z&end=2026-04-01T00:00:00Z", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPostHandler_List_RejectsBadTimestamp(t *testing.T) {
	h := newTestPostHandler(&mockPostRepo{})

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodGet, "/workspaces/ws_1/posts?start=tomorrow", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// Update Tests
// =============================================================================

func TestPostHandler_Update_SchedulingADraftPromotesIt(t *testing.T) {
	posts := &mockPostRepo{}
	h := newTestPostHandler(posts)

	at := time.Date(2026, 3, 25, 10, 0, 0, 0, time.UTC)
	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPatch, "/workspaces/ws_1/posts/pst_1",
		UpdatePostRequest{ScheduledAt: &at})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, posts.lastUpdated)
	assert.Equal(t, types.PostStatusScheduled, posts.lastUpdated.Status)
}

func TestPostHandler_Update_ExplicitStatusWins(t *testing.T) {
	posts := &mockPostRepo{}
	h := newTestPostHandler(posts)

	at := time.Date(2026, 3, 25, 10, 0, 0, 0, time.UTC)
	status := "published"
	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPatch, "/workspaces/ws_1/posts/pst_1",
		UpdatePostRequest{ScheduledAt: &at, Status: &status})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, posts.lastUpdated)
	assert.Equal(t, types.PostStatusPublished, posts.lastUpdated.Status)
}

func TestPostHandler_Update_ChannelsReplacedWholesale(t *testing.T) {
	posts := &mockPostRepo{}
	h := newTestPostHandler(posts)

	channels := []string{"x"}
	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodPatch, "/workspaces/ws_1/posts/pst_1",
		UpdatePostRequest{Channels: &channels})
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, posts.lastUpdated)
	assert.Equal(t, []types.Channel{types.ChannelX}, posts.lastUpdated.Channels)
}

func TestPostHandler_Delete_Success(t *testing.T) {
	var deleted string
	posts := &mockPostRepo{
		deleteFn: func(ctx context.Context, workspaceID, postID string) error {
			deleted = postID
			return nil
		},
	}
	h := newTestPostHandler(posts)

	req := newJSONRequest(t, ctxWithActor("acc_owner", false),
		http.MethodDelete, "/workspaces/ws_1/posts/pst_7", nil)
	rr := serveVia(h, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "pst_7", deleted)
}
