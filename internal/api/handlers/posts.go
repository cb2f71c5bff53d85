package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"postroom/internal/core"
	"postroom/internal/types"
)

// PostRepo defines the data access contract for calendar posts.
type PostRepo interface {
	Create(ctx context.Context, p *types.Post) error
	GetByID(ctx context.Context, workspaceID, postID string) (*types.Post, error)
	ListByWorkspaceBetween(ctx context.Context, workspaceID string, start, end time.Time) ([]*types.Post, error)
	Update(ctx context.Context, p *types.Post) error
	Delete(ctx context.Context, workspaceID, postID string) error
}

// CreatePostRequest is the request body for POST .../posts. A post without a
// scheduled time is a draft; with one, it lands on the calendar as scheduled.
type CreatePostRequest struct {
	Body        string     `json:"body" validate:"required,max=10000"`
	Channels    []string   `json:"channels" validate:"required,min=1,dive,oneof=instagram tiktok linkedin x"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// UpdatePostRequest is the request body for PATCH .../posts/{postID}.
type UpdatePostRequest struct {
	Body        *string    `json:"body,omitempty" validate:"omitempty,max=10000"`
	Channels    *[]string  `json:"channels,omitempty" validate:"omitempty,min=1,dive,oneof=instagram tiktok linkedin x"`
	Status      *string    `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled published"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// PostHandler manages the scheduling calendar.
type PostHandler struct {
	workspaces WorkspaceGetter
	posts      PostRepo
	validator  *core.Validator
	logger     *slog.Logger
	now        func() time.Time
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(workspaces WorkspaceGetter, posts PostRepo, v *core.Validator, l *slog.Logger) *PostHandler {
	if l == nil {
		l = slog.Default()
	}
	return &PostHandler{
		workspaces: workspaces,
		posts:      posts,
		validator:  v,
		logger:     l,
		now:        time.Now,
	}
}

// RegisterRoutes mounts post routes on the provided chi.Router.
func (h *PostHandler) RegisterRoutes(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/posts", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{postID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
		})
	})
}

// Create handles POST /v1/workspaces/{workspaceID}/posts.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreatePostRequest
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
	status := types.PostStatusDraft
	if req.ScheduledAt != nil {
		status = types.PostStatusScheduled
	}

	post := &types.Post{
		ID:          "pst_" + uuid.NewString(),
		WorkspaceID: ws.ID,
		Body:        req.Body,
		Channels:    toChannels(req.Channels),
		Status:      status,
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.posts.Create(r.Context(), post); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusCreated, post)
}

// List handles GET /v1/workspaces/{workspaceID}/posts?start=...&end=...
// The window is [start, end) in RFC 3339; it defaults to the current calendar
// month. Drafts without a scheduled time are always included.
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	start := types.MonthKey(h.now())
	end := start.AddDate(0, 1, 0)

	if startStr := r.URL.Query().Get("start"); startStr != "" {
		parsed, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidInput,
				"start must be an RFC 3339 timestamp",
				err,
			))
			return
		}
		start = parsed
	}
	if endStr := r.URL.Query().Get("end"); endStr != "" {
		parsed, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidInput,
				"end must be an RFC 3339 timestamp",
				err,
			))
			return
		}
		end = parsed
	}
	if !end.After(start) {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidInput,
			"end must be after start",
			nil,
		))
		return
	}

	posts, err := h.posts.ListByWorkspaceBetween(r.Context(), ws.ID, start, end)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, posts)
}

// Get handles GET .../posts/{postID}.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	post, err := h.posts.GetByID(r.Context(), ws.ID, chi.URLParam(r, "postID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, post)
}

// Update handles PATCH .../posts/{postID}. Pointer fields allow partial
// updates; channels are replaced wholesale, never merged.
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req UpdatePostRequest
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

	post, err := h.posts.GetByID(r.Context(), ws.ID, chi.URLParam(r, "postID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Body != nil {
		post.Body = *req.Body
	}
	if req.Channels != nil {
		post.Channels = toChannels(*req.Channels)
	}
	if req.ScheduledAt != nil {
		post.ScheduledAt = req.ScheduledAt
		if post.Status == types.PostStatusDraft {
			post.Status = types.PostStatusScheduled
		}
	}
	if req.Status != nil {
		post.Status = types.PostStatus(*req.Status)
	}
	post.UpdatedAt = h.now().UTC()

	if err := h.posts.Update(r.Context(), post); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, post)
}

// Delete handles DELETE .../posts/{postID}.
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.posts.Delete(r.Context(), ws.ID, chi.URLParam(r, "postID")); err != nil {
		core.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toChannels(ss []string) []types.Channel {
	channels := make([]types.Channel, len(ss))
	for i, s := range ss {
		channels[i] = types.Channel(s)
	}
	return channels
}
