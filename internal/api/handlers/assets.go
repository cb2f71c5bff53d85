package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"postroom/internal/core"
	"postroom/internal/external"
	"postroom/internal/plan"
	"postroom/internal/types"
)

// AssetRepo defines the data access contract for asset operations.
type AssetRepo interface {
	Create(ctx context.Context, a *types.Asset) error
	GetByID(ctx context.Context, workspaceID, assetID string) (*types.Asset, error)
	Finalize(ctx context.Context, workspaceID, assetID string, sizeBytes int64) error
	SetReviewStatus(ctx context.Context, workspaceID, assetID string, status types.ReviewStatus) error
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*types.Asset, error)
}

// StorageUsage reads the workspace's current storage footprint.
type StorageUsage interface {
	StorageBytesUsed(ctx context.Context, workspaceID string) (int64, error)
}

// CreateAssetRequest is the request body for POST .../assets. SizeBytes is the
// client's declared upload size, checked against the storage limit up front;
// the finalize step records the actual size.
type CreateAssetRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	SizeBytes   int64  `json:"size_bytes" validate:"required,gt=0"`
	ContentType string `json:"content_type,omitempty" validate:"omitempty,max=255"`
}

// FinalizeAssetRequest is the request body for POST .../assets/{assetID}/finalize.
type FinalizeAssetRequest struct {
	SizeBytes int64 `json:"size_bytes" validate:"required,gt=0"`
}

// ReviewAssetRequest is the request body for PUT .../assets/{assetID}/review.
type ReviewAssetRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved changes_requested"`
}

// AssetUploadResponse pairs the new asset record with its presigned PUT URL.
type AssetUploadResponse struct {
	Asset     *types.Asset `json:"asset"`
	UploadURL string       `json:"upload_url"`
}

// AssetDownloadResponse carries a presigned GET URL.
type AssetDownloadResponse struct {
	DownloadURL string `json:"download_url"`
}

// AssetHandler manages the asset upload and client review workflow. File
// bytes never pass through the API; clients upload and download directly
// against presigned URLs.
type AssetHandler struct {
	workspaces WorkspaceGetter
	assets     AssetRepo
	storage    StorageUsage
	objects    external.ObjectStore
	catalog    plan.Catalog
	validator  *core.Validator
	logger     *slog.Logger
	now        func() time.Time
}

// NewAssetHandler creates an AssetHandler.
func NewAssetHandler(
	workspaces WorkspaceGetter,
	assets AssetRepo,
	storage StorageUsage,
	objects external.ObjectStore,
	catalog plan.Catalog,
	v *core.Validator,
	l *slog.Logger,
) *AssetHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AssetHandler{
		workspaces: workspaces,
		assets:     assets,
		storage:    storage,
		objects:    objects,
		catalog:    catalog,
		validator:  v,
		logger:     l,
		now:        time.Now,
	}
}

// RegisterRoutes mounts asset routes on the provided chi.Router.
func (h *AssetHandler) RegisterRoutes(r chi.Router) {
	r.Route("/workspaces/{workspaceID}/assets", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{assetID}", func(r chi.Router) {
			r.Post("/finalize", h.Finalize)
			r.Put("/review", h.Review)
			r.Get("/download", h.Download)
		})
	})
}

// Create handles POST /v1/workspaces/{workspaceID}/assets. The declared size
// is checked against the workspace's effective storage limit before any
// presigning happens; only 'ready' assets count toward the footprint, so an
// abandoned upload costs nothing.
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req CreateAssetRequest
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

	limit := plan.Resolve(h.catalog, ws, h.now()).Limits.MaxStorageBytes
	if !types.IsUnlimited(limit) {
		used, err := h.storage.StorageBytesUsed(r.Context(), ws.ID)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		if used+req.SizeBytes > limit {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeLimitStorage,
				"storage limit reached for this workspace",
				nil,
				map[string]any{
					"used_bytes":      used,
					"requested_bytes": req.SizeBytes,
					"limit_bytes":     limit,
				},
			))
			return
		}
	}

	assetID := "ast_" + uuid.NewString()
	asset := &types.Asset{
		ID:           assetID,
		WorkspaceID:  ws.ID,
		ObjectKey:    fmt.Sprintf("%s/assets/%s/%s", ws.ID, assetID, path.Base(req.Filename)),
		Filename:     req.Filename,
		SizeBytes:    req.SizeBytes,
		Status:       types.AssetStatusUploading,
		ReviewStatus: types.ReviewPending,
		CreatedAt:    h.now().UTC(),
	}
	if err := h.assets.Create(r.Context(), asset); err != nil {
		core.Error(w, r, err)
		return
	}

	uploadURL, err := h.objects.PresignUpload(r.Context(), asset.ObjectKey, req.ContentType)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusCreated, AssetUploadResponse{
		Asset:     asset,
		UploadURL: uploadURL,
	})
}

// Finalize handles POST .../assets/{assetID}/finalize. Marks the upload
// complete with its actual size; from here the asset counts toward storage.
func (h *AssetHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req FinalizeAssetRequest
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

	assetID := chi.URLParam(r, "assetID")
	if err := h.assets.Finalize(r.Context(), ws.ID, assetID, req.SizeBytes); err != nil {
		core.Error(w, r, err)
		return
	}

	asset, err := h.assets.GetByID(r.Context(), ws.ID, assetID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, asset)
}

// Review handles PUT .../assets/{assetID}/review: the client review verdict.
func (h *AssetHandler) Review(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req ReviewAssetRequest
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

	assetID := chi.URLParam(r, "assetID")
	if err := h.assets.SetReviewStatus(r.Context(), ws.ID, assetID, types.ReviewStatus(req.Status)); err != nil {
		core.Error(w, r, err)
		return
	}

	asset, err := h.assets.GetByID(r.Context(), ws.ID, assetID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, asset)
}

// List handles GET /v1/workspaces/{workspaceID}/assets.
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	assets, err := h.assets.ListByWorkspace(r.Context(), ws.ID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, assets)
}

// Download handles GET .../assets/{assetID}/download.
func (h *AssetHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ws, err := authorizeWorkspace(r.Context(), h.workspaces, actor, chi.URLParam(r, "workspaceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	asset, err := h.assets.GetByID(r.Context(), ws.ID, chi.URLParam(r, "assetID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	downloadURL, err := h.objects.PresignDownload(r.Context(), asset.ObjectKey)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, AssetDownloadResponse{DownloadURL: downloadURL})
}
