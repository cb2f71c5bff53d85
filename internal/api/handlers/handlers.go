// Package handlers contains the HTTP handler implementations for the Postroom
// API. Each handler declares narrow local interfaces for its dependencies and
// is wired up in cmd/api against the concrete repositories and services.
package handlers

import (
	"context"
	"net/http"

	"postroom/internal/core"
	"postroom/internal/types"
)

// WorkspaceGetter is the minimal workspace lookup shared by the
// workspace-scoped handlers for authorization.
type WorkspaceGetter interface {
	GetByID(ctx context.Context, id string) (*types.Workspace, error)
}

// requireActor extracts the authenticated actor or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"authentication required",
			nil,
		))
		return types.Actor{}, false
	}
	return actor, true
}

// authorizeWorkspace loads the workspace and verifies the actor may act on it.
// Admin tokens may act on any workspace; everyone else must own it.
func authorizeWorkspace(ctx context.Context, store WorkspaceGetter, actor types.Actor, workspaceID string) (*types.Workspace, error) {
	ws, err := store.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && ws.OwnerID != actor.AccountID {
		return nil, types.NewAppError(
			types.ErrCodePermissionWorkspace,
			"workspace does not belong to the authenticated account",
			nil,
		)
	}
	return ws, nil
}
