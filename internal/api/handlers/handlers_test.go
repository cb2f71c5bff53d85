package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"postroom/internal/types"
)

// =============================================================================
// Shared Test Helpers
// =============================================================================

// routeRegistrar matches every handler in this package.
type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

// serveVia mounts the handler on a fresh chi router and executes the request,
// so URL parameters resolve the same way they do in production.
func serveVia(h routeRegistrar, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func ctxWithActor(accountID string, isAdmin bool) context.Context {
	return types.WithActor(context.Background(), types.Actor{
		AccountID: accountID,
		TokenID:   "tok_test123",
		IsAdmin:   isAdmin,
	})
}

func newJSONRequest(t *testing.T, ctx context.Context, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(ctx)
}

// decodeErrorCode extracts the structured error code from an error envelope.
func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

// decodeData unmarshals the success envelope's data field into dst.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func testWorkspace(id, ownerID string, tier types.PlanTier) *types.Workspace {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &types.Workspace{
		ID:        id,
		OwnerID:   ownerID,
		Name:      "Acme Social",
		PlanTier:  tier,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// mockWorkspaceGetter satisfies WorkspaceGetter for handlers that only need
// the authorization lookup.
type mockWorkspaceGetter struct {
	getByIDFn func(ctx context.Context, id string) (*types.Workspace, error)
}

func (m *mockWorkspaceGetter) GetByID(ctx context.Context, id string) (*types.Workspace, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return testWorkspace(id, "acc_owner", types.PlanBasic), nil
}
