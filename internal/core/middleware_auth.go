package core

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"postroom/internal/types"
)

// authPublicPaths lists URL paths exempt from authentication. The Stripe
// webhook authenticates by signature instead of bearer token.
var authPublicPaths = map[string]bool{
	"/health":             true,
	"/v1/webhooks/stripe": true,
}

// AuthMiddleware resolves the Bearer token to an Actor and injects it into
// the request context. Failures return 401 with distinct codes:
//   - auth_token_missing: no Authorization header or empty Bearer token.
//   - auth_token_invalid: token malformed, unknown, or failing verification.
//   - auth_token_revoked: token exists but was revoked.
//
// If the Authenticator field on Server is nil (tests that don't inject one),
// the middleware passes through without authentication.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		if authPublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authorization header is required")
			return
		}

		token := extractBearerToken(authHeader)
		if token == "" {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
			return
		}

		actor, err := s.Authenticator.ResolveToken(r.Context(), token)
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}
		if actor == nil {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
			return
		}

		ctx := types.WithActor(r.Context(), *actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractBearerToken parses the Authorization header and returns the token.
// It expects "Bearer <token>" with a case-insensitive scheme per RFC 7235.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

// handleAuthError inspects the error from ResolveToken and writes the
// appropriate 401 response.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthTokenInvalid, types.ErrCodeAuthTokenRevoked:
			s.Logger.Warn("authentication failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(appErr.Code)),
			)
			s.writeAuthError(w, r, appErr.Code, "Invalid authentication token")
			return
		}
	}

	// Generic error: log it but don't leak internal details.
	s.Logger.Error("authentication failed: unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Authentication failed")
}

// writeAuthError writes a 401 Unauthorized JSON response with the given code.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	resp := APIErrorResponse{
		Error: ErrorDetail{
			Code:      string(code),
			Message:   message,
			RequestID: types.GetRequestID(r.Context()),
		},
	}
	JSON(w, r, http.StatusUnauthorized, resp)
}

// RequireAdmin returns middleware that rejects non-admin actors with 403.
// Used by the admin console routes (plan writes, limit overrides).
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := types.GetActor(r.Context())
		if !ok {
			s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Authentication required")
			return
		}
		if !actor.IsAdmin {
			resp := APIErrorResponse{
				Error: ErrorDetail{
					Code:      string(types.ErrCodePermissionAdmin),
					Message:   "Admin access required for this operation",
					RequestID: types.GetRequestID(r.Context()),
				},
			}
			JSON(w, r, http.StatusForbidden, resp)
			return
		}
		next.ServeHTTP(w, r)
	})
}
