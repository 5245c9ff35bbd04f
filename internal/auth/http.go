// ABOUTME: HTTP middleware that identifies the caller for API endpoints
// ABOUTME: Verifies JWT bearer tokens, or trusts X-User-ID in development mode

package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// UserIDHeader carries the owner id when running without a JWT secret.
const UserIDHeader = "X-User-ID"

// maxUserIDLength bounds owner ids accepted from the development header.
const maxUserIDLength = 128

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and validates JWT tokens
// and adds the AuthContext to the request context.
func HTTPAuthMiddleware(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				logger.Warn("http auth failure", "reason", "token_extraction_failed", "detail", errMsg, "path", r.URL.Path)
				writeAuthError(w, http.StatusUnauthorized, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("http auth failure", "reason", "token_verification_failed", "error", err, "path", r.URL.Path)
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			authCtx := &AuthContext{UserID: userID, Method: "jwt"}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// HeaderAuthMiddleware trusts the X-User-ID header as the owner id.
// It exists for local development when no JWT secret is configured.
func HeaderAuthMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				logger.Warn("http auth failure", "reason", "missing_user_header", "path", r.URL.Path)
				writeAuthError(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
				return
			}
			if len(userID) > maxUserIDLength {
				logger.Warn("http auth failure", "reason", "user_header_too_long", "path", r.URL.Path)
				writeAuthError(w, http.StatusBadRequest, UserIDHeader+" header is too long")
				return
			}

			authCtx := &AuthContext{UserID: userID, Method: "header"}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
