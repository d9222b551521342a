package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"memberhub/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID string
	Role   string
}

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	return requestcontext.UserID(ctx)
}

// GetRole retrieves the authenticated user's role from the context.
func GetRole(ctx context.Context) string {
	return requestcontext.Role(ctx)
}

// RequireAuth validates the Bearer token and injects the user identity into
// the request context. Requests without a valid token are rejected with 401.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(r.Context(), "unauthorized access - missing token",
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithUserID(r.Context(), claims.UserID)
			ctx = requestcontext.WithRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose authenticated role is not admin.
// Must be mounted after RequireAuth.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetRole(r.Context()) != "admin" {
				logger.WarnContext(r.Context(), "forbidden - admin role required",
					"user_id", GetUserID(r.Context()),
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
