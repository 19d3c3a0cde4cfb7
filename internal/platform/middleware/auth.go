package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"askgate/internal/access"
	"askgate/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns the operator claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*OperatorClaims, error)
}

// OperatorClaims represents the claims we expect from the token validator.
type OperatorClaims struct {
	OperatorID string
	Role       access.Role
}

type contextKeyOperatorID struct{}
type contextKeyOperatorRole struct{}

// Exported context keys for use in handlers and tests.
var (
	ContextKeyOperatorID   = contextKeyOperatorID{}
	ContextKeyOperatorRole = contextKeyOperatorRole{}
)

// GetOperatorID retrieves the authenticated operator id from the context.
func GetOperatorID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyOperatorID).(string)
	return id
}

// GetOperatorRole retrieves the authenticated operator role from the context.
func GetOperatorRole(ctx context.Context) access.Role {
	role, ok := ctx.Value(ContextKeyOperatorRole).(access.Role)
	if !ok {
		return access.RoleUser
	}
	return role
}

// RequireAdmin guards the administrative surface: a valid bearer token whose
// role is admin or above. Code issuance and credential import hang off this.
func RequireAdmin(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			if claims.Role < access.RoleAdmin {
				logger.WarnContext(ctx, "forbidden - insufficient role",
					"operator_id", claims.OperatorID,
					"role", claims.Role.String(),
					"request_id", requestID,
				)
				writeAuthError(w, http.StatusForbidden, "forbidden", "Administrator role required")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyOperatorID, claims.OperatorID)
			ctx = context.WithValue(ctx, ContextKeyOperatorRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `","error_description":"` + description + `"}`))
}
