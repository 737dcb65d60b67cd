package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/port"

	"go.uber.org/zap"
)

type contextKey string

const identidadeKey contextKey = "identidade"

// JWTAuthMiddleware validates Supabase Bearer tokens and injects the caller's
// identity into the request context.
func JWTAuthMiddleware(validator port.TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				writeError(w, http.StatusUnauthorized, "authentication not configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing authentication token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			id, err := validator.Validar(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), identidadeKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireServiceRole rejects callers whose token lacks the service_role claim.
func RequireServiceRole(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IdentidadeFromContext(r.Context()).Admin() {
				handleServiceError(w, &domain.ErrForbidden{Action: r.Method + " " + r.URL.Path}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentidadeFromContext returns the authenticated caller, or nil.
func IdentidadeFromContext(ctx context.Context) *domain.Identidade {
	v, _ := ctx.Value(identidadeKey).(*domain.Identidade)
	return v
}

// ownerFromRequest returns the owner filter for case lookups. Service-role
// callers see every case. ok is false when no identity is present, in which
// case a 401 has already been written.
func ownerFromRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (owner string, ok bool) {
	id := IdentidadeFromContext(r.Context())
	if id == nil {
		handleServiceError(w, &domain.ErrUnauthorized{}, logger)
		return "", false
	}
	if id.Admin() {
		return "", true
	}
	return id.UserID, true
}
