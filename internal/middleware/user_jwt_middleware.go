package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"ai_chat/internal/auth"
	"ai_chat/internal/config"
	"ai_chat/internal/utils"
)

// UserJWTMiddleware validates user tokens and stores the user id in the
// request context. When authentication is disabled requests pass through
// anonymously.
func UserJWTMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.AuthEnabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			// Remove "Bearer " prefix if present
			tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))

			userID, err := auth.ValidateUserToken(tokenString, cfg)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

// RequireUser rejects requests that carry no authenticated user
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUserID(r.Context()); !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID retrieves the authenticated user id from the request context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	return auth.UserIDFromContext(ctx)
}
