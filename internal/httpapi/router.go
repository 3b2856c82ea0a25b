package httpapi

import (
	"net/http"

	"ai_chat/internal/config"
	"ai_chat/internal/middleware"
)

// NewRouter registers every route on a new mux
func NewRouter(cfg *config.Config, deps *Dependencies) http.Handler {
	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg)
	return middleware.RequestLogger(mux)
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies, cfg *config.Config) {
	userAuth := middleware.UserJWTMiddleware(cfg)
	rateLimit := middleware.RateLimitMiddleware(deps.RateLimit, cfg.RateLimit.PerMinute)
	withUser := func(h http.HandlerFunc) http.Handler {
		return userAuth(middleware.RequireUser(h))
	}

	// Chat - authenticated when JWT_SECRET is set, rate limited per user
	mux.Handle("POST /v1/chat", userAuth(rateLimit(http.HandlerFunc(deps.handleChat))))
	mux.Handle("GET /v1/providers", userAuth(http.HandlerFunc(deps.handleProviders)))

	// Key management - always requires a user
	mux.Handle("GET /v1/keys", withUser(deps.handleListKeys))
	mux.Handle("PUT /v1/keys/{provider}", withUser(deps.handleSaveKey))
	mux.Handle("DELETE /v1/keys/{provider}", withUser(deps.handleDeleteKey))
	mux.Handle("POST /v1/keys/{provider}/deactivate", withUser(deps.handleDeactivateKey))
	mux.Handle("POST /v1/keys/{provider}/test", userAuth(rateLimit(http.HandlerFunc(deps.handleTestKey))))

	// Health check endpoint - public
	mux.HandleFunc("GET /health", deps.handleHealth)
}
