package httpapi

import (
	"context"
	"net/http"
	"time"

	"ai_chat/internal/utils"
)

const healthTimeout = 2 * time.Second

// handleHealth pings every configured backing store
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(d.Health))
	for name, checker := range d.Health {
		if err := checker.Health(ctx); err != nil {
			logger.Warn("health check failed", "check", name, "error", err)
			checks[name] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	utils.RespondWithJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
