package middleware

import (
	"net"
	"net/http"
	"strconv"

	"ai_chat/internal/logging"
	"ai_chat/internal/ratelimit"
	"ai_chat/internal/utils"
)

var rateLimitLogger = logging.NewLogger("ratelimit")

// RateLimitMiddleware limits each user, or each client address for anonymous
// requests, to perMinute requests. perMinute <= 0 disables the check. Limiter
// errors let the request through.
func RateLimitMiddleware(limiter ratelimit.Limiter, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if perMinute <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)

			allowed, remaining, resetAt, err := limiter.AllowWithDetails(r.Context(), key, perMinute)
			if err != nil {
				rateLimitLogger.Error("rate limiter unavailable", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if !allowed {
				rateLimitLogger.Warn("rate limit exceeded", "key", key, "limit", perMinute)
				utils.RespondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return "chat:user:" + userID.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "chat:addr:" + host
}
