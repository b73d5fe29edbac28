package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wiresim/wiresim/internal/instrumentation"
	"github.com/wiresim/wiresim/internal/logging"
	"github.com/wiresim/wiresim/internal/session"
)

// Middleware returns an http middleware that enforces per-session quotas for
// one simulator. Rejections are reported in the surface's native error
// dialect: a Google-style error document for the mail API, an ok:false
// envelope for the workspace API.
func Middleware(limiter *Limiter, simulator string, logger *slog.Logger, metrics *instrumentation.Metrics) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := session.FromContext(r.Context())
			if limiter.Allow(sessionID) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.RecordRateLimited(r.Context(), simulator)
			logger.Warn("rate limit exceeded",
				logging.Simulator(simulator),
				logging.Session(sessionID),
			)

			w.Header().Set("Content-Type", "application/json")
			switch simulator {
			case instrumentation.SimulatorSlack:
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"ok":    false,
					"error": "ratelimited",
				})
			default:
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    http.StatusTooManyRequests,
						"message": "Rate limit exceeded. Please try again later.",
						"status":  "RESOURCE_EXHAUSTED",
					},
				})
			}
		})
	}
}
