package logging

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware returns an HTTP middleware that logs one line per request
// with the simulator name, method, path, status, and duration.
func Middleware(simulator string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			slog.Info("request",
				Simulator(simulator),
				slog.String(KeyMethod, r.Method),
				slog.String(KeyPath, r.URL.Path),
				slog.Int(KeyStatus, rec.status),
				slog.Duration(KeyDuration, time.Since(start)),
			)
		})
	}
}
