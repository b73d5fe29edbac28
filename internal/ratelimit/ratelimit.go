// Package ratelimit enforces per-session request quotas on the simulator
// surfaces. Each session gets an independent token bucket for the per-minute
// limit plus a fixed 24h window for the daily cap, so one noisy session
// cannot starve another.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wiresim/wiresim/internal/config"
)

type sessionState struct {
	limiter    *rate.Limiter
	dailyCount int
	dailyReset time.Time
}

// Limiter manages rate limiting state for one simulator across sessions.
type Limiter struct {
	cfg config.RateLimitConfig

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// New creates a Limiter for the given per-minute and per-day quotas.
func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:      cfg,
		sessions: make(map[string]*sessionState),
	}
}

// Allow reports whether the session may make another request, consuming one
// unit of quota when it may.
func (l *Limiter) Allow(sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	state := l.sessions[sessionID]
	if state == nil {
		state = &sessionState{
			limiter:    rate.NewLimiter(rate.Limit(float64(l.cfg.PerMinute)/60.0), l.cfg.PerMinute),
			dailyReset: now.Add(24 * time.Hour),
		}
		l.sessions[sessionID] = state
	}

	if now.After(state.dailyReset) {
		state.dailyCount = 0
		state.dailyReset = now.Add(24 * time.Hour)
	}

	if state.dailyCount >= l.cfg.PerDay {
		return false
	}
	if !state.limiter.Allow() {
		return false
	}

	state.dailyCount++
	return true
}

// Forget drops all quota state for a session. Called when a session is
// deleted so the map does not grow without bound.
func (l *Limiter) Forget(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
}
