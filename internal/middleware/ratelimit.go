package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

type window struct {
	startedAt time.Time
	count     int
}

// RateLimiter enforces a fixed-window request cap per caller. Callers are
// keyed by authenticated user when the request carries one, falling back to
// the remote address for the anonymous auth endpoints it also guards.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	span    time.Duration
}

func NewRateLimiter(limit int, span time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		span:    span,
	}
	go rl.sweep()
	return rl
}

// sweep drops windows that have fully expired so idle callers do not
// accumulate in the map.
func (rl *RateLimiter) sweep() {
	for range time.Tick(rl.span) {
		rl.mu.Lock()
		for key, w := range rl.windows {
			if time.Since(w.startedAt) > rl.span {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || time.Since(w.startedAt) > rl.span {
		rl.windows[key] = &window{startedAt: time.Now(), count: 1}
		return true
	}
	w.count++
	return w.count <= rl.limit
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(callerKey(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerKey(r *http.Request) string {
	if id := GetUserID(r.Context()); id != uuid.Nil {
		return "user:" + id.String()
	}
	return "ip:" + r.RemoteAddr
}
