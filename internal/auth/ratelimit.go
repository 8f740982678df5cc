package auth

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter throttles login attempts per client IP before the
// lockout policy ever sees them. Sliding window over in-memory state;
// this is a best-effort shield, account lockout is the real control.
type LoginRateLimiter struct {
	mu      sync.Mutex
	maxHits int
	window  time.Duration
	hitByIP map[string][]time.Time
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits: maxHits,
		window:  window,
		hitByIP: make(map[string][]time.Time),
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(clientIP(r), time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitByIP[ip]
	live := hits[:0]
	for _, hit := range hits {
		if hit.After(threshold) {
			live = append(live, hit)
		}
	}

	if len(live) >= l.maxHits {
		l.hitByIP[ip] = live
		retryAfter := live[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	l.hitByIP[ip] = append(live, now)
	return true, 0
}

// Prune drops IPs whose entire window has aged out. Called from the
// maintenance endpoint; the limiter itself never grows without bound
// between prunes because each allow call trims its own key.
func (l *LoginRateLimiter) Prune() int {
	threshold := time.Now().UTC().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for ip, hits := range l.hitByIP {
		if len(hits) == 0 || hits[len(hits)-1].Before(threshold) {
			delete(l.hitByIP, ip)
			pruned++
		}
	}

	return pruned
}

func clientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
