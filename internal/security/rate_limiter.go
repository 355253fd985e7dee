package security

import (
	"sync"
	"time"

	"github.com/lexops/privguard/internal/config"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client to keep the detection endpoints
// from being used as a scanning oracle.
type RateLimiter struct {
	config *config.SecurityConfig

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.SecurityConfig) *RateLimiter {
	return &RateLimiter{
		config:  cfg,
		clients: make(map[string]*clientLimiter),
	}
}

// Allow checks if a request from the given client is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.config.RateLimit.Enabled {
		return true
	}

	r.mu.Lock()
	cl, ok := r.clients[clientIP]
	if !ok {
		perSecond := rate.Limit(float64(r.config.RateLimit.RequestsPerMin) / 60.0)
		burst := r.config.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(perSecond, burst)}
		r.clients[clientIP] = cl
	}
	cl.lastSeen = time.Now()
	r.mu.Unlock()

	return cl.limiter.Allow()
}

// CleanupStale removes limiters not seen within maxAge to prevent unbounded
// growth.
func (r *RateLimiter) CleanupStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for ip, cl := range r.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(r.clients, ip)
			removed++
		}
	}
	return removed
}
