package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// pruning only starts once this many clients are tracked
	pruneThreshold = 1000
	maxIdle        = 10 * time.Minute
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewIPRateLimiter creates a limiter allowing rps requests per second per IP
// with the given burst
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// Limiter returns the bucket for ip, dropping idle clients when the table grows
func (l *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.clients) > pruneThreshold {
		cutoff := now.Add(-maxIdle)
		for k, c := range l.clients {
			if c.lastSeen.Before(cutoff) {
				delete(l.clients, k)
			}
		}
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Clients returns the number of tracked IPs
func (l *IPRateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// ClientIP returns the remote address without its port
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// RateLimit rejects requests from clients that have exhausted their bucket,
// delegating the response to reject
func RateLimit(l *IPRateLimiter, reject http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Limiter(ClientIP(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
