package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter allows a fixed number of requests per IP in each window.
// A rate of zero disables limiting.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	rate      int
	window    time.Duration
	whitelist map[string]struct{}
	onBlocked func()
	now       func() time.Time
	logger    *slog.Logger
}

type client struct {
	tokens    int
	lastReset time.Time
}

type Option func(*RateLimiter)

// OnBlocked registers a callback run for every rejected request
func OnBlocked(fn func()) Option {
	return func(rl *RateLimiter) { rl.onBlocked = fn }
}

func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter creates a rate limiter allowing 'rate' requests per 'window'.
// IPs in whitelist bypass the limiter.
func NewRateLimiter(rate int, window time.Duration, whitelist []string, logger *slog.Logger, opts ...Option) *RateLimiter {
	wl := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			wl[ip] = struct{}{}
		}
	}

	rl := &RateLimiter{
		clients:   make(map[string]*client),
		rate:      rate,
		window:    window,
		whitelist: wl,
		now:       time.Now,
		logger:    logger.With("component", "rate_limiter"),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Run evicts idle clients every two windows until ctx is done
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *RateLimiter) evict() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for ip, c := range rl.clients {
		if now.Sub(c.lastReset) > rl.window*2 {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) IsWhitelisted(ip string) bool {
	_, ok := rl.whitelist[ip]
	return ok
}

// Allow checks if a request from the given IP should be allowed
func (rl *RateLimiter) Allow(ip string) bool {
	if rl.rate <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, exists := rl.clients[ip]

	if !exists {
		rl.clients[ip] = &client{
			tokens:    rl.rate - 1,
			lastReset: now,
		}
		return true
	}

	if now.Sub(c.lastReset) > rl.window {
		c.tokens = rl.rate - 1
		c.lastReset = now
		return true
	}

	if c.tokens > 0 {
		c.tokens--
		return true
	}

	return false
}

// Middleware returns an HTTP middleware that applies rate limiting
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(rl.window.Seconds())))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if rl.IsWhitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.Allow(ip) {
			rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			if rl.onBlocked != nil {
				rl.onBlocked()
			}
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	// "client, proxy1, proxy2"
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiter) TrackedIPs() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
