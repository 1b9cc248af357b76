package auth

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Failed-authentication throttling defaults.
const (
	DefaultMaxFailedAttempts = 5
	DefaultRateLimitWindow   = 15 * time.Minute
	DefaultCleanupInterval   = 5 * time.Minute
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
	CleanupInterval   time.Duration
	// TrustedProxyHops is the number of reverse proxies in front of the
	// service. Zero ignores forwarding headers entirely.
	TrustedProxyHops int
}

// DefaultRateLimiterConfig returns the default rate limiter configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		Window:            DefaultRateLimitWindow,
		CleanupInterval:   DefaultCleanupInterval,
	}
}

type failureWindow struct {
	count int
	start time.Time
}

// RateLimiter counts failed authentications per client address inside a
// fixed window. Successful requests are never throttled by it.
type RateLimiter struct {
	mu       sync.Mutex
	failures map[string]*failureWindow
	config   RateLimiterConfig
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its sweeper.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.MaxFailedAttempts <= 0 {
		config.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if config.Window <= 0 {
		config.Window = DefaultRateLimitWindow
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCleanupInterval
	}
	if config.TrustedProxyHops < 0 {
		config.TrustedProxyHops = 0
	}

	rl := &RateLimiter{
		failures: make(map[string]*failureWindow),
		config:   config,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for client, w := range rl.failures {
				if rl.expired(w) {
					delete(rl.failures, client)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop stops the sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// IsLimited reports whether client has used up its failed attempts.
func (rl *RateLimiter) IsLimited(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.failures[client]
	if !ok || rl.expired(w) {
		return false
	}
	return w.count >= rl.config.MaxFailedAttempts
}

// RecordFailure counts one failed attempt for client.
func (rl *RateLimiter) RecordFailure(client string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.failures[client]
	if !ok || rl.expired(w) {
		rl.failures[client] = &failureWindow{count: 1, start: rl.now()}
		return
	}
	w.count++
}

// Reset forgets client's failures.
func (rl *RateLimiter) Reset(client string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.failures, client)
}

// caller holds mu
func (rl *RateLimiter) expired(w *failureWindow) bool {
	return rl.now().Sub(w.start) > rl.config.Window
}

// ClientIP returns the address failures are counted against, trusting
// forwarding headers only as far as the configured proxy hops.
func (rl *RateLimiter) ClientIP(r *http.Request) string {
	if rl == nil {
		return GetClientIP(r, 0)
	}
	return GetClientIP(r, rl.config.TrustedProxyHops)
}

// GetClientIP returns the originating client address. With trustedHops
// proxies in front, each appends the peer it saw to X-Forwarded-For, so the
// client is the trustedHops-th entry from the right; entries left of it are
// client-supplied and ignored. X-Real-IP is used only when a trusted proxy
// sent no X-Forwarded-For. Without trusted proxies the connection's remote
// address is used.
func GetClientIP(r *http.Request, trustedHops int) string {
	if trustedHops > 0 {
		if hops := forwardedHops(r.Header.Values("X-Forwarded-For")); len(hops) > 0 {
			i := len(hops) - trustedHops
			if i < 0 {
				i = 0
			}
			return hops[i]
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func forwardedHops(values []string) []string {
	var hops []string
	for _, v := range values {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}
