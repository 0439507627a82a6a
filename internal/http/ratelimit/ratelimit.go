// Package ratelimit provides per-client-IP request limiting backed by
// x/time token buckets.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*limiterEntry
	rate           rate.Limit
	burst          int
	cleanup        time.Duration
	maxEntries     int
	trustedProxies []*net.IPNet
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewIPRateLimiter creates a limiter allowing r requests per second with the
// given burst per IP. Stale buckets are dropped on the cleanup interval.
// trustedProxies lists CIDR ranges (or single IPs) of reverse proxies whose
// forwarding headers may be believed; when empty, headers are trusted from
// any peer.
func NewIPRateLimiter(r rate.Limit, burst int, cleanup time.Duration, trustedProxies []string) *IPRateLimiter {
	l := &IPRateLimiter{
		limiters:   make(map[string]*limiterEntry),
		rate:       r,
		burst:      burst,
		cleanup:    cleanup,
		maxEntries: 10000,
	}
	for _, entry := range trustedProxies {
		if ipnet := parseCIDROrIP(entry); ipnet != nil {
			l.trustedProxies = append(l.trustedProxies, ipnet)
		}
	}

	go l.dropStale()

	return l
}

func parseCIDROrIP(s string) *net.IPNet {
	if _, ipnet, err := net.ParseCIDR(s); err == nil {
		return ipnet
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	if ip.To4() != nil {
		_, ipnet, _ := net.ParseCIDR(s + "/32")
		return ipnet
	}
	_, ipnet, _ := net.ParseCIDR(s + "/128")
	return ipnet
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) >= l.maxEntries {
			l.evictOldest()
		}
		entry = &limiterEntry{
			limiter:    rate.NewLimiter(l.rate, l.burst),
			lastAccess: time.Now(),
		}
		l.limiters[ip] = entry
	} else {
		entry.lastAccess = time.Now()
	}

	return entry.limiter
}

// evictOldest runs under l.mu.
func (l *IPRateLimiter) evictOldest() {
	var oldestIP string
	var oldestTime time.Time
	for ip, entry := range l.limiters {
		if oldestIP == "" || entry.lastAccess.Before(oldestTime) {
			oldestIP = ip
			oldestTime = entry.lastAccess
		}
	}
	if oldestIP != "" {
		delete(l.limiters, oldestIP)
	}
}

func (l *IPRateLimiter) dropStale() {
	ticker := time.NewTicker(l.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-l.cleanup * 2)
		l.mu.Lock()
		for ip, entry := range l.limiters {
			if entry.lastAccess.Before(cutoff) {
				delete(l.limiters, ip)
			}
		}
		l.mu.Unlock()
	}
}

// Middleware rejects over-limit requests with 429.
func (l *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.getLimiter(l.clientIP(r)).Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the originating client address. Forwarding headers are
// honored only when the direct peer is a trusted proxy (or no proxy list is
// configured).
func (l *IPRateLimiter) clientIP(r *http.Request) string {
	remoteIP := parseAddr(r.RemoteAddr)

	if len(l.trustedProxies) > 0 {
		trusted := false
		for _, ipnet := range l.trustedProxies {
			if ipnet.Contains(remoteIP) {
				trusted = true
				break
			}
		}
		if !trusted {
			return remoteIP.String()
		}
	}

	// X-Forwarded-For: client, proxy1, proxy2 -- leftmost is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if parsed := net.ParseIP(xri); parsed != nil {
			return parsed.String()
		}
	}
	return remoteIP.String()
}

func parseAddr(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(addr)
}
