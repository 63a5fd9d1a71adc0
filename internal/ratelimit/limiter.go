// SPDX-License-Identifier: MIT

// Package ratelimit throttles expensive operations per client and per class.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/metrics"
	"golang.org/x/time/rate"
)

// Operation classes with their own budgets.
const (
	ClassTranscode = "transcode"
	ClassDownload  = "download"
	ClassUpstream  = "upstream"
)

// Config holds rate limiting configuration.
type Config struct {
	// Per-client limits applied to every class.
	PerIPRate  rate.Limit
	PerIPBurst int

	// Process-wide limits per class. A class without an entry is only
	// bounded by the per-client limit.
	ClassRates map[string]rate.Limit
	ClassBurst map[string]int

	// Whitelist contains IPs or CIDRs that bypass limiting.
	Whitelist []string

	// Idle per-client limiters are dropped after this long.
	IdleTTL time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PerIPRate:  1,
		PerIPBurst: 4,
		ClassRates: map[string]rate.Limit{
			ClassTranscode: 2,
			ClassDownload:  1,
			ClassUpstream:  5,
		},
		ClassBurst: map[string]int{
			ClassTranscode: 4,
			ClassDownload:  4,
			ClassUpstream:  10,
		},
		IdleTTL: 10 * time.Minute,
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages rate limiting for expensive operations.
type Limiter struct {
	config Config

	mu       sync.Mutex
	perClass map[string]*rate.Limiter
	perIP    map[string]*clientLimiter
	allowIPs map[string]struct{}
	allowNet []*net.IPNet

	lastCleanup time.Time
	now         func() time.Time
}

// New creates a new rate limiter with the given config.
func New(config Config) *Limiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	l := &Limiter{
		config:   config,
		perClass: make(map[string]*rate.Limiter),
		perIP:    make(map[string]*clientLimiter),
		allowIPs: make(map[string]struct{}),
		now:      time.Now,
	}
	l.lastCleanup = l.now()

	for class, classRate := range config.ClassRates {
		l.perClass[class] = rate.NewLimiter(classRate, config.ClassBurst[class])
	}
	for _, entry := range config.Whitelist {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(entry); err == nil {
			l.allowNet = append(l.allowNet, n)
			continue
		}
		l.allowIPs[entry] = struct{}{}
	}
	return l
}

func (l *Limiter) whitelisted(ip string) bool {
	if _, ok := l.allowIPs[ip]; ok {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range l.allowNet {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// Allow reports whether clientIP may run an operation of the given class.
func (l *Limiter) Allow(clientIP, class string) bool {
	if l.whitelisted(clientIP) {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cl, ok := l.perClass[class]; ok && !cl.Allow() {
		metrics.IncRateLimitRejection(class)
		return false
	}

	key := class + "|" + clientIP
	now := l.now()
	entry, ok := l.perIP[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.config.PerIPRate, l.config.PerIPBurst)}
		l.perIP[key] = entry
	}
	entry.lastSeen = now
	if !entry.limiter.AllowN(now, 1) {
		metrics.IncRateLimitRejection(class)
		return false
	}

	l.cleanupLocked(now)
	return true
}

// cleanupLocked drops per-client limiters idle for longer than IdleTTL.
func (l *Limiter) cleanupLocked(now time.Time) {
	if now.Sub(l.lastCleanup) < l.config.IdleTTL {
		return
	}
	for key, entry := range l.perIP {
		if now.Sub(entry.lastSeen) >= l.config.IdleTTL {
			delete(l.perIP, key)
		}
	}
	l.lastCleanup = now
}

func (l *Limiter) clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.perIP)
}

// Middleware rejects requests over budget with 429 and a JSON error body.
func (l *Limiter) Middleware(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(GetClientIP(r), class) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":     "rate limit exceeded",
					"requestId": log.RequestIDFromContext(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClientIP extracts the real client IP from the request.
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For can contain "client, proxy1, proxy2"; the first entry is the client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
