// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cutroom/cutroom/internal/log"
	"github.com/cutroom/cutroom/internal/metrics"
	"github.com/go-chi/httprate"
)

// DefaultRequestsPerMinute is the API budget per client IP when none is configured.
const DefaultRequestsPerMinute = 600

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the sliding window.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key. Defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
	// Whitelist holds IPs or CIDRs that bypass the limit.
	Whitelist []string
}

// RateLimit creates a sliding-window rate limiter backed by httprate.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	retryAfter := strconv.Itoa(max(1, int(cfg.WindowSize.Seconds())))

	limit := httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.IncRateLimitRejection("api")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":     "rate limit exceeded",
				"requestId": log.RequestIDFromContext(r.Context()),
			})
		}),
	)

	allow := parseWhitelist(cfg.Whitelist)
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		if allow.empty() {
			return limited
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allow.contains(remoteIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

// APIRateLimit returns the global per-IP limiter for /api routes.
func APIRateLimit(perMinute int, whitelist []string) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	return RateLimit(RateLimitConfig{
		RequestLimit: perMinute,
		WindowSize:   time.Minute,
		Whitelist:    whitelist,
	})
}

type ipSet struct {
	ips  map[string]struct{}
	nets []*net.IPNet
}

func parseWhitelist(entries []string) ipSet {
	s := ipSet{ips: make(map[string]struct{})}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			s.nets = append(s.nets, n)
			continue
		}
		s.ips[e] = struct{}{}
	}
	return s
}

func (s ipSet) empty() bool { return len(s.ips) == 0 && len(s.nets) == 0 }

func (s ipSet) contains(ip string) bool {
	if _, ok := s.ips[ip]; ok {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range s.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
