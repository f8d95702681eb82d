// Package auth guards the local gateway. The engine itself is
// single-user, so this is deliberately small: an optional static bearer
// token for setups where the gateway is bound beyond loopback, plus
// per-client rate limiting.
package auth

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"

	"chatcore/pkg/logger"
)

// RequireToken rejects requests whose Authorization header does not carry
// the configured bearer token. An empty token disables the check. Health
// and metrics endpoints stay open either way.
func RequireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			logger.Warn("gateway_auth_rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit enforces a per-client-IP request rate on the gateway. rps <= 0
// disables the limit.
func RateLimit(rps float64, burst int, next http.Handler) http.Handler {
	if rps <= 0 {
		return next
	}
	pool := newLimiterPool(rps, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exemptPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !pool.Allow(clientKey(r)) {
			logger.Warn("gateway_rate_limited", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func exemptPath(p string) bool {
	switch p {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
