package security

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
)

// SecurityMiddleware provides security-related middleware for the API
type SecurityMiddleware struct {
	logger      *logger.Logger
	rateLimiter *RateLimiter
}

// NewSecurityMiddleware creates a new security middleware
func NewSecurityMiddleware(logger *logger.Logger, rateLimiter *RateLimiter) *SecurityMiddleware {
	return &SecurityMiddleware{
		logger:      logger,
		rateLimiter: rateLimiter,
	}
}

// Middlewares returns the chain in the order it must be applied
func (m *SecurityMiddleware) Middlewares() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		m.SecurityHeaders,
		m.RateLimit,
	}
}

// SecurityHeaders adds security headers to responses
func (m *SecurityMiddleware) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// RateLimit applies per-client rate limiting. Health probes are exempt.
func (m *SecurityMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimiter == nil || strings.HasPrefix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := ClientIP(r)
		if !m.rateLimiter.Allow(clientIP) {
			m.logger.WithField("client_ip", clientIP).Warn("Rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(int(m.rateLimiter.window.Seconds())))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the client IP address
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (from load balancers/proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if commaIndex := strings.Index(xff, ","); commaIndex != -1 {
			return strings.TrimSpace(xff[:commaIndex])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if colonIndex := strings.LastIndex(r.RemoteAddr, ":"); colonIndex != -1 {
		return r.RemoteAddr[:colonIndex]
	}
	return r.RemoteAddr
}
