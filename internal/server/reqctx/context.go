// Package reqctx carries request metadata through the context.
package reqctx

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	keySubject  contextKey = "subject"
	keyClientIP contextKey = "clientIP"
)

// WithSubject adds the authenticated subject to the context.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, keySubject, sub)
}

// Subject returns the authenticated subject, or "" when the request is
// anonymous.
func Subject(ctx context.Context) string {
	if v, ok := ctx.Value(keySubject).(string); ok {
		return v
	}
	return ""
}

// WithClientIP adds the client IP to the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIP returns the client IP stored in the context.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(keyClientIP).(string); ok {
		return v
	}
	return ""
}

// GetClientIP extracts the client IP from an HTTP request, honoring
// X-Forwarded-For and X-Real-IP set by a reverse proxy.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if strings.HasPrefix(addr, "[") {
		if host, _, found := strings.Cut(addr, "]:"); found {
			return host[1:]
		}
		return strings.Trim(addr, "[]")
	}
	if host, _, found := strings.Cut(addr, ":"); found {
		return host
	}
	return addr
}
