// Provides the HTTP middleware applying the limits.

package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/maruel/pagetree/internal/apierrors"
	"github.com/maruel/pagetree/internal/server/reqctx"
)

// Limits holds the limiter of each request class. A nil limiter disables
// limiting for its class.
type Limits struct {
	Read  *Limiter
	Write *Limiter
}

// Close stops all limiters.
func (l *Limits) Close() {
	if l.Read != nil {
		l.Read.Close()
	}
	if l.Write != nil {
		l.Write.Close()
	}
}

// match returns the limiter for a request, or nil when it is not limited.
func (l *Limits) match(r *http.Request) (*Limiter, string) {
	if r.URL.Path == "/api/health" {
		return nil, ""
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return l.Read, "read"
	default:
		return l.Write, "write"
	}
}

// Middleware rejects requests over their budget with 429. key identifies the
// client; when it returns "", the remote IP is used.
func Middleware(limits *Limits, key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l, class := limits.match(r)
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			k := ""
			if key != nil {
				k = key(r)
			}
			if k == "" {
				k = "ip:" + reqctx.GetClientIP(r)
			}
			res := l.Allow(class + ":" + k)
			WriteHeaders(w, res)
			if !res.Allowed {
				e := apierrors.TooManyRequests()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(e.StatusCode())
				_ = json.NewEncoder(w).Encode(&apierrors.Body{
					Error: apierrors.BodyError{Code: e.Code(), Message: e.Message()},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteHeaders writes the X-RateLimit-* headers, plus Retry-After when the
// request was rejected.
func WriteHeaders(w http.ResponseWriter, res Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed {
		h.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
	}
}
