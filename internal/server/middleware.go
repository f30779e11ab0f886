package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/maruel/pagetree/internal/apierrors"
	"github.com/maruel/pagetree/internal/server/reqctx"
)

// NewToken returns an HS256 token for subject, valid for ttl.
func NewToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty jwt secret")
	}
	if subject == "" {
		return "", errors.New("empty subject")
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// parseToken validates an HS256 token and returns its subject.
func parseToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid claims")
	}
	if claims.Subject == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

// AuthMiddleware requires a valid bearer token on every /api/ route except
// the health check, and adds its subject to the context.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(ctx, w, "missing authorization header")
				return
			}
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				writeAuthError(ctx, w, "invalid authorization header")
				return
			}
			sub, err := parseToken(secret, tokenString)
			if err != nil {
				slog.DebugContext(ctx, "Rejected token", "err", err)
				writeAuthError(ctx, w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(reqctx.WithSubject(ctx, sub)))
		})
	}
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, msg string) {
	e := apierrors.Unauthorized(msg)
	slog.DebugContext(ctx, "Unauthorized", "msg", msg, "ip", reqctx.ClientIP(ctx))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(e.StatusCode())
	_ = json.NewEncoder(w).Encode(&apierrors.Body{
		Error: apierrors.BodyError{Code: e.Code(), Message: e.Message()},
	})
}

// RequestMetadata adds the client IP to the context.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqctx.WithClientIP(r.Context(), reqctx.GetClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder remembers the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		ctx := r.Context()
		slog.InfoContext(ctx, "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"dur", time.Since(start).Round(time.Microsecond),
			"ip", reqctx.ClientIP(ctx))
	})
}
