package httpgw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maruel/pagetree/internal/apierrors"
	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/gateway/gatewaytest"
	"github.com/maruel/pagetree/internal/gateway/memgw"
	"github.com/maruel/pagetree/internal/ratelimit"
	"github.com/maruel/pagetree/internal/server"
)

func serve(t *testing.T, opts *server.Options) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(server.NewRouter(memgw.New(), opts))
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T, url string, opts *Options) *Gateway {
	t.Helper()
	g, err := New(url, opts)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestConformance(t *testing.T) {
	gatewaytest.Run(t, func(t *testing.T) gateway.Gateway {
		return newClient(t, serve(t, nil).URL, nil)
	})
}

func TestNew(t *testing.T) {
	for _, u := range []string{"localhost:8080", "ftp://x", "://"} {
		if _, err := New(u, nil); err == nil {
			t.Errorf("New(%q) succeeded", u)
		}
	}
	g, err := New("http://localhost:1/", &Options{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if g.baseURL != "http://localhost:1" || g.httpClient.Timeout != time.Second {
		t.Errorf("New() = %+v", g)
	}
}

func TestAuth(t *testing.T) {
	secret := []byte("secret")
	ts := serve(t, &server.Options{JWTSecret: secret})
	ctx := t.Context()

	if _, err := newClient(t, ts.URL, nil).GetWorkspaces(ctx); !IsUnauthorized(err) {
		t.Fatalf("GetWorkspaces(no token) = %v, want unauthorized", err)
	}
	bad := newClient(t, ts.URL, &Options{Token: "garbage"})
	if _, err := bad.GetWorkspaces(ctx); !IsUnauthorized(err) {
		t.Fatalf("GetWorkspaces(bad token) = %v, want unauthorized", err)
	}
	tok, err := server.NewToken(secret, "alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	g := newClient(t, ts.URL, &Options{Token: tok})
	w, err := g.CreateWorkspace(ctx, "Mine", "")
	if err != nil {
		t.Fatal(err)
	}
	if w.OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want %q", w.OwnerID, "alice")
	}
}

func TestErrors(t *testing.T) {
	ts := serve(t, nil)
	g := newClient(t, ts.URL, nil)
	ctx := t.Context()

	err := g.DeletePage(ctx, "missing")
	var e *Error
	if !errors.As(err, &e) || e.StatusCode != http.StatusNotFound || e.Code != apierrors.ErrNotFound {
		t.Fatalf("DeletePage(missing) = %#v", err)
	}
	if !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("errors.Is(%v, ErrNotFound) = false", err)
	}
	// Routes that do not exist answer a plain 404.
	if err := g.do(ctx, http.MethodGet, "/api/nothing", nil, nil); !errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("unknown route = %v, want ErrNotFound", err)
	}
	if err := g.do(ctx, http.MethodPost, "/api/workspaces", map[string]string{"bogus": "x"}, nil); !errors.Is(err, gateway.ErrInvalid) {
		t.Errorf("unknown field = %v, want ErrInvalid", err)
	}

	ts.Close()
	if _, err := g.GetWorkspaces(ctx); err == nil || errors.Is(err, gateway.ErrNotFound) {
		t.Errorf("GetWorkspaces(closed server) = %v", err)
	}
}

func TestRateLimited(t *testing.T) {
	limits := &ratelimit.Limits{Write: ratelimit.NewLimiter(60, 1)}
	t.Cleanup(limits.Close)
	ts := serve(t, &server.Options{Limits: limits})
	g := newClient(t, ts.URL, nil)
	ctx := t.Context()
	if _, err := g.CreateWorkspace(ctx, "a", ""); err != nil {
		t.Fatal(err)
	}
	_, err := g.CreateWorkspace(ctx, "b", "")
	var e *Error
	if !errors.As(err, &e) || e.Code != apierrors.ErrRateLimited || e.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second write = %v, want rate limited", err)
	}
	// Reads have their own budget.
	if ws, err := g.GetWorkspaces(ctx); err != nil || len(ws) != 1 {
		t.Errorf("GetWorkspaces() = %v, %v", ws, err)
	}
}

func TestThrottle(t *testing.T) {
	ts := serve(t, nil)
	g := newClient(t, ts.URL, &Options{RequestsPerSecond: 20})
	ctx := t.Context()
	start := time.Now()
	for range 30 {
		if _, err := g.GetWorkspaces(ctx); err != nil {
			t.Fatal(err)
		}
	}
	// 20 burst then 10 at 20/s.
	if d := time.Since(start); d < 400*time.Millisecond {
		t.Errorf("30 requests took %v, want throttling", d)
	}
}
