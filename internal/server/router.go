// Package server exposes a gateway.Gateway over the REST API consumed by
// httpgw.
package server

import (
	"net/http"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/ratelimit"
	"github.com/maruel/pagetree/internal/server/handlers"
	"github.com/maruel/pagetree/internal/server/reqctx"
)

// Options configures the router. The zero value serves without
// authentication nor rate limiting.
type Options struct {
	Version string
	// JWTSecret enables bearer authentication when not empty.
	JWTSecret []byte
	// Limits throttles clients when not nil. The caller owns it.
	Limits *ratelimit.Limits
	// AccessLog logs every request.
	AccessLog bool
}

// NewRouter creates and configures the HTTP router serving gw.
func NewRouter(gw gateway.Gateway, opts *Options) http.Handler {
	if opts == nil {
		opts = &Options{}
	}
	mux := &http.ServeMux{}
	hh := handlers.NewHealthHandler(opts.Version)
	wh := handlers.NewWorkspaceHandler(gw)
	ph := handlers.NewPageHandler(gw)
	bh := handlers.NewBlockHandler(gw)

	mux.Handle("GET /api/health", Wrap(hh.Health))
	mux.Handle("GET /api/schema", Wrap(hh.Schema))

	// Workspaces
	mux.Handle("GET /api/workspaces", Wrap(wh.ListWorkspaces))
	mux.Handle("POST /api/workspaces", Wrap(wh.CreateWorkspace))
	mux.Handle("PATCH /api/workspaces/{id}", Wrap(wh.UpdateWorkspace))
	mux.Handle("DELETE /api/workspaces/{id}", Wrap(wh.DeleteWorkspace))

	// Pages
	mux.Handle("GET /api/workspaces/{id}/pages", Wrap(ph.ListPages))
	mux.Handle("POST /api/workspaces/{id}/pages", Wrap(ph.CreatePage))
	mux.Handle("POST /api/workspaces/{id}/pages/bulk", Wrap(ph.BulkCreatePages))
	mux.Handle("PATCH /api/pages/{id}", Wrap(ph.UpdatePage))
	mux.Handle("DELETE /api/pages/{id}", Wrap(ph.DeletePage))
	mux.Handle("POST /api/pages/bulk-delete", Wrap(ph.BulkDeletePages))

	// Blocks
	mux.Handle("GET /api/pages/{id}/blocks", Wrap(bh.ListBlocks))
	mux.Handle("POST /api/pages/{id}/blocks", Wrap(bh.CreateBlock))
	mux.Handle("PUT /api/pages/{id}/blocks", Wrap(bh.SyncBlocks))
	mux.Handle("PATCH /api/blocks/{id}", Wrap(bh.UpdateBlock))
	mux.Handle("DELETE /api/blocks/{id}", Wrap(bh.DeleteBlock))

	// Innermost first: limits are keyed by the subject set by AuthMiddleware.
	var h http.Handler = mux
	if opts.Limits != nil {
		h = ratelimit.Middleware(opts.Limits, subjectKey)(h)
	}
	if len(opts.JWTSecret) != 0 {
		h = AuthMiddleware(opts.JWTSecret)(h)
	}
	if opts.AccessLog {
		h = LoggingMiddleware(h)
	}
	return RequestMetadata(h)
}

func subjectKey(r *http.Request) string {
	if sub := reqctx.Subject(r.Context()); sub != "" {
		return "sub:" + sub
	}
	return ""
}
