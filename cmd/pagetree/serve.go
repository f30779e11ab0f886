package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/pagetree/internal/config"
	"github.com/maruel/pagetree/internal/ratelimit"
	"github.com/maruel/pagetree/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the selected backend over the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("http") {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "http", "", "Address to listen on; overrides server.addr")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.Backend == config.BackendHTTP {
		return errors.New("serve needs a local backend")
	}
	gw, release, err := a.openGateway(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()

	limits := a.limits()
	defer limits.Close()
	sc := &a.cfg.Server
	if sc.JWTSecret == "" {
		slog.WarnContext(ctx, "Authentication disabled; set server.jwt_secret to enable it")
	}
	// Normalize addr: ":8080" becomes "localhost:8080".
	addr := sc.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	httpServer := &http.Server{
		Addr: addr,
		Handler: server.NewRouter(gw, &server.Options{
			Version:   version(),
			JWTSecret: []byte(sc.JWTSecret),
			Limits:    limits,
			AccessLog: true,
		}),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "backend", a.cfg.Backend, "version", version())
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// limits builds the limiters from the configuration. A zero rate disables
// its class.
func (a *app) limits() *ratelimit.Limits {
	rl := a.cfg.Server.RateLimits
	l := &ratelimit.Limits{}
	if rl.ReadPerMin > 0 {
		l.Read = ratelimit.NewLimiter(rl.ReadPerMin, rl.Burst)
	}
	if rl.WritePerMin > 0 {
		l.Write = ratelimit.NewLimiter(rl.WritePerMin, rl.Burst)
	}
	return l
}

// version returns the module version, or the VCS revision of a dev build.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	rev, dirty := "", false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return "devel"
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		rev += "-dirty"
	}
	return rev
}
