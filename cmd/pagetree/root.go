package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/maruel/pagetree/internal/config"
	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/gateway/filegw"
	"github.com/maruel/pagetree/internal/gateway/httpgw"
	"github.com/maruel/pagetree/internal/gateway/memgw"
	"github.com/maruel/pagetree/internal/gateway/sqlgw"
	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/workspace"
)

// sqliteFile is the database file of the sqlite backend inside data_dir.
const sqliteFile = "pagetree.db"

// app holds the flags shared by every command and the resolved
// configuration.
type app struct {
	configPath string
	logLevel   string
	backend    string
	dataDir    string
	url        string
	token      string
	workspace  string

	cfg   *config.Config
	level slog.LevelVar
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "pagetree",
		Short:         "Nested pages, databases and blocks, stored locally or remotely",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", config.DefaultPath, "Configuration file")
	f.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&a.backend, "backend", "", "Backend: memory, file, sqlite or http")
	f.StringVar(&a.dataDir, "data-dir", "", "Data directory of the file and sqlite backends")
	f.StringVar(&a.url, "url", "", "Server URL of the http backend")
	f.StringVar(&a.token, "token", "", "Bearer token of the http backend")
	f.StringVarP(&a.workspace, "workspace", "w", "", "Workspace ID or name; defaults to the first one")

	root.AddCommand(
		a.serveCmd(),
		a.workspaceCmd(),
		a.lsCmd(),
		a.findCmd(),
		a.newPageCmd(),
		a.databaseCmd(),
		a.rowCmd(),
		a.mvCmd(),
		a.rmCmd(),
		a.dupCmd(),
		a.favCmd(),
		a.archiveCmd(),
		a.restoreCmd(),
		a.blocksCmd(),
		a.addBlockCmd(),
		a.schemaCmd(),
		a.tokenCmd(),
		a.watchCmd(),
		a.historyCmd(),
		a.snapshotCmd(),
	)
	return root
}

// init sets up logging and resolves the configuration: flags explicitly set
// override pagetree.yaml, which overrides the defaults.
func (a *app) init(cmd *cobra.Command) error {
	a.initLogger()
	if err := a.setLevel(a.logLevel); err != nil {
		return err
	}
	flags := cmd.Flags()
	cfg, err := config.Load(a.configPath, flags.Changed("config"))
	if err != nil {
		return err
	}
	if flags.Changed("backend") {
		cfg.Backend = config.Backend(a.backend)
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("url") {
		cfg.Client.URL = a.url
		if !flags.Changed("backend") {
			cfg.Backend = config.BackendHTTP
		}
	}
	if flags.Changed("token") {
		cfg.Client.Token = a.token
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) initLogger() {
	// Skip timestamps when running under systemd (it adds its own).
	underSystemd := os.Getenv("JOURNAL_STREAM") != ""
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      &a.level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if underSystemd && attr.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			skip := false
			switch t := attr.Value.Any().(type) {
			case string:
				skip = t == ""
			case int64:
				skip = t == 0 && attr.Key != "status"
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return attr
		},
	}))
	slog.SetDefault(logger)
}

func (a *app) setLevel(level string) error {
	switch level {
	case "debug":
		a.level.Set(slog.LevelDebug)
	case "info":
		a.level.Set(slog.LevelInfo)
	case "warn":
		a.level.Set(slog.LevelWarn)
	case "error":
		a.level.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level: %q", level)
	}
	return nil
}

// openGateway opens the configured backend. The returned function releases
// it.
func (a *app) openGateway(ctx context.Context) (gateway.Gateway, func() error, error) {
	nop := func() error { return nil }
	switch a.cfg.Backend {
	case config.BackendMemory:
		return memgw.New(), nop, nil
	case config.BackendFile:
		g, err := filegw.Open(a.cfg.DataDir, &filegw.Options{Author: userName()})
		if err != nil {
			return nil, nil, err
		}
		return g, nop, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil { //nolint:gosec // G301: data directory.
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		g, err := sqlgw.Open(ctx, filepath.Join(a.cfg.DataDir, sqliteFile))
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case config.BackendHTTP:
		g, err := httpgw.New(a.cfg.Client.URL, &httpgw.Options{
			Token:             a.cfg.Client.Token,
			RequestsPerSecond: a.cfg.Client.RequestsPerSecond,
		})
		if err != nil {
			return nil, nil, err
		}
		return g, nop, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", a.cfg.Backend)
}

// session is a store opened on the configured backend.
type session struct {
	*workspace.Store
	gw      gateway.Gateway
	release func() error
}

// Close flushes pending saves and releases the backend.
func (s *session) Close(ctx context.Context) error {
	return errors.Join(s.Store.Close(ctx), s.release())
}

// open opens a store. When selectWorkspace is set, the workspace named by
// --workspace (or the first one) is loaded.
func (a *app) open(ctx context.Context, selectWorkspace bool) (*session, error) {
	gw, release, err := a.openGateway(ctx)
	if err != nil {
		return nil, err
	}
	s := &session{
		Store:   workspace.New(gw, &workspace.Options{AutosaveDelay: a.cfg.AutosaveDelay, UserID: userName()}),
		gw:      gw,
		release: release,
	}
	if !selectWorkspace {
		return s, nil
	}
	ws, err := s.LoadWorkspaces(ctx)
	if err == nil {
		var w *model.Workspace
		if w, err = pickWorkspace(ws, a.workspace); err == nil {
			err = s.SelectWorkspace(ctx, w.ID)
		}
	}
	if err != nil {
		return nil, errors.Join(err, s.Close(ctx))
	}
	return s, nil
}

// run opens a session, calls fn and closes the session.
func (a *app) run(ctx context.Context, selectWorkspace bool, fn func(s *session) error) error {
	s, err := a.open(ctx, selectWorkspace)
	if err != nil {
		return err
	}
	return errors.Join(fn(s), s.Close(ctx))
}

func pickWorkspace(ws []*model.Workspace, ref string) (*model.Workspace, error) {
	if len(ws) == 0 {
		return nil, errors.New("no workspace; create one with `pagetree ws new <name>`")
	}
	if ref == "" {
		return ws[0], nil
	}
	var match *model.Workspace
	for _, w := range ws {
		if w.ID == ref {
			return w, nil
		}
		if strings.EqualFold(w.Name, ref) {
			if match != nil {
				return nil, fmt.Errorf("ambiguous workspace name %q", ref)
			}
			match = w
		}
	}
	if match == nil {
		return nil, fmt.Errorf("workspace %q not found", ref)
	}
	return match, nil
}

// resolvePage finds a loaded page by ID, or by title when it is unique.
func resolvePage(s *workspace.Store, ref string) (*model.Page, error) {
	if p, ok := s.Page(ref); ok {
		return p, nil
	}
	var matches []*model.Page
	s.Walk(func(p *model.Page, _ int) bool {
		if strings.EqualFold(p.Title, ref) {
			matches = append(matches, p)
		}
		return true
	})
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", workspace.ErrPageNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		lines := make([]string, len(matches))
		for i, p := range matches {
			lines[i] = "  " + p.ID + " " + p.Title
		}
		return nil, fmt.Errorf("ambiguous page %q, %d matches:\n%s", ref, len(matches), strings.Join(lines, "\n"))
	}
}

// resolveParent resolves an optional parent reference.
func resolveParent(s *workspace.Store, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	p, err := resolvePage(s, ref)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func userName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "pagetree"
}
