// Package filegw implements gateway.Gateway on a local data directory.
//
// Layout:
//
//	<dir>/workspaces.jsonl
//	<dir>/<workspace>/pages.jsonl    pages, parents before children
//	<dir>/<workspace>/blocks.jsonl   flat blocks of every page
//	<dir>/<workspace>/pages/<id>.md  rendered page, YAML front matter
//
// Every mutation rewrites the tables of the touched workspace and commits the
// changed files to a git repository rooted at <dir>.
package filegw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/gateway/memgw"
	"github.com/maruel/pagetree/internal/gitrepo"
	"github.com/maruel/pagetree/internal/jsonldb"
	"github.com/maruel/pagetree/internal/model"
)

const (
	workspacesFile = "workspaces.jsonl"
	pagesFile      = "pages.jsonl"
	blocksFile     = "blocks.jsonl"
	pagesDir       = "pages"
)

// Options configures a Gateway.
type Options struct {
	// Author signs the commits. Defaults to "pagetree".
	Author string
	// Email signs the commits. Defaults to "pagetree@localhost".
	Email string
}

// Gateway is a page store persisted in a directory. It is safe for
// concurrent use within one process.
type Gateway struct {
	dir  string
	mem  *memgw.Gateway
	repo *gitrepo.Repo

	// mu serializes mutations with their persistence.
	mu         sync.Mutex
	workspaces *jsonldb.Table[*model.Workspace]
	tables     map[string]*tables
	stamps     map[string]stamp
}

var _ gateway.Gateway = (*Gateway)(nil)

type tables struct {
	pages  *jsonldb.Table[*model.Page]
	blocks *jsonldb.Table[*model.FlatBlock]
}

// stamp identifies the version of a file last written by this process.
type stamp struct {
	mod  time.Time
	size int64
}

// Open loads the store in dir, creating it when needed.
func Open(dir string, opts *Options) (*Gateway, error) {
	if opts == nil {
		opts = &Options{}
	}
	author, email := opts.Author, opts.Email
	if author == "" {
		author = "pagetree"
	}
	if email == "" {
		email = "pagetree@localhost"
	}
	repo, err := gitrepo.Open(dir, author, email)
	if err != nil {
		return nil, err
	}
	g := &Gateway{dir: dir, repo: repo}
	if err := g.reloadLocked(); err != nil {
		return nil, err
	}
	return g, nil
}

// Dir returns the data directory.
func (g *Gateway) Dir() string {
	return g.dir
}

// History returns the commits touching a page, newest first.
func (g *Gateway) History(pageID string, n int) ([]*gitrepo.Commit, error) {
	wsID, ok := g.memory().WorkspaceOfPage(pageID)
	if !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, gateway.ErrNotFound)
	}
	return g.repo.History(path.Join(wsID, pagesDir, pageID+".md"), n)
}

// Reload discards the in-memory state and reads the directory again.
func (g *Gateway) Reload() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reloadLocked()
}

func (g *Gateway) reloadLocked() error {
	ws, err := jsonldb.NewTable[*model.Workspace](filepath.Join(g.dir, workspacesFile))
	if err != nil {
		return err
	}
	mem := memgw.New()
	all := map[string]*tables{}
	for w := range ws.All() {
		t, err := openTables(filepath.Join(g.dir, w.ID))
		if err != nil {
			return err
		}
		if err := mem.Import(w, slices.Collect(t.pages.All()), slices.Collect(t.blocks.All())); err != nil {
			return fmt.Errorf("load workspace %s: %w", w.ID, err)
		}
		all[w.ID] = t
	}
	g.workspaces = ws
	g.tables = all
	g.mem = mem
	g.stamps = map[string]stamp{}
	g.stampLocked(workspacesFile)
	for id := range all {
		g.stampLocked(path.Join(id, pagesFile), path.Join(id, blocksFile))
	}
	return nil
}

func openTables(dir string) (*tables, error) {
	pages, err := jsonldb.NewTable[*model.Page](filepath.Join(dir, pagesFile))
	if err != nil {
		return nil, err
	}
	blocks, err := jsonldb.NewTable[*model.FlatBlock](filepath.Join(dir, blocksFile))
	if err != nil {
		return nil, err
	}
	return &tables{pages: pages, blocks: blocks}, nil
}

// mutate runs fn against the in-memory store and persists the workspaces it
// returns. When persisting fails, the directory content is reloaded so the
// call has no effect.
func (g *Gateway) mutate(msg string, fn func(mem *memgw.Gateway) ([]string, error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	wsIDs, err := fn(g.mem)
	if err != nil {
		return err
	}
	if err := g.persistLocked(msg, wsIDs); err != nil {
		if rerr := g.reloadLocked(); rerr != nil {
			slog.Error("Failed to reload data directory", "dir", g.dir, "err", rerr)
		}
		return err
	}
	return nil
}

// persistLocked rewrites the files of the given workspaces and commits them.
func (g *Gateway) persistLocked(msg string, wsIDs []string) error {
	var changed []string
	if err := g.workspaces.Replace(g.listWorkspaces()); err != nil {
		return err
	}
	changed = append(changed, workspacesFile)
	g.stampLocked(workspacesFile)
	for _, id := range compact(wsIDs) {
		files, err := g.writeWorkspaceLocked(id)
		if err != nil {
			return err
		}
		changed = append(changed, files...)
	}
	return g.repo.Commit(msg, changed...)
}

func (g *Gateway) listWorkspaces() []*model.Workspace {
	ws, _ := g.mem.GetWorkspaces(context.Background())
	return ws
}

// writeWorkspaceLocked writes the tables and page files of a workspace, or
// removes its directory when it no longer exists. It returns the files it
// changed, relative to the data directory.
func (g *Gateway) writeWorkspaceLocked(wsID string) ([]string, error) {
	wsDir := filepath.Join(g.dir, wsID)
	_, pages, blocks, ok := g.mem.Export(wsID)
	if !ok {
		files, err := listFiles(g.dir, wsID)
		if err != nil {
			return nil, err
		}
		delete(g.tables, wsID)
		if err := os.RemoveAll(wsDir); err != nil {
			return nil, fmt.Errorf("failed to remove workspace %s: %w", wsID, err)
		}
		return files, nil
	}
	t := g.tables[wsID]
	if t == nil {
		var err error
		if t, err = openTables(wsDir); err != nil {
			return nil, err
		}
		g.tables[wsID] = t
	}
	if err := t.pages.Replace(pages); err != nil {
		return nil, err
	}
	if err := t.blocks.Replace(blocks); err != nil {
		return nil, err
	}
	changed := []string{path.Join(wsID, pagesFile), path.Join(wsID, blocksFile)}
	g.stampLocked(changed...)

	md, err := g.writePagesLocked(wsID, pages, blocks)
	if err != nil {
		return nil, err
	}
	return append(changed, md...), nil
}

// writePagesLocked renders every page to markdown, rewriting only the files
// whose content changed and removing the files of deleted pages.
func (g *Gateway) writePagesLocked(wsID string, pages []*model.Page, blocks []*model.FlatBlock) ([]string, error) {
	dir := filepath.Join(g.dir, wsID, pagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	byPage := map[string][]*model.FlatBlock{}
	for _, b := range blocks {
		byPage[b.PageID] = append(byPage[b.PageID], b)
	}
	var changed []string
	keep := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		name := p.ID + ".md"
		keep[name] = struct{}{}
		data, err := RenderPage(p, byPage[p.ID])
		if err != nil {
			return nil, fmt.Errorf("render page %s: %w", p.ID, err)
		}
		full := filepath.Join(dir, name)
		if old, err := os.ReadFile(full); err == nil && string(old) == string(data) {
			continue
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", full, err)
		}
		changed = append(changed, path.Join(wsID, pagesDir, name))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		if _, ok := keep[e.Name()]; ok || e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		changed = append(changed, path.Join(wsID, pagesDir, e.Name()))
	}
	return changed, nil
}

func (g *Gateway) stampLocked(rel ...string) {
	for _, r := range rel {
		if fi, err := os.Stat(filepath.Join(g.dir, filepath.FromSlash(r))); err == nil {
			g.stamps[r] = stamp{mod: fi.ModTime(), size: fi.Size()}
		}
	}
}

// listFiles returns the regular files under root/sub, relative to root with
// forward slashes.
func listFiles(root, sub string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(filepath.Join(root, sub), func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	return out, err
}

// checkID rejects pre-assigned page IDs that cannot be used as file names.
func checkID(id string) error {
	if id == "" {
		return nil
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\:`) {
		return fmt.Errorf("%w: page id %q", gateway.ErrInvalid, id)
	}
	return nil
}

func compact(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Workspaces.

// GetWorkspaces implements gateway.Gateway.
func (g *Gateway) GetWorkspaces(ctx context.Context) ([]*model.Workspace, error) {
	return g.memory().GetWorkspaces(ctx)
}

// CreateWorkspace implements gateway.Gateway.
func (g *Gateway) CreateWorkspace(ctx context.Context, name, ownerID string) (*model.Workspace, error) {
	var w *model.Workspace
	err := g.mutate("Create workspace "+name, func(mem *memgw.Gateway) ([]string, error) {
		var err error
		w, err = mem.CreateWorkspace(ctx, name, ownerID)
		if err != nil {
			return nil, err
		}
		return []string{w.ID}, nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// UpdateWorkspace implements gateway.Gateway.
func (g *Gateway) UpdateWorkspace(ctx context.Context, id, name string) error {
	return g.mutate("Rename workspace "+id, func(mem *memgw.Gateway) ([]string, error) {
		return nil, mem.UpdateWorkspace(ctx, id, name)
	})
}

// DeleteWorkspace implements gateway.Gateway.
func (g *Gateway) DeleteWorkspace(ctx context.Context, id string) error {
	return g.mutate("Delete workspace "+id, func(mem *memgw.Gateway) ([]string, error) {
		return []string{id}, mem.DeleteWorkspace(ctx, id)
	})
}

// Pages.

// GetPages implements gateway.Gateway.
func (g *Gateway) GetPages(ctx context.Context, workspaceID string) ([]*model.Page, error) {
	return g.memory().GetPages(ctx, workspaceID)
}

// CreatePage implements gateway.Gateway.
func (g *Gateway) CreatePage(ctx context.Context, workspaceID, parentID, title, id string) (*model.Page, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var p *model.Page
	err := g.mutate("Create page "+title, func(mem *memgw.Gateway) ([]string, error) {
		var err error
		p, err = mem.CreatePage(ctx, workspaceID, parentID, title, id)
		return []string{workspaceID}, err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// BulkCreatePages implements gateway.Gateway.
func (g *Gateway) BulkCreatePages(ctx context.Context, workspaceID, parentID string, pages []model.PageInput) ([]*model.Page, error) {
	for _, np := range pages {
		if err := checkID(np.ID); err != nil {
			return nil, err
		}
	}
	var out []*model.Page
	err := g.mutate(fmt.Sprintf("Create %d pages", len(pages)), func(mem *memgw.Gateway) ([]string, error) {
		var err error
		out, err = mem.BulkCreatePages(ctx, workspaceID, parentID, pages)
		return []string{workspaceID}, err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePage implements gateway.Gateway.
func (g *Gateway) UpdatePage(ctx context.Context, id string, u *model.PageUpdate) error {
	return g.mutate("Update page "+id, func(mem *memgw.Gateway) ([]string, error) {
		wsID, _ := mem.WorkspaceOfPage(id)
		return []string{wsID}, mem.UpdatePage(ctx, id, u)
	})
}

// DeletePage implements gateway.Gateway.
func (g *Gateway) DeletePage(ctx context.Context, id string) error {
	return g.mutate("Delete page "+id, func(mem *memgw.Gateway) ([]string, error) {
		wsID, _ := mem.WorkspaceOfPage(id)
		return []string{wsID}, mem.DeletePage(ctx, id)
	})
}

// BulkDeletePages implements gateway.Gateway.
func (g *Gateway) BulkDeletePages(ctx context.Context, ids []string) error {
	return g.mutate(fmt.Sprintf("Delete %d pages", len(ids)), func(mem *memgw.Gateway) ([]string, error) {
		var wsIDs []string
		for _, id := range ids {
			if wsID, ok := mem.WorkspaceOfPage(id); ok {
				wsIDs = append(wsIDs, wsID)
			}
		}
		return wsIDs, mem.BulkDeletePages(ctx, ids)
	})
}

// Blocks.

// GetBlocks implements gateway.Gateway.
func (g *Gateway) GetBlocks(ctx context.Context, pageID string) ([]*model.FlatBlock, error) {
	return g.memory().GetBlocks(ctx, pageID)
}

// CreateBlock implements gateway.Gateway.
func (g *Gateway) CreateBlock(ctx context.Context, pageID string, typ model.BlockType, content, parentID string, index int) (*model.Block, error) {
	var b *model.Block
	err := g.mutate("Edit page "+pageID, func(mem *memgw.Gateway) ([]string, error) {
		wsID, _ := mem.WorkspaceOfPage(pageID)
		var err error
		b, err = mem.CreateBlock(ctx, pageID, typ, content, parentID, index)
		return []string{wsID}, err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBlock implements gateway.Gateway.
func (g *Gateway) UpdateBlock(ctx context.Context, id string, u *model.BlockUpdate) error {
	return g.mutate("Update block "+id, func(mem *memgw.Gateway) ([]string, error) {
		wsID, _ := mem.WorkspaceOfBlock(id)
		return []string{wsID}, mem.UpdateBlock(ctx, id, u)
	})
}

// DeleteBlock implements gateway.Gateway.
func (g *Gateway) DeleteBlock(ctx context.Context, id string) error {
	return g.mutate("Delete block "+id, func(mem *memgw.Gateway) ([]string, error) {
		wsID, _ := mem.WorkspaceOfBlock(id)
		return []string{wsID}, mem.DeleteBlock(ctx, id)
	})
}

// SyncBlocks implements gateway.Gateway.
func (g *Gateway) SyncBlocks(ctx context.Context, pageID string, blocks []*model.FlatBlock) error {
	return g.mutate("Edit page "+pageID, func(mem *memgw.Gateway) ([]string, error) {
		wsID, _ := mem.WorkspaceOfPage(pageID)
		return []string{wsID}, mem.SyncBlocks(ctx, pageID, blocks)
	})
}

// memory returns the current in-memory store; Reload swaps it.
func (g *Gateway) memory() *memgw.Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mem
}
