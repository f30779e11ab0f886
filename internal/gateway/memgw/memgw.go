// Package memgw implements an in-memory gateway.Gateway.
//
// It is the reference behavior of a page store: the file gateway persists its
// state and tests use it with failure injection.
package memgw

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/pagetree/internal/blocktree"
	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
)

// Gateway is an in-memory page store. It is safe for concurrent use.
type Gateway struct {
	// BeforeCall, when set, runs at the start of every call, outside the
	// lock, with the method name.
	BeforeCall func(op string)

	mu         sync.Mutex
	now        func() time.Time
	workspaces []*model.Workspace
	pages      map[string]*model.Page
	roots      map[string]*[]string
	blocks     map[string]*blocktree.Forest
	blockPage  map[string]string
	failures   map[string][]error
	calls      []string
}

var _ gateway.Gateway = (*Gateway)(nil)

// New returns an empty store.
func New() *Gateway {
	return &Gateway{
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		pages:     map[string]*model.Page{},
		roots:     map[string]*[]string{},
		blocks:    map[string]*blocktree.Forest{},
		blockPage: map[string]string{},
		failures:  map[string][]error{},
	}
}

// FailNext makes the next call to op return err without changing anything.
// Calls queue up: FailNext twice fails the next two calls.
func (g *Gateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = append(g.failures[op], err)
}

// Calls returns the names of the methods called so far, in order.
func (g *Gateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// enter records the call and returns the injected failure, if any. On
// success the lock is held and the caller must unlock it.
func (g *Gateway) enter(ctx context.Context, op string) error {
	if g.BeforeCall != nil {
		g.BeforeCall(op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	g.calls = append(g.calls, op)
	if q := g.failures[op]; len(q) > 0 {
		err := q[0]
		g.failures[op] = q[1:]
		g.mu.Unlock()
		return err
	}
	return nil
}

// Workspaces.

// GetWorkspaces implements gateway.Gateway.
func (g *Gateway) GetWorkspaces(ctx context.Context) ([]*model.Workspace, error) {
	if err := g.enter(ctx, "GetWorkspaces"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	out := make([]*model.Workspace, len(g.workspaces))
	for i, w := range g.workspaces {
		out[i] = w.Clone()
	}
	return out, nil
}

// CreateWorkspace implements gateway.Gateway.
func (g *Gateway) CreateWorkspace(ctx context.Context, name, ownerID string) (*model.Workspace, error) {
	if err := g.enter(ctx, "CreateWorkspace"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	w := &model.Workspace{ID: uuid.NewString(), Name: name, OwnerID: ownerID, CreatedAt: g.now()}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", gateway.ErrInvalid, err)
	}
	g.workspaces = append(g.workspaces, w)
	return w.Clone(), nil
}

// UpdateWorkspace implements gateway.Gateway.
func (g *Gateway) UpdateWorkspace(ctx context.Context, id, name string) error {
	if err := g.enter(ctx, "UpdateWorkspace"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	w := g.workspace(id)
	if w == nil {
		return fmt.Errorf("workspace %s: %w", id, gateway.ErrNotFound)
	}
	if name == "" {
		return fmt.Errorf("%w: empty name", gateway.ErrInvalid)
	}
	w.Name = name
	return nil
}

// DeleteWorkspace implements gateway.Gateway.
func (g *Gateway) DeleteWorkspace(ctx context.Context, id string) error {
	if err := g.enter(ctx, "DeleteWorkspace"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	i := slices.IndexFunc(g.workspaces, func(w *model.Workspace) bool { return w.ID == id })
	if i < 0 {
		return fmt.Errorf("workspace %s: %w", id, gateway.ErrNotFound)
	}
	g.workspaces = slices.Delete(g.workspaces, i, i+1)
	if s := g.roots[id]; s != nil {
		for _, r := range *s {
			g.deleteSubtree(r)
		}
	}
	delete(g.roots, id)
	return nil
}

func (g *Gateway) workspace(id string) *model.Workspace {
	for _, w := range g.workspaces {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Pages.

// GetPages implements gateway.Gateway.
func (g *Gateway) GetPages(ctx context.Context, workspaceID string) ([]*model.Page, error) {
	if err := g.enter(ctx, "GetPages"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	if g.workspace(workspaceID) == nil {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, gateway.ErrNotFound)
	}
	return g.pagesOf(workspaceID), nil
}

// pagesOf returns clones of the pages of a workspace in depth-first order.
func (g *Gateway) pagesOf(workspaceID string) []*model.Page {
	var out []*model.Page
	var visit func(ids []string)
	visit = func(ids []string) {
		for _, id := range ids {
			p := g.pages[id]
			out = append(out, p.Clone())
			visit(p.Children)
		}
	}
	if s := g.roots[workspaceID]; s != nil {
		visit(*s)
	}
	return out
}

// CreatePage implements gateway.Gateway.
func (g *Gateway) CreatePage(ctx context.Context, workspaceID, parentID, title, id string) (*model.Page, error) {
	if err := g.enter(ctx, "CreatePage"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	p, err := g.createPage(workspaceID, parentID, model.PageInput{ID: id, Title: title})
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// BulkCreatePages implements gateway.Gateway.
func (g *Gateway) BulkCreatePages(ctx context.Context, workspaceID, parentID string, pages []model.PageInput) ([]*model.Page, error) {
	if err := g.enter(ctx, "BulkCreatePages"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	seen := map[string]struct{}{}
	for _, np := range pages {
		if np.ID == "" {
			continue
		}
		if _, ok := g.pages[np.ID]; ok {
			return nil, fmt.Errorf("page %s: %w", np.ID, gateway.ErrConflict)
		}
		if _, ok := seen[np.ID]; ok {
			return nil, fmt.Errorf("page %s: %w", np.ID, gateway.ErrConflict)
		}
		seen[np.ID] = struct{}{}
	}
	out := make([]*model.Page, 0, len(pages))
	for _, np := range pages {
		p, err := g.createPage(workspaceID, parentID, np)
		if err != nil {
			// Only the parent can be invalid, so nothing was created.
			return nil, err
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

func (g *Gateway) createPage(workspaceID, parentID string, np model.PageInput) (*model.Page, error) {
	if g.workspace(workspaceID) == nil {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, gateway.ErrNotFound)
	}
	if parentID != "" {
		parent, ok := g.pages[parentID]
		if !ok || parent.WorkspaceID != workspaceID {
			return nil, fmt.Errorf("parent %s: %w", parentID, gateway.ErrNotFound)
		}
	}
	id := np.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, ok := g.pages[id]; ok {
		return nil, fmt.Errorf("page %s: %w", id, gateway.ErrConflict)
	}
	props, title := model.SplitTitle(np.Properties)
	if np.Title != "" {
		title = np.Title
	}
	p := model.NewPage(id, workspaceID, parentID, title, g.now())
	p.Properties = props
	g.pages[id] = p
	s := g.siblings(workspaceID, parentID)
	*s = append(*s, id)
	return p, nil
}

// UpdatePage implements gateway.Gateway.
func (g *Gateway) UpdatePage(ctx context.Context, id string, u *model.PageUpdate) error {
	if err := g.enter(ctx, "UpdatePage"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	p, ok := g.pages[id]
	if !ok {
		return fmt.Errorf("page %s: %w", id, gateway.ErrNotFound)
	}
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %w", gateway.ErrInvalid, err)
	}
	if u.IsMove() {
		if err := g.move(p, u); err != nil {
			return err
		}
	}
	u.Apply(p)
	if p.IsDatabase && p.DatabaseConfig == nil {
		p.DatabaseConfig = model.NewDatabaseConfig(uuid.NewString())
	}
	p.UpdatedAt = g.now()
	return nil
}

func (g *Gateway) move(p *model.Page, u *model.PageUpdate) error {
	newParent := p.ParentID
	if u.ParentID != nil {
		newParent = *u.ParentID
	}
	if newParent != "" {
		np, ok := g.pages[newParent]
		if !ok || np.WorkspaceID != p.WorkspaceID {
			return fmt.Errorf("parent %s: %w", newParent, gateway.ErrNotFound)
		}
		for a := newParent; a != ""; a = g.pages[a].ParentID {
			if a == p.ID {
				return fmt.Errorf("%w: moving %s under itself", gateway.ErrInvalid, p.ID)
			}
		}
	}
	old := g.siblings(p.WorkspaceID, p.ParentID)
	*old = deleteID(*old, p.ID)
	p.ParentID = newParent
	s := g.siblings(p.WorkspaceID, newParent)
	i := len(*s)
	if u.Position != nil && *u.Position < i {
		i = *u.Position
	}
	*s = slices.Insert(*s, i, p.ID)
	return nil
}

// DeletePage implements gateway.Gateway.
func (g *Gateway) DeletePage(ctx context.Context, id string) error {
	if err := g.enter(ctx, "DeletePage"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	p, ok := g.pages[id]
	if !ok {
		return fmt.Errorf("page %s: %w", id, gateway.ErrNotFound)
	}
	s := g.siblings(p.WorkspaceID, p.ParentID)
	*s = deleteID(*s, id)
	g.deleteSubtree(id)
	return nil
}

// BulkDeletePages implements gateway.Gateway.
func (g *Gateway) BulkDeletePages(ctx context.Context, ids []string) error {
	if err := g.enter(ctx, "BulkDeletePages"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	for _, id := range ids {
		if _, ok := g.pages[id]; !ok {
			return fmt.Errorf("page %s: %w", id, gateway.ErrNotFound)
		}
	}
	for _, id := range ids {
		p, ok := g.pages[id]
		if !ok {
			// Already removed as a descendant of an earlier id.
			continue
		}
		s := g.siblings(p.WorkspaceID, p.ParentID)
		*s = deleteID(*s, id)
		g.deleteSubtree(id)
	}
	return nil
}

func (g *Gateway) deleteSubtree(id string) {
	p, ok := g.pages[id]
	if !ok {
		return
	}
	for _, c := range p.Children {
		g.deleteSubtree(c)
	}
	if f := g.blocks[id]; f != nil {
		for _, fb := range f.Flatten() {
			delete(g.blockPage, fb.ID)
		}
		delete(g.blocks, id)
	}
	delete(g.pages, id)
}

func (g *Gateway) siblings(workspaceID, parentID string) *[]string {
	if parentID != "" {
		return &g.pages[parentID].Children
	}
	s, ok := g.roots[workspaceID]
	if !ok {
		s = &[]string{}
		g.roots[workspaceID] = s
	}
	return s
}

func deleteID(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
