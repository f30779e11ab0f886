// Bulk copy in and out of the store, used to persist it.

package memgw

import (
	"fmt"

	"github.com/maruel/pagetree/internal/model"
)

// Export returns a copy of a workspace: its pages in depth-first order and the
// blocks of all its pages.
func (g *Gateway) Export(workspaceID string) (*model.Workspace, []*model.Page, []*model.FlatBlock, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w := g.workspace(workspaceID)
	if w == nil {
		return nil, nil, nil, false
	}
	pages := g.pagesOf(workspaceID)
	var blocks []*model.FlatBlock
	for _, p := range pages {
		if f := g.blocks[p.ID]; f != nil {
			blocks = append(blocks, f.Flatten()...)
		}
	}
	return w.Clone(), pages, blocks, true
}

// WorkspaceIDs lists the workspace IDs in creation order.
func (g *Gateway) WorkspaceIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.workspaces))
	for i, w := range g.workspaces {
		out[i] = w.ID
	}
	return out
}

// Import adds a workspace, replacing any workspace with the same ID.
//
// pages must list parents before children; the order of siblings is the
// order of appearance. Pages whose parent is not in the list become roots.
func (g *Gateway) Import(w *model.Workspace, pages []*model.Page, blocks []*model.FlatBlock) error {
	if err := w.Validate(); err != nil {
		return fmt.Errorf("workspace %q: %w", w.ID, err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropWorkspace(w.ID)
	g.workspaces = append(g.workspaces, w.Clone())
	for _, p := range pages {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("page %q: %w", p.ID, err)
		}
		c := p.Clone()
		c.WorkspaceID = w.ID
		c.Children = nil
		c.Blocks = nil
		if _, ok := g.pages[c.ParentID]; c.ParentID != "" && !ok {
			c.ParentID = ""
		}
		g.pages[c.ID] = c
		s := g.siblings(w.ID, c.ParentID)
		*s = append(*s, c.ID)
	}
	byPage := map[string][]*model.FlatBlock{}
	for _, fb := range blocks {
		if _, ok := g.pages[fb.PageID]; ok {
			byPage[fb.PageID] = append(byPage[fb.PageID], fb)
		}
	}
	for pageID, fbs := range byPage {
		g.setBlocks(pageID, fbs)
	}
	return nil
}

// WorkspaceOfPage returns the workspace holding a page.
func (g *Gateway) WorkspaceOfPage(id string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pages[id]
	if !ok {
		return "", false
	}
	return p.WorkspaceID, true
}

// WorkspaceOfBlock returns the workspace holding a block.
func (g *Gateway) WorkspaceOfBlock(id string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pageID, ok := g.blockPage[id]
	if !ok {
		return "", false
	}
	return g.pages[pageID].WorkspaceID, true
}

func (g *Gateway) dropWorkspace(id string) {
	for i, w := range g.workspaces {
		if w.ID == id {
			g.workspaces = append(g.workspaces[:i], g.workspaces[i+1:]...)
			break
		}
	}
	if s := g.roots[id]; s != nil {
		for _, r := range *s {
			g.deleteSubtree(r)
		}
	}
	delete(g.roots, id)
}
