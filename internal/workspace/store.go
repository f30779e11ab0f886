// Package workspace is the client-side model of a workspace: the page tree,
// the database rows derived from it and the block content of open pages.
//
// Every mutation follows the same discipline: validate, apply locally, call
// the remote gateway with the store unlocked, then either reconcile with the
// response or undo the local change and return the error. Readers always see
// the optimistic state.
//
// Two operations in flight that touch the same parent are last-writer-wins on
// rollback. In-flight calls are only cancelled through their context; a page
// or block whose creation is still pending (its ID has the ident.TempPrefix)
// cannot be the target of another remote operation and yields ErrPending.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/ident"
	"github.com/maruel/pagetree/internal/model"
)

// DefaultAutosaveDelay is the idle window before edited content is saved.
const DefaultAutosaveDelay = 1500 * time.Millisecond

// Options configures a Store.
type Options struct {
	// AutosaveDelay defaults to DefaultAutosaveDelay.
	AutosaveDelay time.Duration
	// UserID is recorded as last editor of local changes.
	UserID string
}

// Prefs are user interface preferences persisted with the store state.
type Prefs struct {
	Theme        string `json:"theme,omitempty"`
	SidebarWidth int    `json:"sidebar_width,omitempty"`
	ShowArchived bool   `json:"show_archived,omitempty"`
}

// Store owns the page tree of the current workspace. It is safe for
// concurrent use.
type Store struct {
	gw     gateway.Gateway
	saver  *Autosaver
	userID string

	mu                 sync.Mutex
	workspaces         []*model.Workspace
	currentWorkspaceID string
	currentPageID      string
	pages              map[string]*model.Page
	roots              []string
	expanded           map[string]struct{}
	prefs              Prefs
	editors            map[string]*Editor
	pending            map[string]struct{}
}

// New returns an empty store backed by gw.
func New(gw gateway.Gateway, opts *Options) *Store {
	if opts == nil {
		opts = &Options{}
	}
	delay := opts.AutosaveDelay
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	s := &Store{
		gw:       gw,
		userID:   opts.UserID,
		pages:    map[string]*model.Page{},
		expanded: map[string]struct{}{},
		editors:  map[string]*Editor{},
		pending:  map[string]struct{}{},
	}
	s.saver = NewAutosaver(gw, delay)
	return s
}

// Autosaver returns the content save path shared by the editors.
func (s *Store) Autosaver() *Autosaver {
	return s.saver
}

// Close flushes pending content saves.
func (s *Store) Close(ctx context.Context) error {
	return s.saver.Flush(ctx)
}

// Workspaces.

// LoadWorkspaces fetches the workspace list.
func (s *Store) LoadWorkspaces(ctx context.Context) ([]*model.Workspace, error) {
	ws, err := s.gw.GetWorkspaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workspaces: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces = ws
	return cloneWorkspaces(ws), nil
}

// Workspaces returns the known workspaces.
func (s *Store) Workspaces() []*model.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneWorkspaces(s.workspaces)
}

// CreateWorkspace creates a workspace remotely and adds it to the list.
func (s *Store) CreateWorkspace(ctx context.Context, name, ownerID string) (*model.Workspace, error) {
	w, err := s.gw.CreateWorkspace(ctx, name, ownerID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to create workspace", "name", name, "err", err)
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces = append(s.workspaces, w)
	return w.Clone(), nil
}

// RenameWorkspace renames a workspace optimistically.
func (s *Store) RenameWorkspace(ctx context.Context, id, name string) error {
	if err := ident.ValidateWorkspaceID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkspaceID, err)
	}
	s.mu.Lock()
	w := s.workspaceLocked(id)
	if w == nil {
		s.mu.Unlock()
		return ErrWorkspaceNotFound
	}
	old := w.Name
	w.Name = name
	s.mu.Unlock()

	if err := s.gw.UpdateWorkspace(ctx, id, name); err != nil {
		s.mu.Lock()
		if w := s.workspaceLocked(id); w != nil {
			w.Name = old
		}
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Failed to rename workspace", "id", id, "err", err)
		return fmt.Errorf("rename workspace: %w", err)
	}
	return nil
}

// DeleteWorkspace deletes a workspace remotely, then forgets it. The loaded
// tree is cleared if it was the current workspace.
func (s *Store) DeleteWorkspace(ctx context.Context, id string) error {
	if err := ident.ValidateWorkspaceID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkspaceID, err)
	}
	if err := s.gw.DeleteWorkspace(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to delete workspace", "id", id, "err", err)
		return fmt.Errorf("delete workspace: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces = slices.DeleteFunc(s.workspaces, func(w *model.Workspace) bool { return w.ID == id })
	if s.currentWorkspaceID == id {
		s.resetTreeLocked()
		s.currentWorkspaceID = ""
	}
	return nil
}

// SelectWorkspace makes id the current workspace and loads its pages.
func (s *Store) SelectWorkspace(ctx context.Context, id string) error {
	if err := ident.ValidateWorkspaceID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkspaceID, err)
	}
	return s.LoadPages(ctx, id)
}

// CurrentWorkspaceID returns the selected workspace, if any.
func (s *Store) CurrentWorkspaceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentWorkspaceID
}

// LoadPages replaces the tree with the pages of workspaceID and makes it the
// current workspace.
func (s *Store) LoadPages(ctx context.Context, workspaceID string) error {
	if err := ident.ValidateWorkspaceID(workspaceID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkspaceID, err)
	}
	pages, err := s.gw.GetPages(ctx, workspaceID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load pages", "workspace", workspaceID, "err", err)
		return fmt.Errorf("load pages: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentWorkspaceID != workspaceID {
		s.currentPageID = ""
		s.expanded = map[string]struct{}{}
	}
	s.currentWorkspaceID = workspaceID
	s.ingestLocked(pages, nil)
	return nil
}

// ingestLocked replaces the tree with pages. parent_id is authoritative; the
// stored children lists only provide sibling order. Roots follow rootOrder,
// then the order of appearance. A page whose parent is unknown, or which is
// its own ancestor, becomes a root.
func (s *Store) ingestLocked(pages []*model.Page, rootOrder []string) {
	s.pages = make(map[string]*model.Page, len(pages))
	var order []string
	for _, p := range pages {
		if _, dup := s.pages[p.ID]; dup {
			continue
		}
		c := p.Clone()
		s.pages[c.ID] = c
		order = append(order, c.ID)
	}
	for _, id := range order {
		// Break parent cycles at their first member.
		if s.isAncestorLocked(id, s.pages[id].ParentID) {
			s.pages[id].ParentID = ""
		}
	}
	byParent := map[string][]string{}
	for _, id := range order {
		p := s.pages[id]
		if _, ok := s.pages[p.ParentID]; !ok {
			p.ParentID = ""
		}
		byParent[p.ParentID] = append(byParent[p.ParentID], id)
	}
	for _, id := range order {
		p := s.pages[id]
		p.Children = orderLike(p.Children, byParent[id])
	}
	s.roots = orderLike(rootOrder, byParent[""])
	for id := range s.expanded {
		if _, ok := s.pages[id]; !ok {
			delete(s.expanded, id)
		}
	}
	if _, ok := s.pages[s.currentPageID]; !ok {
		s.currentPageID = ""
	}
}

// orderLike returns members ordered as they appear in hint, followed by the
// members hint does not mention. The result is nil when members is empty.
func orderLike(hint, members []string) []string {
	if len(members) == 0 {
		return nil
	}
	in := make(map[string]struct{}, len(members))
	for _, id := range members {
		in[id] = struct{}{}
	}
	out := make([]string, 0, len(members))
	for _, id := range hint {
		if _, ok := in[id]; ok {
			out = append(out, id)
			delete(in, id)
		}
	}
	for _, id := range members {
		if _, ok := in[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) resetTreeLocked() {
	s.pages = map[string]*model.Page{}
	s.roots = nil
	s.currentPageID = ""
	s.expanded = map[string]struct{}{}
}

func (s *Store) workspaceLocked(id string) *model.Workspace {
	for _, w := range s.workspaces {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// currentWorkspaceLocked returns the workspace new pages are created in.
func (s *Store) currentWorkspaceLocked() (string, error) {
	if s.currentWorkspaceID == "" {
		return "", ErrNoWorkspace
	}
	if err := ident.ValidateWorkspaceID(s.currentWorkspaceID); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidWorkspaceID, err)
	}
	return s.currentWorkspaceID, nil
}

// Reads.

// Page returns a copy of a page.
func (s *Store) Page(id string) (*model.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Len returns the number of loaded pages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// Roots returns the IDs of the top level pages in order.
func (s *Store) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.roots)
}

// Children returns the IDs of the children of a page in order.
func (s *Store) Children(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pages[id]; ok {
		return slices.Clone(p.Children)
	}
	return nil
}

// Walk calls fn for every page in depth-first order with its depth, until fn
// returns false.
func (s *Store) Walk(fn func(p *model.Page, depth int) bool) {
	s.mu.Lock()
	var out []*model.Page
	var depths []int
	var visit func(ids []string, depth int)
	visit = func(ids []string, depth int) {
		for _, id := range ids {
			p := s.pages[id]
			out = append(out, p.Clone())
			depths = append(depths, depth)
			visit(p.Children, depth+1)
		}
	}
	visit(s.roots, 0)
	s.mu.Unlock()
	for i, p := range out {
		if !fn(p, depths[i]) {
			return
		}
	}
}

// Favourites returns the favourite pages that are not archived.
func (s *Store) Favourites() []*model.Page {
	var out []*model.Page
	s.Walk(func(p *model.Page, _ int) bool {
		if p.IsFavourite && !p.IsArchived {
			out = append(out, p)
		}
		return true
	})
	return out
}

// Archived returns the archived pages.
func (s *Store) Archived() []*model.Page {
	var out []*model.Page
	s.Walk(func(p *model.Page, _ int) bool {
		if p.IsArchived {
			out = append(out, p)
		}
		return true
	})
	return out
}

// CurrentPageID returns the page being viewed.
func (s *Store) CurrentPageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPageID
}

// SetCurrentPage selects the page being viewed. An empty id clears it.
func (s *Store) SetCurrentPage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != "" {
		if _, ok := s.pages[id]; !ok {
			return ErrPageNotFound
		}
	}
	s.currentPageID = id
	return nil
}

// SetExpanded records whether a page is expanded in the sidebar.
func (s *Store) SetExpanded(id string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pages[id]; !ok {
		return ErrPageNotFound
	}
	if expanded {
		s.expanded[id] = struct{}{}
	} else {
		delete(s.expanded, id)
	}
	return nil
}

// IsExpanded reports whether a page is expanded in the sidebar.
func (s *Store) IsExpanded(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.expanded[id]
	return ok
}

// Prefs returns the interface preferences.
func (s *Store) Prefs() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetPrefs replaces the interface preferences.
func (s *Store) SetPrefs(p Prefs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

// Tree helpers. All require s.mu.

func (s *Store) siblingsLocked(parentID string) *[]string {
	if parentID == "" {
		return &s.roots
	}
	return &s.pages[parentID].Children
}

// attachLocked inserts id among the children of parentID at index, appending
// when index is out of range, and returns the index used.
func (s *Store) attachLocked(id, parentID string, index int) int {
	sib := s.siblingsLocked(parentID)
	if index < 0 || index > len(*sib) {
		index = len(*sib)
	}
	*sib = slices.Insert(*sib, index, id)
	return index
}

// detachLocked removes id from the children of its parent and returns the
// index it had, or -1.
func (s *Store) detachLocked(id string) int {
	p := s.pages[id]
	parent := p.ParentID
	if _, ok := s.pages[parent]; !ok {
		parent = ""
	}
	sib := s.siblingsLocked(parent)
	i := slices.Index(*sib, id)
	if i >= 0 {
		*sib = slices.Delete(*sib, i, i+1)
		if len(*sib) == 0 {
			*sib = nil
		}
	}
	return i
}

// subtreeLocked returns id and all its descendants, parents first.
func (s *Store) subtreeLocked(id string) []string {
	out := []string{id}
	for i := 0; i < len(out); i++ {
		if p, ok := s.pages[out[i]]; ok {
			out = append(out, p.Children...)
		}
	}
	return out
}

func (s *Store) isAncestorLocked(ancestor, id string) bool {
	for n := 0; id != "" && n <= len(s.pages); n++ {
		if id == ancestor {
			return true
		}
		p, ok := s.pages[id]
		if !ok {
			return false
		}
		id = p.ParentID
	}
	return false
}

// isRowLocked reports whether p sits in a database.
func (s *Store) isRowLocked(p *model.Page) bool {
	parent, ok := s.pages[p.ParentID]
	return ok && parent.IsDatabase
}

// lookupLocked returns a confirmed page.
func (s *Store) lookupLocked(id string) (*model.Page, error) {
	p, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	if _, ok := s.pending[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPending, id)
	}
	return p, nil
}

// touchLocked bumps the modification time and editor of p.
func (s *Store) touchLocked(p *model.Page) {
	p.UpdatedAt = ident.Now()
	if s.userID != "" {
		p.LastEditedBy = s.userID
	}
}

// Optimistic bookkeeping.

// insertLocked adds a new page at index among the children of its parent.
func (s *Store) insertLocked(p *model.Page, index int) int {
	s.pages[p.ID] = p
	return s.attachLocked(p.ID, p.ParentID, index)
}

// insertPendingLocked adds a page whose creation is not confirmed yet.
func (s *Store) insertPendingLocked(p *model.Page, index int) int {
	s.pending[p.ID] = struct{}{}
	return s.insertLocked(p, index)
}

// discardLocked undoes insertLocked.
func (s *Store) discardLocked(id string) {
	if _, ok := s.pages[id]; !ok {
		return
	}
	for _, d := range s.subtreeLocked(id)[1:] {
		delete(s.pages, d)
	}
	s.detachLocked(id)
	delete(s.pages, id)
	delete(s.pending, id)
	delete(s.expanded, id)
	if s.currentPageID == id {
		s.currentPageID = ""
	}
}

// reconcileLocked replaces the temporary ID of a created page with the ID
// assigned remotely, everywhere it is referenced, and adopts the remote
// provenance fields. It returns false if the page vanished meanwhile.
func (s *Store) reconcileLocked(tmp string, srv *model.Page) bool {
	delete(s.pending, tmp)
	p, ok := s.pages[tmp]
	if !ok {
		return false
	}
	if id := srv.ID; id != tmp {
		delete(s.pages, tmp)
		p.ID = id
		s.pages[id] = p
		parent := p.ParentID
		if _, ok := s.pages[parent]; !ok {
			parent = ""
		}
		sib := s.siblingsLocked(parent)
		if i := slices.Index(*sib, tmp); i >= 0 {
			(*sib)[i] = id
		}
		for _, c := range p.Children {
			if cp, ok := s.pages[c]; ok {
				cp.ParentID = id
			}
		}
		if s.currentPageID == tmp {
			s.currentPageID = id
		}
		if _, ok := s.expanded[tmp]; ok {
			delete(s.expanded, tmp)
			s.expanded[id] = struct{}{}
		}
	}
	if srv.WorkspaceID != "" {
		p.WorkspaceID = srv.WorkspaceID
	}
	p.CreatedAt = srv.CreatedAt
	p.UpdatedAt = srv.UpdatedAt
	p.CreatedBy = srv.CreatedBy
	p.LastEditedBy = srv.LastEditedBy
	return true
}

// restoreFieldsLocked puts back the record fields of a page as captured in
// old, keeping its current position and content.
func (s *Store) restoreFieldsLocked(old *model.Page) {
	p, ok := s.pages[old.ID]
	if !ok {
		return
	}
	c := old.Clone()
	c.ParentID = p.ParentID
	c.Children = p.Children
	c.Blocks = p.Blocks
	s.pages[old.ID] = c
}

// removed is a subtree taken out of the tree, kept to undo the removal.
type removed struct {
	pages         []*model.Page
	parentID      string
	index         int
	currentPageID string
}

// removeLocked deletes a page and its subtree and returns what is needed to
// put them back.
func (s *Store) removeLocked(id string) *removed {
	p := s.pages[id]
	r := &removed{parentID: p.ParentID}
	r.index = s.detachLocked(id)
	for _, d := range s.subtreeLocked(id) {
		r.pages = append(r.pages, s.pages[d])
		if d == s.currentPageID {
			r.currentPageID = d
			s.currentPageID = ""
		}
	}
	for _, d := range r.pages {
		delete(s.pages, d.ID)
	}
	return r
}

// restoreLocked undoes removeLocked. If the former parent vanished meanwhile
// the subtree is restored at the top level.
func (s *Store) restoreLocked(r *removed) {
	for _, p := range r.pages {
		s.pages[p.ID] = p
	}
	root := r.pages[0]
	parent := r.parentID
	if _, ok := s.pages[parent]; !ok {
		parent = ""
	}
	root.ParentID = parent
	s.attachLocked(root.ID, parent, r.index)
	if r.currentPageID != "" && s.currentPageID == "" {
		s.currentPageID = r.currentPageID
	}
}

// forgetLocked drops UI state referring to pages removed for good.
func (s *Store) forgetLocked(r *removed) {
	for _, p := range r.pages {
		delete(s.expanded, p.ID)
	}
}

func cloneWorkspaces(ws []*model.Workspace) []*model.Workspace {
	out := make([]*model.Workspace, len(ws))
	for i, w := range ws {
		out[i] = w.Clone()
	}
	return out
}
