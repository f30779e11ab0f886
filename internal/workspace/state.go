// Provides the persisted snapshot of the store.

package workspace

import (
	"fmt"
	"maps"
	"slices"

	"github.com/maruel/pagetree/internal/ident"
	"github.com/maruel/pagetree/internal/jsonldb"
	"github.com/maruel/pagetree/internal/model"
)

// State is a serializable snapshot of the store.
//
// DatabaseRows is derived from Pages; it is written for readers of the file
// and ignored by Restore.
type State struct {
	Workspaces         []*model.Workspace              `json:"workspaces"`
	CurrentWorkspaceID string                          `json:"current_workspace_id,omitempty"`
	CurrentPageID      string                          `json:"current_page_id,omitempty"`
	Pages              map[string]*model.Page          `json:"pages"`
	RootIDs            []string                        `json:"root_ids"`
	DatabaseRows       map[string][]*model.DatabaseRow `json:"database_rows"`
	ExpandedPageIDs    []string                        `json:"expanded_page_ids"`
	Prefs              Prefs                           `json:"prefs"`
}

// State returns a deep copy of the store content. Pages whose creation is not
// confirmed yet are left out, with their subtree.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	skip := s.unconfirmedLocked()
	keep := func(id string) bool {
		_, ok := skip[id]
		return !ok
	}
	st := &State{
		Workspaces:         cloneWorkspaces(s.workspaces),
		CurrentWorkspaceID: s.currentWorkspaceID,
		Pages:              make(map[string]*model.Page, len(s.pages)),
		RootIDs:            filterIDs(s.roots, keep),
		DatabaseRows:       map[string][]*model.DatabaseRow{},
		ExpandedPageIDs:    filterIDs(slices.Sorted(maps.Keys(s.expanded)), keep),
		Prefs:              s.prefs,
	}
	if keep(s.currentPageID) {
		st.CurrentPageID = s.currentPageID
	}
	for id, p := range s.pages {
		if !keep(id) {
			continue
		}
		c := p.Clone()
		c.Children = filterIDs(c.Children, keep)
		st.Pages[id] = c
		if p.IsDatabase {
			rows := s.rowsLocked(p)
			st.DatabaseRows[id] = slices.DeleteFunc(rows, func(r *model.DatabaseRow) bool { return !keep(r.ID) })
		}
	}
	return st
}

// unconfirmedLocked returns the pending pages and their descendants.
func (s *Store) unconfirmedLocked() map[string]struct{} {
	out := map[string]struct{}{}
	for id := range s.pending {
		if _, ok := s.pages[id]; !ok {
			continue
		}
		for _, d := range s.subtreeLocked(id) {
			out[d] = struct{}{}
		}
	}
	return out
}

func filterIDs(ids []string, keep func(string) bool) []string {
	var out []string
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

// Restore replaces the store content with st. Pages whose creation was still
// pending when st was taken are dropped, and open editors are closed.
func (s *Store) Restore(st *State) error {
	for _, w := range st.Workspaces {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("workspace %q: %w", w.ID, err)
		}
	}
	ids := slices.Sorted(maps.Keys(st.Pages))
	pages := make([]*model.Page, 0, len(ids))
	for _, id := range ids {
		p := st.Pages[id]
		if p == nil || ident.IsTemp(id) {
			continue
		}
		if p.ID != id {
			return fmt.Errorf("page %q: stored under %q", p.ID, id)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("page %q: %w", id, err)
		}
		pages = append(pages, p)
	}

	s.mu.Lock()
	s.workspaces = cloneWorkspaces(st.Workspaces)
	s.currentWorkspaceID = st.CurrentWorkspaceID
	s.currentPageID = st.CurrentPageID
	s.expanded = make(map[string]struct{}, len(st.ExpandedPageIDs))
	for _, id := range st.ExpandedPageIDs {
		s.expanded[id] = struct{}{}
	}
	s.prefs = st.Prefs
	s.pending = map[string]struct{}{}
	s.ingestLocked(pages, st.RootIDs)
	editors := s.editors
	s.editors = map[string]*Editor{}
	s.mu.Unlock()
	for _, e := range editors {
		e.detach()
	}
	return nil
}

// SaveState writes the snapshot to path atomically.
func (s *Store) SaveState(path string) error {
	if err := jsonldb.WriteJSON(path, s.State()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// LoadState restores the snapshot stored at path.
func (s *Store) LoadState(path string) error {
	st := &State{}
	if err := jsonldb.ReadJSON(path, st); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	return s.Restore(st)
}
