// Page tree mutations.

package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/maruel/pagetree/internal/ident"
	"github.com/maruel/pagetree/internal/model"
)

// CopySuffix is appended to the title of a duplicated page.
const CopySuffix = " (copy)"

// CreatePage adds a content page at the end of parentID's children, or at the
// top level when parentID is empty. Under a database the page is a row.
func (s *Store) CreatePage(ctx context.Context, parentID, title string) (*model.Page, error) {
	s.mu.Lock()
	wsID, err := s.prepareCreateLocked(parentID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	tmp := ident.NewTempID()
	p := model.NewPage(tmp, wsID, parentID, title, ident.Now())
	p.CreatedBy, p.LastEditedBy = s.userID, s.userID
	s.insertPendingLocked(p, -1)
	title = p.Title
	s.mu.Unlock()

	srv, err := s.gw.CreatePage(ctx, wsID, parentID, title, "")
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.discardLocked(tmp)
		slog.ErrorContext(ctx, "Failed to create page", "parent", parentID, "err", err)
		return nil, fmt.Errorf("create page: %w", err)
	}
	return s.confirmLocked(tmp, srv), nil
}

// CreateDatabase adds a database page with the default schema.
func (s *Store) CreateDatabase(ctx context.Context, parentID, title string) (*model.Page, error) {
	s.mu.Lock()
	wsID, err := s.prepareCreateLocked(parentID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	tmp := ident.NewTempID()
	p := model.NewDatabasePage(tmp, wsID, parentID, title, ident.NewID(), ident.Now())
	p.CreatedBy, p.LastEditedBy = s.userID, s.userID
	s.insertPendingLocked(p, -1)
	title = p.Title
	u := &model.PageUpdate{IsDatabase: model.Ptr(true), DatabaseConfig: p.DatabaseConfig.Clone()}
	s.mu.Unlock()

	srv, err := s.createThenUpdate(ctx, wsID, parentID, title, "", u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.discardLocked(tmp)
		slog.ErrorContext(ctx, "Failed to create database", "parent", parentID, "err", err)
		return nil, fmt.Errorf("create database: %w", err)
	}
	return s.confirmLocked(tmp, srv), nil
}

// UpdatePage applies a partial update to a page. Relocation goes through
// MovePage.
func (s *Store) UpdatePage(ctx context.Context, id string, u *model.PageUpdate) error {
	if u == nil || u.IsEmpty() {
		return nil
	}
	return s.update(ctx, id, func(*model.Page) (*model.PageUpdate, error) {
		return u, nil
	})
}

// update applies the update returned by prep, which runs under the lock with
// the current page. A nil update is a no-op.
func (s *Store) update(ctx context.Context, id string, prep func(p *model.Page) (*model.PageUpdate, error)) error {
	s.mu.Lock()
	p, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	u, err := prep(p)
	if err == nil && u != nil {
		err = checkUpdate(u)
	}
	if err != nil || u == nil || u.IsEmpty() {
		s.mu.Unlock()
		return err
	}
	old := p.Clone()
	u = u.Clone()
	if u.IsDatabase != nil && *u.IsDatabase && p.DatabaseConfig == nil && u.DatabaseConfig == nil {
		u.DatabaseConfig = model.NewDatabaseConfig(ident.NewID())
	}
	u.Apply(p)
	s.touchLocked(p)
	s.mu.Unlock()

	if err := s.gw.UpdatePage(ctx, id, u); err != nil {
		s.mu.Lock()
		s.restoreFieldsLocked(old)
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Failed to update page", "id", id, "err", err)
		return fmt.Errorf("update page: %w", err)
	}
	return nil
}

func checkUpdate(u *model.PageUpdate) error {
	if u.IsMove() {
		return fmt.Errorf("%w: use MovePage to relocate a page", ErrInvalidUpdate)
	}
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
	}
	return nil
}

// DeletePage removes a page and its whole subtree.
func (s *Store) DeletePage(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, err := s.lookupLocked(id); err != nil {
		s.mu.Unlock()
		return err
	}
	r := s.removeLocked(id)
	s.mu.Unlock()

	if err := s.gw.DeletePage(ctx, id); err != nil {
		s.mu.Lock()
		s.restoreLocked(r)
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Failed to delete page", "id", id, "err", err)
		return fmt.Errorf("delete page: %w", err)
	}
	s.finishRemoval(r)
	return nil
}

// MovePage moves a page and its subtree under newParentID at index among its
// new siblings. A negative or out of range index appends. Moving a page under
// itself or one of its descendants returns ErrCycle.
func (s *Store) MovePage(ctx context.Context, id, newParentID string, index int) error {
	s.mu.Lock()
	p, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if newParentID != "" {
		if _, err := s.lookupLocked(newParentID); err != nil {
			s.mu.Unlock()
			return err
		}
		if s.isAncestorLocked(id, newParentID) {
			s.mu.Unlock()
			return ErrCycle
		}
	}
	old := p.Clone()
	oldParent := p.ParentID
	if _, ok := s.pages[oldParent]; !ok {
		oldParent = ""
	}
	oldIndex := s.detachLocked(id)
	p.ParentID = newParentID
	index = s.attachLocked(id, newParentID, index)
	s.touchLocked(p)
	s.mu.Unlock()

	u := &model.PageUpdate{ParentID: model.Ptr(newParentID), Position: model.Ptr(index)}
	if err := s.gw.UpdatePage(ctx, id, u); err != nil {
		s.mu.Lock()
		if p, ok := s.pages[id]; ok {
			s.detachLocked(id)
			if _, ok := s.pages[oldParent]; !ok {
				oldParent = ""
			}
			p.ParentID = old.ParentID
			s.attachLocked(id, oldParent, oldIndex)
			s.restoreFieldsLocked(old)
		}
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Failed to move page", "id", id, "parent", newParentID, "err", err)
		return fmt.Errorf("move page: %w", err)
	}
	return nil
}

// DuplicatePage creates a copy of a page right after it among its siblings.
//
// Title, icon, cover, layout, row values and database schema are copied.
// Blocks and child pages are not.
func (s *Store) DuplicatePage(ctx context.Context, id string) (*model.Page, error) {
	s.mu.Lock()
	src, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	tmp := ident.NewTempID()
	p := model.NewPage(tmp, src.WorkspaceID, src.ParentID, src.Title+CopySuffix, ident.Now())
	p.Icon = src.Icon
	p.CoverImage = src.CoverImage
	p.CoverPosition = src.CoverPosition
	p.FullWidth = src.FullWidth
	p.IsDatabase = src.IsDatabase
	p.DatabaseConfig = src.DatabaseConfig.Clone()
	p.Properties = model.CloneProperties(src.Properties)
	p.CreatedBy, p.LastEditedBy = s.userID, s.userID
	parent := src.ParentID
	if _, ok := s.pages[parent]; !ok {
		parent = ""
	}
	p.ParentID = parent
	index := slices.Index(*s.siblingsLocked(parent), id) + 1
	index = s.insertPendingLocked(p, index)
	u := &model.PageUpdate{
		Icon:          model.Ptr(p.Icon),
		CoverImage:    model.Ptr(p.CoverImage),
		CoverPosition: model.Ptr(p.CoverPosition),
		FullWidth:     model.Ptr(p.FullWidth),
		Properties:    model.CloneProperties(p.Properties),
		Position:      model.Ptr(index),
	}
	if p.IsDatabase {
		u.IsDatabase = model.Ptr(true)
		u.DatabaseConfig = p.DatabaseConfig.Clone()
	}
	wsID, title := p.WorkspaceID, p.Title
	s.mu.Unlock()

	srv, err := s.createThenUpdate(ctx, wsID, parent, title, "", u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.discardLocked(tmp)
		slog.ErrorContext(ctx, "Failed to duplicate page", "id", id, "err", err)
		return nil, fmt.Errorf("duplicate page: %w", err)
	}
	return s.confirmLocked(tmp, srv), nil
}

// ToggleFavourite flips the favourite flag of a page. It is best effort: a
// remote failure reverts the flag and is logged, not returned.
func (s *Store) ToggleFavourite(ctx context.Context, id string) error {
	s.mu.Lock()
	p, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	v := !p.IsFavourite
	p.IsFavourite = v
	s.mu.Unlock()

	if err := s.gw.UpdatePage(ctx, id, &model.PageUpdate{IsFavourite: &v}); err != nil {
		s.mu.Lock()
		if p, ok := s.pages[id]; ok && p.IsFavourite == v {
			p.IsFavourite = !v
		}
		s.mu.Unlock()
		slog.WarnContext(ctx, "Failed to toggle favourite", "id", id, "err", err)
	}
	return nil
}

// ArchivePage moves a page to the trash. Its children stay in place.
func (s *Store) ArchivePage(ctx context.Context, id string) error {
	return s.UpdatePage(ctx, id, &model.PageUpdate{IsArchived: model.Ptr(true)})
}

// RestorePage takes a page out of the trash.
func (s *Store) RestorePage(ctx context.Context, id string) error {
	return s.UpdatePage(ctx, id, &model.PageUpdate{IsArchived: model.Ptr(false)})
}

// prepareCreateLocked validates the target of a creation and returns the
// workspace it happens in.
func (s *Store) prepareCreateLocked(parentID string) (string, error) {
	wsID, err := s.currentWorkspaceLocked()
	if err != nil {
		return "", err
	}
	if parentID != "" {
		if _, err := s.lookupLocked(parentID); err != nil {
			return "", err
		}
	}
	return wsID, nil
}

// confirmLocked reconciles a created page and returns a copy of it.
func (s *Store) confirmLocked(tmp string, srv *model.Page) *model.Page {
	if !s.reconcileLocked(tmp, srv) {
		slog.Warn("Created page vanished before confirmation", "id", srv.ID)
		return srv
	}
	return s.pages[srv.ID].Clone()
}

// createThenUpdate creates a page remotely and applies u to it. If the update
// fails the created page is deleted again.
func (s *Store) createThenUpdate(ctx context.Context, wsID, parentID, title, id string, u *model.PageUpdate) (*model.Page, error) {
	srv, err := s.gw.CreatePage(ctx, wsID, parentID, title, id)
	if err != nil {
		return nil, err
	}
	if u == nil || u.IsEmpty() {
		return srv, nil
	}
	if err := s.gw.UpdatePage(ctx, srv.ID, u); err != nil {
		if derr := s.gw.DeletePage(context.WithoutCancel(ctx), srv.ID); derr != nil {
			slog.WarnContext(ctx, "Failed to delete partially created page", "id", srv.ID, "err", derr)
		}
		return nil, err
	}
	u.Apply(srv)
	return srv, nil
}

// finishRemoval drops what refers to pages removed for good.
func (s *Store) finishRemoval(rs ...*removed) {
	s.mu.Lock()
	var editors []*Editor
	for _, r := range rs {
		s.forgetLocked(r)
		for _, p := range r.pages {
			if e, ok := s.editors[p.ID]; ok {
				editors = append(editors, e)
				delete(s.editors, p.ID)
			}
		}
	}
	s.mu.Unlock()
	for _, r := range rs {
		for _, p := range r.pages {
			s.saver.Cancel(p.ID)
		}
	}
	for _, e := range editors {
		e.detach()
	}
}
