// Database rows: the pages whose parent is a database, seen as records.

package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/maruel/pagetree/internal/ident"
	"github.com/maruel/pagetree/internal/model"
)

// Rows returns the rows of a database in order. Rows are computed from the
// row pages so they always agree with them.
func (s *Store) Rows(databaseID string) ([]*model.DatabaseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.databaseLocked(databaseID)
	if err != nil {
		return nil, err
	}
	return s.rowsLocked(db), nil
}

// Row returns one row of a database.
func (s *Store) Row(databaseID, rowID string) (*model.DatabaseRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.databaseLocked(databaseID); err != nil {
		return nil, err
	}
	p, ok := s.pages[rowID]
	if !ok || p.ParentID != databaseID {
		return nil, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	return model.RowOf(p), nil
}

// CreateDatabaseRow appends a row to a database. A string under
// properties["title"] becomes the title of the row page.
//
// The row ID is chosen locally and sent to the remote store, so it does not
// change on confirmation.
func (s *Store) CreateDatabaseRow(ctx context.Context, databaseID string, properties map[string]any) (*model.DatabaseRow, error) {
	s.mu.Lock()
	wsID, err := s.currentWorkspaceLocked()
	if err == nil {
		_, err = s.databaseLocked(databaseID)
	}
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	id := ident.NewPageID()
	p := model.NewRowPage(id, wsID, databaseID, properties, ident.Now())
	p.CreatedBy, p.LastEditedBy = s.userID, s.userID
	s.insertPendingLocked(p, -1)
	var u *model.PageUpdate
	if p.Properties != nil {
		u = &model.PageUpdate{Properties: model.CloneProperties(p.Properties)}
	}
	title := p.Title
	s.mu.Unlock()

	srv, err := s.createThenUpdate(ctx, wsID, databaseID, title, id, u)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.discardLocked(id)
		slog.ErrorContext(ctx, "Failed to create row", "database", databaseID, "err", err)
		return nil, fmt.Errorf("create row: %w", err)
	}
	return model.RowOf(s.confirmLocked(id, srv)), nil
}

// UpdateDatabaseRow updates a row page. Properties are merged into the
// current values instead of replacing them; a string under "title" renames
// the row page.
func (s *Store) UpdateDatabaseRow(ctx context.Context, databaseID, rowID string, u *model.PageUpdate) error {
	if u == nil || u.IsEmpty() {
		return nil
	}
	return s.update(ctx, rowID, func(p *model.Page) (*model.PageUpdate, error) {
		if _, err := s.databaseLocked(databaseID); err != nil {
			return nil, err
		}
		if p.ParentID != databaseID {
			return nil, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
		}
		if u.Properties == nil {
			return u, nil
		}
		u = u.Clone()
		if t, ok := u.Properties[model.TitlePropertyID].(string); ok && u.Title == nil {
			u.Title = &t
		}
		merged := model.CloneProperties(p.Properties)
		if merged == nil {
			merged = make(map[string]any, len(u.Properties))
		}
		for k, v := range u.Properties {
			merged[k] = v
		}
		u.Properties, _ = model.SplitTitle(merged)
		return u, nil
	})
}

// DeleteDatabaseRow removes one row.
func (s *Store) DeleteDatabaseRow(ctx context.Context, databaseID, rowID string) error {
	s.mu.Lock()
	err := s.checkRowLocked(databaseID, rowID)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.DeletePage(ctx, rowID)
}

// BulkDeleteDatabaseRows removes several rows with a single remote call. On
// failure every row is put back.
func (s *Store) BulkDeleteDatabaseRows(ctx context.Context, databaseID string, rowIDs []string) error {
	ids := make([]string, 0, len(rowIDs))
	seen := make(map[string]struct{}, len(rowIDs))
	for _, id := range rowIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	s.mu.Lock()
	if _, err := s.databaseLocked(databaseID); err != nil {
		s.mu.Unlock()
		return err
	}
	if len(ids) == 0 {
		s.mu.Unlock()
		return nil
	}
	for _, id := range ids {
		if err := s.checkRowLocked(databaseID, id); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	rs := make([]*removed, len(ids))
	for i, id := range ids {
		rs[i] = s.removeLocked(id)
	}
	s.mu.Unlock()

	if err := s.gw.BulkDeletePages(ctx, ids); err != nil {
		s.mu.Lock()
		for _, r := range slices.Backward(rs) {
			s.restoreLocked(r)
		}
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Failed to delete rows", "database", databaseID, "count", len(ids), "err", err)
		return fmt.Errorf("delete rows: %w", err)
	}
	s.finishRemoval(rs...)
	return nil
}

// ImportDatabaseRows creates many rows at once. It is not optimistic: the
// rows appear once the remote store confirmed them.
func (s *Store) ImportDatabaseRows(ctx context.Context, databaseID string, rows []map[string]any) ([]*model.DatabaseRow, error) {
	s.mu.Lock()
	wsID, err := s.currentWorkspaceLocked()
	if err == nil {
		_, err = s.databaseLocked(databaseID)
	}
	s.mu.Unlock()
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	in := make([]model.PageInput, len(rows))
	for i, r := range rows {
		in[i] = model.PageInput{ID: ident.NewPageID(), Properties: model.CloneProperties(r)}
	}
	created, err := s.gw.BulkCreatePages(ctx, wsID, databaseID, in)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to import rows", "database", databaseID, "count", len(rows), "err", err)
		return nil, fmt.Errorf("import rows: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.DatabaseRow, 0, len(created))
	_, alive := s.pages[databaseID]
	for _, p := range created {
		if alive {
			if _, dup := s.pages[p.ID]; !dup {
				c := p.Clone()
				c.ParentID = databaseID
				c.Children = nil
				s.insertLocked(c, -1)
			}
		}
		out = append(out, model.RowOf(p))
	}
	return out, nil
}

// AddDatabaseProperty appends a column to a database schema. An empty ID is
// generated.
func (s *Store) AddDatabaseProperty(ctx context.Context, databaseID string, prop model.DatabaseProperty) (*model.DatabaseProperty, error) {
	if prop.ID == "" {
		prop.ID = ident.NewID()
	}
	err := s.update(ctx, databaseID, func(p *model.Page) (*model.PageUpdate, error) {
		if !p.IsDatabase {
			return nil, fmt.Errorf("%w: %s", ErrNotDatabase, databaseID)
		}
		cfg := p.DatabaseConfig.Clone()
		if cfg == nil {
			cfg = model.NewDatabaseConfig(ident.NewID())
		}
		cfg.Properties = append(cfg.Properties, prop)
		return &model.PageUpdate{DatabaseConfig: cfg}, nil
	})
	if err != nil {
		return nil, err
	}
	return &prop, nil
}

// UpdateDatabaseConfig replaces the schema and views of a database.
func (s *Store) UpdateDatabaseConfig(ctx context.Context, databaseID string, cfg *model.DatabaseConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: missing database config", ErrInvalidUpdate)
	}
	return s.update(ctx, databaseID, func(p *model.Page) (*model.PageUpdate, error) {
		if !p.IsDatabase {
			return nil, fmt.Errorf("%w: %s", ErrNotDatabase, databaseID)
		}
		return &model.PageUpdate{DatabaseConfig: cfg}, nil
	})
}

// databaseLocked returns a loaded database page.
func (s *Store) databaseLocked(id string) (*model.Page, error) {
	p, ok := s.pages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, id)
	}
	if !p.IsDatabase {
		return nil, fmt.Errorf("%w: %s", ErrNotDatabase, id)
	}
	return p, nil
}

// checkRowLocked verifies that rowID is a confirmed row of databaseID.
func (s *Store) checkRowLocked(databaseID, rowID string) error {
	if _, err := s.databaseLocked(databaseID); err != nil {
		return err
	}
	p, ok := s.pages[rowID]
	if !ok || p.ParentID != databaseID {
		return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	_, err := s.lookupLocked(rowID)
	return err
}

func (s *Store) rowsLocked(db *model.Page) []*model.DatabaseRow {
	out := make([]*model.DatabaseRow, 0, len(db.Children))
	for _, id := range db.Children {
		if p, ok := s.pages[id]; ok {
			out = append(out, model.RowOf(p))
		}
	}
	return out
}
