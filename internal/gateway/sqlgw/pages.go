package sqlgw

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
)

// Positions among siblings are kept dense: 0 to n-1.

// GetPages implements gateway.Gateway.
func (g *Gateway) GetPages(ctx context.Context, workspaceID string) ([]*model.Page, error) {
	if err := workspaceExists(ctx, g.db, workspaceID); err != nil {
		return nil, err
	}
	rows, err := g.db.QueryContext(ctx,
		`SELECT id, parent_id, data FROM pages WHERE workspace_id = ? ORDER BY position`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()
	pages := map[string]*model.Page{}
	var order []*model.Page
	for rows.Next() {
		var id, data string
		var parent sql.NullString
		if err := rows.Scan(&id, &parent, &data); err != nil {
			return nil, fmt.Errorf("failed to read page: %w", err)
		}
		p, err := decodePage(id, workspaceID, parent.String, data)
		if err != nil {
			return nil, err
		}
		pages[id] = p
		order = append(order, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Rows come sorted by position, so appending keeps sibling order.
	var roots []string
	for _, p := range order {
		if parent, ok := pages[p.ParentID]; ok {
			parent.Children = append(parent.Children, p.ID)
		} else {
			roots = append(roots, p.ID)
		}
	}
	out := make([]*model.Page, 0, len(pages))
	var visit func(ids []string)
	visit = func(ids []string) {
		for _, id := range ids {
			p := pages[id]
			out = append(out, p)
			visit(p.Children)
		}
	}
	visit(roots)
	return out, nil
}

// CreatePage implements gateway.Gateway.
func (g *Gateway) CreatePage(ctx context.Context, workspaceID, parentID, title, id string) (*model.Page, error) {
	var p *model.Page
	err := g.tx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = g.createPage(ctx, tx, workspaceID, parentID, model.PageInput{ID: id, Title: title})
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// BulkCreatePages implements gateway.Gateway.
func (g *Gateway) BulkCreatePages(ctx context.Context, workspaceID, parentID string, pages []model.PageInput) ([]*model.Page, error) {
	seen := map[string]struct{}{}
	for _, np := range pages {
		if np.ID == "" {
			continue
		}
		if _, ok := seen[np.ID]; ok {
			return nil, fmt.Errorf("page %s: %w", np.ID, gateway.ErrConflict)
		}
		seen[np.ID] = struct{}{}
	}
	out := make([]*model.Page, 0, len(pages))
	err := g.tx(ctx, func(tx *sql.Tx) error {
		for _, np := range pages {
			p, err := g.createPage(ctx, tx, workspaceID, parentID, np)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gateway) createPage(ctx context.Context, tx *sql.Tx, workspaceID, parentID string, np model.PageInput) (*model.Page, error) {
	if err := workspaceExists(ctx, tx, workspaceID); err != nil {
		return nil, err
	}
	if parentID != "" {
		ws, err := pageWorkspace(ctx, tx, parentID)
		if err != nil || ws != workspaceID {
			return nil, fmt.Errorf("parent %s: %w", parentID, gateway.ErrNotFound)
		}
	}
	id := np.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := pageWorkspace(ctx, tx, id); err == nil {
		return nil, fmt.Errorf("page %s: %w", id, gateway.ErrConflict)
	} else if !errors.Is(err, gateway.ErrNotFound) {
		return nil, err
	}
	props, title := model.SplitTitle(np.Properties)
	if np.Title != "" {
		title = np.Title
	}
	p := model.NewPage(id, workspaceID, parentID, title, g.now())
	p.Properties = props
	n, err := siblingCount(ctx, tx, workspaceID, parentID, "")
	if err != nil {
		return nil, err
	}
	data, err := encodePage(p)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO pages (id, workspace_id, parent_id, position, data) VALUES (?, ?, ?, ?, ?)`,
		id, workspaceID, nullable(parentID), n, data)
	if err != nil {
		return nil, fmt.Errorf("failed to insert page: %w", err)
	}
	return p, nil
}

// UpdatePage implements gateway.Gateway.
func (g *Gateway) UpdatePage(ctx context.Context, id string, u *model.PageUpdate) error {
	return g.tx(ctx, func(tx *sql.Tx) error {
		p, pos, err := loadPage(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := u.Validate(); err != nil {
			return fmt.Errorf("%w: %w", gateway.ErrInvalid, err)
		}
		if u.IsMove() {
			if err := movePage(ctx, tx, p, pos, u); err != nil {
				return err
			}
		}
		u.Apply(p)
		if p.IsDatabase && p.DatabaseConfig == nil {
			p.DatabaseConfig = model.NewDatabaseConfig(uuid.NewString())
		}
		p.UpdatedAt = g.now()
		data, err := encodePage(p)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE pages SET data = ? WHERE id = ?`, data, id)
		return err
	})
}

// movePage relocates p, which is currently at pos among its siblings, and
// sets p.ParentID.
func movePage(ctx context.Context, tx *sql.Tx, p *model.Page, pos int, u *model.PageUpdate) error {
	newParent := p.ParentID
	if u.ParentID != nil {
		newParent = *u.ParentID
	}
	if newParent != "" {
		ws, err := pageWorkspace(ctx, tx, newParent)
		if err != nil || ws != p.WorkspaceID {
			return fmt.Errorf("parent %s: %w", newParent, gateway.ErrNotFound)
		}
		var under int
		err = tx.QueryRowContext(ctx,
			`WITH RECURSIVE ancestors(id) AS (
				SELECT ?
				UNION
				SELECT p.parent_id FROM pages p JOIN ancestors a ON p.id = a.id WHERE p.parent_id IS NOT NULL
			)
			SELECT COUNT(*) FROM ancestors WHERE id = ?`, newParent, p.ID).Scan(&under)
		if err != nil {
			return fmt.Errorf("failed to check ancestors: %w", err)
		}
		if under != 0 {
			return fmt.Errorf("%w: moving %s under itself", gateway.ErrInvalid, p.ID)
		}
	}
	if err := closeGap(ctx, tx, p.WorkspaceID, p.ParentID, pos); err != nil {
		return err
	}
	i, err := siblingCount(ctx, tx, p.WorkspaceID, newParent, p.ID)
	if err != nil {
		return err
	}
	if u.Position != nil && *u.Position < i {
		i = *u.Position
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE pages SET position = position + 1
		 WHERE workspace_id = ? AND parent_id IS ? AND position >= ? AND id != ?`,
		p.WorkspaceID, nullable(newParent), i, p.ID)
	if err != nil {
		return fmt.Errorf("failed to shift siblings: %w", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE pages SET parent_id = ?, position = ? WHERE id = ?`, nullable(newParent), i, p.ID)
	if err != nil {
		return fmt.Errorf("failed to move page: %w", err)
	}
	p.ParentID = newParent
	return nil
}

// DeletePage implements gateway.Gateway.
func (g *Gateway) DeletePage(ctx context.Context, id string) error {
	return g.tx(ctx, func(tx *sql.Tx) error {
		p, pos, err := loadPage(ctx, tx, id)
		if err != nil {
			return err
		}
		return deletePage(ctx, tx, p, pos)
	})
}

// BulkDeletePages implements gateway.Gateway.
func (g *Gateway) BulkDeletePages(ctx context.Context, ids []string) error {
	return g.tx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := pageWorkspace(ctx, tx, id); err != nil {
				return err
			}
		}
		for _, id := range ids {
			p, pos, err := loadPage(ctx, tx, id)
			if errors.Is(err, gateway.ErrNotFound) {
				// Already removed as a descendant of an earlier id.
				continue
			}
			if err != nil {
				return err
			}
			if err := deletePage(ctx, tx, p, pos); err != nil {
				return err
			}
		}
		return nil
	})
}

// deletePage removes a page. Descendants and blocks go with it through the
// foreign keys.
func deletePage(ctx context.Context, tx *sql.Tx, p *model.Page, pos int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	return closeGap(ctx, tx, p.WorkspaceID, p.ParentID, pos)
}

func closeGap(ctx context.Context, tx *sql.Tx, workspaceID, parentID string, pos int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE pages SET position = position - 1 WHERE workspace_id = ? AND parent_id IS ? AND position > ?`,
		workspaceID, nullable(parentID), pos)
	if err != nil {
		return fmt.Errorf("failed to shift siblings: %w", err)
	}
	return nil
}

// siblingCount counts the pages under parentID, not counting exclude.
func siblingCount(ctx context.Context, tx *sql.Tx, workspaceID, parentID, exclude string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE workspace_id = ? AND parent_id IS ? AND id != ?`,
		workspaceID, nullable(parentID), exclude).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

func pageWorkspace(ctx context.Context, q querier, id string) (string, error) {
	var ws string
	err := q.QueryRowContext(ctx, `SELECT workspace_id FROM pages WHERE id = ?`, id).Scan(&ws)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("page %s: %w", id, gateway.ErrNotFound)
	}
	return ws, err
}

func loadPage(ctx context.Context, q querier, id string) (*model.Page, int, error) {
	var ws, data string
	var parent sql.NullString
	var pos int
	err := q.QueryRowContext(ctx,
		`SELECT workspace_id, parent_id, position, data FROM pages WHERE id = ?`, id).Scan(&ws, &parent, &pos, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("page %s: %w", id, gateway.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read page: %w", err)
	}
	p, err := decodePage(id, ws, parent.String, data)
	return p, pos, err
}

// encodePage returns the JSON document of a page. The tree links live in
// columns.
func encodePage(p *model.Page) (string, error) {
	c := *p
	c.Children = nil
	c.Blocks = nil
	return marshal(&c)
}

func decodePage(id, workspaceID, parentID, data string) (*model.Page, error) {
	p := &model.Page{}
	if err := json.Unmarshal([]byte(data), p); err != nil {
		return nil, fmt.Errorf("page %s: invalid data: %w", id, err)
	}
	p.ID, p.WorkspaceID, p.ParentID = id, workspaceID, parentID
	p.Children = nil
	return p, nil
}
