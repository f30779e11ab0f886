package sqlgw

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/maruel/pagetree/internal/blocktree"
	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
)

// GetBlocks implements gateway.Gateway.
func (g *Gateway) GetBlocks(ctx context.Context, pageID string) ([]*model.FlatBlock, error) {
	if _, err := pageWorkspace(ctx, g.db, pageID); err != nil {
		return nil, err
	}
	f, err := loadForest(ctx, g.db, pageID)
	if err != nil {
		return nil, err
	}
	return f.Flatten(), nil
}

// CreateBlock implements gateway.Gateway.
func (g *Gateway) CreateBlock(ctx context.Context, pageID string, typ model.BlockType, content, parentID string, index int) (*model.Block, error) {
	var out *model.Block
	err := g.tx(ctx, func(tx *sql.Tx) error {
		if _, err := pageWorkspace(ctx, tx, pageID); err != nil {
			return err
		}
		if !typ.IsValid() {
			return fmt.Errorf("%w: block type %q", gateway.ErrInvalid, typ)
		}
		f, err := loadForest(ctx, tx, pageID)
		if err != nil {
			return err
		}
		b := model.NewBlock(uuid.NewString(), pageID, parentID, typ, content, g.now())
		if _, err := f.Insert(b, parentID, index); err != nil {
			return fmt.Errorf("block parent %s: %w", parentID, gateway.ErrNotFound)
		}
		if err := replaceBlocks(ctx, tx, pageID, f.Flatten()); err != nil {
			return err
		}
		out, _ = f.Get(b.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateBlock implements gateway.Gateway.
func (g *Gateway) UpdateBlock(ctx context.Context, id string, u *model.BlockUpdate) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %w", gateway.ErrInvalid, err)
	}
	return g.tx(ctx, func(tx *sql.Tx) error {
		fb, err := loadBlock(ctx, tx, id)
		if err != nil {
			return err
		}
		b := fb.Block()
		u.Apply(b)
		b.UpdatedAt = g.now()
		data, err := marshal(b.Flat(fb.Index))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE blocks SET data = ? WHERE id = ?`, data, id)
		return err
	})
}

// DeleteBlock implements gateway.Gateway.
func (g *Gateway) DeleteBlock(ctx context.Context, id string) error {
	return g.tx(ctx, func(tx *sql.Tx) error {
		fb, err := loadBlock(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`WITH RECURSIVE subtree(id) AS (
				SELECT ?
				UNION
				SELECT b.id FROM blocks b JOIN subtree s ON b.parent_id = s.id
			)
			DELETE FROM blocks WHERE id IN (SELECT id FROM subtree)`, id)
		if err != nil {
			return fmt.Errorf("failed to delete block: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE blocks SET position = position - 1 WHERE page_id = ? AND parent_id IS ? AND position > ?`,
			fb.PageID, nullable(fb.ParentID), fb.Index)
		if err != nil {
			return fmt.Errorf("failed to shift blocks: %w", err)
		}
		return nil
	})
}

// SyncBlocks implements gateway.Gateway.
func (g *Gateway) SyncBlocks(ctx context.Context, pageID string, blocks []*model.FlatBlock) error {
	for _, fb := range blocks {
		if err := fb.Validate(); err != nil {
			return fmt.Errorf("%w: block %s: %w", gateway.ErrInvalid, fb.ID, err)
		}
	}
	return g.tx(ctx, func(tx *sql.Tx) error {
		if _, err := pageWorkspace(ctx, tx, pageID); err != nil {
			return err
		}
		for _, fb := range blocks {
			var owner string
			err := tx.QueryRowContext(ctx, `SELECT page_id FROM blocks WHERE id = ?`, fb.ID).Scan(&owner)
			if err == nil && owner != pageID {
				return fmt.Errorf("block %s belongs to page %s: %w", fb.ID, owner, gateway.ErrConflict)
			}
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to read block: %w", err)
			}
		}
		return replaceBlocks(ctx, tx, pageID, blocktree.FromFlat(pageID, blocks).Flatten())
	})
}

// replaceBlocks rewrites all the blocks of a page.
func replaceBlocks(ctx context.Context, tx *sql.Tx, pageID string, blocks []*model.FlatBlock) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE page_id = ?`, pageID); err != nil {
		return fmt.Errorf("failed to clear blocks: %w", err)
	}
	if len(blocks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO blocks (id, page_id, parent_id, position, data) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, fb := range blocks {
		data, err := marshal(fb)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, fb.ID, pageID, nullable(fb.ParentID), fb.Index, data); err != nil {
			return fmt.Errorf("failed to insert block %s: %w", fb.ID, err)
		}
	}
	return nil
}

type rowsQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadForest reads the blocks of a page.
func loadForest(ctx context.Context, q rowsQuerier, pageID string) (*blocktree.Forest, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, parent_id, position, data FROM blocks WHERE page_id = ? ORDER BY position`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()
	var flat []*model.FlatBlock
	for rows.Next() {
		var id, data string
		var parent sql.NullString
		var pos int
		if err := rows.Scan(&id, &parent, &pos, &data); err != nil {
			return nil, fmt.Errorf("failed to read block: %w", err)
		}
		fb, err := decodeBlock(id, pageID, parent.String, pos, data)
		if err != nil {
			return nil, err
		}
		flat = append(flat, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blocktree.FromFlat(pageID, flat), nil
}

func loadBlock(ctx context.Context, q querier, id string) (*model.FlatBlock, error) {
	var pageID, data string
	var parent sql.NullString
	var pos int
	err := q.QueryRowContext(ctx,
		`SELECT page_id, parent_id, position, data FROM blocks WHERE id = ?`, id).Scan(&pageID, &parent, &pos, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block %s: %w", id, gateway.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read block: %w", err)
	}
	return decodeBlock(id, pageID, parent.String, pos, data)
}

func decodeBlock(id, pageID, parentID string, pos int, data string) (*model.FlatBlock, error) {
	fb := &model.FlatBlock{}
	if err := json.Unmarshal([]byte(data), fb); err != nil {
		return nil, fmt.Errorf("block %s: invalid data: %w", id, err)
	}
	fb.ID, fb.PageID, fb.ParentID, fb.Index = id, pageID, parentID, pos
	return fb, nil
}
