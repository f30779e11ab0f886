package memgw

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/maruel/pagetree/internal/blocktree"
	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
)

// GetBlocks implements gateway.Gateway.
func (g *Gateway) GetBlocks(ctx context.Context, pageID string) ([]*model.FlatBlock, error) {
	if err := g.enter(ctx, "GetBlocks"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	if _, ok := g.pages[pageID]; !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, gateway.ErrNotFound)
	}
	f := g.blocks[pageID]
	if f == nil {
		return []*model.FlatBlock{}, nil
	}
	return f.Flatten(), nil
}

// CreateBlock implements gateway.Gateway.
func (g *Gateway) CreateBlock(ctx context.Context, pageID string, typ model.BlockType, content, parentID string, index int) (*model.Block, error) {
	if err := g.enter(ctx, "CreateBlock"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	if _, ok := g.pages[pageID]; !ok {
		return nil, fmt.Errorf("page %s: %w", pageID, gateway.ErrNotFound)
	}
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: block type %q", gateway.ErrInvalid, typ)
	}
	f := g.forest(pageID)
	b := model.NewBlock(uuid.NewString(), pageID, parentID, typ, content, g.now())
	if _, err := f.Insert(b, parentID, index); err != nil {
		return nil, fmt.Errorf("block parent %s: %w", parentID, gateway.ErrNotFound)
	}
	g.blockPage[b.ID] = pageID
	out, _ := f.Get(b.ID)
	return out, nil
}

// UpdateBlock implements gateway.Gateway.
func (g *Gateway) UpdateBlock(ctx context.Context, id string, u *model.BlockUpdate) error {
	if err := g.enter(ctx, "UpdateBlock"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %w", gateway.ErrInvalid, err)
	}
	pageID, ok := g.blockPage[id]
	if !ok {
		return fmt.Errorf("block %s: %w", id, gateway.ErrNotFound)
	}
	now := g.now()
	return g.blocks[pageID].Update(id, func(b *model.Block) {
		u.Apply(b)
		b.UpdatedAt = now
	})
}

// DeleteBlock implements gateway.Gateway.
func (g *Gateway) DeleteBlock(ctx context.Context, id string) error {
	if err := g.enter(ctx, "DeleteBlock"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	pageID, ok := g.blockPage[id]
	if !ok {
		return fmt.Errorf("block %s: %w", id, gateway.ErrNotFound)
	}
	removed, _, _, err := g.blocks[pageID].Remove(id)
	if err != nil {
		return err
	}
	g.forgetBlocks(removed)
	return nil
}

// SyncBlocks implements gateway.Gateway.
func (g *Gateway) SyncBlocks(ctx context.Context, pageID string, blocks []*model.FlatBlock) error {
	if err := g.enter(ctx, "SyncBlocks"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	if _, ok := g.pages[pageID]; !ok {
		return fmt.Errorf("page %s: %w", pageID, gateway.ErrNotFound)
	}
	for _, fb := range blocks {
		if err := fb.Validate(); err != nil {
			return fmt.Errorf("%w: block %s: %w", gateway.ErrInvalid, fb.ID, err)
		}
		if owner, ok := g.blockPage[fb.ID]; ok && owner != pageID {
			return fmt.Errorf("block %s belongs to page %s: %w", fb.ID, owner, gateway.ErrConflict)
		}
	}
	g.setBlocks(pageID, blocks)
	return nil
}

func (g *Gateway) setBlocks(pageID string, blocks []*model.FlatBlock) {
	if old := g.blocks[pageID]; old != nil {
		for _, fb := range old.Flatten() {
			delete(g.blockPage, fb.ID)
		}
	}
	f := blocktree.FromFlat(pageID, blocks)
	g.blocks[pageID] = f
	for _, fb := range f.Flatten() {
		g.blockPage[fb.ID] = pageID
	}
}

func (g *Gateway) forest(pageID string) *blocktree.Forest {
	f := g.blocks[pageID]
	if f == nil {
		f = blocktree.New(pageID)
		g.blocks[pageID] = f
	}
	return f
}

func (g *Gateway) forgetBlocks(b *model.Block) {
	delete(g.blockPage, b.ID)
	for _, c := range b.Children {
		g.forgetBlocks(c)
	}
}
