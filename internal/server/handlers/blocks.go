package handlers

import (
	"context"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/server/dto"
)

// BlockHandler handles block requests.
type BlockHandler struct {
	gw gateway.Gateway
}

// NewBlockHandler creates a new block handler.
func NewBlockHandler(gw gateway.Gateway) *BlockHandler {
	return &BlockHandler{gw: gw}
}

// ListBlocks returns the persisted blocks of a page.
func (h *BlockHandler) ListBlocks(ctx context.Context, req *dto.ListBlocksRequest) (*dto.ListBlocksResponse, error) {
	blocks, err := h.gw.GetBlocks(ctx, req.PageID)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []*model.FlatBlock{}
	}
	return &dto.ListBlocksResponse{Blocks: blocks}, nil
}

// CreateBlock inserts a block.
func (h *BlockHandler) CreateBlock(ctx context.Context, req *dto.CreateBlockRequest) (*model.Block, error) {
	return h.gw.CreateBlock(ctx, req.PageID, req.Type, req.Content, req.ParentID, req.Index)
}

// SyncBlocks replaces every block of a page.
func (h *BlockHandler) SyncBlocks(ctx context.Context, req *dto.SyncBlocksRequest) (*dto.OkResponse, error) {
	if err := h.gw.SyncBlocks(ctx, req.PageID, req.Blocks); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// UpdateBlock applies a partial update to a block.
func (h *BlockHandler) UpdateBlock(ctx context.Context, req *dto.UpdateBlockRequest) (*dto.OkResponse, error) {
	if err := h.gw.UpdateBlock(ctx, req.ID, &req.BlockUpdate); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// DeleteBlock deletes a block and its subtree.
func (h *BlockHandler) DeleteBlock(ctx context.Context, req *dto.DeleteBlockRequest) (*dto.OkResponse, error) {
	if err := h.gw.DeleteBlock(ctx, req.ID); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}
