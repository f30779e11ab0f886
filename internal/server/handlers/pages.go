package handlers

import (
	"context"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/server/dto"
)

// PageHandler handles page requests.
type PageHandler struct {
	gw gateway.Gateway
}

// NewPageHandler creates a new page handler.
func NewPageHandler(gw gateway.Gateway) *PageHandler {
	return &PageHandler{gw: gw}
}

// ListPages returns every page of a workspace, parents first.
func (h *PageHandler) ListPages(ctx context.Context, req *dto.ListPagesRequest) (*dto.ListPagesResponse, error) {
	pages, err := h.gw.GetPages(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return listPages(pages), nil
}

// CreatePage appends a page.
func (h *PageHandler) CreatePage(ctx context.Context, req *dto.CreatePageRequest) (*model.Page, error) {
	return h.gw.CreatePage(ctx, req.WorkspaceID, req.ParentID, req.Title, req.ID)
}

// BulkCreatePages appends many pages under one parent.
func (h *PageHandler) BulkCreatePages(ctx context.Context, req *dto.BulkCreatePagesRequest) (*dto.ListPagesResponse, error) {
	pages, err := h.gw.BulkCreatePages(ctx, req.WorkspaceID, req.ParentID, req.Pages)
	if err != nil {
		return nil, err
	}
	return listPages(pages), nil
}

// UpdatePage applies a partial update, possibly relocating the page.
func (h *PageHandler) UpdatePage(ctx context.Context, req *dto.UpdatePageRequest) (*dto.OkResponse, error) {
	if err := h.gw.UpdatePage(ctx, req.ID, &req.PageUpdate); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// DeletePage deletes a page and its subtree.
func (h *PageHandler) DeletePage(ctx context.Context, req *dto.DeletePageRequest) (*dto.OkResponse, error) {
	if err := h.gw.DeletePage(ctx, req.ID); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// BulkDeletePages deletes many pages, all or none.
func (h *PageHandler) BulkDeletePages(ctx context.Context, req *dto.BulkDeletePagesRequest) (*dto.OkResponse, error) {
	if err := h.gw.BulkDeletePages(ctx, req.IDs); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

func listPages(pages []*model.Page) *dto.ListPagesResponse {
	if pages == nil {
		pages = []*model.Page{}
	}
	return &dto.ListPagesResponse{Pages: pages}
}
