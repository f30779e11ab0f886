package handlers

import (
	"context"

	"github.com/maruel/pagetree/internal/gateway"
	"github.com/maruel/pagetree/internal/model"
	"github.com/maruel/pagetree/internal/server/dto"
	"github.com/maruel/pagetree/internal/server/reqctx"
)

// WorkspaceHandler handles workspace requests.
type WorkspaceHandler struct {
	gw gateway.Gateway
}

// NewWorkspaceHandler creates a new workspace handler.
func NewWorkspaceHandler(gw gateway.Gateway) *WorkspaceHandler {
	return &WorkspaceHandler{gw: gw}
}

// ListWorkspaces returns every workspace.
func (h *WorkspaceHandler) ListWorkspaces(ctx context.Context, req *dto.ListWorkspacesRequest) (*dto.ListWorkspacesResponse, error) {
	ws, err := h.gw.GetWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	if ws == nil {
		ws = []*model.Workspace{}
	}
	return &dto.ListWorkspacesResponse{Workspaces: ws}, nil
}

// CreateWorkspace creates a workspace owned by the caller unless an owner
// is given.
func (h *WorkspaceHandler) CreateWorkspace(ctx context.Context, req *dto.CreateWorkspaceRequest) (*model.Workspace, error) {
	owner := req.OwnerID
	if owner == "" {
		owner = reqctx.Subject(ctx)
	}
	return h.gw.CreateWorkspace(ctx, req.Name, owner)
}

// UpdateWorkspace renames a workspace.
func (h *WorkspaceHandler) UpdateWorkspace(ctx context.Context, req *dto.UpdateWorkspaceRequest) (*dto.OkResponse, error) {
	if err := h.gw.UpdateWorkspace(ctx, req.ID, req.Name); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}

// DeleteWorkspace deletes a workspace with its pages.
func (h *WorkspaceHandler) DeleteWorkspace(ctx context.Context, req *dto.DeleteWorkspaceRequest) (*dto.OkResponse, error) {
	if err := h.gw.DeleteWorkspace(ctx, req.ID); err != nil {
		return nil, err
	}
	return &dto.OkResponse{Ok: true}, nil
}
