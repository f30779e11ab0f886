package dto

import "github.com/maruel/pagetree/internal/model"

// OkResponse is a simple success response.
type OkResponse struct {
	Ok bool `json:"ok"`
}

// HealthResponse is the response of the health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ListWorkspacesResponse lists the workspaces.
type ListWorkspacesResponse struct {
	Workspaces []*model.Workspace `json:"workspaces"`
}

// ListPagesResponse lists pages, parents before children.
type ListPagesResponse struct {
	Pages []*model.Page `json:"pages"`
}

// ListBlocksResponse lists the persisted blocks of a page.
type ListBlocksResponse struct {
	Blocks []*model.FlatBlock `json:"blocks"`
}
