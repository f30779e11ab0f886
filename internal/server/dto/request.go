// Package dto defines the request and response bodies of the REST API.
//
// Store entities are sent as they are; only the envelopes live here.
package dto

import (
	"github.com/maruel/pagetree/internal/apierrors"
	"github.com/maruel/pagetree/internal/model"
)

// --- Misc ---

// HealthRequest is the (empty) request of the health check.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

// SchemaRequest is the (empty) request of the data model schema.
type SchemaRequest struct{}

// Validate is a no-op for SchemaRequest.
func (r *SchemaRequest) Validate() error {
	return nil
}

// --- Workspaces ---

// ListWorkspacesRequest lists all workspaces.
type ListWorkspacesRequest struct{}

// Validate is a no-op for ListWorkspacesRequest.
func (r *ListWorkspacesRequest) Validate() error {
	return nil
}

// CreateWorkspaceRequest creates a workspace. OwnerID defaults to the
// authenticated subject.
type CreateWorkspaceRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id,omitempty"`
}

// Validate is a no-op; the store rejects an empty name.
func (r *CreateWorkspaceRequest) Validate() error {
	return nil
}

// UpdateWorkspaceRequest renames a workspace.
type UpdateWorkspaceRequest struct {
	ID   string `path:"id" json:"-"`
	Name string `json:"name"`
}

// Validate validates the update workspace request fields.
func (r *UpdateWorkspaceRequest) Validate() error {
	if r.ID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// DeleteWorkspaceRequest deletes a workspace and its pages.
type DeleteWorkspaceRequest struct {
	ID string `path:"id" json:"-"`
}

// Validate validates the delete workspace request fields.
func (r *DeleteWorkspaceRequest) Validate() error {
	if r.ID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// --- Pages ---

// ListPagesRequest lists the pages of a workspace.
type ListPagesRequest struct {
	WorkspaceID string `path:"id" json:"-"`
}

// Validate validates the list pages request fields.
func (r *ListPagesRequest) Validate() error {
	if r.WorkspaceID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// CreatePageRequest appends a page under ParentID, or at the root when it
// is empty. ID pre-assigns the page ID.
type CreatePageRequest struct {
	WorkspaceID string `path:"id" json:"-"`
	ParentID    string `json:"parent_id,omitempty"`
	Title       string `json:"title"`
	ID          string `json:"id,omitempty"`
}

// Validate validates the create page request fields.
func (r *CreatePageRequest) Validate() error {
	if r.WorkspaceID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// BulkCreatePagesRequest appends many pages under ParentID.
type BulkCreatePagesRequest struct {
	WorkspaceID string            `path:"id" json:"-"`
	ParentID    string            `json:"parent_id,omitempty"`
	Pages       []model.PageInput `json:"pages"`
}

// Validate validates the bulk create request fields.
func (r *BulkCreatePagesRequest) Validate() error {
	if r.WorkspaceID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// UpdatePageRequest applies a partial update to a page.
type UpdatePageRequest struct {
	ID string `path:"id" json:"-"`
	model.PageUpdate
}

// Validate validates the update page request fields. Values are checked by
// the store.
func (r *UpdatePageRequest) Validate() error {
	if r.ID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// DeletePageRequest deletes a page and its subtree.
type DeletePageRequest struct {
	ID string `path:"id" json:"-"`
}

// Validate validates the delete page request fields.
func (r *DeletePageRequest) Validate() error {
	if r.ID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// BulkDeletePagesRequest deletes many pages at once.
type BulkDeletePagesRequest struct {
	IDs []string `json:"ids"`
}

// Validate is a no-op; an empty list deletes nothing.
func (r *BulkDeletePagesRequest) Validate() error {
	return nil
}

// --- Blocks ---

// ListBlocksRequest lists the blocks of a page.
type ListBlocksRequest struct {
	PageID string `path:"id" json:"-"`
}

// Validate validates the list blocks request fields.
func (r *ListBlocksRequest) Validate() error {
	if r.PageID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// CreateBlockRequest inserts a block under ParentID at Index.
type CreateBlockRequest struct {
	PageID   string          `path:"id" json:"-"`
	Type     model.BlockType `json:"type"`
	Content  string          `json:"content"`
	ParentID string          `json:"parent_id,omitempty"`
	Index    int             `json:"index"`
}

// Validate validates the create block request fields.
func (r *CreateBlockRequest) Validate() error {
	if r.PageID == "" {
		return apierrors.MissingField("id")
	}
	if r.Type == "" {
		return apierrors.MissingField("type")
	}
	return nil
}

// SyncBlocksRequest replaces every block of a page.
type SyncBlocksRequest struct {
	PageID string             `path:"id" json:"-"`
	Blocks []*model.FlatBlock `json:"blocks"`
}

// Validate validates the sync request fields.
func (r *SyncBlocksRequest) Validate() error {
	if r.PageID == "" {
		return apierrors.MissingField("id")
	}
	for i, b := range r.Blocks {
		if b == nil {
			return apierrors.BadRequest("null block").WithDetail("index", i)
		}
	}
	return nil
}

// UpdateBlockRequest applies a partial update to a block.
type UpdateBlockRequest struct {
	ID string `path:"id" json:"-"`
	model.BlockUpdate
}

// Validate validates the update block request fields.
func (r *UpdateBlockRequest) Validate() error {
	if r.ID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}

// DeleteBlockRequest deletes a block and its subtree.
type DeleteBlockRequest struct {
	ID string `path:"id" json:"-"`
}

// Validate validates the delete block request fields.
func (r *DeleteBlockRequest) Validate() error {
	if r.ID == "" {
		return apierrors.MissingField("id")
	}
	return nil
}
