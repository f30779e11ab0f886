// Package gateway defines the contract of a remote page store.
//
// Every call may fail. Callers must treat a failure as "nothing happened"
// and roll back whatever they applied optimistically.
package gateway

import (
	"context"
	"errors"

	"github.com/maruel/pagetree/internal/model"
)

var (
	// ErrNotFound is returned when an entity does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a pre-assigned ID is already in use.
	ErrConflict = errors.New("conflict")
	// ErrInvalid is returned when the store rejects the shape of a request.
	ErrInvalid = errors.New("invalid request")
)

// Gateway is a remote page store.
type Gateway interface {
	// GetWorkspaces lists all workspaces.
	GetWorkspaces(ctx context.Context) ([]*model.Workspace, error)
	// CreateWorkspace creates a workspace and returns it with its assigned ID.
	CreateWorkspace(ctx context.Context, name, ownerID string) (*model.Workspace, error)
	// UpdateWorkspace renames a workspace.
	UpdateWorkspace(ctx context.Context, id, name string) error
	// DeleteWorkspace deletes a workspace with all its pages.
	DeleteWorkspace(ctx context.Context, id string) error

	// GetPages returns every page of a workspace, parents before children,
	// siblings in order. Blocks are not included.
	GetPages(ctx context.Context, workspaceID string) ([]*model.Page, error)
	// CreatePage appends a page to the children of parentID (or to the roots).
	// id pre-assigns the page ID when not empty.
	CreatePage(ctx context.Context, workspaceID, parentID, title, id string) (*model.Page, error)
	// BulkCreatePages appends many pages under parentID in one call.
	BulkCreatePages(ctx context.Context, workspaceID, parentID string, pages []model.PageInput) ([]*model.Page, error)
	// UpdatePage applies a partial update. ParentID and Position relocate the
	// page.
	UpdatePage(ctx context.Context, id string, u *model.PageUpdate) error
	// DeletePage deletes a page and its whole subtree.
	DeletePage(ctx context.Context, id string) error
	// BulkDeletePages deletes many pages and their subtrees. Either all are
	// deleted or none.
	BulkDeletePages(ctx context.Context, ids []string) error

	// GetBlocks returns the persisted blocks of a page.
	GetBlocks(ctx context.Context, pageID string) ([]*model.FlatBlock, error)
	// CreateBlock inserts a block under parentID (or at the top level) at
	// index.
	CreateBlock(ctx context.Context, pageID string, typ model.BlockType, content, parentID string, index int) (*model.Block, error)
	// UpdateBlock applies a partial update to a block.
	UpdateBlock(ctx context.Context, id string, u *model.BlockUpdate) error
	// DeleteBlock deletes a block and its subtree.
	DeleteBlock(ctx context.Context, id string) error
	// SyncBlocks replaces all the blocks of a page.
	SyncBlocks(ctx context.Context, pageID string, blocks []*model.FlatBlock) error
}
