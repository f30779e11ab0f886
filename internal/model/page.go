// Package model defines the entities of a workspace: pages, databases, rows
// and blocks, plus the partial updates the remote stores accept.
package model

import (
	"time"
)

// DefaultTitle is the title of a page created without one.
const DefaultTitle = "Untitled"

// Page is a node in the workspace tree.
//
// A page whose parent is a database is also a row of that database; see
// DatabaseRow.
type Page struct {
	ID             string          `json:"id" jsonschema:"description=Unique page identifier"`
	WorkspaceID    string          `json:"workspace_id" jsonschema:"description=Workspace owning the page"`
	ParentID       string          `json:"parent_id,omitempty" jsonschema:"description=Parent page ID; empty for a workspace root"`
	Title          string          `json:"title" jsonschema:"description=Page title"`
	Icon           string          `json:"icon,omitempty" jsonschema:"description=Emoji or icon name"`
	CoverImage     string          `json:"cover_image,omitempty" jsonschema:"description=Cover image URL or data URI"`
	CoverPosition  int             `json:"cover_position,omitempty" jsonschema:"description=Vertical cover offset (0-100)"`
	IsArchived     bool            `json:"is_archived,omitempty" jsonschema:"description=Whether the page is in the trash"`
	IsFavourite    bool            `json:"is_favourite,omitempty" jsonschema:"description=Whether the page is pinned to favourites"`
	IsTemplate     bool            `json:"is_template,omitempty" jsonschema:"description=Whether the page is a template"`
	IsDatabase     bool            `json:"is_database,omitempty" jsonschema:"description=Whether the page is a database"`
	DatabaseConfig *DatabaseConfig `json:"database_config,omitempty" jsonschema:"description=Schema and views; set iff is_database"`
	Properties     map[string]any  `json:"properties,omitempty" jsonschema:"description=Row values keyed by property ID when the parent is a database"`
	Blocks         []*Block        `json:"blocks,omitempty" jsonschema:"description=Nested content blocks"`
	Children       []string        `json:"children,omitempty" jsonschema:"description=Ordered child page IDs"`
	FullWidth      bool            `json:"full_width,omitempty" jsonschema:"description=Display the page at full width"`
	CreatedAt      time.Time       `json:"created_at" jsonschema:"description=Creation timestamp"`
	UpdatedAt      time.Time       `json:"updated_at" jsonschema:"description=Last modification timestamp"`
	CreatedBy      string          `json:"created_by,omitempty" jsonschema:"description=User who created the page"`
	LastEditedBy   string          `json:"last_edited_by,omitempty" jsonschema:"description=User who last edited the page"`
}

// Clone returns a deep copy of the Page.
func (p *Page) Clone() *Page {
	c := *p
	c.DatabaseConfig = p.DatabaseConfig.Clone()
	c.Properties = CloneProperties(p.Properties)
	c.Blocks = CloneBlocks(p.Blocks)
	if p.Children != nil {
		c.Children = make([]string, len(p.Children))
		copy(c.Children, p.Children)
	}
	return &c
}

// Validate checks that the Page is valid.
func (p *Page) Validate() error {
	if p.ID == "" {
		return errIDRequired
	}
	if p.ParentID == p.ID {
		return errSelfParent
	}
	if p.IsDatabase != (p.DatabaseConfig != nil) {
		return errDatabaseConfig
	}
	if p.CoverPosition < 0 || p.CoverPosition > 100 {
		return errCoverPosition
	}
	return nil
}

// IsRoot reports whether the page sits at the top of its workspace.
func (p *Page) IsRoot() bool {
	return p.ParentID == ""
}

// Workspace is a container for pages.
type Workspace struct {
	ID        string    `json:"id" jsonschema:"description=Unique workspace identifier"`
	Name      string    `json:"name" jsonschema:"description=Workspace display name"`
	OwnerID   string    `json:"owner_id,omitempty" jsonschema:"description=Owning user"`
	CreatedAt time.Time `json:"created_at" jsonschema:"description=Creation timestamp"`
}

// Clone returns a copy of the Workspace.
func (w *Workspace) Clone() *Workspace {
	c := *w
	return &c
}

// Validate checks that the Workspace is valid.
func (w *Workspace) Validate() error {
	if w.ID == "" {
		return errIDRequired
	}
	if w.Name == "" {
		return errNameRequired
	}
	return nil
}

// PageInput is the input to a bulk page creation.
type PageInput struct {
	ID         string         `json:"id,omitempty" jsonschema:"description=Pre-assigned page ID; empty lets the store assign one"`
	Title      string         `json:"title" jsonschema:"description=Page title"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"description=Row values"`
}
