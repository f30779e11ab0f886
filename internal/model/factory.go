// Builds entities in their default shape.

package model

import (
	"strings"
	"time"
)

// NewPage returns a content page. An empty title becomes DefaultTitle.
func NewPage(id, workspaceID, parentID, title string, now time.Time) *Page {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &Page{
		ID:          id,
		WorkspaceID: workspaceID,
		ParentID:    parentID,
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewDatabasePage returns a database page with the default schema.
func NewDatabasePage(id, workspaceID, parentID, title, viewID string, now time.Time) *Page {
	p := NewPage(id, workspaceID, parentID, title, now)
	p.IsDatabase = true
	p.DatabaseConfig = NewDatabaseConfig(viewID)
	return p
}

// NewDatabaseConfig returns a schema holding only the title column and a
// single table view.
func NewDatabaseConfig(viewID string) *DatabaseConfig {
	return &DatabaseConfig{
		Properties: []DatabaseProperty{
			{ID: TitlePropertyID, Name: "Name", Type: PropertyTypeTitle, IsVisible: true, Width: 280},
		},
		Views: []View{
			{ID: viewID, Name: "Table", Type: ViewTypeTable},
		},
		DefaultViewID: viewID,
	}
}

// NewRowPage returns a page to be placed in database databaseID. A string
// under properties["title"] becomes the page title; the rest stays in
// Properties.
func NewRowPage(id, workspaceID, databaseID string, properties map[string]any, now time.Time) *Page {
	props, title := SplitTitle(properties)
	p := NewPage(id, workspaceID, databaseID, title, now)
	p.Properties = props
	return p
}

// SplitTitle separates the title value from row properties. The returned map
// is a copy and is nil when nothing else remains.
func SplitTitle(properties map[string]any) (map[string]any, string) {
	title := ""
	props := CloneProperties(properties)
	if v, ok := props[TitlePropertyID]; ok {
		if s, ok := v.(string); ok {
			title = s
		}
		delete(props, TitlePropertyID)
	}
	if len(props) == 0 {
		props = nil
	}
	return props, title
}

// NewBlock returns a block with no children.
func NewBlock(id, pageID, parentID string, typ BlockType, content string, now time.Time) *Block {
	if typ == "" {
		typ = BlockTypeText
	}
	return &Block{
		ID:        id,
		Type:      typ,
		Content:   content,
		ParentID:  parentID,
		PageID:    pageID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
