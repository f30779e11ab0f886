// Defines content blocks, in nested and persisted (flat) form.

package model

import (
	"time"
)

// BlockType is the kind of a content block.
type BlockType string

const (
	// BlockTypeText is a paragraph.
	BlockTypeText BlockType = "text"
	// BlockTypeHeading1 is a top level heading.
	BlockTypeHeading1 BlockType = "heading1"
	// BlockTypeHeading2 is a second level heading.
	BlockTypeHeading2 BlockType = "heading2"
	// BlockTypeHeading3 is a third level heading.
	BlockTypeHeading3 BlockType = "heading3"
	// BlockTypeBulletedList is a bulleted list item.
	BlockTypeBulletedList BlockType = "bulleted_list"
	// BlockTypeNumberedList is a numbered list item.
	BlockTypeNumberedList BlockType = "numbered_list"
	// BlockTypeTodo is a checkbox item; properties["checked"] holds its state.
	BlockTypeTodo BlockType = "todo"
	// BlockTypeToggle is a collapsible item whose children are hidden by default.
	BlockTypeToggle BlockType = "toggle"
	// BlockTypeQuote is a quotation.
	BlockTypeQuote BlockType = "quote"
	// BlockTypeCallout is a highlighted note.
	BlockTypeCallout BlockType = "callout"
	// BlockTypeCode is a code listing; properties["language"] holds its language.
	BlockTypeCode BlockType = "code"
	// BlockTypeImage is an image; content holds its URL.
	BlockTypeImage BlockType = "image"
	// BlockTypeDivider is a horizontal rule.
	BlockTypeDivider BlockType = "divider"
	// BlockTypeTable is a simple table; properties["rows"] holds its cells.
	BlockTypeTable BlockType = "table"
	// BlockTypeEmbed is an embedded URL.
	BlockTypeEmbed BlockType = "embed"
)

// IsValid reports whether t is a known block type.
func (t BlockType) IsValid() bool {
	switch t {
	case BlockTypeText, BlockTypeHeading1, BlockTypeHeading2, BlockTypeHeading3,
		BlockTypeBulletedList, BlockTypeNumberedList, BlockTypeTodo, BlockTypeToggle,
		BlockTypeQuote, BlockTypeCallout, BlockTypeCode, BlockTypeImage, BlockTypeDivider,
		BlockTypeTable, BlockTypeEmbed:
		return true
	}
	return false
}

// Block is a node of a page's content tree.
type Block struct {
	ID         string         `json:"id" jsonschema:"description=Unique block identifier"`
	Type       BlockType      `json:"type" jsonschema:"description=Block kind"`
	Content    string         `json:"content" jsonschema:"description=HTML rich text or type specific payload"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"description=Type specific attributes"`
	Children   []*Block       `json:"children,omitempty" jsonschema:"description=Nested blocks"`
	ParentID   string         `json:"parent_id,omitempty" jsonschema:"description=Parent block ID; empty at the top level"`
	PageID     string         `json:"page_id" jsonschema:"description=Owning page ID"`
	CreatedAt  time.Time      `json:"created_at" jsonschema:"description=Creation timestamp"`
	UpdatedAt  time.Time      `json:"updated_at" jsonschema:"description=Last modification timestamp"`
	CreatedBy  string         `json:"created_by,omitempty" jsonschema:"description=User who created the block"`
}

// Clone returns a deep copy of the Block including its children.
func (b *Block) Clone() *Block {
	c := *b
	c.Properties = CloneProperties(b.Properties)
	c.Children = CloneBlocks(b.Children)
	return &c
}

// Flat returns the persisted form of b at position index among its siblings.
// Children are not included.
func (b *Block) Flat(index int) *FlatBlock {
	return &FlatBlock{
		ID:         b.ID,
		Type:       b.Type,
		Content:    b.Content,
		Properties: CloneProperties(b.Properties),
		ParentID:   b.ParentID,
		PageID:     b.PageID,
		Index:      index,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
		CreatedBy:  b.CreatedBy,
	}
}

// CloneBlocks deep copies a block forest. A nil forest stays nil.
func CloneBlocks(blocks []*Block) []*Block {
	if blocks == nil {
		return nil
	}
	out := make([]*Block, len(blocks))
	for i, b := range blocks {
		out[i] = b.Clone()
	}
	return out
}

// FlatBlock is a block as persisted by a remote store: one record per block,
// located by its parent and its index among siblings.
type FlatBlock struct {
	ID         string         `json:"id" jsonschema:"description=Unique block identifier"`
	Type       BlockType      `json:"type" jsonschema:"description=Block kind"`
	Content    string         `json:"content" jsonschema:"description=HTML rich text or type specific payload"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"description=Type specific attributes"`
	ParentID   string         `json:"parent_id,omitempty" jsonschema:"description=Parent block ID; empty at the top level"`
	PageID     string         `json:"page_id" jsonschema:"description=Owning page ID"`
	Index      int            `json:"index" jsonschema:"description=Position among siblings"`
	CreatedAt  time.Time      `json:"created_at" jsonschema:"description=Creation timestamp"`
	UpdatedAt  time.Time      `json:"updated_at" jsonschema:"description=Last modification timestamp"`
	CreatedBy  string         `json:"created_by,omitempty" jsonschema:"description=User who created the block"`
}

// Clone returns a deep copy of the FlatBlock.
func (f *FlatBlock) Clone() *FlatBlock {
	c := *f
	c.Properties = CloneProperties(f.Properties)
	return &c
}

// Block returns the nested form of f without children.
func (f *FlatBlock) Block() *Block {
	return &Block{
		ID:         f.ID,
		Type:       f.Type,
		Content:    f.Content,
		Properties: CloneProperties(f.Properties),
		ParentID:   f.ParentID,
		PageID:     f.PageID,
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
		CreatedBy:  f.CreatedBy,
	}
}

// Validate checks that the FlatBlock is valid.
func (f *FlatBlock) Validate() error {
	if f.ID == "" {
		return errIDRequired
	}
	if f.ParentID == f.ID {
		return errSelfParent
	}
	if !f.Type.IsValid() {
		return errInvalidBlockType
	}
	if f.Index < 0 {
		return errNegativeIndex
	}
	return nil
}
