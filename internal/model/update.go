// Defines partial updates sent to remote stores.

package model

// PageUpdate is a partial update of a page. Nil fields are left unchanged.
//
// Properties replaces the whole map when non-nil.
type PageUpdate struct {
	Title          *string         `json:"title,omitempty" jsonschema:"description=New title"`
	Icon           *string         `json:"icon,omitempty" jsonschema:"description=New icon"`
	CoverImage     *string         `json:"cover_image,omitempty" jsonschema:"description=New cover image"`
	CoverPosition  *int            `json:"cover_position,omitempty" jsonschema:"description=New cover offset"`
	IsArchived     *bool           `json:"is_archived,omitempty" jsonschema:"description=Archive or restore"`
	IsFavourite    *bool           `json:"is_favourite,omitempty" jsonschema:"description=Pin or unpin"`
	IsTemplate     *bool           `json:"is_template,omitempty" jsonschema:"description=Mark as template"`
	IsDatabase     *bool           `json:"is_database,omitempty" jsonschema:"description=Turn into a database"`
	DatabaseConfig *DatabaseConfig `json:"database_config,omitempty" jsonschema:"description=New schema and views"`
	Properties     map[string]any  `json:"properties,omitempty" jsonschema:"description=New row values"`
	FullWidth      *bool           `json:"full_width,omitempty" jsonschema:"description=New display width"`
	ParentID       *string         `json:"parent_id,omitempty" jsonschema:"description=New parent; empty string moves to the root"`
	Position       *int            `json:"position,omitempty" jsonschema:"description=Index among the new siblings; absent appends"`
	LastEditedBy   *string         `json:"last_edited_by,omitempty" jsonschema:"description=Editing user"`
}

// IsEmpty reports whether the update changes nothing.
func (u *PageUpdate) IsEmpty() bool {
	return u.Title == nil && u.Icon == nil && u.CoverImage == nil && u.CoverPosition == nil &&
		u.IsArchived == nil && u.IsFavourite == nil && u.IsTemplate == nil && u.IsDatabase == nil &&
		u.DatabaseConfig == nil && u.Properties == nil && u.FullWidth == nil && u.ParentID == nil &&
		u.Position == nil && u.LastEditedBy == nil
}

// IsMove reports whether the update relocates the page.
func (u *PageUpdate) IsMove() bool {
	return u.ParentID != nil || u.Position != nil
}

// Validate checks the values carried by the update.
func (u *PageUpdate) Validate() error {
	if u.CoverPosition != nil && (*u.CoverPosition < 0 || *u.CoverPosition > 100) {
		return errCoverPosition
	}
	if u.DatabaseConfig != nil {
		if u.IsDatabase != nil && !*u.IsDatabase {
			return errDatabaseConfig
		}
		if err := u.DatabaseConfig.Validate(); err != nil {
			return err
		}
	}
	if u.Position != nil && *u.Position < 0 {
		return errNegativeIndex
	}
	return nil
}

// Apply writes the non-move fields of u onto p. Relocation is left to the
// owner of the tree since it touches other pages.
func (u *PageUpdate) Apply(p *Page) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Icon != nil {
		p.Icon = *u.Icon
	}
	if u.CoverImage != nil {
		p.CoverImage = *u.CoverImage
	}
	if u.CoverPosition != nil {
		p.CoverPosition = *u.CoverPosition
	}
	if u.IsArchived != nil {
		p.IsArchived = *u.IsArchived
	}
	if u.IsFavourite != nil {
		p.IsFavourite = *u.IsFavourite
	}
	if u.IsTemplate != nil {
		p.IsTemplate = *u.IsTemplate
	}
	if u.IsDatabase != nil {
		p.IsDatabase = *u.IsDatabase
		if !p.IsDatabase {
			p.DatabaseConfig = nil
		}
	}
	if u.DatabaseConfig != nil {
		p.DatabaseConfig = u.DatabaseConfig.Clone()
	}
	if u.Properties != nil {
		p.Properties = CloneProperties(u.Properties)
	}
	if u.FullWidth != nil {
		p.FullWidth = *u.FullWidth
	}
	if u.LastEditedBy != nil {
		p.LastEditedBy = *u.LastEditedBy
	}
}

// Clone returns a deep copy of the PageUpdate.
func (u *PageUpdate) Clone() *PageUpdate {
	c := *u
	c.DatabaseConfig = u.DatabaseConfig.Clone()
	c.Properties = CloneProperties(u.Properties)
	return &c
}

// BlockUpdate is a partial update of a block. Nil fields are left unchanged.
type BlockUpdate struct {
	Type       *BlockType     `json:"type,omitempty" jsonschema:"description=New block kind"`
	Content    *string        `json:"content,omitempty" jsonschema:"description=New content"`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"description=New attributes, replacing the old ones"`
}

// Validate checks the values carried by the update.
func (u *BlockUpdate) Validate() error {
	if u.Type != nil && !u.Type.IsValid() {
		return errInvalidBlockType
	}
	return nil
}

// Apply writes u onto b.
func (u *BlockUpdate) Apply(b *Block) {
	if u.Type != nil {
		b.Type = *u.Type
	}
	if u.Content != nil {
		b.Content = *u.Content
	}
	if u.Properties != nil {
		b.Properties = CloneProperties(u.Properties)
	}
}

// Ptr returns a pointer to v, for building partial updates.
func Ptr[T any](v T) *T {
	return &v
}
