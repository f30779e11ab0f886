// Defines the database schema, saved views and the row projection.

package model

import (
	"slices"
	"time"
)

// TitlePropertyID is the property every database row carries, mirrored from
// the row page's title.
const TitlePropertyID = "title"

// DatabaseConfig is the schema and saved views of a database page.
type DatabaseConfig struct {
	Properties    []DatabaseProperty `json:"properties" jsonschema:"description=Ordered column definitions"`
	Views         []View             `json:"views" jsonschema:"description=Ordered saved views"`
	DefaultViewID string             `json:"default_view_id,omitempty" jsonschema:"description=View shown when the database opens"`
}

// Clone returns a deep copy of the DatabaseConfig. A nil receiver yields nil.
func (c *DatabaseConfig) Clone() *DatabaseConfig {
	if c == nil {
		return nil
	}
	n := &DatabaseConfig{DefaultViewID: c.DefaultViewID}
	if c.Properties != nil {
		n.Properties = make([]DatabaseProperty, len(c.Properties))
		for i := range c.Properties {
			n.Properties[i] = c.Properties[i].clone()
		}
	}
	if c.Views != nil {
		n.Views = make([]View, len(c.Views))
		for i := range c.Views {
			n.Views[i] = c.Views[i].clone()
		}
	}
	return n
}

// Property returns the property with the given ID.
func (c *DatabaseConfig) Property(id string) (*DatabaseProperty, bool) {
	for i := range c.Properties {
		if c.Properties[i].ID == id {
			return &c.Properties[i], true
		}
	}
	return nil, false
}

// View returns the view with the given ID, or the default view when id is
// empty.
func (c *DatabaseConfig) View(id string) (*View, bool) {
	if id == "" {
		id = c.DefaultViewID
	}
	for i := range c.Views {
		if c.Views[i].ID == id {
			return &c.Views[i], true
		}
	}
	if id == "" && len(c.Views) > 0 {
		return &c.Views[0], true
	}
	return nil, false
}

// Validate checks that the DatabaseConfig is valid.
func (c *DatabaseConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Properties))
	for i := range c.Properties {
		p := &c.Properties[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if _, ok := seen[p.ID]; ok {
			return errDuplicateProperty
		}
		seen[p.ID] = struct{}{}
	}
	for i := range c.Views {
		if err := c.Views[i].Validate(); err != nil {
			return err
		}
	}
	if c.DefaultViewID != "" {
		if _, ok := c.View(c.DefaultViewID); !ok {
			return errUnknownView
		}
	}
	return nil
}

// PropertyType is the type of a database column.
type PropertyType string

const (
	// PropertyTypeTitle is the row title column.
	PropertyTypeTitle PropertyType = "title"
	// PropertyTypeText stores plain text values.
	PropertyTypeText PropertyType = "text"
	// PropertyTypeNumber stores numeric values.
	PropertyTypeNumber PropertyType = "number"
	// PropertyTypeSelect stores a single selection from predefined options.
	PropertyTypeSelect PropertyType = "select"
	// PropertyTypeMultiSelect stores multiple selections from predefined options.
	PropertyTypeMultiSelect PropertyType = "multi_select"
	// PropertyTypeStatus stores a workflow state from predefined options.
	PropertyTypeStatus PropertyType = "status"
	// PropertyTypeTags stores free-form tags from predefined options.
	PropertyTypeTags PropertyType = "tags"
	// PropertyTypeDate stores ISO 8601 date strings.
	PropertyTypeDate PropertyType = "date"
	// PropertyTypeCheckbox stores booleans.
	PropertyTypeCheckbox PropertyType = "checkbox"
	// PropertyTypeURL stores URLs.
	PropertyTypeURL PropertyType = "url"
	// PropertyTypeEmail stores email addresses.
	PropertyTypeEmail PropertyType = "email"
	// PropertyTypePhone stores phone numbers.
	PropertyTypePhone PropertyType = "phone"
	// PropertyTypePerson stores user IDs.
	PropertyTypePerson PropertyType = "person"
	// PropertyTypeFiles stores file URLs.
	PropertyTypeFiles PropertyType = "files"
	// PropertyTypeCreatedTime is computed from the row page.
	PropertyTypeCreatedTime PropertyType = "created_time"
	// PropertyTypeLastEditedTime is computed from the row page.
	PropertyTypeLastEditedTime PropertyType = "last_edited_time"
)

// IsValid reports whether t is a known property type.
func (t PropertyType) IsValid() bool {
	switch t {
	case PropertyTypeTitle, PropertyTypeText, PropertyTypeNumber, PropertyTypeSelect,
		PropertyTypeMultiSelect, PropertyTypeStatus, PropertyTypeTags, PropertyTypeDate,
		PropertyTypeCheckbox, PropertyTypeURL, PropertyTypeEmail, PropertyTypePhone,
		PropertyTypePerson, PropertyTypeFiles, PropertyTypeCreatedTime, PropertyTypeLastEditedTime:
		return true
	}
	return false
}

// HasOptions reports whether values of this type are picked from Options.
func (t PropertyType) HasOptions() bool {
	return t == PropertyTypeSelect || t == PropertyTypeMultiSelect || t == PropertyTypeStatus || t == PropertyTypeTags
}

// SelectOption is a choice for an enumerable property.
type SelectOption struct {
	ID    string `json:"id" jsonschema:"description=Unique option identifier"`
	Name  string `json:"name" jsonschema:"description=Display name of the option"`
	Color string `json:"color,omitempty" jsonschema:"description=Color for visual distinction"`
}

// DatabaseProperty is a typed column definition.
type DatabaseProperty struct {
	ID        string         `json:"id" jsonschema:"description=Unique property identifier"`
	Name      string         `json:"name" jsonschema:"description=Column display name"`
	Type      PropertyType   `json:"type" jsonschema:"description=Column type"`
	IsVisible bool           `json:"is_visible" jsonschema:"description=Whether the column is shown"`
	Width     int            `json:"width,omitempty" jsonschema:"description=Column width in pixels"`
	Options   []SelectOption `json:"options,omitempty" jsonschema:"description=Choices for select/multi_select/status/tags"`
	Pinned    string         `json:"pinned,omitempty" jsonschema:"description=Pinned side (left/right) or empty"`
}

func (p *DatabaseProperty) clone() DatabaseProperty {
	c := *p
	c.Options = slices.Clone(p.Options)
	return c
}

// Validate checks that the DatabaseProperty is valid.
func (p *DatabaseProperty) Validate() error {
	if p.ID == "" {
		return errIDRequired
	}
	if p.Name == "" {
		return errNameRequired
	}
	if !p.Type.IsValid() {
		return errInvalidPropertyType
	}
	if len(p.Options) > 0 && !p.Type.HasOptions() {
		return errOptionsNotAllowed
	}
	return nil
}

// ViewType is the layout of a saved view.
type ViewType string

const (
	// ViewTypeTable displays rows in a spreadsheet-like table.
	ViewTypeTable ViewType = "table"
	// ViewTypeBoard displays rows in a kanban board grouped by a property.
	ViewTypeBoard ViewType = "board"
	// ViewTypeCalendar displays rows on a calendar by date property.
	ViewTypeCalendar ViewType = "calendar"
	// ViewTypeGallery displays rows as cards in a grid.
	ViewTypeGallery ViewType = "gallery"
	// ViewTypeList displays rows in a simple list.
	ViewTypeList ViewType = "list"
	// ViewTypeTimeline displays rows on a horizontal time axis.
	ViewTypeTimeline ViewType = "timeline"
)

// View is a saved view of a database.
type View struct {
	ID               string   `json:"id" jsonschema:"description=Unique view identifier"`
	Name             string   `json:"name" jsonschema:"description=View display name"`
	Type             ViewType `json:"type" jsonschema:"description=View layout (table/board/calendar/gallery/list/timeline)"`
	Filters          []Filter `json:"filters,omitempty" jsonschema:"description=Filter conditions, all must match"`
	Sorts            []Sort   `json:"sorts,omitempty" jsonschema:"description=Sort order"`
	GroupBy          string   `json:"group_by,omitempty" jsonschema:"description=Property ID rows are grouped by (board)"`
	DateProperty     string   `json:"date_property,omitempty" jsonschema:"description=Property ID placing rows in time (calendar/timeline)"`
	HiddenProperties []string `json:"hidden_properties,omitempty" jsonschema:"description=Property IDs hidden in this view"`
}

func (v *View) clone() View {
	c := *v
	c.Filters = cloneFilters(v.Filters)
	c.Sorts = slices.Clone(v.Sorts)
	c.HiddenProperties = slices.Clone(v.HiddenProperties)
	return c
}

// Validate checks that the View is valid.
func (v *View) Validate() error {
	if v.ID == "" {
		return errIDRequired
	}
	if v.Name == "" {
		return errNameRequired
	}
	switch v.Type {
	case ViewTypeTable, ViewTypeBoard, ViewTypeCalendar, ViewTypeGallery, ViewTypeList, ViewTypeTimeline:
	default:
		return errInvalidViewType
	}
	return nil
}

// Filter is a condition on a row property.
type Filter struct {
	Property string   `json:"property,omitempty" jsonschema:"description=Property ID to filter on"`
	Operator FilterOp `json:"operator,omitempty" jsonschema:"description=Filter operator"`
	Value    any      `json:"value,omitempty" jsonschema:"description=Value to compare against"`

	// Compound filters, mutually exclusive with Property/Operator/Value.
	And []Filter `json:"and,omitempty" jsonschema:"description=All conditions must match (AND)"`
	Or  []Filter `json:"or,omitempty" jsonschema:"description=Any condition must match (OR)"`
}

func cloneFilters(f []Filter) []Filter {
	if f == nil {
		return nil
	}
	out := make([]Filter, len(f))
	for i := range f {
		out[i] = f[i]
		out[i].Value = cloneValue(f[i].Value)
		out[i].And = cloneFilters(f[i].And)
		out[i].Or = cloneFilters(f[i].Or)
	}
	return out
}

// FilterOp is the comparison operator of a filter.
type FilterOp string

const (
	// FilterOpEquals matches if value equals the filter value.
	FilterOpEquals FilterOp = "equals"
	// FilterOpNotEquals matches if value does not equal the filter value.
	FilterOpNotEquals FilterOp = "not_equals"
	// FilterOpContains matches if value contains the filter value (text).
	FilterOpContains FilterOp = "contains"
	// FilterOpNotContains matches if value does not contain the filter value.
	FilterOpNotContains FilterOp = "not_contains"
	// FilterOpStartsWith matches if value starts with the filter value.
	FilterOpStartsWith FilterOp = "starts_with"
	// FilterOpEndsWith matches if value ends with the filter value.
	FilterOpEndsWith FilterOp = "ends_with"
	// FilterOpGreaterThan matches if value is greater than the filter value.
	FilterOpGreaterThan FilterOp = "gt"
	// FilterOpLessThan matches if value is less than the filter value.
	FilterOpLessThan FilterOp = "lt"
	// FilterOpGreaterEqual matches if value is greater than or equal to the filter value.
	FilterOpGreaterEqual FilterOp = "gte"
	// FilterOpLessEqual matches if value is less than or equal to the filter value.
	FilterOpLessEqual FilterOp = "lte"
	// FilterOpIsEmpty matches if value is empty/null.
	FilterOpIsEmpty FilterOp = "is_empty"
	// FilterOpIsNotEmpty matches if value is not empty/null.
	FilterOpIsNotEmpty FilterOp = "is_not_empty"
)

// Sort is the sort order for a property.
type Sort struct {
	Property  string  `json:"property" jsonschema:"description=Property ID to sort by"`
	Direction SortDir `json:"direction" jsonschema:"description=Sort direction (asc/desc)"`
}

// SortDir is a sort direction.
type SortDir string

const (
	// SortAsc sorts in ascending order.
	SortAsc SortDir = "asc"
	// SortDesc sorts in descending order.
	SortDesc SortDir = "desc"
)

// DatabaseRow is the row-shaped view of a page whose parent is a database.
//
// It is computed from the page and never stored on its own.
type DatabaseRow struct {
	ID           string         `json:"id" jsonschema:"description=Row ID, equal to the page ID"`
	PageID       string         `json:"page_id" jsonschema:"description=Underlying page ID"`
	DatabaseID   string         `json:"database_id" jsonschema:"description=Database page ID"`
	Properties   map[string]any `json:"properties" jsonschema:"description=Values keyed by property ID, always including title"`
	CreatedAt    time.Time      `json:"created_at" jsonschema:"description=Creation timestamp"`
	UpdatedAt    time.Time      `json:"updated_at" jsonschema:"description=Last modification timestamp"`
	CreatedBy    string         `json:"created_by,omitempty" jsonschema:"description=User who created the row"`
	LastEditedBy string         `json:"last_edited_by,omitempty" jsonschema:"description=User who last edited the row"`
}

// RowOf builds the row view of p. The caller is responsible for checking that
// p's parent is a database.
func RowOf(p *Page) *DatabaseRow {
	props := CloneProperties(p.Properties)
	if props == nil {
		props = make(map[string]any, 1)
	}
	props[TitlePropertyID] = p.Title
	return &DatabaseRow{
		ID:           p.ID,
		PageID:       p.ID,
		DatabaseID:   p.ParentID,
		Properties:   props,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		CreatedBy:    p.CreatedBy,
		LastEditedBy: p.LastEditedBy,
	}
}
