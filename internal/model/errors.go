package model

import "errors"

var (
	errIDRequired          = errors.New("id is required")
	errNameRequired        = errors.New("name is required")
	errSelfParent          = errors.New("entity cannot be its own parent")
	errDatabaseConfig      = errors.New("database_config must be set iff is_database")
	errCoverPosition       = errors.New("cover_position must be within 0-100")
	errDuplicateProperty   = errors.New("duplicate property id")
	errUnknownView         = errors.New("default_view_id does not reference a view")
	errInvalidPropertyType = errors.New("invalid property type")
	errOptionsNotAllowed   = errors.New("options are only allowed on enumerable properties")
	errInvalidViewType     = errors.New("invalid view type")
	errInvalidBlockType    = errors.New("invalid block type")
	errNegativeIndex       = errors.New("index must not be negative")
)
