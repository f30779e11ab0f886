// Package ident generates identifiers and timestamps for entities created
// before a remote store confirms them.
package ident

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/ksid"
)

// TempPrefix marks an identifier that was generated locally and has not been
// confirmed by the remote store yet.
const TempPrefix = "tmp_"

var errInvalidWorkspaceID = errors.New("invalid workspace id format")

// NewTempID returns a locally unique, time-sortable placeholder id.
func NewTempID() string {
	return TempPrefix + ksid.NewID().String()
}

// IsTemp reports whether id was produced by NewTempID.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// NewID returns a short sortable id for sub-records that never leave their
// owner (views, properties, select options).
func NewID() string {
	return ksid.NewID().String()
}

// NewPageID returns an id in the format remote stores assign, for flows that
// pre-assign the final id client-side.
func NewPageID() string {
	return uuid.NewString()
}

// ValidateWorkspaceID checks that id has the format remote stores assign.
func ValidateWorkspaceID(id string) error {
	if id == "" {
		return errInvalidWorkspaceID
	}
	if _, err := uuid.Parse(id); err != nil {
		return errInvalidWorkspaceID
	}
	return nil
}

// Now returns the current time in UTC, truncated to the millisecond so that
// it survives an ISO 8601 round trip through any backend.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
