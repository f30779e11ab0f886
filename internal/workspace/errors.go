package workspace

import "errors"

var (
	// ErrPageNotFound is returned when a page ID is not loaded.
	ErrPageNotFound = errors.New("page not found")
	// ErrNotDatabase is returned when a row operation targets a page that is
	// not a database.
	ErrNotDatabase = errors.New("page is not a database")
	// ErrRowNotFound is returned when a page is not a row of the given
	// database.
	ErrRowNotFound = errors.New("row not found in database")
	// ErrIsDatabase is returned when opening the content of a database page.
	ErrIsDatabase = errors.New("page is a database")
	// ErrCycle is returned when moving a page under itself or one of its
	// descendants.
	ErrCycle = errors.New("page cannot be moved under itself")
	// ErrPending is returned when operating remotely on an entity whose
	// creation is not confirmed yet.
	ErrPending = errors.New("entity creation is still pending")
	// ErrNoWorkspace is returned when no workspace is selected.
	ErrNoWorkspace = errors.New("no workspace selected")
	// ErrWorkspaceNotFound is returned when a workspace ID is unknown.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrInvalidWorkspaceID is returned when a workspace ID is malformed.
	ErrInvalidWorkspaceID = errors.New("invalid workspace id")
	// ErrBlockNotFound is returned when a block ID is not in the open page.
	ErrBlockNotFound = errors.New("block not found")
	// ErrEditorClosed is returned when using an editor after Close.
	ErrEditorClosed = errors.New("editor is closed")
	// ErrInvalidUpdate is returned when an update carries invalid values, or
	// relocation fields outside of MovePage.
	ErrInvalidUpdate = errors.New("invalid update")
	// ErrViewNotFound is returned when a view ID is not in a database.
	ErrViewNotFound = errors.New("view not found")
)
