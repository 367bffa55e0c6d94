// Package apperr defines sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput marks caller input that cannot be applied as given.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotEditable is returned by editing operations on a surface that has
	// no successfully loaded document.
	ErrNotEditable = errors.New("document not editable")
	// ErrSaveInProgress is returned when a save is requested while another
	// save of the same surface is still outstanding.
	ErrSaveInProgress = errors.New("save already in progress")
	// ErrUnsavedChanges is returned when closing a dirty editor without
	// confirming that the changes may be discarded.
	ErrUnsavedChanges = errors.New("unsaved changes")
)
