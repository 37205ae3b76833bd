// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrSongNotFound is returned when a requested song id or name is not in the catalog.
	ErrSongNotFound = errors.New("song not found")

	// ErrPlaylistNotFound is returned when a named playlist does not exist.
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrPlaylistEmpty is returned when an operation requires a non-empty playlist.
	ErrPlaylistEmpty = errors.New("playlist is empty")

	// ErrNoPlaylistPlaying is returned when a playlist command needs an active playlist.
	ErrNoPlaylistPlaying = errors.New("no playlist is currently playing")

	// ErrInvalidIndex is returned when a playlist index is out of bounds.
	ErrInvalidIndex = errors.New("invalid playlist index")

	// ErrNoEligibleSongs is returned when a random pick finds no playable song.
	ErrNoEligibleSongs = errors.New("no possible songs found")

	// ErrCatalogEmpty is returned when the catalog has no entry to offer.
	ErrCatalogEmpty = errors.New("song catalog is empty")

	// ErrRefreshInProgress is returned when a catalog refresh is already running.
	ErrRefreshInProgress = errors.New("catalog refresh already in progress")

	// ErrRefreshCancelled is returned when a catalog refresh is canceled.
	ErrRefreshCancelled = errors.New("catalog refresh cancelled")

	// ErrSheetNotCached is returned when no cached copy of a sheet exists.
	ErrSheetNotCached = errors.New("sheet not cached")

	// ErrNotInitialized is returned when an operation is attempted on an uninitialized component.
	ErrNotInitialized = errors.New("component not initialized")
)

// SheetError represents a failure to obtain or parse a catalog sheet.
type SheetError struct {
	Op   string    // Operation that failed (e.g., "fetch", "read", "parse")
	Kind SheetKind // Sheet involved
	Err  error     // Underlying error
}

// Error implements the error interface.
func (e *SheetError) Error() string {
	return fmt.Sprintf("sheet %s %s failed: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SheetError) Unwrap() error {
	return e.Err
}

// NewSheetError creates a new SheetError.
func NewSheetError(op string, kind SheetKind, err error) *SheetError {
	return &SheetError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// RepositoryError represents an error from a repository.
// This wraps persistence layer errors with additional context.
type RepositoryError struct {
	Op      string // Operation that failed (e.g., "save", "load", "delete")
	Type    string // Repository type (e.g., "replacement", "playlist", "settings")
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s.%s failed: %s", e.Type, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError creates a new RepositoryError.
func NewRepositoryError(op, repoType, message string, err error) *RepositoryError {
	return &RepositoryError{
		Op:      op,
		Type:    repoType,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string      // Field that failed validation
	Value   interface{} // Value that failed validation
	Message string      // Error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ServiceError represents an error from a service layer operation.
type ServiceError struct {
	Service string // Service name (e.g., "SongCatalog", "Controller")
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s.%s failed: %s", e.Service, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
