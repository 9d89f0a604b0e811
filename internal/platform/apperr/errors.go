// Package apperr defines the error taxonomy shared by services, the save
// pipeline and the storage layer. Callers match with errors.As / errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by repositories when the requested entity is absent.
var ErrNotFound = errors.New("not found")

// AuthorizationError reports that the caller lacks a required capability.
type AuthorizationError struct {
	Capability string
	UserID     string
}

func (e *AuthorizationError) Error() string {
	if e.UserID == "" {
		return fmt.Sprintf("privileges required: %s", e.Capability)
	}
	return fmt.Sprintf("user %s lacks privilege: %s", e.UserID, e.Capability)
}

// ValidationError reports a missing or invalid field. Key is a stable,
// machine-readable message key such as "Cohort.save.nameRequired".
type ValidationError struct {
	Field string
	Key   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Key)
}

// Required builds the ValidationError for a mandatory field.
func Required(field, key string) *ValidationError {
	return &ValidationError{Field: field, Key: key}
}

// StorageError wraps a failure of the backing store. It is never retried here.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError for op. Nil, ErrNotFound and errors
// that already are StorageErrors pass through untouched.
func Storage(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// HTTPStatus maps an error from the service layer to an HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case IsAuthorization(err):
		return http.StatusForbidden
	case IsValidation(err):
		return http.StatusBadRequest
	case IsStorage(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
