package config

import (
	"errors"
	"fmt"
)

// Errors returned by settings operations.
var (
	// ErrSettingNotFound indicates the setting path doesn't exist.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrInvalidPath indicates an invalid setting path format.
	ErrInvalidPath = errors.New("invalid setting path")

	// ErrDisposed indicates the store has been disposed.
	ErrDisposed = errors.New("settings store has been disposed")
)

// TypeError is returned when a setting has a different type than requested.
type TypeError struct {
	Path     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}
