package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no profile matches a lookup
	ErrNotFound = errors.New("printer profile not found")

	// ErrNoDefault is returned by GetDefault. It matches ErrNotFound.
	ErrNoDefault = fmt.Errorf("%w: no default printer configured", ErrNotFound)

	// ErrInvalidProfile is returned when a write carries an invalid profile
	ErrInvalidProfile = errors.New("invalid printer profile")

	// ErrDefaultConflict is returned when the database refuses a second default,
	// which only happens when another process wrote one concurrently
	ErrDefaultConflict = errors.New("another printer became default concurrently")
)
