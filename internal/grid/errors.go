package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionTooLow is matched by every *VersionError.
	ErrVersionTooLow = errors.New("grid version too low")

	ErrNilRow      = errors.New("row must not be nil")
	ErrIDNotRef    = errors.New("id tag must hold a ref")
	ErrOutOfRange  = errors.New("row position out of range")
	ErrRefNotFound = errors.New("ref not found")
)

// VersionError reports a value that needs a higher version than the
// version pinned on the grid.
type VersionError struct {
	Kind     Kind
	Required Version
	Actual   Version
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s requires version %s, grid is pinned to %s", e.Kind, e.Required, e.Actual)
}

func (e *VersionError) Is(target error) bool {
	return target == ErrVersionTooLow
}
