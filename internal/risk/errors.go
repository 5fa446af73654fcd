package risk

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable marks a collaborator that could not provide data.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrUnknownCrop is returned by the registry for crops without a profile.
	ErrUnknownCrop = errors.New("unknown crop")
)

// ValidationError rejects a request before any source is contacted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// FatalError wraps a failure outside the validation/source/computation taxonomy,
// typically a recovered panic.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("risk analysis failed: %v", e.Cause)
}

func (e *FatalError) Unwrap() error {
	return e.Cause
}

// Unavailable wraps err so that errors.Is(err, ErrSourceUnavailable) holds.
func Unavailable(kind SourceKind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", kind, ErrSourceUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", kind, ErrSourceUnavailable, err)
}
