package proofing

import (
	"errors"
	"fmt"
)

// ErrUnknownContext is returned by Registry.Resolve for unregistered names.
var ErrUnknownContext = errors.New("proofing: unknown context")

// ErrDuplicateContext is returned by Registry.Register for a name that is
// already taken.
var ErrDuplicateContext = errors.New("proofing: context already registered")

func unknownContext(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownContext, name)
}
