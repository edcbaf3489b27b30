package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig means the serialized configuration did not parse or
	// validate. No state changes.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrAlreadyRunning means the single-instance policy rejected a start:
	// at most one network instance may run process-wide.
	ErrAlreadyRunning = errors.New("a network instance is already running")

	// ErrDuplicateInstance means the configuration's declared id is already
	// in the running registry.
	ErrDuplicateInstance = errors.New("instance id is already running")
)

func invalidConfig(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
}
