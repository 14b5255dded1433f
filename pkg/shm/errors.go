package shm

import (
	"errors"
	"fmt"

	internalshm "github.com/srediag/todo-shm/internal/shm"
)

var (
	// Segment lifecycle.
	ErrNotFound          = errors.New("shm: store not found")
	ErrAlreadyExists     = errors.New("shm: store already exists")
	ErrResourceExhausted = errors.New("shm: resource exhausted")
	ErrAlreadyDestroyed  = errors.New("shm: store already destroyed")
	ErrNotOwner          = errors.New("shm: only the owner may destroy the store")
	ErrDetached          = errors.New("shm: store detached")
	ErrLayoutMismatch    = errors.New("shm: segment layout mismatch")
	ErrInvalidCapacity   = errors.New("shm: invalid capacity")
	ErrInvalidName       = errors.New("shm: invalid store name")
	ErrUnsupported       = errors.New("shm: unsupported platform")

	// Record operations.
	ErrCapacityExceeded   = errors.New("shm: capacity exceeded")
	ErrIndexOutOfRange    = errors.New("shm: index out of range")
	ErrDescriptionTooLong = errors.New("shm: description too long")
	ErrLockTimeout        = errors.New("shm: timed out waiting for lock")
)

// translate maps platform errors to the package's sentinels.
func translate(err error) error {
	var target error
	switch {
	case errors.Is(err, internalshm.ErrRegionExists):
		target = ErrAlreadyExists
	case errors.Is(err, internalshm.ErrRegionNotFound):
		target = ErrNotFound
	case errors.Is(err, internalshm.ErrNoSpace):
		target = ErrResourceExhausted
	case errors.Is(err, internalshm.ErrInvalidName):
		target = ErrInvalidName
	case errors.Is(err, internalshm.ErrUnsupported):
		target = ErrUnsupported
	default:
		return err
	}
	return fmt.Errorf("%w (%v)", target, err)
}
