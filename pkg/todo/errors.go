package todo

import (
	"errors"
	"fmt"

	"github.com/srediag/todo-shm/pkg/shm"
)

// Process exit codes.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitUsage             = 2
	ExitNotFound          = 3
	ExitAlreadyExists     = 4
	ExitResourceExhausted = 5
	ExitLayoutMismatch    = 6
)

// Message renders err as the one-line text shown to a user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, shm.ErrCapacityExceeded):
		return "The to-do list is full."
	case errors.Is(err, shm.ErrIndexOutOfRange):
		return "No item with that number."
	case errors.Is(err, shm.ErrDescriptionTooLong):
		return fmt.Sprintf("Description too long (at most %d bytes).", shm.MaxDescriptionLen)
	case errors.Is(err, shm.ErrLockTimeout):
		return "The list is busy, try again later."
	case errors.Is(err, shm.ErrAlreadyDestroyed):
		return "The to-do list has been shut down."
	case errors.Is(err, shm.ErrNotFound):
		return "No to-do list is running under that name."
	case errors.Is(err, shm.ErrAlreadyExists):
		return "A to-do list with that name already exists."
	case errors.Is(err, shm.ErrResourceExhausted):
		return "Not enough shared memory to create the to-do list."
	case errors.Is(err, shm.ErrLayoutMismatch):
		return "The shared segment belongs to an incompatible version."
	}
	return "Error: " + err.Error()
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, shm.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, shm.ErrAlreadyExists):
		return ExitAlreadyExists
	case errors.Is(err, shm.ErrResourceExhausted):
		return ExitResourceExhausted
	case errors.Is(err, shm.ErrLayoutMismatch):
		return ExitLayoutMismatch
	}
	return ExitFailure
}

// fatal reports whether the list can no longer be used by this process.
func fatal(err error) bool {
	return errors.Is(err, shm.ErrAlreadyDestroyed) || errors.Is(err, shm.ErrDetached)
}
