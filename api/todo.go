// Package api defines public API contracts for todo-shm.
package api

import (
	"context"

	"github.com/srediag/todo-shm/pkg/shm"
)

// TodoList is what a process needs from a shared to-do list: the three list
// operations plus Close, which detaches (and, for the owner, destroys).
type TodoList interface {
	Add(ctx context.Context, description string) (int, error)
	Complete(ctx context.Context, index int) error
	List(ctx context.Context) ([]shm.Record, error)
	Close() error
}
