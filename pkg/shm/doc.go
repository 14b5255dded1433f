// Package shm provides a fixed-capacity to-do list stored in a named shared
// memory segment and shared by independent processes.
//
// One process creates the segment and owns it; others attach to the same name.
// Every read and mutation goes through a lock word embedded in the segment, so
// all attached processes contend on the same lock. The lock records the PID of
// its holder: a waiter that finds the holder dead takes the lock over.
//
// The package is instrumented with OpenTelemetry metrics and tracing; both
// default to no-op providers.
//
// Example usage:
//
//	store, err := shm.Create(ctx, shm.Options{Name: "todos", Capacity: 10})
//	// ...
//	idx, err := store.Add(ctx, "Design webpage")
//	err = store.Complete(ctx, idx)
//	records, err := store.List(ctx)
//	// ...
//	_ = store.Destroy()
//	store.Detach()
//
// Segment files live in /dev/shm unless Options.Dir says otherwise. Only Linux
// is supported.
package shm
