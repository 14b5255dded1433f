package shm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Record is a process-local copy of one task.
type Record struct {
	Index       int
	Description string
	Completed   bool
}

// Add appends a record and returns its zero-based index. Descriptions longer
// than MaxDescriptionLen bytes are rejected with ErrDescriptionTooLong; nothing
// is truncated.
func (s *Store) Add(ctx context.Context, description string) (int, error) {
	index := -1
	err := s.withLock(ctx, "add", func(seg layout) error {
		count := seg.count()
		if count >= seg.capacity {
			return fmt.Errorf("%w: all %d slots used", ErrCapacityExceeded, seg.capacity)
		}
		if len(description) > MaxDescriptionLen {
			return fmt.Errorf("%w: %d bytes, limit %d", ErrDescriptionTooLong, len(description), MaxDescriptionLen)
		}
		// the slot is written before count is published
		writeRecord(seg.slot(count), description)
		seg.store(offCount, uint32(count+1))
		index = count
		return nil
	})
	if err != nil {
		return -1, err
	}
	return index, nil
}

// Complete marks the record at index completed. Completing a record twice is
// a no-op.
func (s *Store) Complete(ctx context.Context, index int) error {
	return s.withLock(ctx, "complete", func(seg layout) error {
		count := seg.count()
		if index < 0 || index >= count {
			return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, count)
		}
		seg.slot(index)[slotOffCompleted] = 1
		return nil
	})
}

// List returns a copy of every record in insertion order. The copy does not
// reference shared memory and may be used after the lock is released.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.withLock(ctx, "list", func(seg layout) error {
		count := seg.count()
		records = make([]Record, count)
		for i := 0; i < count; i++ {
			desc, done := readRecord(seg.slot(i))
			records[i] = Record{Index: i, Description: desc, Completed: done}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// withLock runs fn holding the segment lock. The lock is released on every
// return path. A wait for the lock ends early once Detach or Destroy starts.
func (s *Store) withLock(ctx context.Context, op string, fn func(seg layout) error) (err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, span := s.tracer.Start(ctx, "shm."+op, trace.WithAttributes(
		attribute.String("todoshm.store", s.name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.region.Addr == nil {
		return ErrDetached
	}
	if s.destroyed || s.seg.load(offState) != stateReady {
		return ErrAlreadyDestroyed
	}

	start := time.Now()
	recovered, err := s.lock.acquire(ctx, s.closing)
	s.lockWait.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("op", op)))
	if errors.Is(err, errLockAbandoned) {
		return s.closeReason
	}
	if err != nil {
		return err
	}
	defer s.lock.release()
	if recovered {
		s.recoveries.Add(ctx, 1)
		span.AddEvent("lock recovered from dead holder")
	}

	// the owner may have destroyed the store while we waited
	if s.seg.load(offState) != stateReady {
		return ErrAlreadyDestroyed
	}
	return fn(s.seg)
}
