package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	internalshm "github.com/srediag/todo-shm/internal/shm"
)

const (
	instrumentationName  = "github.com/srediag/todo-shm/pkg/shm"
	defaultAttachTimeout = time.Second
)

var errInitializing = errors.New("segment still initializing")

// Options holds store creation and attachment parameters.
type Options struct {
	// Name identifies the segment; every process sharing the list uses the same name.
	Name string
	// Dir holds the segment files, /dev/shm by default.
	Dir string
	// Capacity is the number of record slots. Only used by Create.
	Capacity int
	// AttachTimeout bounds how long Attach waits for a creator that is still
	// initializing the segment. Zero means one second.
	AttachTimeout time.Duration
	Meter         metric.Meter
	Tracer        trace.Tracer
}

// Store is a process-local handle on a shared to-do list.
type Store struct {
	// mu keeps Detach from unmapping under an in-flight operation.
	mu        sync.RWMutex
	region    *internalshm.MappedRegion
	seg       layout
	lock      *procLock
	name      string
	owner     bool
	destroyed bool

	// closing is closed by the first Detach or Destroy so that lock waiters
	// release mu. closeReason is what those waiters return.
	closing     chan struct{}
	closeOnce   sync.Once
	closeReason error

	tracer     trace.Tracer
	lockWait   metric.Float64Histogram
	recoveries metric.Int64Counter
}

// Create allocates a new segment called opts.Name and initializes it. The
// caller becomes the owner and is responsible for Destroy.
func Create(ctx context.Context, opts Options) (*Store, error) {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 || capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrInvalidCapacity, capacity, MaxCapacity)
	}
	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Name:   opts.Name,
		Dir:    opts.Dir,
		Size:   segmentSize(capacity),
		Create: true,
	})
	if err != nil {
		return nil, translate(err)
	}
	seg := layout{mem: region.Addr, capacity: capacity}
	initHeader(seg, uint32(os.Getpid()))
	return newStore(region, seg, opts, true), nil
}

// Attach maps an existing segment called opts.Name. It never modifies the
// segment header or the lock.
func Attach(ctx context.Context, opts Options) (*Store, error) {
	if err := internalshm.ValidateName(opts.Name); err != nil {
		return nil, translate(err)
	}
	timeout := opts.AttachTimeout
	if timeout <= 0 {
		timeout = defaultAttachTimeout
	}
	var (
		region   *internalshm.MappedRegion
		capacity int
	)
	op := func() error {
		r, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Name: opts.Name, Dir: opts.Dir})
		if errors.Is(err, internalshm.ErrRegionIncomplete) {
			return err
		}
		if err != nil {
			return backoff.Permanent(translate(err))
		}
		c, err := checkHeader(r.Addr)
		if err != nil {
			_ = internalshm.UnmapRegion(r)
			if errors.Is(err, errInitializing) {
				return err
			}
			return backoff.Permanent(err)
		}
		region, capacity = r, c
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = timeout
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errInitializing) || errors.Is(err, internalshm.ErrRegionIncomplete) {
			return nil, fmt.Errorf("%w: %s never became ready: %v", ErrNotFound, opts.Name, err)
		}
		return nil, err
	}
	return newStore(region, layout{mem: region.Addr, capacity: capacity}, opts, false), nil
}

// checkHeader validates a mapped segment and returns its capacity.
func checkHeader(mem []byte) (int, error) {
	if len(mem) < headerSize+lockSize {
		return 0, fmt.Errorf("%w: %d bytes is smaller than the header", ErrLayoutMismatch, len(mem))
	}
	l := layout{mem: mem}
	switch l.load(offState) {
	case stateInitializing:
		return 0, errInitializing
	case stateDestroyed:
		return 0, fmt.Errorf("%w: segment was destroyed", ErrNotFound)
	}
	if m := l.load(offMagic); m != segmentMagic {
		return 0, fmt.Errorf("%w: bad magic %#x", ErrLayoutMismatch, m)
	}
	if v := l.load(offVersion); v != layoutVersion {
		return 0, fmt.Errorf("%w: version %d, want %d", ErrLayoutMismatch, v, layoutVersion)
	}
	if s := l.load(offSlotSize); s != slotSize {
		return 0, fmt.Errorf("%w: slot size %d, want %d", ErrLayoutMismatch, s, slotSize)
	}
	capacity := int(l.load(offCapacity))
	if capacity <= 0 || capacity > MaxCapacity || segmentSize(capacity) != len(mem) {
		return 0, fmt.Errorf("%w: capacity %d does not match %d bytes", ErrLayoutMismatch, capacity, len(mem))
	}
	return capacity, nil
}

func newStore(region *internalshm.MappedRegion, seg layout, opts Options, owner bool) *Store {
	meter := opts.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	s := &Store{
		region:  region,
		seg:     seg,
		lock:    newProcLock(seg),
		name:    opts.Name,
		owner:   owner,
		tracer:  tracer,
		closing: make(chan struct{}),
	}
	var err error
	s.lockWait, err = meter.Float64Histogram("todoshm.lock.wait",
		metric.WithUnit("s"),
		metric.WithDescription("Time spent waiting for the segment lock."))
	if err != nil {
		s.lockWait, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Float64Histogram("todoshm.lock.wait")
	}
	s.recoveries, err = meter.Int64Counter("todoshm.lock.recoveries",
		metric.WithDescription("Locks taken over from a dead holder."))
	if err != nil {
		s.recoveries, _ = metricnoop.NewMeterProvider().Meter(instrumentationName).Int64Counter("todoshm.lock.recoveries")
	}
	return s
}

// Name returns the segment name.
func (s *Store) Name() string { return s.name }

// Path returns the file backing the segment.
func (s *Store) Path() string { return s.region.Path }

// Capacity returns the number of record slots.
func (s *Store) Capacity() int { return s.seg.capacity }

// Owner reports whether this handle created the segment.
func (s *Store) Owner() bool { return s.owner }

// LockRecoveries returns how many times any process took the lock over from a
// dead holder since the segment was created.
func (s *Store) LockRecoveries() (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.region.Addr == nil {
		return 0, ErrDetached
	}
	return s.lock.recoveryCount(), nil
}

// Detach unmaps the segment from this process. It never removes the segment
// and is safe to call more than once.
func (s *Store) Detach() {
	s.shutdown(ErrDetached)
	s.mu.Lock()
	defer s.mu.Unlock()
	// munmap and close cannot fail for a region mapped by this handle.
	_ = internalshm.UnmapRegion(s.region)
}

// shutdown ends lock waits in progress on this handle with reason.
func (s *Store) shutdown(reason error) {
	s.closeOnce.Do(func() {
		s.closeReason = reason
		close(s.closing)
	})
}

// Destroy marks the store destroyed, which makes every later operation from
// any attached process fail with ErrAlreadyDestroyed, and unlinks the name.
// The memory is reclaimed once every process has detached.
func (s *Store) Destroy() error {
	if !s.owner {
		return ErrNotOwner
	}
	s.shutdown(ErrAlreadyDestroyed)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrAlreadyDestroyed
	}
	if s.region.Addr == nil {
		return ErrDetached
	}
	s.destroyed = true
	if !internalshm.AtomicCompareAndSwapUint32(s.seg.word(offState), stateReady, stateDestroyed) {
		return ErrAlreadyDestroyed
	}
	if err := internalshm.RemoveRegion(s.region.Path); err != nil && !errors.Is(err, internalshm.ErrRegionNotFound) {
		return fmt.Errorf("destroy %s: %w", s.name, err)
	}
	return nil
}
