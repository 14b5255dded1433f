package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v3/process"

	internalshm "github.com/srediag/todo-shm/internal/shm"
)

var (
	errLockBusy      = errors.New("lock busy")
	errLockAbandoned = errors.New("lock wait abandoned")
)

// procLock is a mutex shared by every process that maps the segment. The
// holder word contains the PID of the process holding it, zero when free.
// Goroutines of one process share a PID, so the word also excludes them from
// each other, but a lock held by the calling process is never taken over.
type procLock struct {
	holder     unsafe.Pointer
	recoveries unsafe.Pointer
	pid        uint32
	alive      func(pid uint32) bool
	backOff    func() backoff.BackOff
}

func newProcLock(l layout) *procLock {
	off := lockOffset(l.capacity)
	return &procLock{
		holder:     l.word(off + lockOffHolder),
		recoveries: l.word(off + lockOffRecoveries),
		pid:        uint32(os.Getpid()),
		alive:      pidAlive,
		backOff:    lockBackOff,
	}
}

func lockBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Microsecond
	b.MaxInterval = 5 * time.Millisecond
	b.MaxElapsedTime = 0
	return b
}

// pidAlive errs on the side of a live holder when the check itself fails.
func pidAlive(pid uint32) bool {
	ok, err := process.PidExists(int32(pid))
	return ok || err != nil
}

func (l *procLock) tryAcquire() bool {
	return internalshm.AtomicCompareAndSwapUint32(l.holder, 0, l.pid)
}

// acquire blocks until the lock is held, ctx is done or abort is closed, in
// which case it returns errLockAbandoned. recovered reports whether the lock
// was taken over from a dead holder.
func (l *procLock) acquire(ctx context.Context, abort <-chan struct{}) (recovered bool, err error) {
	if l.tryAcquire() {
		return false, nil
	}
	var last uint32
	op := func() error {
		select {
		case <-abort:
			return backoff.Permanent(errLockAbandoned)
		default:
		}
		if l.tryAcquire() {
			return nil
		}
		last = internalshm.AtomicLoadUint32(l.holder)
		if last != 0 && last != l.pid && !l.alive(last) {
			if internalshm.AtomicCompareAndSwapUint32(l.holder, last, l.pid) {
				internalshm.AtomicAddUint32(l.recoveries, 1)
				recovered = true
				return nil
			}
		}
		return errLockBusy
	}
	err = backoff.Retry(op, backoff.WithContext(l.backOff(), ctx))
	if err == nil {
		return recovered, nil
	}
	if errors.Is(err, errLockAbandoned) {
		return false, err
	}
	if cerr := ctx.Err(); cerr != nil {
		err = cerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false, fmt.Errorf("%w (held by pid %d)", ErrLockTimeout, last)
	}
	return false, err
}

func (l *procLock) release() {
	internalshm.AtomicCompareAndSwapUint32(l.holder, l.pid, 0)
}

func (l *procLock) recoveryCount() uint32 {
	return internalshm.AtomicLoadUint32(l.recoveries)
}
