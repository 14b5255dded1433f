package shm

import (
	"encoding/binary"
	"unsafe"

	internalshm "github.com/srediag/todo-shm/internal/shm"
)

// Segment layout, native endian:
//
//	header  [headerSize]       magic, version, capacity, slot size, count, state, owner pid
//	records [capacity]slot     length u16, completed u8, pad u8, description [MaxDescriptionLen]
//	lock    [lockSize]         holder pid, recoveries
const (
	segmentMagic  uint32 = 0x544f444f // "TODO"
	layoutVersion uint32 = 1

	headerSize  = 64
	offMagic    = 0
	offVersion  = 4
	offCapacity = 8
	offSlotSize = 12
	offCount    = 16
	offState    = 20
	offOwner    = 24

	// MaxDescriptionLen is the longest description a record can hold, in bytes.
	MaxDescriptionLen = 255

	slotSize         = 264
	slotOffLen       = 0
	slotOffCompleted = 2
	slotOffDesc      = 4

	lockSize          = 8
	lockOffHolder     = 0
	lockOffRecoveries = 4

	// DefaultCapacity is used when Options.Capacity is zero.
	DefaultCapacity = 10
	// MaxCapacity bounds the number of records a store can be created with.
	MaxCapacity = 4096
)

const (
	stateInitializing uint32 = iota
	stateReady
	stateDestroyed
)

func segmentSize(capacity int) int {
	return headerSize + capacity*slotSize + lockSize
}

func lockOffset(capacity int) int {
	return headerSize + capacity*slotSize
}

// layout is a view over a mapped segment.
type layout struct {
	mem      []byte
	capacity int
}

func (l layout) word(off int) unsafe.Pointer {
	return internalshm.WordAt(l.mem, off)
}

func (l layout) load(off int) uint32 {
	return internalshm.AtomicLoadUint32(l.word(off))
}

func (l layout) store(off int, v uint32) {
	internalshm.AtomicStoreUint32(l.word(off), v)
}

// count is clamped to capacity so a corrupted header cannot index past the slots.
func (l layout) count() int {
	n := int(l.load(offCount))
	if n > l.capacity {
		return l.capacity
	}
	return n
}

func (l layout) slot(i int) []byte {
	base := headerSize + i*slotSize
	return l.mem[base : base+slotSize : base+slotSize]
}

func writeRecord(slot []byte, description string) {
	binary.NativeEndian.PutUint16(slot[slotOffLen:], uint16(len(description)))
	slot[slotOffCompleted] = 0
	desc := slot[slotOffDesc : slotOffDesc+MaxDescriptionLen]
	n := copy(desc, description)
	clear(desc[n:])
}

func readRecord(slot []byte) (string, bool) {
	n := int(binary.NativeEndian.Uint16(slot[slotOffLen:]))
	if n > MaxDescriptionLen {
		n = MaxDescriptionLen
	}
	return string(slot[slotOffDesc : slotOffDesc+n]), slot[slotOffCompleted] != 0
}

// initHeader fills a freshly truncated (zeroed) segment and publishes it by
// storing stateReady last.
func initHeader(l layout, ownerPID uint32) {
	l.store(offMagic, segmentMagic)
	l.store(offVersion, layoutVersion)
	l.store(offCapacity, uint32(l.capacity))
	l.store(offSlotSize, slotSize)
	l.store(offCount, 0)
	l.store(offOwner, ownerPID)
	lock := lockOffset(l.capacity)
	l.store(lock+lockOffHolder, 0)
	l.store(lock+lockOffRecoveries, 0)
	l.store(offState, stateReady)
}
