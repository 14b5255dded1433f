package shm

import (
	"sync/atomic"
	"unsafe"
)

// WordAt returns the address of the 32-bit word at off in mem. off must be
// 4-byte aligned; mmap returns page-aligned memory so region offsets suffice.
func WordAt(mem []byte, off int) unsafe.Pointer {
	_ = mem[off+3]
	return unsafe.Pointer(&mem[off])
}

// AtomicLoadUint32 loads a uint32 from shared memory atomically.
func AtomicLoadUint32(addr unsafe.Pointer) uint32 {
	return atomic.LoadUint32((*uint32)(addr))
}

// AtomicStoreUint32 stores a uint32 to shared memory atomically.
func AtomicStoreUint32(addr unsafe.Pointer, val uint32) {
	atomic.StoreUint32((*uint32)(addr), val)
}

// AtomicAddUint32 adds delta to a uint32 in shared memory and returns the new value.
func AtomicAddUint32(addr unsafe.Pointer, delta uint32) uint32 {
	return atomic.AddUint32((*uint32)(addr), delta)
}

// AtomicCompareAndSwapUint32 atomically compares and swaps a uint32 in shared memory.
func AtomicCompareAndSwapUint32(addr unsafe.Pointer, old, new uint32) bool {
	return atomic.CompareAndSwapUint32((*uint32)(addr), old, new)
}
