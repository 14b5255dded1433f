package shm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordRoundTrip(t *testing.T) {
	slot := make([]byte, slotSize)
	for i := range slot {
		slot[i] = 0xff
	}

	writeRecord(slot, "short")
	desc, done := readRecord(slot)
	assert.Equal(t, "short", desc)
	assert.False(t, done)
	// stale bytes from a previous longer value are cleared
	assert.Equal(t, make([]byte, MaxDescriptionLen-5), slot[slotOffDesc+5:slotOffDesc+MaxDescriptionLen])

	slot[slotOffCompleted] = 1
	_, done = readRecord(slot)
	assert.True(t, done)
}

func TestReadRecordClampsCorruptLength(t *testing.T) {
	slot := make([]byte, slotSize)
	writeRecord(slot, strings.Repeat("a", MaxDescriptionLen))
	slot[slotOffLen], slot[slotOffLen+1] = 0xff, 0xff
	desc, _ := readRecord(slot)
	assert.Len(t, desc, MaxDescriptionLen)
}

func TestSegmentSize(t *testing.T) {
	assert.Equal(t, headerSize+10*slotSize+lockSize, segmentSize(10))
	assert.Zero(t, lockOffset(10)%8)
	assert.Zero(t, slotSize%8)
	assert.GreaterOrEqual(t, slotSize, slotOffDesc+MaxDescriptionLen)
}

func TestCountClampedToCapacity(t *testing.T) {
	mem := make([]byte, segmentSize(2))
	l := layout{mem: mem, capacity: 2}
	l.store(offCount, 99)
	assert.Equal(t, 2, l.count())
}
