package containers

import (
	"errors"
	"sync"
)

var ErrStaleHandle = errors.New("stale or unknown handle")

// HandleTable is a generational arena. A handle packs the slot index in the
// low 32 bits and the slot generation in the high 32 bits, so a released
// handle never resolves again even after its slot is reused. Zero is never
// a valid handle.
type HandleTable[T any] struct {
	mu    sync.Mutex
	slots []handleSlot[T]
	free  []uint32
	live  int
}

type handleSlot[T any] struct {
	value T
	gen   uint32
	used  bool
}

func NewHandleTable[T any]() *HandleTable[T] {
	return &HandleTable[T]{}
}

func packHandle(index, gen uint32) uint64 {
	return uint64(gen)<<32 | uint64(index)
}

func unpackHandle(h uint64) (uint32, uint32) {
	return uint32(h), uint32(h >> 32)
}

// Insert stores value and returns its handle.
func (t *HandleTable[T]) Insert(value T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, handleSlot[T]{})
		index = uint32(len(t.slots) - 1)
	}
	s := &t.slots[index]
	// generation starts at 1 so that handle 0 stays invalid
	s.gen++
	s.value = value
	s.used = true
	t.live++
	return packHandle(index, s.gen)
}

func (t *HandleTable[T]) Get(h uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	index, gen := unpackHandle(h)
	if int(index) >= len(t.slots) {
		return zero, false
	}
	s := t.slots[index]
	if !s.used || s.gen != gen {
		return zero, false
	}
	return s.value, true
}

// Remove releases the slot and returns the value it held. Removing a handle
// twice returns ErrStaleHandle.
func (t *HandleTable[T]) Remove(h uint64) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	index, gen := unpackHandle(h)
	if int(index) >= len(t.slots) {
		return zero, ErrStaleHandle
	}
	s := &t.slots[index]
	if !s.used || s.gen != gen {
		return zero, ErrStaleHandle
	}
	v := s.value
	s.value = zero
	s.used = false
	t.free = append(t.free, index)
	t.live--
	return v, nil
}

// Len returns the number of live handles.
func (t *HandleTable[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Each visits every live entry. fn must not call back into the table.
func (t *HandleTable[T]) Each(fn func(h uint64, v T)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.slots {
		if s.used {
			fn(packHandle(uint32(i), s.gen), s.value)
		}
	}
}
