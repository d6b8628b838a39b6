// Package arena implements a generational free-list slab: a typed store
// that hands out stable indices on insert and reuses freed slots LIFO.
package arena

import "fmt"

// Index is a stable handle into an Arena. It is only valid within the
// Arena that issued it.
type Index uint32

func (i Index) String() string {
	return fmt.Sprintf("Index(%d)", uint32(i))
}

type entry[T any] struct {
	occupied bool
	value    T
	// nextFree chains free slots when occupied is false. -1 means "no next".
	nextFree int64
}

const noFree = -1

// Arena is a slab of T, addressed by Index, with O(1) insert/get/remove
// and LIFO reuse of freed slots.
type Arena[T any] struct {
	storage  []entry[T]
	freeHead int64
}

// New returns an empty Arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{freeHead: noFree}
}

// WithCapacity returns an empty Arena with storage preallocated.
func WithCapacity[T any](cap int) *Arena[T] {
	return &Arena[T]{storage: make([]entry[T], 0, cap), freeHead: noFree}
}

// Insert stores value and returns its stable Index. If a free slot exists
// it is reused (LIFO); otherwise storage grows by one slot.
func (a *Arena[T]) Insert(value T) Index {
	if a.freeHead != noFree {
		idx := a.freeHead
		slot := &a.storage[idx]
		if slot.occupied {
			panic(fmt.Sprintf("arena: corrupted free list: free_head points to occupied slot %d", idx))
		}
		a.freeHead = slot.nextFree
		slot.occupied = true
		slot.value = value
		slot.nextFree = noFree
		return Index(idx)
	}

	if len(a.storage) >= 1<<32-1 {
		panic("arena: overflow: too many elements")
	}
	a.storage = append(a.storage, entry[T]{occupied: true, value: value})
	return Index(len(a.storage) - 1)
}

// Get returns the value at index, or false if the slot is free or out of
// bounds.
func (a *Arena[T]) Get(index Index) (T, bool) {
	var zero T
	i := int(index)
	if i < 0 || i >= len(a.storage) {
		return zero, false
	}
	slot := &a.storage[i]
	if !slot.occupied {
		return zero, false
	}
	return slot.value, true
}

// GetPtr returns a mutable pointer to the value at index, or nil if the
// slot is free or out of bounds. The pointer is invalidated by any
// subsequent Insert that grows storage.
func (a *Arena[T]) GetPtr(index Index) *T {
	i := int(index)
	if i < 0 || i >= len(a.storage) {
		return nil
	}
	slot := &a.storage[i]
	if !slot.occupied {
		return nil
	}
	return &slot.value
}

// Remove frees the slot at index and returns its value. Removing an
// already-free or out-of-bounds index is idempotent: it returns false and
// must not corrupt the free list.
func (a *Arena[T]) Remove(index Index) (T, bool) {
	var zero T
	i := int(index)
	if i < 0 || i >= len(a.storage) {
		return zero, false
	}
	slot := &a.storage[i]
	if !slot.occupied {
		return zero, false
	}

	value := slot.value
	slot.occupied = false
	slot.value = zero
	slot.nextFree = a.freeHead
	a.freeHead = int64(i)
	return value, true
}

// Len returns the number of occupied slots.
func (a *Arena[T]) Len() int {
	n := 0
	for i := range a.storage {
		if a.storage[i].occupied {
			n++
		}
	}
	return n
}

// CheckInvariants walks the free list and storage, returning an error if
// the free list cycles, duplicates an index, or points to an occupied or
// out-of-bounds slot, or if any free slot is unreachable from freeHead.
// Intended for tests.
func (a *Arena[T]) CheckInvariants() error {
	seen := make(map[int64]bool)
	cur := a.freeHead
	for cur != noFree {
		if seen[cur] {
			return fmt.Errorf("arena: cycle/duplicate in free list at %d", cur)
		}
		seen[cur] = true
		if cur < 0 || int(cur) >= len(a.storage) {
			return fmt.Errorf("arena: free_head points out of bounds: %d", cur)
		}
		slot := &a.storage[cur]
		if slot.occupied {
			return fmt.Errorf("arena: free list points to occupied slot: %d", cur)
		}
		cur = slot.nextFree
	}
	for i := range a.storage {
		if !a.storage[i].occupied && !seen[int64(i)] {
			return fmt.Errorf("arena: free slot not reachable from free_head: %d", i)
		}
	}
	return nil
}
