// Package list implements an intrusive doubly-linked list whose nodes
// live in a caller-owned arena.Arena. The List itself holds only head and
// tail handles; node storage, and the prev/next pointers, are owned by
// the arena.
package list

import "fenrir/internal/arena"

// Node is a list element stored in an arena.Arena[Node[T]].
type Node[T any] struct {
	Value T
	Prev  arena.Index
	Next  arena.Index
}

const noIndex = arena.Index(1<<32 - 1)

func isNone(i arena.Index) bool { return i == noIndex }

// None is the sentinel "no handle" value, analogous to Option::None.
const None = noIndex

// List is a doubly-linked FIFO/LIFO queue over nodes held in an
// arena.Arena[Node[T]]. Obtain an empty list from New: the zero value
// is not empty, since its Head and Tail are Index 0 rather than None.
type List[T any] struct {
	Head arena.Index
	Tail arena.Index
}

// New returns an empty list.
func New[T any]() List[T] {
	return List[T]{Head: None, Tail: None}
}

// Empty reports whether the list has no elements.
func (l *List[T]) Empty() bool {
	return isNone(l.Head)
}

// PushBack allocates a node in arena holding value and appends it after
// the current tail, returning the node's handle.
func (l *List[T]) PushBack(a *arena.Arena[Node[T]], value T) arena.Index {
	node := Node[T]{Value: value, Prev: l.Tail, Next: None}
	idx := a.Insert(node)

	if !isNone(l.Tail) {
		tailNode := a.GetPtr(l.Tail)
		if tailNode == nil {
			panic("list: tail handle does not resolve in arena")
		}
		tailNode.Next = idx
	} else {
		l.Head = idx
	}
	l.Tail = idx
	return idx
}

// PushFront allocates a node in arena holding value and prepends it
// before the current head, returning the node's handle.
func (l *List[T]) PushFront(a *arena.Arena[Node[T]], value T) arena.Index {
	node := Node[T]{Value: value, Prev: None, Next: l.Head}
	idx := a.Insert(node)

	if !isNone(l.Head) {
		headNode := a.GetPtr(l.Head)
		if headNode == nil {
			panic("list: head handle does not resolve in arena")
		}
		headNode.Prev = idx
	} else {
		l.Tail = idx
	}
	l.Head = idx
	return idx
}

// PeekFront returns the value at the head without removing it.
func (l *List[T]) PeekFront(a *arena.Arena[Node[T]]) (T, bool) {
	var zero T
	if isNone(l.Head) {
		return zero, false
	}
	n, ok := a.Get(l.Head)
	if !ok {
		return zero, false
	}
	return n.Value, true
}

// PeekBack returns the value at the tail without removing it.
func (l *List[T]) PeekBack(a *arena.Arena[Node[T]]) (T, bool) {
	var zero T
	if isNone(l.Tail) {
		return zero, false
	}
	n, ok := a.Get(l.Tail)
	if !ok {
		return zero, false
	}
	return n.Value, true
}

// PopFront unlinks and frees the head node, returning its value.
func (l *List[T]) PopFront(a *arena.Arena[Node[T]]) (T, bool) {
	var zero T
	head := l.Head
	if isNone(head) {
		return zero, false
	}
	headNode, ok := a.Get(head)
	if !ok {
		return zero, false
	}

	if !isNone(headNode.Next) {
		next := a.GetPtr(headNode.Next)
		if next != nil {
			next.Prev = None
		}
		l.Head = headNode.Next
	} else {
		l.Head = None
		l.Tail = None
	}

	removed, _ := a.Remove(head)
	return removed.Value, true
}

// PopBack unlinks and frees the tail node, returning its value.
func (l *List[T]) PopBack(a *arena.Arena[Node[T]]) (T, bool) {
	var zero T
	tail := l.Tail
	if isNone(tail) {
		return zero, false
	}
	tailNode, ok := a.Get(tail)
	if !ok {
		return zero, false
	}

	if !isNone(tailNode.Prev) {
		prev := a.GetPtr(tailNode.Prev)
		if prev != nil {
			prev.Next = None
		}
		l.Tail = tailNode.Prev
	} else {
		l.Head = None
		l.Tail = None
	}

	removed, _ := a.Remove(tail)
	return removed.Value, true
}

// Remove detaches the node at idx, wherever it sits in the list, and
// frees its arena slot, returning its value. Removing a handle that is
// already free (or out of bounds) is a no-op that returns false without
// mutating list structure. A live handle is detached whichever list it
// sits in, so idx must belong to this list.
func (l *List[T]) Remove(a *arena.Arena[Node[T]], idx arena.Index) (T, bool) {
	var zero T
	node, ok := a.Get(idx)
	if !ok {
		return zero, false
	}
	prev, next := node.Prev, node.Next

	if !isNone(prev) {
		if p := a.GetPtr(prev); p != nil {
			p.Next = next
		}
	} else {
		l.Head = next
	}

	if !isNone(next) {
		if n := a.GetPtr(next); n != nil {
			n.Prev = prev
		}
	} else {
		l.Tail = prev
	}

	removed, _ := a.Remove(idx)
	return removed.Value, true
}
