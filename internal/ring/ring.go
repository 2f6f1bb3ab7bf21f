// Package ring is a specialized adaption of `container/ring` for tracking eviction order.
package ring

import "iter"

type element[Key comparable] struct {
	next, prev *element[Key]
	key        Key
}

// Order is a set of keys arranged in a circular list around a sentinel element.
// The element after the sentinel is the oldest one, the element before it is the newest one.
//
// Order is not safe for concurrent use.
type Order[Key comparable] struct {
	root  element[Key]
	index map[Key]*element[Key]
}

// New creates an empty Order, sizeHint presizes the key index.
func New[Key comparable](sizeHint int) *Order[Key] {
	o := &Order[Key]{}
	if sizeHint < 0 {
		sizeHint = 0
	}

	o.index = make(map[Key]*element[Key], sizeHint)
	o.root.next = &o.root
	o.root.prev = &o.root

	return o
}

// link inserts s after r.
func (o *Order[Key]) link(r, s *element[Key]) {
	n := r.next
	r.next = s
	s.prev = r
	s.next = n
	n.prev = s
}

func (o *Order[Key]) unlink(e *element[Key]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
}

// PushBack appends key as the newest element, it returns false if key is already present.
func (o *Order[Key]) PushBack(key Key) bool {
	if _, found := o.index[key]; found {
		return false
	}

	e := &element[Key]{key: key}
	o.index[key] = e
	o.link(o.root.prev, e)

	return true
}

// MoveToBack makes an existing key the newest element.
func (o *Order[Key]) MoveToBack(key Key) bool {
	e, found := o.index[key]
	if !found {
		return false
	}

	if o.root.prev == e {
		return true
	}

	o.unlink(e)
	o.link(o.root.prev, e)

	return true
}

// Remove deletes key from the order.
func (o *Order[Key]) Remove(key Key) bool {
	e, found := o.index[key]
	if !found {
		return false
	}

	delete(o.index, key)
	o.unlink(e)

	return true
}

// Contains checks key presence.
func (o *Order[Key]) Contains(key Key) bool {
	_, found := o.index[key]

	return found
}

// Len returns number of keys.
func (o *Order[Key]) Len() int {
	return len(o.index)
}

// Front returns the oldest key.
func (o *Order[Key]) Front() (Key, bool) {
	if o.root.next == &o.root {
		var zero Key

		return zero, false
	}

	return o.root.next.key, true
}

// All iterates keys from the oldest to the newest.
//
// Order must not be modified during iteration.
func (o *Order[Key]) All() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		for e := o.root.next; e != &o.root; e = e.next {
			if !yield(e.key) {
				return
			}
		}
	}
}

// Reset removes all keys.
func (o *Order[Key]) Reset() {
	clear(o.index)
	o.root.next = &o.root
	o.root.prev = &o.root
}
