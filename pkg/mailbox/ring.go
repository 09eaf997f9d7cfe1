// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mailbox

// Capacity is the number of entries a Ring holds.
const Capacity = 50

// Ring is a fixed size FIFO of entries. Pushing onto a full ring fails
// instead of overwriting.
type Ring struct {
	entries [Capacity]Entry
	head    int
	count   int
}

// Push appends e. It returns false when the ring is full.
func (r *Ring) Push(e Entry) bool {
	if r.count == Capacity {
		return false
	}
	r.entries[(r.head+r.count)%Capacity] = e
	r.count++
	return true
}

// Pop removes and returns the oldest entry.
func (r *Ring) Pop() (Entry, bool) {
	if r.count == 0 {
		return Entry{}, false
	}
	e := r.entries[r.head]
	r.head = (r.head + 1) % Capacity
	r.count--
	return e, true
}

// Len returns the number of queued entries.
func (r *Ring) Len() int {
	return r.count
}
