// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package dedup recognizes frames that a sleeping end device sent twice.
//
// Each node keeps a single slot holding its most recent counter. Only an
// exact repeat of that counter is reported; an older counter replayed after
// the node moved on is treated as new.
package dedup

import "github.com/Thermoquad/xbgate/pkg/xbee"

type entry struct {
	addr xbee.Address64
	last uint8
}

// Detector tracks the last counter seen from each node. It is not safe for
// concurrent use.
type Detector struct {
	entries []entry
}

// New creates an empty detector.
func New() *Detector {
	return &Detector{}
}

// Update records counter for addr and reports whether it repeats the
// previous counter from the same node.
func (d *Detector) Update(addr xbee.Address64, counter uint8) bool {
	for i := range d.entries {
		e := &d.entries[i]
		if e.addr != addr {
			continue
		}
		if e.last == counter {
			return true
		}
		e.last = counter
		return false
	}

	d.entries = append(d.entries, entry{addr: addr, last: counter})
	return false
}

// Last returns the most recent counter recorded for addr.
func (d *Detector) Last(addr xbee.Address64) (uint8, bool) {
	for _, e := range d.entries {
		if e.addr == addr {
			return e.last, true
		}
	}
	return 0, false
}

// Len returns the number of nodes seen.
func (d *Detector) Len() int {
	return len(d.entries)
}
