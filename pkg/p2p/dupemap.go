// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package p2p

import (
	"sync"
	"time"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

const (
	// heights an entry survives past the one it was seen at.
	defaultTolerance uint64 = 3
	// entries per height filter.
	defaultCapacity uint32 = 100000
	// seconds before an idle height filter is dropped regardless of height.
	defaultExpire int64 = 300
)

type filterEntry struct {
	*cuckoo.Filter
	ttl int64
}

// DupeMap remembers message hashes seen recently so that gossip is forwarded
// at most once. Entries are bucketed per chain height and expire once the
// chain moves past the tolerance window, keeping memory bounded.
type DupeMap struct {
	lock      sync.Mutex
	height    uint64
	tolerance uint64
	capacity  uint32
	expire    int64
	filters   map[uint64]*filterEntry
}

// NewDupeMap creates a DupeMap anchored at the given chain height.
func NewDupeMap(height uint64) *DupeMap {
	return &DupeMap{
		height:    height,
		tolerance: defaultTolerance,
		capacity:  defaultCapacity,
		expire:    defaultExpire,
		filters:   make(map[uint64]*filterEntry),
	}
}

// UpdateHeight moves the window forward and drops filters that fell out of
// the tolerance band. Heights never move backwards.
func (d *DupeMap) UpdateHeight(height uint64) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if height <= d.height {
		return
	}
	d.height = height
	d.clean()
}

// CanFwd reports whether the hash has not been seen inside the window, and
// records it. A false return means the message is a duplicate and must not
// be forwarded again.
func (d *DupeMap) CanFwd(hash string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.seenLocked(hash) {
		return false
	}

	return d.recordLocked(hash)
}

// Seen reports whether the hash was recorded in any live window, without
// recording it.
func (d *DupeMap) Seen(hash string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.seenLocked(hash)
}

// Record marks the hash in the current window.
func (d *DupeMap) Record(hash string) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.recordLocked(hash)
}

func (d *DupeMap) seenLocked(hash string) bool {
	for _, f := range d.filters {
		if f.Lookup([]byte(hash)) {
			return true
		}
	}

	return false
}

func (d *DupeMap) recordLocked(hash string) bool {
	f, ok := d.filters[d.height]
	if !ok {
		f = &filterEntry{
			Filter: cuckoo.NewFilter(uint(d.capacity)),
			ttl:    time.Now().Unix() + d.expire,
		}
		d.filters[d.height] = f
	}

	return f.Insert([]byte(hash))
}

// CleanExpired drops filters whose TTL passed. Meant to be called from a
// housekeeping loop on nodes that stall at a height for long periods.
func (d *DupeMap) CleanExpired() {
	d.lock.Lock()
	defer d.lock.Unlock()

	now := time.Now().Unix()
	for h, f := range d.filters {
		if now >= f.ttl {
			f.Reset()
			delete(d.filters, h)
		}
	}
}

// Size returns the summed encoded size of the underlying filters.
func (d *DupeMap) Size() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	var total int
	for _, f := range d.filters {
		total += len(f.Encode())
	}
	return total
}

func (d *DupeMap) clean() {
	if d.height <= d.tolerance {
		return
	}
	for h, f := range d.filters {
		if h <= d.height-d.tolerance {
			f.Reset()
			delete(d.filters, h)
		}
	}
}
