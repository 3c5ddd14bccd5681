// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsvol

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yakfsrecon/btrfs-forensic/lib/containers"
)

// UnmappedError is returned by Cache.Translate when no chunk entry
// covers the requested logical address.
type UnmappedError struct {
	Logical LogicalAddr
}

func (e *UnmappedError) Error() string {
	return fmt.Sprintf("logical address %v is not mapped by any chunk", e.Logical)
}

// Extent is one physical extent that a logical read translates to,
// as returned by Cache.Translate.
type Extent struct {
	PAddr QualifiedPhysicalAddr
	Len   AddrDelta
}

// Mapping is a single logical<->physical stripe, as read directly off
// a CHUNK_ITEM (one Mapping per stripe, all sharing LAddr/Size) or a
// DEV_EXTENT item. It's the raw material the translation walker (C6)
// feeds to Cache.InsertMappings to populate the cache; Cache itself
// only deals in whole chunk entries, not individual stripes.
type Mapping struct {
	LAddr      LogicalAddr
	PAddr      QualifiedPhysicalAddr
	Size       AddrDelta
	SizeLocked bool                                  `json:",omitempty"`
	Flags      containers.Optional[BlockGroupFlags] `json:",omitempty"`
}

// InsertMappings groups a CHUNK_ITEM's per-stripe Mappings (all
// sharing the same LAddr and Size) into a single chunk entry and
// inserts it. It is an error for the mappings to disagree on
// LAddr or Size.
func (c *Cache) InsertMappings(stripeLen AddrDelta, mappings ...Mapping) error {
	if len(mappings) == 0 {
		return fmt.Errorf("chunk cache: InsertMappings: no mappings given")
	}
	begin := mappings[0].LAddr
	size := mappings[0].Size
	stripes := make([]QualifiedPhysicalAddr, 0, len(mappings))
	for _, m := range mappings {
		if m.LAddr != begin || m.Size != size {
			return fmt.Errorf("chunk cache: InsertMappings: mappings disagree on logical range: {%v,%v} != {%v,%v}",
				m.LAddr, m.Size, begin, size)
		}
		stripes = append(stripes, m.PAddr)
	}
	return c.Insert(begin, size, stripeLen, stripes)
}

// chunkEntry is a single [Begin, End) logical interval striped across
// Stripes at StripeLen granularity. Begin and End are kept half-open
// the way every other interval in this package is.
type chunkEntry struct {
	Begin     LogicalAddr
	End       LogicalAddr
	StripeLen AddrDelta
	Stripes   []QualifiedPhysicalAddr
}

func (c chunkEntry) numStripes() int { return len(c.Stripes) }

// return -1 if 'point' is wholly to the left of 'c', 0 if 'point' is
// within [c.Begin, c.End), 1 if wholly to the right.
func (c chunkEntry) cmpPoint(point LogicalAddr) int {
	switch {
	case point < c.Begin:
		return -1
	case point >= c.End:
		return 1
	default:
		return 0
	}
}

// Cache is the chunk-tree address translator (C4): it holds the set
// of logical->physical chunk mappings learned by the translation
// walker, and turns a (logical, size) read request into the
// physical extents that back it -- including splitting requests that
// straddle a stripe boundary.
//
// The zero Cache is ready to use.
type Cache struct {
	mu    sync.RWMutex
	tree  *containers.RBTree[containers.NativeOrdered[LogicalAddr], chunkEntry]
	rev   map[DeviceID]*containers.RBTree[containers.NativeOrdered[PhysicalAddr], physExtent]
	revOK bool
}

type physExtent struct {
	Dev   DeviceID
	Begin PhysicalAddr
	End   PhysicalAddr
	LBase LogicalAddr // logical address that Begin maps to (start of this stripe unit)
}

func (c *Cache) init() {
	if c.tree == nil {
		c.tree = &containers.RBTree[containers.NativeOrdered[LogicalAddr], chunkEntry]{
			KeyFn: func(e chunkEntry) containers.NativeOrdered[LogicalAddr] {
				return containers.NativeOrdered[LogicalAddr]{Val: e.Begin}
			},
		}
	}
}

// Insert records that the logical range [begin, begin+size) is
// striped across stripes at stripeLen granularity: stripe i of the
// range holds the bytes at logical offset [i*stripeLen,
// (i+1)*stripeLen), and stripe i lives at stripes[i%len(stripes)] plus
// (i/len(stripes))*stripeLen.
//
// A second Insert for the exact same [begin, begin+size) range
// replaces the first -- this lets the translation walker re-seed the
// cache from a newer chunk-tree generation without accumulating
// stale duplicate entries.
func (c *Cache) Insert(begin LogicalAddr, size AddrDelta, stripeLen AddrDelta, stripes []QualifiedPhysicalAddr) error {
	if size <= 0 {
		return fmt.Errorf("chunk cache: insert: size must be positive, got %v", size)
	}
	if stripeLen <= 0 {
		return fmt.Errorf("chunk cache: insert: stripe_len must be positive, got %v", stripeLen)
	}
	if len(stripes) == 0 {
		return fmt.Errorf("chunk cache: insert: must have at least one stripe")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()
	entry := chunkEntry{
		Begin:     begin,
		End:       begin.Add(size),
		StripeLen: stripeLen,
		Stripes:   append([]QualifiedPhysicalAddr(nil), stripes...),
	}
	c.tree.Insert(entry)
	c.rev = nil
	c.revOK = false
	return nil
}

// Translate maps a logical read of the given size starting at
// logical into an ordered sequence of physical extents, per the
// chunk's stripe layout. It returns UnmappedError if logical is not
// covered by any chunk entry.
func (c *Cache) Translate(logical LogicalAddr, size AddrDelta) ([]Extent, error) {
	if size <= 0 {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tree == nil {
		return nil, &UnmappedError{Logical: logical}
	}
	node := c.tree.Search(func(e chunkEntry) int { return e.cmpPoint(logical) })
	if node == nil {
		return nil, &UnmappedError{Logical: logical}
	}
	entry := node.Value

	var ret []Extent
	remaining := size
	cur := logical
	for remaining > 0 {
		if cur >= entry.End {
			// Ran off the end of this chunk; re-lookup for the
			// next one (chunks need not be contiguous).
			node := c.tree.Search(func(e chunkEntry) int { return e.cmpPoint(cur) })
			if node == nil {
				return nil, &UnmappedError{Logical: cur}
			}
			entry = node.Value
		}

		off := int64(cur.Sub(entry.Begin))
		n := int64(entry.numStripes())
		stripeLen := int64(entry.StripeLen)

		preUnits := off / stripeLen
		stripeOffset := off % stripeLen

		unitIdx := preUnits / n
		stripeIdx := preUnits % n
		stripe := entry.Stripes[stripeIdx]

		chunkLen := int64(stripeLen) - stripeOffset
		take := int64(remaining)
		if take > chunkLen {
			take = chunkLen
		}
		// Don't cross past the end of this chunk's logical range
		// either.
		if leftInChunk := int64(entry.End.Sub(cur)); take > leftInChunk {
			take = leftInChunk
		}

		phys := stripe.Addr.Add(AddrDelta(unitIdx*stripeLen + stripeOffset))
		ret = append(ret, Extent{
			PAddr: QualifiedPhysicalAddr{Dev: stripe.Dev, Addr: phys},
			Len:   AddrDelta(take),
		})

		cur = cur.Add(AddrDelta(take))
		remaining -= AddrDelta(take)
	}
	return ret, nil
}

// Chunks returns every chunk entry currently cached, ordered by
// logical begin address.
func (c *Cache) Chunks() []chunkEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tree == nil {
		return nil
	}
	var ret []chunkEntry
	_ = c.tree.Walk(func(node *containers.RBNode[chunkEntry]) error {
		ret = append(ret, node.Value)
		return nil
	})
	return ret
}

// buildReverse lazily constructs the physical->logical index used by
// Unresolve. It is built "on demand" -- most callers never ask to go
// physical->logical, so there's no reason to keep it up to date on
// every Insert.
func (c *Cache) buildReverse() {
	if c.revOK {
		return
	}
	c.rev = make(map[DeviceID]*containers.RBTree[containers.NativeOrdered[PhysicalAddr], physExtent])
	_ = c.tree.Walk(func(node *containers.RBNode[chunkEntry]) error {
		entry := node.Value
		n := AddrDelta(entry.numStripes())
		unitLen := entry.StripeLen
		logicalLen := entry.End.Sub(entry.Begin)
		units := (logicalLen + unitLen - 1) / unitLen
		for u := AddrDelta(0); u < units; u++ {
			stripeIdx := int(int64(u) % int64(n))
			unitIdx := int64(u) / int64(n)
			stripe := entry.Stripes[stripeIdx]
			begin := stripe.Addr.Add(AddrDelta(unitIdx) * unitLen)
			end := begin.Add(unitLen)
			lbase := entry.Begin.Add(u * unitLen)
			tree, ok := c.rev[stripe.Dev]
			if !ok {
				tree = &containers.RBTree[containers.NativeOrdered[PhysicalAddr], physExtent]{
					KeyFn: func(e physExtent) containers.NativeOrdered[PhysicalAddr] {
						return containers.NativeOrdered[PhysicalAddr]{Val: e.Begin}
					},
				}
				c.rev[stripe.Dev] = tree
			}
			tree.Insert(physExtent{Dev: stripe.Dev, Begin: begin, End: end, LBase: lbase})
		}
		return nil
	})
	c.revOK = true
}

// Unresolve maps a physical address back to the logical address(es)
// that stripe over it, built lazily the first time it's called after
// the cache last changed. Returns ok=false if paddr isn't covered by
// any known chunk.
func (c *Cache) Unresolve(paddr QualifiedPhysicalAddr) (LogicalAddr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tree == nil {
		return 0, false
	}
	c.buildReverse()
	tree, ok := c.rev[paddr.Dev]
	if !ok {
		return 0, false
	}
	node := tree.Search(func(e physExtent) int {
		switch {
		case paddr.Addr < e.Begin:
			return -1
		case paddr.Addr >= e.End:
			return 1
		default:
			return 0
		}
	})
	if node == nil {
		return 0, false
	}
	ext := node.Value
	return ext.LBase.Add(paddr.Addr.Sub(ext.Begin)), true
}

// Len reports how many chunk entries are currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tree == nil {
		return 0
	}
	return c.tree.Len()
}

// SortStripes orders a chunk's stripe list by (device, addr), the
// canonical order stripe index 0 refers to.
func SortStripes(stripes []QualifiedPhysicalAddr) {
	sort.Slice(stripes, func(i, j int) bool {
		return stripes[i].Cmp(stripes[j]) < 0
	})
}
