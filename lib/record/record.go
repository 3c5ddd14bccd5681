// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package record implements the Record Mapper (C7), the Address Dedup
// Hook (C8), and the mapper Registry (C9): normalizing parsed
// on-disk structures into a flat, storable shape, and reconciling
// competing claims on the same physical location.
package record

import "github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"

// Address is the normalized location record every addressed
// structure produces: which device, what physical offset, how big.
// Two structures parsed from the same (DeviceID, Phys, PhysSize)
// triple are, by the Address Dedup Hook's invariant, never both
// persisted.
type Address struct {
	ID       int64 `json:"id,omitempty"`
	DeviceID btrfsvol.DeviceID    `json:"device_id"`
	Phys     btrfsvol.PhysicalAddr `json:"phys"`
	PhysSize btrfsvol.AddrDelta    `json:"phys_size"`
}

// Key is the (device_id, phys, phys_size) triple the dedup hook
// indexes Address rows by.
type Key struct {
	DeviceID btrfsvol.DeviceID
	Phys     btrfsvol.PhysicalAddr
	PhysSize btrfsvol.AddrDelta
}

func (a Address) Key() Key {
	return Key{DeviceID: a.DeviceID, Phys: a.Phys, PhysSize: a.PhysSize}
}

// Owner is the polymorphic "(type-tag, id)" foreign key that an
// Address, or a child record, points back to its parent with. It's a
// tagged sum modeled in Go as a plain struct; a relational store is
// free to implement it as two columns.
type Owner struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// Envelope is the output of a Mapper: a normalized record, the
// schema version of the mapper that produced it, the Address it owns
// (if any), and any child records (e.g. a chunk item's stripes) it
// recursively produced.
type Envelope struct {
	// Type is the record-type tag (C9's "record-type" axis), e.g.
	// "btrfs.chunk" or "btrfs.leaf_item".
	Type string `json:"type"`

	// ID is the surrogate key assigned by the store on Insert; zero
	// until then.
	ID int64 `json:"id,omitempty"`

	// SchemaVersion lets a later mapper revision find and re-target
	// records produced by an older one.
	SchemaVersion int `json:"schema_version"`

	// Fields holds the mapper's field-level coercions: enum names,
	// decoded timestamps, byte blobs, scalars.
	Fields map[string]interface{} `json:"fields"`

	// Address is this record's physical location, if it owns one.
	Address *Address `json:"address,omitempty"`

	// Owner, if set, is this record's parent (e.g. a stripe's owning
	// chunk). Nil for top-level records.
	Owner *Owner `json:"owner,omitempty"`

	// Children are nested records produced alongside this one (e.g.
	// a Chunk's Stripes); the store assigns them their own IDs and
	// backfills their Owner once this record has an ID.
	Children []*Envelope `json:"-"`
}

// WithOwner returns a copy of e with Owner set; used when backfilling
// a child's parent reference after the parent has been assigned an ID.
func (e *Envelope) WithOwner(o Owner) *Envelope {
	dup := *e
	dup.Owner = &o
	return &dup
}
