// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package record

import (
	"reflect"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
)

// Location is where, physically, a parsed structure was read from.
// It's the raw material a Mapper turns into an Address.
type Location struct {
	DeviceID btrfsvol.DeviceID
	Phys     btrfsvol.PhysicalAddr
	Size     btrfsvol.AddrDelta
}

func (l Location) Address() *Address {
	return &Address{DeviceID: l.DeviceID, Phys: l.Phys, PhysSize: l.Size}
}

// Mapper is a declarative mapping from one parsed Go structure to a
// normalized Envelope (C7). Each mapper owns exactly one
// (parsed-struct-type, record-type, leaf-key-type) triple in the
// Registry (C9); leaf-key-type is the zero ItemType for mappers that
// aren't dispatched off a leaf item's key (e.g. the superblock
// mapper).
type Mapper interface {
	// ParsedType is the reflect.Type of the Go value this mapper
	// accepts, e.g. reflect.TypeOf(btrfstree.Superblock{}).
	ParsedType() reflect.Type

	// RecordType is this mapper's record-type tag.
	RecordType() string

	// LeafKeyType is the leaf item key type that dispatches to this
	// mapper, or btrfsprim.ItemType(0) (UNTYPED_KEY) if this mapper
	// isn't reached via leaf-item dispatch.
	LeafKeyType() btrfsprim.ItemType

	// SchemaVersion is this mapper's current schema version, stamped
	// onto every Envelope it produces.
	SchemaVersion() int

	// Map converts parsed (of type ParsedType()) into an Envelope,
	// setting Address from loc and recursively producing Children
	// for any nested structures (e.g. a chunk's stripes).
	Map(parsed interface{}, loc Location) (*Envelope, error)
}

// MapperFunc adapts a plain function to the Mapper interface for
// mappers that don't need any extra state.
type MapperFunc struct {
	Parsed  reflect.Type
	Record  string
	LeafKey btrfsprim.ItemType
	Version int
	Fn      func(parsed interface{}, loc Location) (*Envelope, error)
}

func (m MapperFunc) ParsedType() reflect.Type         { return m.Parsed }
func (m MapperFunc) RecordType() string                { return m.Record }
func (m MapperFunc) LeafKeyType() btrfsprim.ItemType   { return m.LeafKey }
func (m MapperFunc) SchemaVersion() int                { return m.Version }
func (m MapperFunc) Map(parsed interface{}, loc Location) (*Envelope, error) {
	return m.Fn(parsed, loc)
}
