// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package record

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsprim"
)

// Registry is the triple-indexed mapper table (C9): {parsed-struct-type,
// record-type, leaf-key-type} -> Mapper. It's auto-populated at
// startup by Register-ing every declared mapper; duplicate
// registrations of a record type or a leaf key type fail fast.
//
// The parsed-struct-type axis is looked up last-wins rather than
// fail-fast: several on-disk structures share one Go type across
// multiple leaf key types (DIR_ITEM/DIR_INDEX/XATTR_ITEM all parse
// into btrfsitem.DirEntry; ROOT_REF/ROOT_BACKREF both parse into
// btrfsitem.RootRef), so ForStruct can only ever pick one of their
// mappers arbitrarily. Callers with key-type context (leaf items)
// should use MapLeafItem/ForLeafKeyType instead of MapStruct/ForStruct.
type Registry struct {
	mu        sync.RWMutex
	byStruct  map[reflect.Type]Mapper
	byRecord  map[string]Mapper
	byLeafKey map[btrfsprim.ItemType]Mapper
}

func NewRegistry() *Registry {
	return &Registry{
		byStruct:  make(map[reflect.Type]Mapper),
		byRecord:  make(map[string]Mapper),
		byLeafKey: make(map[btrfsprim.ItemType]Mapper),
	}
}

// Register adds m to the registry. It is an error to register two
// mappers for the same record type, or for two mappers to claim the
// same non-zero leaf key type. A second mapper for an already
// registered parsed struct type is not an error: it replaces the
// first one on the ForStruct axis (see Registry).
func (r *Registry) Register(m Mapper) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := m.ParsedType()
	rt := m.RecordType()
	if _, dup := r.byRecord[rt]; dup {
		return fmt.Errorf("registry: duplicate mapper for record type %q", rt)
	}
	lk := m.LeafKeyType()
	if lk != btrfsprim.ItemType(0) {
		if _, dup := r.byLeafKey[lk]; dup {
			return fmt.Errorf("registry: duplicate mapper for leaf key type %v", lk)
		}
	}

	r.byStruct[st] = m
	r.byRecord[rt] = m
	if lk != btrfsprim.ItemType(0) {
		r.byLeafKey[lk] = m
	}
	return nil
}

// MustRegister is like Register, but panics on error; intended for
// package-level init() registration of built-in mappers, where a
// collision is a programming error, not a runtime condition.
func (r *Registry) MustRegister(m Mapper) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

func (r *Registry) ForStruct(t reflect.Type) (Mapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byStruct[t]
	return m, ok
}

func (r *Registry) ForRecordType(name string) (Mapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byRecord[name]
	return m, ok
}

func (r *Registry) ForLeafKeyType(kt btrfsprim.ItemType) (Mapper, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byLeafKey[kt]
	return m, ok
}

// RecordTypes returns every registered record-type tag, for a reparse
// pass that needs to know which types to run Store.QueryOutdated over.
func (r *Registry) RecordTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]string, 0, len(r.byRecord))
	for rt := range r.byRecord {
		ret = append(ret, rt)
	}
	return ret
}

// MapStruct looks up the mapper for parsed's dynamic type and
// invokes it. It returns a *RegistryMiss error (not fatal by
// convention for callers walking leaf items of unknown type) if no
// mapper is registered.
func (r *Registry) MapStruct(parsed interface{}, loc Location) (*Envelope, error) {
	t := reflect.TypeOf(parsed)
	m, ok := r.ForStruct(t)
	if !ok {
		return nil, &RegistryMiss{Kind: "struct", What: t.String()}
	}
	return m.Map(parsed, loc)
}

// MapLeafItem dispatches on a leaf item's key type and invokes the
// matching mapper. An unrecognized key type is not an error: per
// §4.6, unknown key types produce a leaf item record with no payload.
func (r *Registry) MapLeafItem(keyType btrfsprim.ItemType, parsed interface{}, loc Location) (*Envelope, error) {
	m, ok := r.ForLeafKeyType(keyType)
	if !ok {
		return &Envelope{
			Type:          "btrfs.leaf_item",
			SchemaVersion: 1,
			Fields: map[string]interface{}{
				"key_type": keyType.String(),
				"payload":  nil,
			},
			Address: loc.Address(),
		}, nil
	}
	return m.Map(parsed, loc)
}
