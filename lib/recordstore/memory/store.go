// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package memory is an in-memory reference implementation of
// record.Store, useful for tests and small recoveries that fit in
// RAM. lib/recordstore/leveldb is the on-disk counterpart.
package memory

import (
	"fmt"
	"sync"

	"github.com/yakfsrecon/btrfs-forensic/lib/record"
)

// Store is a record.Store backed by plain Go maps, guarded by a
// single mutex. Transactions are serialized (one at a time), which
// is sufficient for the reference implementation's purposes -- the
// record store's own isolation is exactly this mutex.
type Store struct {
	mu       sync.Mutex
	byType   map[string]map[int64]*record.Envelope
	nextID   int64
	addrKeys map[record.Key]ownerRef
}

type ownerRef struct {
	addrID int64
	typ    string
	id     int64
}

func New() *Store {
	return &Store{
		byType:   make(map[string]map[int64]*record.Envelope),
		addrKeys: make(map[record.Key]ownerRef),
	}
}

func (s *Store) Insert(rec *record.Envelope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *Store) insertLocked(rec *record.Envelope) (int64, error) {
	s.nextID++
	id := s.nextID
	dup := *rec
	dup.ID = id
	if dup.Address != nil {
		addrDup := *dup.Address
		if addrDup.ID == 0 {
			s.nextID++
			addrDup.ID = s.nextID
		}
		dup.Address = &addrDup
		s.addrKeys[addrDup.Key()] = ownerRef{addrID: addrDup.ID, typ: dup.Type, id: dup.ID}
	}
	if s.byType[dup.Type] == nil {
		s.byType[dup.Type] = make(map[int64]*record.Envelope)
	}
	s.byType[dup.Type][id] = &dup
	return id, nil
}

func (s *Store) Update(rec *record.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(rec)
}

func (s *Store) updateLocked(rec *record.Envelope) error {
	if rec.ID == 0 {
		return fmt.Errorf("memstore: update: record has no id")
	}
	bucket := s.byType[rec.Type]
	if bucket == nil || bucket[rec.ID] == nil {
		return fmt.Errorf("memstore: update: no %s record with id=%d", rec.Type, rec.ID)
	}
	dup := *rec
	if dup.Address != nil {
		addrDup := *dup.Address
		dup.Address = &addrDup
		s.addrKeys[addrDup.Key()] = ownerRef{addrID: addrDup.ID, typ: dup.Type, id: dup.ID}
	}
	bucket[rec.ID] = &dup
	return nil
}

func (s *Store) Delete(recordType string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(recordType, id)
}

func (s *Store) deleteLocked(recordType string, id int64) error {
	bucket := s.byType[recordType]
	if bucket == nil {
		return nil
	}
	if rec, ok := bucket[id]; ok && rec.Address != nil {
		delete(s.addrKeys, rec.Address.Key())
	}
	delete(bucket, id)
	return nil
}

func (s *Store) Query(recordType string, pred record.Predicate) ([]*record.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ret []*record.Envelope
	for _, rec := range s.byType[recordType] {
		if pred == nil || pred(rec) {
			dup := *rec
			ret = append(ret, &dup)
		}
	}
	return ret, nil
}

// QueryOutdated returns every recordType record whose SchemaVersion is
// less than currentVersion.
func (s *Store) QueryOutdated(recordType string, currentVersion int) ([]*record.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ret []*record.Envelope
	for _, rec := range s.byType[recordType] {
		if rec.SchemaVersion < currentVersion {
			dup := *rec
			ret = append(ret, &dup)
		}
	}
	return ret, nil
}

func (s *Store) findAddressLocked(key record.Key) (*record.Address, string, int64, bool) {
	ref, ok := s.addrKeys[key]
	if !ok {
		return nil, "", 0, false
	}
	addr := &record.Address{ID: ref.addrID, DeviceID: key.DeviceID, Phys: key.Phys, PhysSize: key.PhysSize}
	return addr, ref.typ, ref.id, true
}

// tx is the Transaction-scoped handle; it stages pending records and
// defers actually mutating the store until Transaction's pre-commit
// pass (record.Reconcile) has run.
type tx struct {
	s       *Store
	pending []*record.Envelope
}

func (t *tx) Insert(rec *record.Envelope) (int64, error) { return t.s.insertLocked(rec) }
func (t *tx) Update(rec *record.Envelope) error          { return t.s.updateLocked(rec) }
func (t *tx) Delete(recordType string, id int64) error   { return t.s.deleteLocked(recordType, id) }
func (t *tx) Query(recordType string, pred record.Predicate) ([]*record.Envelope, error) {
	var ret []*record.Envelope
	for _, rec := range t.s.byType[recordType] {
		if pred == nil || pred(rec) {
			dup := *rec
			ret = append(ret, &dup)
		}
	}
	return ret, nil
}
func (t *tx) FindAddress(key record.Key) (*record.Address, string, int64, bool) {
	return t.s.findAddressLocked(key)
}
func (t *tx) Stage(rec *record.Envelope) { t.pending = append(t.pending, rec) }

// Transaction runs fn, then applies the Address Dedup Hook (§4.7)
// over whatever fn staged via tx.Stage, deleting superseded owners
// and inserting/updating the reconciled set -- all under the
// Store's single mutex, which stands in for "the same transaction"
// the spec requires the hook to run within.
func (s *Store) Transaction(fn func(record.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	if err := fn(t); err != nil {
		return err
	}

	toDelete, err := record.Reconcile(t, t.pending)
	if err != nil {
		return err
	}
	for _, owner := range toDelete {
		if err := s.deleteLocked(owner.Type, owner.ID); err != nil {
			return err
		}
	}
	for _, rec := range t.pending {
		if rec.ID != 0 {
			// A reconciled-to-update record keeps its id, but its
			// freshly-mapped Children are about to be inserted again
			// below; without clearing out whatever children the
			// previous parse left behind first, every reparse/re-scan
			// of the same structure would double its child rows,
			// since children never own an Address and so never
			// dedup through Reconcile themselves.
			if err := s.deleteChildrenLocked(record.Owner{Type: rec.Type, ID: rec.ID}); err != nil {
				return err
			}
			if err := s.updateLocked(rec); err != nil {
				return err
			}
		} else {
			id, err := s.insertLocked(rec)
			if err != nil {
				return err
			}
			rec.ID = id
		}
		if err := s.commitChildrenLocked(rec); err != nil {
			return err
		}
	}
	return nil
}

// commitChildrenLocked inserts parent.Children (and, recursively,
// their own Children) now that parent has an assigned ID, backfilling
// each child's Owner to point at it. Children never own an Address,
// so they never participate in Reconcile -- they're always freshly
// inserted alongside their parent.
func (s *Store) commitChildrenLocked(parent *record.Envelope) error {
	for _, child := range parent.Children {
		dup := child.WithOwner(record.Owner{Type: parent.Type, ID: parent.ID})
		id, err := s.insertLocked(dup)
		if err != nil {
			return err
		}
		dup.ID = id
		if err := s.commitChildrenLocked(dup); err != nil {
			return err
		}
	}
	return nil
}

// deleteChildrenLocked removes every record owned (directly or
// transitively) by owner -- the existing-children cleanup a
// reconciled update needs before commitChildrenLocked re-inserts the
// parent's current set of children.
func (s *Store) deleteChildrenLocked(owner record.Owner) error {
	for typ, bucket := range s.byType {
		for id, rec := range bucket {
			if rec.Owner == nil || rec.Owner.Type != owner.Type || rec.Owner.ID != owner.ID {
				continue
			}
			if err := s.deleteChildrenLocked(record.Owner{Type: typ, ID: id}); err != nil {
				return err
			}
			if err := s.deleteLocked(typ, id); err != nil {
				return err
			}
		}
	}
	return nil
}
