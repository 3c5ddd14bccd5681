// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package leveldb is the on-disk record.Store reference
// implementation, backed by github.com/syndtr/goleveldb. Records are
// JSON-encoded (via git.lukeshu.com/go/lowmemjson, the same codec the
// rest of this module uses for its --dump output) and keyed so that
// a full scan of one record type is a contiguous key-range iteration.
package leveldb

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"sync"

	lowmemjson "git.lukeshu.com/go/lowmemjson"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/yakfsrecon/btrfs-forensic/lib/record"
)

// marshalEnvelope and unmarshalEnvelope wrap lowmemjson's
// io.Writer/io.RuneScanner streaming API in the byte-slice shape this
// package's callers want.
func marshalEnvelope(e record.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := lowmemjson.Encode(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalEnvelope(dat []byte, e *record.Envelope) error {
	return lowmemjson.DecodeThenEOF(bufio.NewReader(strings.NewReader(string(dat))), e)
}

const (
	prefixRecord  = "r:" // r:<type>\x00<id>           -> json(Envelope)
	prefixAddrKey = "a:" // a:<dev>\x00<phys>\x00<size> -> "<type>\x00<id>\x00<addrID>"
	prefixOwner   = "o:" // o:<ownerType>\x00<ownerID>\x00<childType>\x00<childID> -> "" (index only)
	keyNextID     = "seq:next_id"
)

// Store is a record.Store backed by a goleveldb database directory.
type Store struct {
	mu sync.Mutex
	db *leveldb.DB
}

// Open opens (creating if necessary) a leveldb-backed record store
// rooted at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("recordstore/leveldb: open %q: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func recordKey(recordType string, id int64) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%020d", prefixRecord, recordType, id))
}

func recordPrefix(recordType string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00", prefixRecord, recordType))
}

func addrKeyBytes(k record.Key) []byte {
	return []byte(fmt.Sprintf("%s%020d\x00%020d\x00%020d", prefixAddrKey, uint64(k.DeviceID), int64(k.Phys), int64(k.PhysSize)))
}

// ownerIndexPrefix/ownerIndexKey index records by their Owner, so a
// parent's existing children can be found (and deleted) by a range
// scan instead of a full-store walk.
func ownerIndexPrefix(ownerType string, ownerID int64) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%020d\x00", prefixOwner, ownerType, ownerID))
}

func ownerIndexKey(ownerType string, ownerID int64, childType string, childID int64) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%020d", ownerIndexPrefix(ownerType, ownerID), childType, childID))
}

func (s *Store) nextID(batch *leveldb.Batch) (int64, error) {
	val, err := s.db.Get([]byte(keyNextID), nil)
	var cur int64
	if err == nil {
		cur, _ = strconv.ParseInt(string(val), 10, 64)
	} else if err != leveldb.ErrNotFound {
		return 0, err
	}
	cur++
	batch.Put([]byte(keyNextID), []byte(strconv.FormatInt(cur, 10)))
	return cur, nil
}

func (s *Store) Insert(rec *record.Envelope) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := new(leveldb.Batch)
	id, err := s.insertBatch(batch, rec)
	if err != nil {
		return 0, err
	}
	if err := s.db.Write(batch, nil); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) insertBatch(batch *leveldb.Batch, rec *record.Envelope) (int64, error) {
	id, err := s.nextID(batch)
	if err != nil {
		return 0, err
	}
	dup := *rec
	dup.ID = id
	if dup.Address != nil {
		addrDup := *dup.Address
		if addrDup.ID == 0 {
			aid, err := s.nextID(batch)
			if err != nil {
				return 0, err
			}
			addrDup.ID = aid
		}
		dup.Address = &addrDup
		batch.Put(addrKeyBytes(addrDup.Key()), []byte(fmt.Sprintf("%s\x00%d\x00%d", dup.Type, dup.ID, addrDup.ID)))
	}
	if dup.Owner != nil {
		batch.Put(ownerIndexKey(dup.Owner.Type, dup.Owner.ID, dup.Type, id), nil)
	}
	bs, err := marshalEnvelope(dup)
	if err != nil {
		return 0, err
	}
	batch.Put(recordKey(dup.Type, id), bs)
	return id, nil
}

func (s *Store) Update(rec *record.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := new(leveldb.Batch)
	if err := s.updateBatch(batch, rec); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *Store) updateBatch(batch *leveldb.Batch, rec *record.Envelope) error {
	if rec.ID == 0 {
		return fmt.Errorf("recordstore/leveldb: update: record has no id")
	}
	dup := *rec
	if dup.Address != nil {
		addrDup := *dup.Address
		dup.Address = &addrDup
		batch.Put(addrKeyBytes(addrDup.Key()), []byte(fmt.Sprintf("%s\x00%d\x00%d", dup.Type, dup.ID, addrDup.ID)))
	}
	bs, err := marshalEnvelope(dup)
	if err != nil {
		return err
	}
	batch.Put(recordKey(dup.Type, dup.ID), bs)
	return nil
}

func (s *Store) Delete(recordType string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := new(leveldb.Batch)
	if err := s.deleteBatch(batch, recordType, id); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *Store) deleteBatch(batch *leveldb.Batch, recordType string, id int64) error {
	key := recordKey(recordType, id)
	val, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	var rec record.Envelope
	if err := unmarshalEnvelope(val, &rec); err != nil {
		return err
	}
	if rec.Address != nil {
		batch.Delete(addrKeyBytes(rec.Address.Key()))
	}
	if rec.Owner != nil {
		batch.Delete(ownerIndexKey(rec.Owner.Type, rec.Owner.ID, recordType, id))
	}
	batch.Delete(key)
	return nil
}

func (s *Store) Query(recordType string, pred record.Predicate) ([]*record.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ret []*record.Envelope
	iter := s.db.NewIterator(util.BytesPrefix(recordPrefix(recordType)), nil)
	defer iter.Release()
	for iter.Next() {
		var rec record.Envelope
		if err := unmarshalEnvelope(iter.Value(), &rec); err != nil {
			return nil, err
		}
		if pred == nil || pred(&rec) {
			ret = append(ret, &rec)
		}
	}
	return ret, iter.Error()
}

// QueryOutdated returns every recordType record whose SchemaVersion is
// less than currentVersion, for a reparse pass that only needs to
// re-target structures a mapper revision has moved past.
func (s *Store) QueryOutdated(recordType string, currentVersion int) ([]*record.Envelope, error) {
	return s.Query(recordType, func(e *record.Envelope) bool {
		return e.SchemaVersion < currentVersion
	})
}

func (s *Store) findAddress(key record.Key) (*record.Address, string, int64, bool) {
	val, err := s.db.Get(addrKeyBytes(key), nil)
	if err != nil {
		return nil, "", 0, false
	}
	// val is "<type>\x00<id>\x00<addrID>" (see insertBatch/updateBatch);
	// fmt.Sscanf's %s stops at whitespace, not \x00, so it can't parse
	// this -- split on the literal separator by hand instead, the same
	// way addrKeyBytes/recordKey are assembled by hand.
	parts := strings.Split(string(val), "\x00")
	if len(parts) != 3 {
		return nil, "", 0, false
	}
	ownerType := parts[0]
	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil, "", 0, false
	}
	addrID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, "", 0, false
	}
	return &record.Address{ID: addrID, DeviceID: key.DeviceID, Phys: key.Phys, PhysSize: key.PhysSize}, ownerType, ownerID, true
}

// tx batches a transaction's work and, like the memory store, defers
// actually writing until after the pre-commit dedup pass has
// reconciled the staged set.
type tx struct {
	s       *Store
	pending []*record.Envelope
}

func (t *tx) Insert(rec *record.Envelope) (int64, error) {
	batch := new(leveldb.Batch)
	id, err := t.s.insertBatch(batch, rec)
	if err != nil {
		return 0, err
	}
	return id, t.s.db.Write(batch, nil)
}
func (t *tx) Update(rec *record.Envelope) error {
	batch := new(leveldb.Batch)
	if err := t.s.updateBatch(batch, rec); err != nil {
		return err
	}
	return t.s.db.Write(batch, nil)
}
func (t *tx) Delete(recordType string, id int64) error {
	batch := new(leveldb.Batch)
	if err := t.s.deleteBatch(batch, recordType, id); err != nil {
		return err
	}
	return t.s.db.Write(batch, nil)
}
func (t *tx) Query(recordType string, pred record.Predicate) ([]*record.Envelope, error) {
	return t.s.Query(recordType, pred)
}
func (t *tx) FindAddress(key record.Key) (*record.Address, string, int64, bool) {
	return t.s.findAddress(key)
}
func (t *tx) Stage(rec *record.Envelope) { t.pending = append(t.pending, rec) }

// Transaction serializes through Store's mutex (goleveldb itself has
// no multi-key transaction primitive, so the mutex plus a single
// final Batch.Write is what stands in for atomicity here) and runs
// the Address Dedup Hook over whatever fn staged.
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

	batch := new(leveldb.Batch)
	for _, owner := range toDelete {
		if err := s.deleteBatch(batch, owner.Type, owner.ID); err != nil {
			return err
		}
	}
	for _, rec := range t.pending {
		if rec.ID != 0 {
			// As in the memory store: a reconciled-to-update record's
			// Children are about to be re-inserted by commitChildrenBatch
			// below, so whatever children the previous parse left
			// behind have to go first or every reparse/re-scan doubles
			// them (children never own an Address, so they never dedup
			// on their own through Reconcile).
			if err := s.deleteChildrenBatch(batch, rec.Type, rec.ID); err != nil {
				return err
			}
			if err := s.updateBatch(batch, rec); err != nil {
				return err
			}
		} else {
			id, err := s.insertBatch(batch, rec)
			if err != nil {
				return err
			}
			rec.ID = id
		}
		if err := s.commitChildrenBatch(batch, rec); err != nil {
			return err
		}
	}
	return s.db.Write(batch, nil)
}

// commitChildrenBatch inserts parent.Children (and, recursively,
// their own Children) into batch now that parent has an assigned ID,
// backfilling each child's Owner. Mirrors the memory store's
// commitChildrenLocked -- children never own an Address, so they
// never participate in Reconcile.
func (s *Store) commitChildrenBatch(batch *leveldb.Batch, parent *record.Envelope) error {
	for _, child := range parent.Children {
		dup := child.WithOwner(record.Owner{Type: parent.Type, ID: parent.ID})
		id, err := s.insertBatch(batch, dup)
		if err != nil {
			return err
		}
		dup.ID = id
		if err := s.commitChildrenBatch(batch, dup); err != nil {
			return err
		}
	}
	return nil
}

// deleteChildrenBatch deletes every record owned (directly or
// transitively) by (ownerType, ownerID), found via the owner index
// insertBatch maintains -- the existing-children cleanup a
// reconciled update needs before commitChildrenBatch re-inserts the
// parent's current set of children. Reads the index as it stands
// before batch is applied, matching deleteBatch's own read-then-batch
// pattern.
func (s *Store) deleteChildrenBatch(batch *leveldb.Batch, ownerType string, ownerID int64) error {
	prefix := ownerIndexPrefix(ownerType, ownerID)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	type childRef struct {
		typ string
		id  int64
	}
	var refs []childRef
	for iter.Next() {
		suffix := bytes.TrimPrefix(iter.Key(), prefix)
		parts := bytes.SplitN(suffix, []byte("\x00"), 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.ParseInt(string(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		refs = append(refs, childRef{typ: string(parts[0]), id: id})
	}
	err := iter.Error()
	iter.Release()
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := s.deleteChildrenBatch(batch, ref.typ, ref.id); err != nil {
			return err
		}
		if err := s.deleteBatch(batch, ref.typ, ref.id); err != nil {
			return err
		}
	}
	return nil
}
