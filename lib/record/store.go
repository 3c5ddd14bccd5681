// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package record

// Predicate filters Envelopes during a Query.
type Predicate func(*Envelope) bool

// Tx is the transaction-scoped view of the record store that the
// core (and the pre-commit Address Dedup Hook) operates against. A
// Tx's mutations are only visible to later operations in the same
// Tx until the enclosing Store.Transaction commits.
type Tx interface {
	Insert(rec *Envelope) (int64, error)
	Update(rec *Envelope) error
	Delete(recordType string, id int64) error
	Query(recordType string, pred Predicate) ([]*Envelope, error)

	// FindAddress looks up the existing Address row (if any) matching
	// key, returning the owning record's type-tag and id alongside it.
	FindAddress(key Key) (addr *Address, ownerType string, ownerID int64, found bool)

	// Stage marks rec as pending within this transaction, to be
	// reconciled by the pre-commit hook before the transaction
	// actually inserts/updates/deletes anything. Used by callers
	// that want dedup reconciliation (§4.7) applied to a batch of
	// newly-produced addressed records.
	Stage(rec *Envelope)
}

// Store is the external record-store collaborator described in §6:
// a transactional store exposing insert/update/delete/query plus a
// pre-commit hook installed for Address reconciliation.
type Store interface {
	Insert(rec *Envelope) (int64, error)
	Update(rec *Envelope) error
	Delete(recordType string, id int64) error
	Query(recordType string, pred Predicate) ([]*Envelope, error)

	// QueryOutdated returns every recordType record whose
	// SchemaVersion is less than currentVersion, for a reparse pass
	// that only needs to re-target structures a mapper revision has
	// moved past.
	QueryOutdated(recordType string, currentVersion int) ([]*Envelope, error)

	// Transaction runs fn within a transaction: fn stages records via
	// tx.Stage, and on return (nil error) the store runs the
	// installed pre-commit hook(s) over the staged set before
	// committing the reconciled inserts/updates/deletes atomically.
	Transaction(fn func(tx Tx) error) error
}
