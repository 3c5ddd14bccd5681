// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package record

// Reconcile implements the Address Dedup Hook (C8): given the set of
// newly-produced structures staged in a transaction (each of which
// owns an Address, i.e. has rec.Address != nil), reconcile them
// against whatever Address rows already exist so that no two
// persisted structures ever share an Address.
//
// Steps, per §4.7:
//  1. Build the set of target keys across all pending structures.
//  2. Query existing Address rows matching any key.
//  3. Same type-tag match: convert the candidate from insert to
//     update, reusing the existing owner's id and address id.
//  4. Different type-tag match: delete the existing owner (which
//     cascades to its Address), and let the candidate insert fresh.
//  5. No match: insert normally.
//
// Reconcile mutates each pending Envelope in place (setting .ID and
// .Address.ID on an update) and returns the list of existing owners
// that must be deleted (step 4) for the caller to action within the
// same transaction.
func Reconcile(tx Tx, pending []*Envelope) (toDelete []Owner, err error) {
	// Step 1: collect target keys, and catch same-transaction
	// candidates that collide with each other under incompatible
	// type-tags -- that's a DedupConflict, distinct from colliding
	// with something already committed.
	byKey := make(map[Key]*Envelope, len(pending))
	for _, rec := range pending {
		if rec.Address == nil {
			continue
		}
		key := rec.Address.Key()
		if other, collide := byKey[key]; collide && other.Type != rec.Type {
			return nil, &DedupConflict{
				DeviceID: key.DeviceID,
				Phys:     key.Phys,
				PhysSize: key.PhysSize,
				TypeA:    other.Type,
				TypeB:    rec.Type,
			}
		}
		byKey[key] = rec
	}

	// Steps 2-5: resolve each candidate against what's already
	// persisted.
	for _, rec := range pending {
		if rec.Address == nil {
			continue
		}
		key := rec.Address.Key()
		existing, ownerType, ownerID, found := tx.FindAddress(key)
		if !found {
			// Step 5: insert normally -- nothing to do, Stage/Insert
			// handles it.
			continue
		}
		if ownerType == rec.Type {
			// Step 3: convert insert -> update, reusing the existing
			// owner's identity.
			rec.ID = ownerID
			rec.Address.ID = existing.ID
		} else {
			// Step 4: the existing owner is being superseded by a
			// structure of a different type at the same location.
			toDelete = append(toDelete, Owner{Type: ownerType, ID: ownerID})
		}
	}
	return toDelete, nil
}
