// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
	"github.com/yakfsrecon/btrfs-forensic/lib/record"
	"github.com/yakfsrecon/btrfs-forensic/lib/recordstore/memory"
)

func addrAt(phys btrfsvol.PhysicalAddr, size btrfsvol.AddrDelta) *record.Address {
	return &record.Address{DeviceID: 1, Phys: phys, PhysSize: size}
}

func TestReconcileInsertsFresh(t *testing.T) {
	t.Parallel()
	store := memory.New()
	err := store.Transaction(func(tx record.Tx) error {
		tx.Stage(&record.Envelope{Type: "btrfs.chunk", Address: addrAt(0x1000, 0x100)})
		return nil
	})
	require.NoError(t, err)

	recs, err := store.Query("btrfs.chunk", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotZero(t, recs[0].ID)
}

func TestReconcileIdempotentReparseUpdatesInPlace(t *testing.T) {
	t.Parallel()
	store := memory.New()
	require.NoError(t, store.Transaction(func(tx record.Tx) error {
		tx.Stage(&record.Envelope{Type: "btrfs.chunk", Fields: map[string]interface{}{"v": 1}, Address: addrAt(0x2000, 0x100)})
		return nil
	}))
	first, err := store.Query("btrfs.chunk", nil)
	require.NoError(t, err)
	require.Len(t, first, 1)
	firstID := first[0].ID
	firstAddrID := first[0].Address.ID

	require.NoError(t, store.Transaction(func(tx record.Tx) error {
		tx.Stage(&record.Envelope{Type: "btrfs.chunk", Fields: map[string]interface{}{"v": 2}, Address: addrAt(0x2000, 0x100)})
		return nil
	}))

	second, err := store.Query("btrfs.chunk", nil)
	require.NoError(t, err)
	require.Len(t, second, 1, "re-parsing the same location must not create a duplicate")
	assert.Equal(t, firstID, second[0].ID)
	assert.Equal(t, firstAddrID, second[0].Address.ID)
	assert.Equal(t, 2, second[0].Fields["v"])
}

func TestReconcileSupersedesOnTypeChange(t *testing.T) {
	t.Parallel()
	store := memory.New()
	require.NoError(t, store.Transaction(func(tx record.Tx) error {
		tx.Stage(&record.Envelope{Type: "btrfs.chunk", Address: addrAt(0x3000, 0x100)})
		return nil
	}))
	chunks, err := store.Query("btrfs.chunk", nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	require.NoError(t, store.Transaction(func(tx record.Tx) error {
		tx.Stage(&record.Envelope{Type: "btrfs.dev_extent", Address: addrAt(0x3000, 0x100)})
		return nil
	}))

	chunks, err = store.Query("btrfs.chunk", nil)
	require.NoError(t, err)
	assert.Empty(t, chunks, "superseded owner must be deleted")

	devExtents, err := store.Query("btrfs.dev_extent", nil)
	require.NoError(t, err)
	require.Len(t, devExtents, 1)
}

func TestReconcileConflictWithinSameTransaction(t *testing.T) {
	t.Parallel()
	store := memory.New()
	err := store.Transaction(func(tx record.Tx) error {
		tx.Stage(&record.Envelope{Type: "btrfs.chunk", Address: addrAt(0x4000, 0x100)})
		tx.Stage(&record.Envelope{Type: "btrfs.dev_extent", Address: addrAt(0x4000, 0x100)})
		return nil
	})
	require.Error(t, err)
	var conflict *record.DedupConflict
	assert.ErrorAs(t, err, &conflict)
}
