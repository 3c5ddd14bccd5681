// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package leveldb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yakfsrecon/btrfs-forensic/lib/record"
	recordleveldb "github.com/yakfsrecon/btrfs-forensic/lib/recordstore/leveldb"
)

func TestStoreInsertQueryRoundTrip(t *testing.T) {
	t.Parallel()
	store, err := recordleveldb.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	id, err := store.Insert(&record.Envelope{
		Type:          "btrfs.chunk",
		SchemaVersion: 1,
		Fields:        map[string]interface{}{"size": float64(0x10000)},
		Address:       &record.Address{DeviceID: 1, Phys: 0x1000, PhysSize: 0x100},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	recs, err := store.Query("btrfs.chunk", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)
	assert.Equal(t, float64(0x10000), recs[0].Fields["size"])
}

func TestStoreTransactionIdempotentReparse(t *testing.T) {
	t.Parallel()
	store, err := recordleveldb.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	addr := &record.Address{DeviceID: 1, Phys: 0x2000, PhysSize: 0x100}
	require.NoError(t, store.Transaction(func(tx record.Tx) error {
		tx.Stage(&record.Envelope{Type: "btrfs.chunk", Fields: map[string]interface{}{"v": float64(1)}, Address: addr})
		return nil
	}))
	require.NoError(t, store.Transaction(func(tx record.Tx) error {
		tx.Stage(&record.Envelope{Type: "btrfs.chunk", Fields: map[string]interface{}{"v": float64(2)}, Address: addr})
		return nil
	}))

	recs, err := store.Query("btrfs.chunk", nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, float64(2), recs[0].Fields["v"])
}
