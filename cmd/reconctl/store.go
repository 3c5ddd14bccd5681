// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"io"

	"github.com/yakfsrecon/btrfs-forensic/lib/record"
	leveldbstore "github.com/yakfsrecon/btrfs-forensic/lib/recordstore/leveldb"
	memorystore "github.com/yakfsrecon/btrfs-forensic/lib/recordstore/memory"
)

// openStore opens the record.Store named by cfg.Store, returning it
// alongside an io.Closer for the backends (leveldb) that need one.
func openStore(cfg Config) (record.Store, io.Closer, error) {
	switch cfg.Store.Driver {
	case "", "memory":
		return memorystore.New(), io.NopCloser(nil), nil
	case "leveldb":
		if cfg.Store.DSN == "" {
			return nil, nil, fmt.Errorf("reconctl: store.dsn is required for the leveldb driver")
		}
		s, err := leveldbstore.Open(cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("reconctl: unknown store driver %q", cfg.Store.Driver)
	}
}
