// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"
)

// newCreateCmd implements the `create` subcommand: build a fresh
// record store (the store named by the config must not already have
// data in it, though nothing here enforces that beyond the Address
// Dedup Hook naturally no-oping on a re-run) and populate it from a
// superblock-and-chunk-tree walk of the configured devices.
func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Walk the configured devices' chunk trees into a new record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, closer, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			result, err := runSync(ctx, cfg, store)
			if err != nil {
				return fmt.Errorf("reconctl: create: %w", err)
			}
			dlog.Infof(ctx, "create: visited %d nodes, found %d chunks, skipped %d",
				result.NodesVisited, result.ChunksFound, result.SkippedCount)
			return nil
		},
	}
}
