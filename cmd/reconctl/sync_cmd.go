// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/datawire/dlib/dlog"
	"github.com/spf13/cobra"
)

// newSyncCmd implements the `sync` subcommand: re-walk the configured
// devices' chunk trees into an existing record store, relying on the
// Address Dedup Hook (via stageOne/runSync) to reconcile re-discovered
// structures against what's already there instead of duplicating rows.
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Re-walk the configured devices' chunk trees into an existing record store",
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
				return fmt.Errorf("reconctl: sync: %w", err)
			}
			dlog.Infof(ctx, "sync: visited %d nodes, found %d chunks, skipped %d",
				result.NodesVisited, result.ChunksFound, result.SkippedCount)
			return nil
		},
	}
}
