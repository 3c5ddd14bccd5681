// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfstree"
)

// newListSuperblocksCmd implements the §6 `list-superblocks`
// subcommand: open every configured device and print each surviving
// superblock copy's identity, without touching a record store.
func newListSuperblocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-superblocks",
		Short: "Print every surviving superblock copy of each configured device",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			for _, dc := range cfg.Devices {
				r, err := openDevice(dc)
				if err != nil {
					return err
				}
				sbs, err := btrfstree.ReadSuperblocks(r)
				r.Close()
				if err != nil {
					return err
				}
				for i, sb := range sbs {
					magicErr := sb.ValidateMagic()
					checksumErr := sb.ValidateChecksum()
					status := "ok"
					switch {
					case magicErr != nil:
						status = "bad magic"
					case checksumErr != nil:
						status = "checksum mismatch"
					}
					fmt.Fprintf(cmd.OutOrStdout(),
						"%s: copy %d @ %#x: fsid=%s generation=%d root=%d chunk_root=%d label=%q (%s)\n",
						dc.Path, i, sb.Self, sb.FSUUID, sb.Generation, sb.RootTree, sb.ChunkTree, cstringTrim(sb.Label[:]), status)
				}
			}
			return nil
		},
	}
}

// cstringTrim trims a fixed-width NUL-padded byte array down to its
// NUL-terminated prefix, for printing Label fields.
func cstringTrim(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
