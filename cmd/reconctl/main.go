// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Command reconctl is the thin CLI surface over the forensic
// reconstructor: list-superblocks, create, sync, scan, reparse, dump,
// and load, wired the way the teacher wires btrfs-rec's subcommands --
// persistent flags on a cobra root, a logrus logger threaded through
// the command's context via dlog, and a dgroup.Group for signal
// handling around the actual work.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// exitFsidMismatch is the CLI surface's dedicated exit code for a
// multi-image join whose superblocks disagree about which filesystem
// they belong to.
const exitFsidMismatch = 2

type logLevelFlag struct {
	logrus.Level
}

func (f *logLevelFlag) Type() string { return "loglevel" }
func (f *logLevelFlag) Set(s string) error {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return err
	}
	f.Level = lvl
	return nil
}

var _ pflag.Value = (*logLevelFlag)(nil)

var (
	configPath string
	osReadOnly = os.O_RDONLY
	s3Region   = "us-east-1"
)

func main() {
	logLvl := logLevelFlag{Level: logrus.InfoLevel}

	root := &cobra.Command{
		Use:           "reconctl {[flags]|SUBCOMMAND}",
		Short:         "Forensically reconstruct a damaged btrfs filesystem's metadata into a record store",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().Var(&logLvl, "verbosity", "set the log verbosity (trace|debug|info|warn|error)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file naming the device images and store")
	root.PersistentFlags().StringVar(&s3Region, "s3-region", s3Region, "AWS region for devices with backend=\"s3\"")

	root.AddCommand(
		newListSuperblocksCmd(),
		newCreateCmd(),
		newSyncCmd(),
		newScanCmd(),
		newReparseCmd(),
		newDumpCmd(),
		newLoadCmd(),
	)

	for _, cmd := range root.Commands() {
		runE := cmd.RunE
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			logger := logrus.New()
			logger.SetLevel(logLvl.Level)
			ctx := dlog.WithLogger(cmd.Context(), dlog.WrapLogrus(logger))

			grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{EnableSignalHandling: true})
			grp.Go("main", func(ctx context.Context) error {
				cmd.SetContext(ctx)
				return runE(cmd, args)
			})
			return grp.Wait()
		}
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		code := 1
		var fsidErr *fsidMismatchError
		if errors.As(err, &fsidErr) {
			code = exitFsidMismatch
		}
		dlog.Errorf(context.Background(), "reconctl: %v", err)
		os.Exit(code)
	}
}
