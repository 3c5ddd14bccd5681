// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package btrfsprim

import (
	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/internal"
)

type (
	Generation = internal.Generation
	Time       = internal.Time
)
