// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package devreader

import (
	"fmt"

	"git.lukeshu.com/go/typedsync"
	"github.com/juju/fslock"

	"github.com/yakfsrecon/btrfs-forensic/lib/btrfs/btrfsvol"
)

// Registry is a concurrency-safe dev_id -> Reader map, shared
// read-only across scanner workers: each worker looks up the device
// it was assigned and issues its own independent ReadAt calls
// against the shared Reader, without any of them needing to take
// turns on a single seek cursor.
type Registry struct {
	byID typedsync.Map[btrfsvol.DeviceID, Reader]
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (reg *Registry) Add(id btrfsvol.DeviceID, r Reader) error {
	if _, loaded := reg.byID.LoadOrStore(id, r); loaded {
		return fmt.Errorf("devreader: device id %v already registered", id)
	}
	return nil
}

func (reg *Registry) Get(id btrfsvol.DeviceID) (Reader, bool) {
	return reg.byID.Load(id)
}

func (reg *Registry) CloseAll() error {
	var firstErr error
	reg.byID.Range(func(_ btrfsvol.DeviceID, r Reader) bool {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// Lock is an advisory, whole-image lock, held as a lock file named
// path+".lock" beside the image. LockImage takes it without blocking:
// it fails if another holder already has the lock. It does not look
// at the backend: path is always taken as a local file path.
type Lock struct {
	inner *fslock.Lock
}

func LockImage(path string) (*Lock, error) {
	l := fslock.New(path + ".lock")
	if err := l.TryLock(); err != nil {
		return nil, fmt.Errorf("devreader: lock %q: %w", path, err)
	}
	return &Lock{inner: l}, nil
}

func (l *Lock) Unlock() error {
	if l == nil || l.inner == nil {
		return nil
	}
	return l.inner.Unlock()
}
