// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mount provides mount point management for the installer.
package mount

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Point represents a Linux mount point.
type Point struct {
	source string
	target string
	fstype string
	flags  uintptr
	data   string
}

// NewPoint initializes and returns a Point.
func NewPoint(source, target, fstype string, flags uintptr, data string) *Point {
	return &Point{
		source: source,
		target: target,
		fstype: fstype,
		flags:  flags,
		data:   data,
	}
}

// Source returns the mount point source.
func (p *Point) Source() string {
	return p.source
}

// Target returns the mount point target.
func (p *Point) Target() string {
	return p.target
}

const (
	retryInterval = 100 * time.Millisecond
	retryCount    = 50
)

// Mount creates the target directory and mounts, retrying on EBUSY.
func (p *Point) Mount() error {
	if err := os.MkdirAll(p.target, 0o755); err != nil {
		return fmt.Errorf("error creating mount point directory %s: %w", p.target, err)
	}

	var err error

	for range retryCount {
		err = unix.Mount(p.source, p.target, p.fstype, p.flags, p.data)
		if err != unix.EBUSY {
			break
		}

		time.Sleep(retryInterval)
	}

	if err != nil {
		return fmt.Errorf("error mounting %s to %s: %w", p.source, p.target, err)
	}

	return nil
}

// Unmount unmounts the target, retrying on EBUSY and falling back to a
// forced lazy unmount so lingering references can't hang the run.
func (p *Point) Unmount() error {
	var err error

	for range retryCount {
		err = unix.Unmount(p.target, 0)
		if err != unix.EBUSY {
			break
		}

		time.Sleep(retryInterval)
	}

	if err == nil || err == unix.EINVAL || os.IsNotExist(err) {
		// EINVAL: not mounted (anymore)
		return nil
	}

	if err = unix.Unmount(p.target, unix.MNT_FORCE|unix.MNT_DETACH); err != nil {
		return fmt.Errorf("error unmounting %s: %w", p.target, err)
	}

	return nil
}
