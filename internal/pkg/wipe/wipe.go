// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package wipe clears previous storage state from the installation target.
package wipe

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/siderolabs/go-blockdevice/v2/block"
	"golang.org/x/sys/unix"

	"github.com/provolabs/goldclone/internal/pkg/lvm"
	"github.com/provolabs/goldclone/pkg/constants"
)

// Operations are the external actions the wipe performs.
type Operations struct {
	UnmountUsers func() error
	ListVGs      func(ctx context.Context) ([]string, error)
	DeactivateVG func(ctx context.Context, vgName string) error
	RescanPVs    func(ctx context.Context) error
	WipeDevice   func() error
}

// Option configures the wipe.
type Option func(*Operations)

// WithOperations overrides the wipe actions.
func WithOperations(ops Operations) Option {
	return func(o *Operations) {
		*o = ops
	}
}

// Target idempotently removes all prior volume manager, filesystem and
// partition table state from the device.
//
// Cleanup of things which may not exist (mounts, volume groups) is
// best-effort; only the signature wipe itself is fatal.
func Target(ctx context.Context, bd *block.Device, devPath string, printf func(string, ...any), setters ...Option) error {
	ops := Operations{
		UnmountUsers: func() error { return unmountUsers(devPath, "/proc/mounts", printf) },
		ListVGs:      lvm.ListVGs,
		DeactivateVG: lvm.DeactivateVG,
		RescanPVs:    lvm.RescanPVs,
		WipeDevice:   func() error { return bd.FastWipe() },
	}

	for _, s := range setters {
		s(&ops)
	}

	if err := ops.UnmountUsers(); err != nil {
		printf("warning: failed to unmount users of %s: %s", devPath, err)
	}

	// the live environment probes disks on boot, so the image's volume group
	// may already be active under the same name the clone will bring in
	vgNames, err := ops.ListVGs(ctx)
	if err != nil {
		printf("warning: %s", err)
	}

	if slices.Contains(vgNames, constants.VolumeGroupName) {
		printf("deactivating volume group %s", constants.VolumeGroupName)

		if err := ops.DeactivateVG(ctx, constants.VolumeGroupName); err != nil {
			printf("warning: %s", err)
		}
	} else {
		printf("no volume group to deactivate on %s", devPath)
	}

	if err := ops.RescanPVs(ctx); err != nil {
		printf("warning: %s", err)
	}

	printf("wiping signatures on %s", devPath)

	if err := ops.WipeDevice(); err != nil {
		return fmt.Errorf("failed to wipe %s: %w", devPath, err)
	}

	return nil
}

// unmountUsers lazily unmounts every mount backed by the device or by a
// logical volume layered on top of it.
func unmountUsers(devPath, mountsPath string, printf func(string, ...any)) error {
	contents, err := os.ReadFile(mountsPath)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(bytes.NewReader(contents))

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())

		if len(fields) < 2 {
			continue
		}

		source, target := fields[0], fields[1]

		if !backedBy(source, devPath) {
			continue
		}

		printf("unmounting %s from %s", source, target)

		if err := unix.Unmount(target, unix.MNT_DETACH); err != nil {
			printf("warning: failed to unmount %s: %s", target, err)
		}
	}

	return nil
}

// backedBy reports whether the mount source is the device itself, one of its
// partitions, or a logical volume of the image's volume group.
//
// Partition matching is exact: /dev/sda must not capture /dev/sdaa.
func backedBy(source, devPath string) bool {
	if source == devPath || strings.HasPrefix(source, "/dev/mapper/"+constants.VolumeGroupName+"-") {
		return true
	}

	suffix, ok := strings.CutPrefix(source, devPath)
	if !ok || suffix == "" {
		return false
	}

	// partition suffix: plain digits (sda1), with a "p" separator when the
	// disk name itself ends in a digit (nvme0n1p3)
	if last := devPath[len(devPath)-1]; last >= '0' && last <= '9' {
		if suffix, ok = strings.CutPrefix(suffix, "p"); !ok || suffix == "" {
			return false
		}
	}

	for _, c := range suffix {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
