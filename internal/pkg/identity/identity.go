// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package identity regenerates filesystem identifiers after cloning.
//
// Every installation is cloned from the same golden image, so boot and root
// must receive fresh UUIDs or identifiers collide across machines (and with
// the installer medium itself).
package identity

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/siderolabs/go-blockdevice/v2/blkid"
	"github.com/siderolabs/go-blockdevice/v2/partitioning"

	"github.com/provolabs/goldclone/internal/pkg/blockdev"
	"github.com/provolabs/goldclone/pkg/constants"
	"github.com/provolabs/goldclone/pkg/makefs"
)

// Identity holds the identifiers the installed system is mounted by, as read
// back from the devices.
type Identity struct {
	RootUUID    string
	BootUUID    string
	EFIPartUUID string
}

// Regenerate assigns fresh UUIDs to the boot and root filesystems and reads
// all identifiers back from the devices.
//
// The read-back values are authoritative: a tool silently rejecting or
// truncating an assigned value must not leak a stale identifier into the
// mount table, or the installed system will not boot.
//
// The EFI filesystem is vfat, whose volume serial is not a UUID and cannot be
// regenerated in place, so the installed system mounts it by the GPT
// partition UUID instead.
func Regenerate(disk string, printf func(string, ...any)) (*Identity, error) {
	bootDev := partitioning.DevName(disk, constants.BootPartitionNum)
	efiDev := partitioning.DevName(disk, constants.EFIPartitionNum)

	// root was already checked by the partition fixer
	if err := makefs.Ext4Repair(bootDev); err != nil {
		printf("warning: boot filesystem repair: %s", err)
	}

	if err := makefs.VFATCheck(efiDev); err != nil {
		printf("warning: EFI filesystem check: %s", err)
	}

	newBootUUID := uuid.New()
	newRootUUID := uuid.New()

	printf("assigning UUID %s to %s", newBootUUID, bootDev)

	if err := makefs.Ext4SetUUID(bootDev, newBootUUID); err != nil {
		return nil, err
	}

	printf("assigning UUID %s to %s", newRootUUID, constants.RootLVPath)

	if err := makefs.Ext4SetUUID(constants.RootLVPath, newRootUUID); err != nil {
		return nil, err
	}

	for _, dev := range []string{bootDev, constants.RootLVPath} {
		if err := blockdev.FlushBuffers(dev); err != nil {
			printf("warning: %s", err)
		}
	}

	id := &Identity{}

	for _, probe := range []struct {
		dev      string
		assigned uuid.UUID
		target   *string
	}{
		{bootDev, newBootUUID, &id.BootUUID},
		{constants.RootLVPath, newRootUUID, &id.RootUUID},
	} {
		probed, err := fsUUID(probe.dev)
		if err != nil {
			return nil, err
		}

		if probed != probe.assigned {
			printf("warning: %s reports UUID %s instead of assigned %s", probe.dev, probed, probe.assigned)
		}

		*probe.target = probed.String()
	}

	var err error

	if id.EFIPartUUID, err = efiPartitionUUID(disk); err != nil {
		return nil, err
	}

	return id, nil
}

// fsUUID probes the filesystem UUID of the device.
func fsUUID(dev string) (uuid.UUID, error) {
	info, err := blkid.ProbePath(dev, blkid.WithSkipLocking(true))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to probe %s: %w", dev, err)
	}

	if info.UUID == nil {
		return uuid.UUID{}, fmt.Errorf("no filesystem UUID on %s", dev)
	}

	return *info.UUID, nil
}

// efiPartitionUUID reads the EFI partition's GPT UUID from the disk's
// partition table.
func efiPartitionUUID(disk string) (string, error) {
	info, err := blkid.ProbePath(disk, blkid.WithSkipLocking(true))
	if err != nil {
		return "", fmt.Errorf("failed to probe %s: %w", disk, err)
	}

	for _, part := range info.Parts {
		if part.PartitionIndex == constants.EFIPartitionNum && part.PartitionUUID != nil {
			return part.PartitionUUID.String(), nil
		}
	}

	return "", fmt.Errorf("no EFI partition on %s", disk)
}
