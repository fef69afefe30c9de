// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/siderolabs/go-blockdevice/v2/block"
	"github.com/siderolabs/go-blockdevice/v2/partitioning"

	"github.com/provolabs/goldclone/internal/pkg/blockdev"
	"github.com/provolabs/goldclone/internal/pkg/bootfix"
	"github.com/provolabs/goldclone/internal/pkg/finalize"
	"github.com/provolabs/goldclone/internal/pkg/identity"
	"github.com/provolabs/goldclone/internal/pkg/imgclone"
	"github.com/provolabs/goldclone/internal/pkg/mount"
	"github.com/provolabs/goldclone/internal/pkg/netcfg"
	"github.com/provolabs/goldclone/internal/pkg/partition"
	"github.com/provolabs/goldclone/internal/pkg/wipe"
	"github.com/provolabs/goldclone/pkg/constants"
)

// steps is the installation pipeline.
//
// Everything up to and including finalize is fatal except the bootloader
// repair: a machine with a grown, identified filesystem is still recoverable
// by hand when grub misbehaves, while aborting there would leave it
// unbootable for certain.
func steps(opts Options) []Step {
	return []Step{
		{"select target disk", PolicyFatal, selectDisk(opts)},
		{"wipe target disk", PolicyFatal, wipeDisk(opts)},
		{"clone golden image", PolicyFatal, cloneImage(opts)},
		{"activate logical volumes", PolicyRetryable, activateVolumes(opts)},
		{"grow partitions and filesystems", PolicyFatal, fixPartitions(opts)},
		{"regenerate filesystem identity", PolicyFatal, regenerateIdentity(opts)},
		{"mount target filesystems", PolicyFatal, mountTarget(opts)},
		{"configure first-boot network", PolicyFatal, configureNetwork(opts)},
		{"fix bootloader", PolicyBestEffort, fixBootloader(opts)},
		{"finalize", PolicyFatal, finalizeTarget(opts)},
	}
}

func selectDisk(opts Options) func(context.Context, *State) error {
	return func(_ context.Context, state *State) error {
		disks, err := blockdev.List()
		if err != nil {
			return err
		}

		bootDisk, err := blockdev.BootDisk()
		if err != nil {
			return err
		}

		var disk blockdev.Disk

		if opts.DiskPath != "" {
			disk, err = findDisk(disks, opts.DiskPath, bootDisk)
		} else {
			disk, err = blockdev.Select(disks, bootDisk, opts.Unattended)
		}

		if err != nil {
			return err
		}

		opts.Printf("selected %s (%s, %s)", disk.Path, disk.Name, humanize.IBytes(disk.Size))

		if !opts.Unattended && opts.Confirm != nil {
			ok, err := opts.Confirm(disk)
			if err != nil {
				return err
			}

			if !ok {
				return ErrAborted
			}
		}

		bd, err := block.NewFromPath(disk.Path, block.OpenForWrite())
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", disk.Path, err)
		}

		if err = bd.Lock(true); err != nil {
			bd.Close() //nolint:errcheck

			return fmt.Errorf("failed to lock %s: %w", disk.Path, err)
		}

		state.Disk = disk
		state.Device = bd

		return nil
	}
}

// findDisk resolves an operator-supplied disk path against the enumerated
// disks. The boot medium is refused even when named explicitly.
func findDisk(disks []blockdev.Disk, diskPath, bootDisk string) (blockdev.Disk, error) {
	if diskPath == bootDisk {
		return blockdev.Disk{}, fmt.Errorf("%s is the boot medium", diskPath)
	}

	for _, disk := range disks {
		if disk.Path == diskPath {
			return disk, nil
		}
	}

	return blockdev.Disk{}, fmt.Errorf("disk %s not found", diskPath)
}

func wipeDisk(opts Options) func(context.Context, *State) error {
	return func(ctx context.Context, state *State) error {
		return wipe.Target(ctx, state.Device, state.Disk.Path, opts.Printf)
	}
}

func cloneImage(opts Options) func(context.Context, *State) error {
	return func(_ context.Context, state *State) error {
		return imgclone.Clone(state.Device, opts.ImagePath, opts.Printf)
	}
}

func activateVolumes(opts Options) func(context.Context, *State) error {
	return func(ctx context.Context, state *State) error {
		return imgclone.ActivateVolumes(ctx, state.Disk.Path, opts.Printf)
	}
}

func fixPartitions(opts Options) func(context.Context, *State) error {
	return func(ctx context.Context, state *State) error {
		return partition.NewFixer(state.Device, state.Disk.Path, opts.Printf).Run(ctx)
	}
}

func regenerateIdentity(opts Options) func(context.Context, *State) error {
	return func(_ context.Context, state *State) error {
		id, err := identity.Regenerate(state.Disk.Path, opts.Printf)
		if err != nil {
			return err
		}

		state.Identity = id

		return nil
	}
}

func mountTarget(opts Options) func(context.Context, *State) error {
	return func(_ context.Context, state *State) error {
		points := mount.TargetPoints(
			constants.RootLVPath,
			partitioning.DevName(state.Disk.Path, constants.BootPartitionNum),
			partitioning.DevName(state.Disk.Path, constants.EFIPartitionNum),
			opts.MountPrefix,
		)

		unmounter, err := points.Mount()
		if err != nil {
			return fmt.Errorf("failed to mount target filesystems: %w", err)
		}

		state.unmounter = unmounter

		return identity.WriteFstab(opts.MountPrefix, state.Identity)
	}
}

func configureNetwork(opts Options) func(context.Context, *State) error {
	return func(context.Context, *State) error {
		return netcfg.Write(opts.MountPrefix, netcfg.Default())
	}
}

func fixBootloader(opts Options) func(context.Context, *State) error {
	return func(ctx context.Context, _ *State) error {
		return bootfix.Fix(ctx, bootfix.Options{
			RootPrefix: opts.MountPrefix,
			Printf:     opts.Printf,
		})
	}
}

func finalizeTarget(opts Options) func(context.Context, *State) error {
	return func(context.Context, *State) error {
		return finalize.Run(finalize.Options{
			RootPrefix:       opts.MountPrefix,
			Hostname:         opts.Hostname,
			Unattended:       opts.Unattended,
			HelperScriptPath: opts.HelperScriptPath,
			Ask:              opts.AskHostname,
			Printf:           opts.Printf,
		})
	}
}
