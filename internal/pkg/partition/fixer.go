// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package partition grows the cloned partition layout to the full disk.
package partition

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siderolabs/go-blockdevice/v2/blkid"
	"github.com/siderolabs/go-blockdevice/v2/block"
	"github.com/siderolabs/go-blockdevice/v2/partitioning"
	"github.com/siderolabs/go-blockdevice/v2/partitioning/gpt"
	"github.com/siderolabs/go-pointer"

	"github.com/provolabs/goldclone/internal/pkg/blockdev"
	"github.com/provolabs/goldclone/internal/pkg/lvm"
	"github.com/provolabs/goldclone/pkg/constants"
	"github.com/provolabs/goldclone/pkg/makefs"
)

// Phase of the partition fix-up state machine.
type Phase int

// The machine advances strictly forward; filesystem and volume resizes
// must not run before the kernel sees the grown block device geometry.
const (
	PhaseCloned Phase = iota
	PhaseGPTExtended
	PhaseLastPartitionResized
	PhasePVResized
	PhaseLVExtended
	PhaseFSChecked
	PhaseFSResized
)

func (p Phase) String() string {
	switch p {
	case PhaseCloned:
		return "CLONED"
	case PhaseGPTExtended:
		return "GPT_EXTENDED"
	case PhaseLastPartitionResized:
		return "LAST_PARTITION_RESIZED"
	case PhasePVResized:
		return "PV_RESIZED"
	case PhaseLVExtended:
		return "LV_EXTENDED"
	case PhaseFSChecked:
		return "FS_CHECKED"
	case PhaseFSResized:
		return "FS_RESIZED"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Operations are the actions backing each transition of the machine.
type Operations struct {
	ExtendGPT           func(ctx context.Context) error
	ResizeLastPartition func(ctx context.Context) error
	ResizePV            func(ctx context.Context) error
	ExtendLV            func(ctx context.Context) error
	CheckFilesystem     func(ctx context.Context) error
	ResizeFilesystem    func(ctx context.Context) error
}

// Option configures the Fixer.
type Option func(*Fixer)

// WithOperations overrides the transition actions.
func WithOperations(ops Operations) Option {
	return func(f *Fixer) {
		f.ops = ops
	}
}

// Fixer drives the partition layout from its cloned geometry to the full
// size of the target disk.
type Fixer struct {
	bd     *block.Device
	disk   string
	printf func(string, ...any)
	ops    Operations
	phase  Phase
}

// NewFixer initializes a Fixer for the locked target device.
func NewFixer(bd *block.Device, disk string, printf func(string, ...any), setters ...Option) *Fixer {
	f := &Fixer{
		bd:     bd,
		disk:   disk,
		printf: printf,
		phase:  PhaseCloned,
	}

	f.ops = Operations{
		ExtendGPT:           f.extendGPT,
		ResizeLastPartition: f.resizeLastPartition,
		ResizePV:            f.resizePV,
		ExtendLV:            f.extendLV,
		CheckFilesystem:     f.checkFilesystem,
		ResizeFilesystem:    f.resizeFilesystem,
	}

	for _, s := range setters {
		s(f)
	}

	return f
}

// Phase returns the current phase of the machine.
func (f *Fixer) Phase() Phase {
	return f.phase
}

type transition struct {
	from, to   Phase
	name       string
	bestEffort bool
	run        func(ctx context.Context) error
}

func (f *Fixer) transitions() []transition {
	return []transition{
		{PhaseCloned, PhaseGPTExtended, "extend GPT to full disk", false, f.ops.ExtendGPT},
		{PhaseGPTExtended, PhaseLastPartitionResized, "grow last partition", false, f.ops.ResizeLastPartition},
		{PhaseLastPartitionResized, PhasePVResized, "resize physical volume", false, f.ops.ResizePV},
		{PhasePVResized, PhaseLVExtended, "extend logical volume", false, f.ops.ExtendLV},
		// the filesystem was cloned and its device resized underneath it, so
		// it must be checked before resize2fs touches it; repair problems are
		// logged but do not abort
		{PhaseLVExtended, PhaseFSChecked, "check root filesystem", true, f.ops.CheckFilesystem},
		{PhaseFSChecked, PhaseFSResized, "resize root filesystem", false, f.ops.ResizeFilesystem},
	}
}

// Run drives the machine to its terminal phase.
func (f *Fixer) Run(ctx context.Context) error {
	for _, t := range f.transitions() {
		if f.phase != t.from {
			return fmt.Errorf("unexpected phase %s before %q, expected %s", f.phase, t.name, t.from)
		}

		f.printf("%s: %s", f.phase, t.name)

		if err := t.run(ctx); err != nil {
			if !t.bestEffort {
				return fmt.Errorf("failed to %s: %w", t.name, err)
			}

			f.printf("warning: failed to %s (continuing): %s", t.name, err)
		}

		f.phase = t.to
	}

	return nil
}

// extendGPT rewrites the partition table so the secondary header and table
// sit at the true end of the disk instead of where the smaller golden image
// placed them.
func (f *Fixer) extendGPT(ctx context.Context) error {
	gptdev, err := gpt.DeviceFromBlockDevice(f.bd)
	if err != nil {
		return fmt.Errorf("error getting GPT device: %w", err)
	}

	pt, err := gpt.Read(gptdev)
	if err != nil {
		return fmt.Errorf("failed to read GPT: %w", err)
	}

	if err = pt.Write(); err != nil {
		return fmt.Errorf("failed to rewrite GPT: %w", err)
	}

	return f.settle(ctx)
}

// resizeLastPartition deletes and recreates the final partition at its
// original start sector with maximum size, preserving its type and label.
func (f *Fixer) resizeLastPartition(ctx context.Context) error {
	info, err := blkid.Probe(f.bd.File(), blkid.WithSkipLocking(true))
	if err != nil {
		return fmt.Errorf("failed to probe %s: %w", f.disk, err)
	}

	partitionType := uuid.MustParse(constants.LinuxLVMType)
	partitionLabel := constants.PVPartitionLabel

	for _, part := range info.Parts {
		if part.PartitionIndex != constants.PVPartitionNum {
			continue
		}

		if part.PartitionType != nil {
			partitionType = *part.PartitionType
		}

		if label := pointer.SafeDeref(part.PartitionLabel); label != "" {
			partitionLabel = label
		}
	}

	gptdev, err := gpt.DeviceFromBlockDevice(f.bd)
	if err != nil {
		return fmt.Errorf("error getting GPT device: %w", err)
	}

	pt, err := gpt.Read(gptdev)
	if err != nil {
		return fmt.Errorf("failed to read GPT: %w", err)
	}

	if err = pt.DeletePartition(constants.PVPartitionNum - 1); err != nil {
		return fmt.Errorf("failed to delete last partition: %w", err)
	}

	// the largest free region starts at the deleted partition's start
	// sector, so the recreated partition keeps its start and gains the
	// tail of the disk
	size := pt.LargestContiguousAllocatable()

	if _, _, err = pt.AllocatePartition(size, partitionLabel, partitionType); err != nil {
		return fmt.Errorf("failed to allocate grown partition: %w", err)
	}

	if err = pt.Write(); err != nil {
		return fmt.Errorf("failed to write GPT: %w", err)
	}

	f.printf("grew partition %d to %d bytes", constants.PVPartitionNum, size)

	return f.settle(ctx)
}

func (f *Fixer) resizePV(ctx context.Context) error {
	if err := lvm.RescanPVs(ctx); err != nil {
		return err
	}

	return lvm.PVResize(ctx, partitioning.DevName(f.disk, constants.PVPartitionNum))
}

func (f *Fixer) extendLV(ctx context.Context) error {
	return lvm.ExtendLV(ctx, constants.RootLVPath)
}

func (f *Fixer) checkFilesystem(context.Context) error {
	return makefs.Ext4Repair(constants.RootLVPath)
}

func (f *Fixer) resizeFilesystem(context.Context) error {
	return makefs.Ext4Resize(constants.RootLVPath)
}

// settle waits for the kernel view of the partitions to catch up.
//
// The GPT library updates the kernel per-partition; a full BLKRRPART
// re-read would fail with EBUSY while the cloned volume group is active.
func (f *Fixer) settle(ctx context.Context) error {
	return blockdev.WaitForDevice(ctx, partitioning.DevName(f.disk, constants.PVPartitionNum), time.Minute)
}
