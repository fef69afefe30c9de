// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package imgclone streams the compressed golden image onto the target disk.
package imgclone

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/siderolabs/go-blockdevice/v2/block"
	"github.com/siderolabs/go-blockdevice/v2/partitioning"

	"github.com/provolabs/goldclone/internal/pkg/blockdev"
	"github.com/provolabs/goldclone/internal/pkg/lvm"
	"github.com/provolabs/goldclone/pkg/constants"
)

// BufferSize is the copy block size; megabyte-scale keeps the raw device
// writes sequential and large.
const BufferSize = 4 * constants.MiB

// settleTimeout bounds how long we wait for the kernel to surface the cloned
// partitions and the reactivated logical volume.
const settleTimeout = time.Minute

// Clone decompresses the golden image sector-for-sector onto the locked
// target device and flushes it to stable storage.
//
// A failure mid-stream leaves the target in an indeterminate partial state;
// there is no transactional cloning.
func Clone(bd *block.Device, imagePath string, printf func(string, ...any)) error {
	written, err := writeImage(bd.File(), imagePath)
	if err != nil {
		return fmt.Errorf("failed to clone image to %s: %w", bd.File().Name(), err)
	}

	printf("wrote %s of raw image data", humanize.IBytes(uint64(written)))

	if err = bd.File().Sync(); err != nil {
		return fmt.Errorf("failed to sync cloned image: %w", err)
	}

	if err = blockdev.RereadPartitionTable(bd.File()); err != nil {
		return err
	}

	return nil
}

// ActivateVolumes re-activates the volume group embedded in the cloned image
// and waits for the root logical volume to appear.
func ActivateVolumes(ctx context.Context, devPath string, printf func(string, ...any)) error {
	pvDev := partitioning.DevName(devPath, constants.PVPartitionNum)

	if err := blockdev.WaitForDevice(ctx, pvDev, settleTimeout); err != nil {
		return fmt.Errorf("cloned partitions did not appear on %s: %w", devPath, err)
	}

	if err := lvm.RescanPVs(ctx); err != nil {
		return err
	}

	printf("activating volume group %s", constants.VolumeGroupName)

	if err := lvm.ActivateVG(ctx, constants.VolumeGroupName); err != nil {
		return err
	}

	if err := blockdev.WaitForDevice(ctx, constants.RootLVPath, settleTimeout); err != nil {
		return fmt.Errorf("root logical volume did not appear: %w", err)
	}

	return nil
}

func writeImage(dst *os.File, imagePath string) (int64, error) {
	src, err := os.Open(imagePath)
	if err != nil {
		return 0, err
	}

	defer src.Close() //nolint:errcheck

	gz, err := gzip.NewReader(bufio.NewReaderSize(src, BufferSize))
	if err != nil {
		return 0, fmt.Errorf("failed to open compressed image: %w", err)
	}

	defer gz.Close() //nolint:errcheck

	return io.CopyBuffer(dst, gz, make([]byte, BufferSize))
}
