// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package blockdev provides enumeration and selection of installation target disks.
package blockdev

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/siderolabs/go-retry/retry"
	"golang.org/x/sys/unix"
)

// Disk describes a disk-class block device.
type Disk struct {
	// Name is the kernel device name, e.g. "sda".
	Name string

	// Path is the device node path, e.g. "/dev/sda".
	Path string

	// Size is the device size in bytes.
	Size uint64

	// Transport is the bus the device is attached over; only "usb" is
	// distinguished, all other transports are reported as "".
	Transport string

	// Removable is set for removable-media devices.
	Removable bool

	// ReadOnly is set for read-only devices.
	ReadOnly bool
}

const sysBlockPath = "/sys/block"

// sysfs size is always reported in 512-byte units.
const sysfsSectorSize = 512

// List enumerates disk-class block devices from sysfs.
//
// Virtual devices (loop, ram, device-mapper) and optical drives are not
// disk-class and are never returned.
func List() ([]Disk, error) {
	entries, err := os.ReadDir(sysBlockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate block devices: %w", err)
	}

	var disks []Disk

	for _, entry := range entries {
		name := entry.Name()

		if strings.HasPrefix(name, "sr") || strings.HasPrefix(name, "fd") {
			continue
		}

		devicePath, err := filepath.EvalSymlinks(filepath.Join(sysBlockPath, name))
		if err != nil {
			continue
		}

		if strings.Contains(devicePath, "/devices/virtual/") {
			continue
		}

		size, err := readSysfsInt(filepath.Join(sysBlockPath, name, "size"))
		if err != nil || size == 0 {
			continue
		}

		removable, _ := readSysfsInt(filepath.Join(sysBlockPath, name, "removable")) //nolint:errcheck
		readOnly, _ := readSysfsInt(filepath.Join(sysBlockPath, name, "ro"))         //nolint:errcheck

		transport := ""
		if strings.Contains(devicePath, "/usb") {
			transport = "usb"
		}

		disks = append(disks, Disk{
			Name:      name,
			Path:      filepath.Join("/dev", name),
			Size:      uint64(size) * sysfsSectorSize,
			Transport: transport,
			Removable: removable != 0,
			ReadOnly:  readOnly != 0,
		})
	}

	return disks, nil
}

// liveMediumMounts are the mount points the live environment uses for its own medium.
var liveMediumMounts = []string{
	"/cdrom",
	"/run/live/medium",
	"/run/initramfs/live",
}

// BootDisk returns the path of the disk backing the live/boot medium.
//
// An empty string is returned when the live medium is not disk-backed
// (e.g. a netbooted environment).
func BootDisk() (string, error) {
	return bootDiskFromMounts("/proc/mounts")
}

func bootDiskFromMounts(mountsPath string) (string, error) {
	contents, err := os.ReadFile(mountsPath)
	if err != nil {
		return "", fmt.Errorf("failed to read mount table: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(contents))

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())

		if len(fields) < 2 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}

		for _, mountPoint := range liveMediumMounts {
			if fields[1] == mountPoint {
				return ParentDisk(fields[0])
			}
		}
	}

	return "", nil
}

// ParentDisk resolves a partition device path to its parent disk path.
//
// A whole-disk path is returned unchanged.
func ParentDisk(devPath string) (string, error) {
	name := filepath.Base(devPath)

	if _, err := os.Stat(filepath.Join("/sys/class/block", name, "partition")); err != nil {
		return devPath, nil
	}

	resolved, err := filepath.EvalSymlinks(filepath.Join("/sys/class/block", name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve parent disk of %s: %w", devPath, err)
	}

	return filepath.Join("/dev", filepath.Base(filepath.Dir(resolved))), nil
}

// RereadPartitionTable asks the kernel to re-read the partition table of the device.
func RereadPartitionTable(f *os.File) error {
	if _, err := unix.IoctlRetInt(int(f.Fd()), unix.BLKRRPART); err != nil {
		return fmt.Errorf("failed to re-read partition table: %w", err)
	}

	return nil
}

// FlushBuffers flushes the kernel buffer cache for the device.
func FlushBuffers(devPath string) error {
	f, err := os.OpenFile(devPath, os.O_RDONLY, 0)
	if err != nil {
		return err
	}

	defer f.Close() //nolint:errcheck

	if _, err := unix.IoctlRetInt(int(f.Fd()), unix.BLKFLSBUF); err != nil {
		return fmt.Errorf("failed to flush buffers of %s: %w", devPath, err)
	}

	return nil
}

// WaitForDevice waits for a device node to appear, polling instead of a fixed
// settle delay.
func WaitForDevice(ctx context.Context, devPath string, timeout time.Duration) error {
	return retry.Constant(timeout, retry.WithUnits(250*time.Millisecond)).RetryWithContext(ctx,
		func(context.Context) error {
			if _, err := os.Stat(devPath); err != nil {
				return retry.ExpectedError(err)
			}

			return nil
		})
}

func readSysfsInt(path string) (int64, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	return strconv.ParseInt(strings.TrimSpace(string(contents)), 10, 64)
}
