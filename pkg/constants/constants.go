// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package constants defines the fixed layout of a golden-image installation.
package constants

const (
	// KernelParamAuto is the kernel command line token which selects unattended mode.
	KernelParamAuto = "goldclone.auto"

	// KernelParamDisk presets the target disk on the kernel command line.
	KernelParamDisk = "goldclone.disk"

	// KernelParamHostname presets the hostname on the kernel command line.
	KernelParamHostname = "goldclone.hostname"
)

// Partition layout of the golden image: EFI, boot, LVM physical volume.
const (
	// EFIPartitionLabel is the GPT label of the EFI system partition.
	EFIPartitionLabel = "EFI"

	// BootPartitionLabel is the GPT label of the boot partition.
	BootPartitionLabel = "BOOT"

	// PVPartitionLabel is the GPT label of the LVM physical volume partition.
	PVPartitionLabel = "LVM"

	// EFIPartitionNum is the 1-based index of the EFI system partition.
	EFIPartitionNum = 1

	// BootPartitionNum is the 1-based index of the boot partition.
	BootPartitionNum = 2

	// PVPartitionNum is the 1-based index of the LVM physical volume partition.
	//
	// This is the last partition on the disk; the partition fixer grows it
	// to the last usable sector.
	PVPartitionNum = 3

	// MiB is a mebibyte.
	MiB = 1024 * 1024

	// EFISize is the fixed size of the EFI system partition.
	EFISize = 512 * MiB

	// BootSize is the fixed size of the boot partition.
	BootSize = 1024 * MiB
)

// GPT partition type GUIDs.
const (
	// EFISystemPartitionType is the GPT type of the EFI system partition.
	EFISystemPartitionType = "C12A7328-F81F-11D2-BA4B-00A0C93EC93B"

	// LinuxFilesystemDataType is the GPT type of a plain Linux filesystem partition.
	LinuxFilesystemDataType = "0FC63DAF-8483-4772-8E79-3D69D8477DE4"

	// LinuxLVMType is the GPT type of an LVM physical volume partition.
	LinuxLVMType = "E6D6D379-F507-44C2-A23C-238F2A3DF928"
)

// LVM layout embedded in the golden image.
const (
	// VolumeGroupName is the volume group cloned from the golden image.
	VolumeGroupName = "system"

	// LogicalVolumeName is the root logical volume inside VolumeGroupName.
	LogicalVolumeName = "root"

	// RootLVPath is the activated root logical volume device path.
	RootLVPath = "/dev/" + VolumeGroupName + "/" + LogicalVolumeName

	// RootMapperPath is the device-mapper path of the root logical volume,
	// as referenced by the installed system's mount table.
	RootMapperPath = "/dev/mapper/" + VolumeGroupName + "-" + LogicalVolumeName
)

// Mount points used while operating on the target root.
const (
	// TargetMountPoint is where the target root filesystem is mounted.
	TargetMountPoint = "/mnt/goldclone"

	// BootMountSubdir is the boot mount point relative to the target root.
	BootMountSubdir = "/boot"

	// EFIMountSubdir is the EFI mount point relative to the target root.
	EFIMountSubdir = "/boot/efi"
)

// Installation media defaults.
const (
	// DefaultImagePath is where the installer media carries the compressed golden image.
	DefaultImagePath = "/cdrom/golden.img.gz"

	// DefaultHelperScriptPath is where the installer media carries the optional
	// post-install helper script.
	DefaultHelperScriptPath = "/cdrom/post-install.sh"

	// DefaultUserName is the default user baked into the golden image.
	DefaultUserName = "ubuntu"

	// DefaultUserUID is the uid of DefaultUserName.
	DefaultUserUID = 1000

	// DefaultUserGID is the gid of DefaultUserName.
	DefaultUserGID = 1000
)
