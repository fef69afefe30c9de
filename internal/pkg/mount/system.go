// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mount

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/provolabs/goldclone/pkg/constants"
	"github.com/provolabs/goldclone/pkg/makefs"
)

// TargetPoints returns the target system's filesystem mount points in
// mounting order: root, boot, EFI.
func TargetPoints(rootDev, bootDev, efiDev, prefix string) Points {
	return Points{
		NewPoint(rootDev, prefix, makefs.FilesystemTypeEXT4, 0, ""),
		NewPoint(bootDev, filepath.Join(prefix, constants.BootMountSubdir), makefs.FilesystemTypeEXT4, 0, ""),
		NewPoint(efiDev, filepath.Join(prefix, constants.EFIMountSubdir), makefs.FilesystemTypeVFAT, 0, ""),
	}
}

const efiVarsPath = "/sys/firmware/efi/efivars"

// BindPoints returns the kernel interface mounts required to operate inside
// the target root: device nodes, process info, sysfs, EFI variables and
// runtime state.
func BindPoints(prefix string) Points {
	points := Points{
		NewPoint("/dev", filepath.Join(prefix, "dev"), "", unix.MS_BIND|unix.MS_REC, ""),
		NewPoint("proc", filepath.Join(prefix, "proc"), "proc", 0, ""),
		NewPoint("sysfs", filepath.Join(prefix, "sys"), "sysfs", 0, ""),
		NewPoint("/run", filepath.Join(prefix, "run"), "", unix.MS_BIND, ""),
	}

	// efivars is only present when booted via UEFI firmware
	if _, err := os.Stat(efiVarsPath); err == nil {
		points = append(points,
			NewPoint("efivarfs", filepath.Join(prefix, efiVarsPath), "efivarfs", 0, ""),
		)
	}

	return points
}
