// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package makefs

import "github.com/siderolabs/go-cmd/pkg/cmd"

const (
	// FilesystemTypeVFAT is the filesystem type for VFAT.
	FilesystemTypeVFAT = "vfat"
)

// VFATCheck checks a VFAT filesystem and automatically repairs what it can.
func VFATCheck(partname string) error {
	_, err := cmd.Run("fsck.vfat", "-a", partname)

	return err
}
