// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package makefs provides functions to check, relabel and grow filesystems.
package makefs

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/siderolabs/go-cmd/pkg/cmd"
)

const (
	// FilesystemTypeEXT4 is the filesystem type for EXT4.
	FilesystemTypeEXT4 = "ext4"
)

// Ext4Resize grows a ext4 filesystem to fill its backing device.
//
// The filesystem must have been checked beforehand: resize2fs refuses to
// operate on a filesystem with a dirty state.
func Ext4Resize(partname string) error {
	_, err := cmd.Run("resize2fs", partname)
	if err != nil {
		return fmt.Errorf("failed to grow ext4 filesystem: %w", err)
	}

	return nil
}

// Ext4Repair checks and repairs a ext4 filesystem in preen mode.
func Ext4Repair(partname string) error {
	_, err := cmd.Run("e2fsck", "-f", "-p", partname)
	if err != nil {
		return fmt.Errorf("failed to repair ext4 filesystem: %w", err)
	}

	return nil
}

// Ext4SetUUID assigns a new filesystem UUID to a ext4 filesystem.
func Ext4SetUUID(partname string, fsUUID uuid.UUID) error {
	_, err := cmd.Run("tune2fs", "-U", fsUUID.String(), partname)
	if err != nil {
		return fmt.Errorf("failed to set ext4 filesystem UUID: %w", err)
	}

	return nil
}
