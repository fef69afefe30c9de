// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package lvm is the single adapter around the lvm command line tooling.
//
// All volume manager interaction goes through here so that a change in lvm's
// interface has exactly one place to land.
package lvm

import (
	"context"
	"fmt"
	"strings"

	"github.com/siderolabs/go-cmd/pkg/cmd"
)

// Binary is the lvm multi-call binary; live environments do not always have
// it on PATH, so it is invoked by absolute path.
const Binary = "/sbin/lvm"

// ActivateVG activates all logical volumes of the volume group.
func ActivateVG(ctx context.Context, vgName string) error {
	if _, err := cmd.RunContext(ctx, Binary, "vgchange", "-aay", vgName); err != nil {
		return fmt.Errorf("failed to activate volume group %s: %w", vgName, err)
	}

	return nil
}

// DeactivateVG deactivates all logical volumes of the volume group.
func DeactivateVG(ctx context.Context, vgName string) error {
	if _, err := cmd.RunContext(ctx, Binary, "vgchange", "-an", vgName); err != nil {
		return fmt.Errorf("failed to deactivate volume group %s: %w", vgName, err)
	}

	return nil
}

// PVResize informs the volume manager that the physical volume has grown.
func PVResize(ctx context.Context, pvDev string) error {
	if _, err := cmd.RunContext(ctx, Binary, "pvresize", pvDev); err != nil {
		return fmt.Errorf("failed to resize physical volume %s: %w", pvDev, err)
	}

	return nil
}

// ExtendLV grows the logical volume to consume all free extents of its volume group.
func ExtendLV(ctx context.Context, lvPath string) error {
	if _, err := cmd.RunContext(ctx, Binary, "lvextend", "-l", "+100%FREE", lvPath); err != nil {
		return fmt.Errorf("failed to extend logical volume %s: %w", lvPath, err)
	}

	return nil
}

// RescanPVs refreshes the lvm device cache after partition table changes.
func RescanPVs(ctx context.Context) error {
	if _, err := cmd.RunContext(ctx, Binary, "pvscan", "--cache"); err != nil {
		return fmt.Errorf("failed to rescan physical volumes: %w", err)
	}

	return nil
}

// ListVGs returns the names of all known volume groups.
func ListVGs(ctx context.Context) ([]string, error) {
	stdout, err := cmd.RunContext(ctx, Binary, "vgs", "--noheadings", "-o", "vg_name")
	if err != nil {
		return nil, fmt.Errorf("failed to list volume groups: %w", err)
	}

	return parseVGNames(stdout), nil
}

func parseVGNames(stdout string) []string {
	var names []string

	for _, line := range strings.Split(stdout, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}

	return names
}
