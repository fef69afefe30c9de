// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package bootfix repairs the bootloader of the freshly cloned system.
package bootfix

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/siderolabs/go-cmd/pkg/cmd"

	"github.com/provolabs/goldclone/internal/pkg/mount"
	"github.com/provolabs/goldclone/pkg/constants"
)

// livePackages only make sense on the installer medium and would interfere
// with a normal boot of the cloned system.
var livePackages = []string{
	"casper",
	"lupin-casper",
}

// liveUnits are service units of the live environment disabled on the target.
var liveUnits = []string{
	"live-config.service",
	"live-tools.service",
}

// Options configure the bootloader fix.
type Options struct {
	// RootPrefix is where the target root filesystem is mounted.
	RootPrefix string

	Printf func(string, ...any)
}

// Fix removes live-only packages, regenerates the initial RAM filesystem and
// reinstalls the boot manager, all within the target root.
//
// Sub-steps are attempted independently and their failures aggregated, so one
// missing package cannot abort the whole repair. The initramfs regeneration
// is still essential: it must pick up the regenerated filesystem identifiers
// or the kernel cannot locate the root filesystem at boot.
func Fix(ctx context.Context, opts Options) error {
	unmounter, err := mount.BindPoints(opts.RootPrefix).Mount()
	if err != nil {
		return fmt.Errorf("failed to bind-mount kernel interfaces: %w", err)
	}

	// reverse-order teardown, forced/lazy to avoid hangs on lingering references
	defer unmounter() //nolint:errcheck

	var result *multierror.Error

	result = multierror.Append(result, purgeLivePackages(ctx, opts))
	result = multierror.Append(result, disableLiveUnits(ctx, opts))
	result = multierror.Append(result, updateInitramfs(ctx, opts))
	result = multierror.Append(result, installGrub(ctx, opts))

	return result.ErrorOrNil()
}

func purgeLivePackages(ctx context.Context, opts Options) error {
	args := append([]string{"-y", "--allow-remove-essential", "purge"}, livePackages...)

	opts.Printf("purging live environment packages: %s", strings.Join(livePackages, " "))

	if err := runInRoot(ctx, opts.RootPrefix, "apt-get", args...); err != nil {
		return fmt.Errorf("failed to purge live packages: %w", err)
	}

	return nil
}

func disableLiveUnits(ctx context.Context, opts Options) error {
	var result *multierror.Error

	for _, unit := range liveUnits {
		opts.Printf("disabling %s", unit)

		if err := runInRoot(ctx, opts.RootPrefix, "systemctl", "disable", unit); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to disable %s: %w", unit, err))
		}
	}

	return result.ErrorOrNil()
}

func updateInitramfs(ctx context.Context, opts Options) error {
	opts.Printf("regenerating initial RAM filesystem")

	if err := runInRoot(ctx, opts.RootPrefix, "update-initramfs", "-u", "-k", "all"); err != nil {
		return fmt.Errorf("failed to regenerate initramfs: %w", err)
	}

	return nil
}

func installGrub(ctx context.Context, opts Options) error {
	args := []string{
		"--target=x86_64-efi",
		"--efi-directory=" + constants.EFIMountSubdir,
		"--boot-directory=" + constants.BootMountSubdir,
		"--removable",
	}

	opts.Printf("executing: grub-install %s", strings.Join(args, " "))

	if err := runInRoot(ctx, opts.RootPrefix, "grub-install", args...); err != nil {
		return fmt.Errorf("failed to install grub: %w", err)
	}

	if err := runInRoot(ctx, opts.RootPrefix, "update-grub"); err != nil {
		return fmt.Errorf("failed to update grub config: %w", err)
	}

	return nil
}

// runInRoot executes a command within the context of the target root.
func runInRoot(ctx context.Context, rootPrefix, name string, args ...string) error {
	chrootArgs := append([]string{rootPrefix, "env", "DEBIAN_FRONTEND=noninteractive", name}, args...)

	_, err := cmd.RunContext(ctx, "chroot", chrootArgs...)

	return err
}
