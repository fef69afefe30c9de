// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package install orchestrates cloning the golden image onto a target disk.
package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"

	"github.com/siderolabs/go-blockdevice/v2/block"

	"github.com/provolabs/goldclone/internal/pkg/blockdev"
	"github.com/provolabs/goldclone/internal/pkg/identity"
	"github.com/provolabs/goldclone/internal/pkg/lvm"
	"github.com/provolabs/goldclone/pkg/constants"
)

// ErrAborted is returned when the operator declines the confirmation prompt.
var ErrAborted = errors.New("installation aborted by operator")

// Options configure a full installation run.
type Options struct {
	// DiskPath overrides automatic target selection when non-empty.
	DiskPath string

	// ImagePath is the compressed golden image.
	ImagePath string

	// HelperScriptPath is the optional post-install helper on the medium.
	HelperScriptPath string

	// Hostname overrides hostname generation when non-empty.
	Hostname string

	// Unattended disables all interactive prompts.
	Unattended bool

	// MountPrefix is where the target root is mounted during installation.
	MountPrefix string

	// Confirm gates the destructive part of the installation in attended mode.
	Confirm func(disk blockdev.Disk) (bool, error)

	// AskHostname prompts for a hostname in attended mode.
	AskHostname func() (string, error)

	Printf func(string, ...any)
}

// State is threaded through the pipeline steps.
type State struct {
	// Disk is the selected installation target.
	Disk blockdev.Disk

	// Device is the opened and locked target device.
	Device *block.Device

	// Identity holds the regenerated filesystem identifiers.
	Identity *identity.Identity

	// unmounter tears down the target filesystem mounts.
	unmounter func() error
}

// Install runs the full installation pipeline against the options.
func Install(ctx context.Context, opts Options) error {
	opts = withDefaults(opts)

	if err := preflight(opts); err != nil {
		return fmt.Errorf("preflight check failed: %w", err)
	}

	state := &State{}

	defer cleanup(state, opts.Printf)

	pipeline := &Pipeline{
		Steps:  steps(opts),
		Printf: opts.Printf,
	}

	if err := pipeline.Run(ctx, state); err != nil {
		return err
	}

	opts.Printf("installation of %s complete", state.Disk.Path)

	return nil
}

func withDefaults(opts Options) Options {
	if opts.ImagePath == "" {
		opts.ImagePath = constants.DefaultImagePath
	}

	if opts.HelperScriptPath == "" {
		opts.HelperScriptPath = constants.DefaultHelperScriptPath
	}

	if opts.MountPrefix == "" {
		opts.MountPrefix = constants.TargetMountPoint
	}

	if opts.Printf == nil {
		opts.Printf = log.Printf
	}

	return opts
}

// requiredTools must be on PATH; the pipeline shells out to them.
var requiredTools = []string{
	"chroot",
	"e2fsck",
	"fsck.vfat",
	"resize2fs",
	"tune2fs",
}

// preflight verifies the environment before any destructive action.
func preflight(opts Options) error {
	if os.Geteuid() != 0 {
		return errors.New("must run as root")
	}

	for _, tool := range requiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("required tool %q not found: %w", tool, err)
		}
	}

	if _, err := os.Stat(lvm.Binary); err != nil {
		return fmt.Errorf("volume manager not found: %w", err)
	}

	return checkImage(opts.ImagePath)
}

// checkImage verifies the golden image exists and carries the gzip magic, so
// a truncated or misplaced image is caught before the target disk is wiped.
func checkImage(imagePath string) error {
	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("golden image not readable: %w", err)
	}

	defer f.Close() //nolint:errcheck

	magic := make([]byte, 2)

	if _, err = io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("golden image not readable: %w", err)
	}

	if magic[0] != 0x1f || magic[1] != 0x8b {
		return fmt.Errorf("golden image %s is not gzip-compressed", imagePath)
	}

	return nil
}

// cleanup releases whatever the pipeline acquired, in reverse order.
func cleanup(state *State, printf func(string, ...any)) {
	if state.unmounter != nil {
		if err := state.unmounter(); err != nil {
			printf("warning: failed to unmount target filesystems: %s", err)
		}
	}

	if state.Device != nil {
		if err := state.Device.Unlock(); err != nil {
			printf("warning: failed to unlock %s: %s", state.Disk.Path, err)
		}

		if err := state.Device.Close(); err != nil {
			printf("warning: failed to close %s: %s", state.Disk.Path, err)
		}
	}
}
