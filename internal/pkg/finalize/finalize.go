// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package finalize stamps the cloned system with its own hostname and drops
// the optional post-install helper into the default user's home.
package finalize

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/provolabs/goldclone/pkg/constants"
)

// hostnamePattern accepts RFC 1123 labels (dots included for FQDNs).
var hostnamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]{0,61}[a-z0-9])?$`)

// Options configure the finalization of the installed system.
type Options struct {
	// RootPrefix is where the target root filesystem is mounted.
	RootPrefix string

	// Hostname overrides hostname generation when non-empty.
	Hostname string

	// Unattended suppresses the interactive hostname prompt.
	Unattended bool

	// HelperScriptPath is copied into the default user's home when it exists.
	HelperScriptPath string

	// Ask prompts the operator for a hostname in attended mode.
	Ask func() (string, error)

	Printf func(string, ...any)
}

// Run writes the hostname files and installs the helper script.
//
// The helper script is a convenience for the operator, so its absence or a
// failed copy never fails the installation.
func Run(opts Options) error {
	hostname, err := pickHostname(opts)
	if err != nil {
		return err
	}

	opts.Printf("setting hostname to %q", hostname)

	if err = writeHostname(opts.RootPrefix, hostname); err != nil {
		return err
	}

	if err = installHelperScript(opts.RootPrefix, opts.HelperScriptPath); err != nil {
		opts.Printf("warning: helper script not installed: %s", err)
	}

	return nil
}

// pickHostname resolves the hostname in priority order: explicit override,
// interactive prompt (attended mode), derived from the primary MAC address.
func pickHostname(opts Options) (string, error) {
	if opts.Hostname != "" {
		return validateHostname(opts.Hostname)
	}

	if !opts.Unattended && opts.Ask != nil {
		answer, err := opts.Ask()
		if err != nil {
			return "", fmt.Errorf("failed to read hostname: %w", err)
		}

		if answer = strings.TrimSpace(answer); answer != "" {
			return validateHostname(answer)
		}
	}

	hwAddr, err := primaryMAC()
	if err != nil {
		return "", err
	}

	return MACHostname(hwAddr), nil
}

func validateHostname(hostname string) (string, error) {
	hostname = strings.ToLower(hostname)

	if !hostnamePattern.MatchString(hostname) {
		return "", fmt.Errorf("invalid hostname %q", hostname)
	}

	return hostname, nil
}

// MACHostname derives a stable per-machine hostname from the trailing three
// octets of the hardware address.
func MACHostname(hwAddr net.HardwareAddr) string {
	tail := hwAddr
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}

	name := constants.DefaultUserName + "-"

	for _, b := range tail {
		name += fmt.Sprintf("%02x", b)
	}

	return name
}

// primaryMAC returns the hardware address of the first non-loopback interface.
func primaryMAC() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list network interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}

		return iface.HardwareAddr, nil
	}

	return nil, fmt.Errorf("no network interface with a hardware address")
}

func writeHostname(rootPrefix, hostname string) error {
	if err := os.WriteFile(filepath.Join(rootPrefix, "etc", "hostname"), []byte(hostname+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write hostname: %w", err)
	}

	hosts := fmt.Sprintf("127.0.0.1\tlocalhost\n127.0.1.1\t%s\n", hostname)

	if err := os.WriteFile(filepath.Join(rootPrefix, "etc", "hosts"), []byte(hosts), 0o644); err != nil {
		return fmt.Errorf("failed to write hosts: %w", err)
	}

	return nil
}

// installHelperScript copies the post-install helper into the default user's
// home, owned and executable by that user.
func installHelperScript(rootPrefix, scriptPath string) error {
	if scriptPath == "" {
		return nil
	}

	src, err := os.Open(scriptPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	defer src.Close() //nolint:errcheck

	dstPath := filepath.Join(rootPrefix, "home", constants.DefaultUserName, filepath.Base(scriptPath))

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}

	defer dst.Close() //nolint:errcheck

	if _, err = io.Copy(dst, src); err != nil {
		return err
	}

	return os.Chown(dstPath, constants.DefaultUserUID, constants.DefaultUserGID)
}
