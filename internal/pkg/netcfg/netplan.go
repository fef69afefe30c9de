// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package netcfg writes the first-boot network configuration of the target.
package netcfg

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigName is the netplan document written under the target root.
const ConfigName = "01-goldclone-dhcp.yaml"

// Document is a netplan v2 configuration.
type Document struct {
	Network Network `yaml:"network"`
}

// Network is the top-level netplan network section.
type Network struct {
	Version   int                 `yaml:"version"`
	Renderer  string              `yaml:"renderer"`
	Ethernets map[string]Ethernet `yaml:"ethernets"`
}

// Ethernet configures a set of interfaces selected by a match rule.
type Ethernet struct {
	Match    *Match `yaml:"match,omitempty"`
	DHCP4    bool   `yaml:"dhcp4"`
	DHCP6    bool   `yaml:"dhcp6"`
	Optional bool   `yaml:"optional"`
}

// Match selects interfaces by name glob.
type Match struct {
	Name string `yaml:"name"`
}

// Default returns the fixed configuration cloned systems boot with: DHCP on
// every wired interface, with boot not blocking on link-up.
//
// Two globs cover both predictable ("en*") and classic ("eth*") interface
// naming.
func Default() Document {
	dhcpAll := func(glob string) Ethernet {
		return Ethernet{
			Match:    &Match{Name: glob},
			DHCP4:    true,
			DHCP6:    true,
			Optional: true,
		}
	}

	return Document{
		Network: Network{
			Version:  2,
			Renderer: "networkd",
			Ethernets: map[string]Ethernet{
				"allen":  dhcpAll("en*"),
				"alleth": dhcpAll("eth*"),
			},
		},
	}
}

// Write marshals the document into the target root's netplan directory.
//
// There is no feedback loop: the file is parsed by the target's network
// manager at first boot.
func Write(rootPrefix string, doc Document) error {
	contents, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal netplan config: %w", err)
	}

	netplanDir := filepath.Join(rootPrefix, "etc", "netplan")

	if err := os.MkdirAll(netplanDir, 0o755); err != nil {
		return err
	}

	// netplan refuses configs readable by others
	if err := os.WriteFile(filepath.Join(netplanDir, ConfigName), contents, 0o600); err != nil {
		return fmt.Errorf("failed to write netplan config: %w", err)
	}

	return nil
}
