// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package blockdev

import (
	"errors"

	"github.com/siderolabs/gen/xslices"
)

// ErrNoEligibleDevice is returned when no disk qualifies as an installation target.
var ErrNoEligibleDevice = errors.New("no eligible device")

// Select picks the installation target among the enumerated disks.
//
// The boot/live medium is never eligible; in unattended mode removable and
// USB-attached disks are not eligible either. Among the candidates the largest
// disk wins, ties broken by enumeration order.
func Select(disks []Disk, bootDisk string, unattended bool) (Disk, error) {
	candidates := xslices.Filter(disks, func(d Disk) bool {
		if d.ReadOnly || d.Path == bootDisk {
			return false
		}

		if unattended && (d.Removable || d.Transport == "usb") {
			return false
		}

		return true
	})

	if len(candidates) == 0 {
		return Disk{}, ErrNoEligibleDevice
	}

	selected := candidates[0]

	for _, d := range candidates[1:] {
		if d.Size > selected.Size {
			selected = d
		}
	}

	return selected, nil
}
