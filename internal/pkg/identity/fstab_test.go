// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package identity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provolabs/goldclone/internal/pkg/identity"
)

func TestRenderFstab(t *testing.T) {
	id := &identity.Identity{
		RootUUID:    "6c8d3ed5-8e02-4f0c-8717-5a8a29371ad4",
		BootUUID:    "e1b2c19e-7a56-41e5-9a7e-5f3fbc1f4a7b",
		EFIPartUUID: "8d1e2f2a-9a3b-4c2e-b6f1-2a7d4f0c9e51",
	}

	rendered := string(identity.RenderFstab(id))

	var entries [][]string

	for _, line := range strings.Split(rendered, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entries = append(entries, strings.Fields(line))
	}

	// exactly three entries: root, boot, EFI
	require.Len(t, entries, 3)

	for _, fields := range entries {
		require.Len(t, fields, 6)
	}

	root, boot, efi := entries[0], entries[1], entries[2]

	assert.Equal(t, []string{"/dev/mapper/system-root", "/", "ext4", "errors=remount-ro", "0", "1"}, root)
	assert.Equal(t, []string{"UUID=" + id.BootUUID, "/boot", "ext4", "defaults", "0", "2"}, boot)
	assert.Equal(t, []string{"PARTUUID=" + id.EFIPartUUID, "/boot/efi", "vfat", "umask=0077", "0", "1"}, efi)
}
