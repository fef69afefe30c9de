// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package identity

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/provolabs/goldclone/pkg/constants"
	"github.com/provolabs/goldclone/pkg/makefs"
)

// fstabEntry is a single line of the target's mount table.
type fstabEntry struct {
	spec    string
	file    string
	vfsType string
	options string
	dump    int
	pass    int
}

func fstabEntries(id *Identity) []fstabEntry {
	return []fstabEntry{
		{constants.RootMapperPath, "/", makefs.FilesystemTypeEXT4, "errors=remount-ro", 0, 1},
		{"UUID=" + id.BootUUID, constants.BootMountSubdir, makefs.FilesystemTypeEXT4, "defaults", 0, 2},
		{"PARTUUID=" + id.EFIPartUUID, constants.EFIMountSubdir, makefs.FilesystemTypeVFAT, "umask=0077", 0, 1},
	}
}

// RenderFstab produces the target's mount table: exactly three entries whose
// identifier references match the regenerated filesystem identifiers.
func RenderFstab(id *Identity) []byte {
	var buf bytes.Buffer

	buf.WriteString("# /etc/fstab: static file system information.\n")
	buf.WriteString("# <file system> <mount point> <type> <options> <dump> <pass>\n")

	w := tabwriter.NewWriter(&buf, 0, 0, 1, ' ', 0)

	for _, e := range fstabEntries(id) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n", e.spec, e.file, e.vfsType, e.options, e.dump, e.pass)
	}

	w.Flush() //nolint:errcheck

	return buf.Bytes()
}

// WriteFstab writes the rendered mount table into the target root.
func WriteFstab(rootPrefix string, id *Identity) error {
	path := filepath.Join(rootPrefix, "etc", "fstab")

	if err := os.WriteFile(path, RenderFstab(id), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
