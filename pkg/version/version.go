// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package version provides version information.
package version

var (
	// Name is the name of the installer.
	Name = "goldclone"

	// Tag is set at build time.
	Tag = "v0.0.0-dev"

	// SHA is set at build time.
	SHA = "unknown"
)
