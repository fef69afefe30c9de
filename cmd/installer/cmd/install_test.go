// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebootAfterInstall(t *testing.T) {
	// attended runs always end at the reboot gate
	assert.True(t, rebootAfterInstall(false, false))
	assert.True(t, rebootAfterInstall(false, true))

	// unattended runs reboot only on request
	assert.False(t, rebootAfterInstall(true, false))
	assert.True(t, rebootAfterInstall(true, true))
}
