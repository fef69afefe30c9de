// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package lvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVGNames(t *testing.T) {
	tests := map[string]struct {
		stdout string
		want   []string
	}{
		"single": {
			stdout: "  system\n",
			want:   []string{"system"},
		},
		"multiple with padding": {
			stdout: "  system\n  backup \n",
			want:   []string{"system", "backup"},
		},
		"empty": {
			stdout: "\n",
			want:   nil,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseVGNames(tt.stdout))
		})
	}
}
