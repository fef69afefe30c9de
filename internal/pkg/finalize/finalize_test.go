// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package finalize_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provolabs/goldclone/internal/pkg/finalize"
)

func TestMACHostname(t *testing.T) {
	hwAddr, err := net.ParseMAC("52:54:00:ab:cd:ef")
	require.NoError(t, err)

	assert.Equal(t, "ubuntu-abcdef", finalize.MACHostname(hwAddr))
}

func TestRun(t *testing.T) {
	for _, test := range []struct {
		name string

		opts finalize.Options

		expectedError    string
		expectedHostname string
	}{
		{
			name: "override",

			opts: finalize.Options{
				Hostname:   "Node-01",
				Unattended: true,
			},

			expectedHostname: "node-01",
		},
		{
			name: "invalid override",

			opts: finalize.Options{
				Hostname:   "bad_name!",
				Unattended: true,
			},

			expectedError: `invalid hostname "bad_name!"`,
		},
		{
			name: "prompt answer",

			opts: finalize.Options{
				Ask: func() (string, error) { return " web01 \n", nil },
			},

			expectedHostname: "web01",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			rootPrefix := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(rootPrefix, "etc"), 0o755))

			test.opts.RootPrefix = rootPrefix
			test.opts.Printf = t.Logf

			err := finalize.Run(test.opts)

			if test.expectedError != "" {
				require.ErrorContains(t, err, test.expectedError)

				return
			}

			require.NoError(t, err)

			hostname, err := os.ReadFile(filepath.Join(rootPrefix, "etc", "hostname"))
			require.NoError(t, err)
			assert.Equal(t, test.expectedHostname+"\n", string(hostname))

			hosts, err := os.ReadFile(filepath.Join(rootPrefix, "etc", "hosts"))
			require.NoError(t, err)
			assert.Equal(t, "127.0.0.1\tlocalhost\n127.0.1.1\t"+test.expectedHostname+"\n", string(hosts))
		})
	}
}

func TestHelperScript(t *testing.T) {
	rootPrefix := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(rootPrefix, "etc"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(rootPrefix, "home", "ubuntu"), 0o755))

	scriptPath := filepath.Join(t.TempDir(), "post-install.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/sh\n"), 0o644))

	require.NoError(t, finalize.Run(finalize.Options{
		RootPrefix:       rootPrefix,
		Hostname:         "node",
		Unattended:       true,
		HelperScriptPath: scriptPath,
		Printf:           t.Logf,
	}))

	installed := filepath.Join(rootPrefix, "home", "ubuntu", "post-install.sh")

	st, err := os.Stat(installed)
	require.NoError(t, err)

	// chown only works as root, but the mode must always be executable
	assert.Equal(t, os.FileMode(0o755), st.Mode().Perm())

	contents, err := os.ReadFile(installed)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(contents))
}
