// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package wipe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	order []string

	vgNames []string
	listErr error
	wipeErr error
	unmount error
}

func (r *recorder) operations() Operations {
	return Operations{
		UnmountUsers: func() error {
			r.order = append(r.order, "unmount")

			return r.unmount
		},
		ListVGs: func(context.Context) ([]string, error) {
			r.order = append(r.order, "list")

			return r.vgNames, r.listErr
		},
		DeactivateVG: func(_ context.Context, vgName string) error {
			r.order = append(r.order, "deactivate "+vgName)

			return nil
		},
		RescanPVs: func(context.Context) error {
			r.order = append(r.order, "rescan")

			return nil
		},
		WipeDevice: func() error {
			r.order = append(r.order, "wipe")

			return r.wipeErr
		},
	}
}

func TestTargetDeactivatesActiveVG(t *testing.T) {
	rec := &recorder{vgNames: []string{"other", "system"}}

	require.NoError(t, Target(context.Background(), nil, "/dev/sda", t.Logf, WithOperations(rec.operations())))

	assert.Equal(t, []string{"unmount", "list", "deactivate system", "rescan", "wipe"}, rec.order)
}

func TestTargetSkipsAbsentVG(t *testing.T) {
	rec := &recorder{vgNames: []string{"other"}}

	require.NoError(t, Target(context.Background(), nil, "/dev/sda", t.Logf, WithOperations(rec.operations())))

	// no deactivation when the volume group does not exist
	assert.Equal(t, []string{"unmount", "list", "rescan", "wipe"}, rec.order)
}

func TestTargetBestEffortCleanup(t *testing.T) {
	rec := &recorder{
		unmount: errors.New("mounts unreadable"),
		listErr: errors.New("lvm not responding"),
	}

	require.NoError(t, Target(context.Background(), nil, "/dev/sda", t.Logf, WithOperations(rec.operations())))

	assert.Contains(t, rec.order, "wipe")
}

func TestTargetWipeIsFatal(t *testing.T) {
	rec := &recorder{wipeErr: errors.New("device gone")}

	err := Target(context.Background(), nil, "/dev/sda", t.Logf, WithOperations(rec.operations()))
	require.ErrorContains(t, err, "failed to wipe /dev/sda")
	require.ErrorContains(t, err, "device gone")
}

func TestBackedBy(t *testing.T) {
	for _, test := range []struct {
		source  string
		devPath string

		expected bool
	}{
		{"/dev/sda", "/dev/sda", true},
		{"/dev/sda1", "/dev/sda", true},
		{"/dev/sda12", "/dev/sda", true},
		{"/dev/sdaa", "/dev/sda", false},
		{"/dev/sdaa1", "/dev/sda", false},
		{"/dev/sdb1", "/dev/sda", false},
		{"/dev/nvme0n1", "/dev/nvme0n1", true},
		{"/dev/nvme0n1p3", "/dev/nvme0n1", true},
		{"/dev/nvme0n10", "/dev/nvme0n1", false}, // a different namespace, not a partition
		{"/dev/sdap1", "/dev/sda", false},
		{"/dev/mapper/system-root", "/dev/sda", true},
		{"/dev/mapper/other-root", "/dev/sda", false},
		{"tmpfs", "/dev/sda", false},
	} {
		t.Run(test.source, func(t *testing.T) {
			assert.Equal(t, test.expected, backedBy(test.source, test.devPath))
		})
	}
}
