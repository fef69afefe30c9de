// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package partition_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provolabs/goldclone/internal/pkg/partition"
)

type recorder struct {
	order []string

	failCheck  bool
	failResize bool
}

func (r *recorder) op(name string, fail bool) func(context.Context) error {
	return func(context.Context) error {
		r.order = append(r.order, name)

		if fail {
			return errors.New(name + " failed")
		}

		return nil
	}
}

func (r *recorder) operations() partition.Operations {
	return partition.Operations{
		ExtendGPT:           r.op("gpt", false),
		ResizeLastPartition: r.op("part", false),
		ResizePV:            r.op("pv", false),
		ExtendLV:            r.op("lv", false),
		CheckFilesystem:     r.op("fsck", r.failCheck),
		ResizeFilesystem:    r.op("resize", r.failResize),
	}
}

func discard(string, ...any) {}

func TestFixerOrder(t *testing.T) {
	rec := &recorder{}

	f := partition.NewFixer(nil, "/dev/sda", discard, partition.WithOperations(rec.operations()))

	require.NoError(t, f.Run(context.Background()))

	// geometry first, volume manager second, filesystem last
	assert.Equal(t, []string{"gpt", "part", "pv", "lv", "fsck", "resize"}, rec.order)
	assert.Equal(t, partition.PhaseFSResized, f.Phase())
}

func TestFixerCheckIsBestEffort(t *testing.T) {
	rec := &recorder{failCheck: true}

	f := partition.NewFixer(nil, "/dev/sda", discard, partition.WithOperations(rec.operations()))

	require.NoError(t, f.Run(context.Background()))

	assert.Equal(t, []string{"gpt", "part", "pv", "lv", "fsck", "resize"}, rec.order)
	assert.Equal(t, partition.PhaseFSResized, f.Phase())
}

func TestFixerResizeIsFatal(t *testing.T) {
	rec := &recorder{failResize: true}

	f := partition.NewFixer(nil, "/dev/sda", discard, partition.WithOperations(rec.operations()))

	err := f.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "resize failed")

	assert.Equal(t, partition.PhaseFSChecked, f.Phase())
}
