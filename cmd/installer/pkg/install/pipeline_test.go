// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provolabs/goldclone/cmd/installer/pkg/install"
)

func step(name string, policy install.Policy, order *[]string, err error) install.Step {
	return install.Step{
		Name:   name,
		Policy: policy,
		Run: func(context.Context, *install.State) error {
			*order = append(*order, name)

			return err
		},
	}
}

func TestPipelineOrder(t *testing.T) {
	var order []string

	pipeline := &install.Pipeline{
		Steps: []install.Step{
			step("first", install.PolicyFatal, &order, nil),
			step("second", install.PolicyFatal, &order, nil),
			step("third", install.PolicyFatal, &order, nil),
		},
		Printf: t.Logf,
	}

	require.NoError(t, pipeline.Run(context.Background(), &install.State{}))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPipelineFatalAborts(t *testing.T) {
	var order []string

	pipeline := &install.Pipeline{
		Steps: []install.Step{
			step("first", install.PolicyFatal, &order, nil),
			step("second", install.PolicyFatal, &order, errors.New("disk on fire")),
			step("third", install.PolicyFatal, &order, nil),
		},
		Printf: t.Logf,
	}

	err := pipeline.Run(context.Background(), &install.State{})
	require.ErrorContains(t, err, `step "second" failed`)
	require.ErrorContains(t, err, "disk on fire")

	// the third step must never run
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPipelineBestEffortContinues(t *testing.T) {
	var order []string

	pipeline := &install.Pipeline{
		Steps: []install.Step{
			step("first", install.PolicyFatal, &order, nil),
			step("second", install.PolicyBestEffort, &order, errors.New("grub misbehaved")),
			step("third", install.PolicyFatal, &order, nil),
		},
		Printf: t.Logf,
	}

	require.NoError(t, pipeline.Run(context.Background(), &install.State{}))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestPipelineRetryable(t *testing.T) {
	var attempts int

	pipeline := &install.Pipeline{
		Steps: []install.Step{
			{
				Name:   "flaky",
				Policy: install.PolicyRetryable,
				Run: func(context.Context, *install.State) error {
					attempts++

					if attempts < 3 {
						return errors.New("device not ready")
					}

					return nil
				},
			},
		},
		RetryTimeout:  time.Second,
		RetryInterval: time.Millisecond,
		Printf:        t.Logf,
	}

	require.NoError(t, pipeline.Run(context.Background(), &install.State{}))
	assert.Equal(t, 3, attempts)
}

func TestPipelineRetryableExhausted(t *testing.T) {
	pipeline := &install.Pipeline{
		Steps: []install.Step{
			{
				Name:   "flaky",
				Policy: install.PolicyRetryable,
				Run: func(context.Context, *install.State) error {
					return errors.New("device not ready")
				},
			},
		},
		RetryTimeout:  50 * time.Millisecond,
		RetryInterval: time.Millisecond,
		Printf:        t.Logf,
	}

	err := pipeline.Run(context.Background(), &install.State{})
	require.ErrorContains(t, err, `step "flaky" failed`)
	require.ErrorContains(t, err, "device not ready")
}

func TestPipelineStateThreading(t *testing.T) {
	pipeline := &install.Pipeline{
		Steps: []install.Step{
			{
				Name:   "produce",
				Policy: install.PolicyFatal,
				Run: func(_ context.Context, state *install.State) error {
					state.Disk.Path = "/dev/sda"

					return nil
				},
			},
			{
				Name:   "consume",
				Policy: install.PolicyFatal,
				Run: func(_ context.Context, state *install.State) error {
					assert.Equal(t, "/dev/sda", state.Disk.Path)

					return nil
				},
			},
		},
		Printf: t.Logf,
	}

	require.NoError(t, pipeline.Run(context.Background(), &install.State{}))
}
