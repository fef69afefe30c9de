// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install

import (
	"context"
	"fmt"
	"time"

	"github.com/siderolabs/go-retry/retry"
)

// Policy decides how a step failure affects the installation.
type Policy int

const (
	// PolicyFatal aborts the installation on failure.
	PolicyFatal Policy = iota

	// PolicyRetryable retries the step for a bounded time before failing
	// fatally; used for steps racing the kernel's asynchronous device setup.
	PolicyRetryable

	// PolicyBestEffort logs the failure and continues.
	PolicyBestEffort
)

func (p Policy) String() string {
	switch p {
	case PolicyFatal:
		return "fatal"
	case PolicyRetryable:
		return "retryable"
	case PolicyBestEffort:
		return "best-effort"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Step is a named stage of the installation.
type Step struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context, state *State) error
}

// Pipeline runs installation steps in order against shared state.
type Pipeline struct {
	Steps []Step

	// RetryTimeout and RetryInterval bound PolicyRetryable steps.
	RetryTimeout  time.Duration
	RetryInterval time.Duration

	Printf func(string, ...any)
}

const (
	defaultRetryTimeout  = 2 * time.Minute
	defaultRetryInterval = 5 * time.Second
)

// Run executes the steps in order.
//
// A fatal step failure aborts immediately with the step wrapped into the
// error; best-effort failures are logged and the pipeline continues.
func (p *Pipeline) Run(ctx context.Context, state *State) error {
	for i, step := range p.Steps {
		p.Printf("step %d/%d: %s", i+1, len(p.Steps), step.Name)

		var err error

		if step.Policy == PolicyRetryable {
			err = p.runWithRetry(ctx, step, state)
		} else {
			err = step.Run(ctx, state)
		}

		if err != nil {
			if step.Policy == PolicyBestEffort {
				p.Printf("warning: step %q failed (continuing): %s", step.Name, err)

				continue
			}

			return fmt.Errorf("step %q failed: %w", step.Name, err)
		}
	}

	return nil
}

func (p *Pipeline) runWithRetry(ctx context.Context, step Step, state *State) error {
	timeout, interval := p.RetryTimeout, p.RetryInterval

	if timeout == 0 {
		timeout = defaultRetryTimeout
	}

	if interval == 0 {
		interval = defaultRetryInterval
	}

	return retry.Constant(timeout, retry.WithUnits(interval)).RetryWithContext(ctx,
		func(ctx context.Context) error {
			if err := step.Run(ctx, state); err != nil {
				p.Printf("step %q: retrying: %s", step.Name, err)

				return retry.ExpectedError(err)
			}

			return nil
		})
}
