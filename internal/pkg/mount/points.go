// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mount

import (
	"errors"
	"slices"
)

// Points is an ordered list of mount points.
type Points []*Point

// Mount all mount points in order.
//
// The returned unmounter releases them in strict reverse order of mounting.
func (points Points) Mount() (unmounter func() error, err error) {
	mounted := make(Points, 0, len(points))

	for _, point := range points {
		if err := point.Mount(); err != nil {
			// unmount what got already mounted
			mounted.Unmount() //nolint:errcheck

			return nil, err
		}

		mounted = append(mounted, point)
	}

	return mounted.Unmount, nil
}

// Unmount all mount points in reverse order.
func (points Points) Unmount() error {
	var unmountErr error

	for _, point := range slices.Backward(points) {
		unmountErr = errors.Join(unmountErr, point.Unmount())
	}

	return unmountErr
}
