// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imgclone

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func TestWriteImage(t *testing.T) {
	tmpDir := t.TempDir()

	// payload larger than the copy buffer to exercise multiple write cycles
	payload := make([]byte, BufferSize+BufferSize/2)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	imagePath := filepath.Join(tmpDir, "golden.img.gz")

	img, err := os.Create(imagePath)
	require.NoError(t, err)

	gz := gzip.NewWriter(img)
	_, err = gz.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, img.Close())

	dst, err := os.Create(filepath.Join(tmpDir, "target.raw"))
	require.NoError(t, err)

	t.Cleanup(func() { dst.Close() }) //nolint:errcheck

	written, err := writeImage(dst, imagePath)
	require.NoError(t, err)
	require.EqualValues(t, len(payload), written)

	cloned, err := os.ReadFile(dst.Name())
	require.NoError(t, err)
	require.Equal(t, payload, cloned)
}

func TestWriteImageNotGzip(t *testing.T) {
	tmpDir := t.TempDir()

	imagePath := filepath.Join(tmpDir, "golden.img.gz")
	require.NoError(t, os.WriteFile(imagePath, []byte("not a gzip stream"), 0o644))

	dst, err := os.Create(filepath.Join(tmpDir, "target.raw"))
	require.NoError(t, err)

	t.Cleanup(func() { dst.Close() }) //nolint:errcheck

	_, err = writeImage(dst, imagePath)
	require.Error(t, err)
}
