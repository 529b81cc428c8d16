// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestThumbnailShrinksWideImages(t *testing.T) {
	photo := encodePNG(t, 800, 600)

	thumb, err := Thumbnail(photo, 320)
	require.NoError(t, err)

	w, h := decodeSize(t, thumb)
	require.Equal(t, 320, w)
	require.Equal(t, 240, h, "aspect ratio must be preserved")
}

func TestThumbnailDoesNotUpscaleSmallImages(t *testing.T) {
	photo := encodePNG(t, 100, 80)

	thumb, err := Thumbnail(photo, 320)
	require.NoError(t, err)

	w, h := decodeSize(t, thumb)
	require.Equal(t, 100, w)
	require.Equal(t, 80, h)
}

func TestThumbnailZeroWidthUsesDefault(t *testing.T) {
	photo := encodePNG(t, DefaultThumbnailWidth*2, DefaultThumbnailWidth)

	thumb, err := Thumbnail(photo, 0)
	require.NoError(t, err)

	w, _ := decodeSize(t, thumb)
	require.Equal(t, DefaultThumbnailWidth, w)
}

func TestThumbnailRejectsNonImageData(t *testing.T) {
	_, err := Thumbnail([]byte("definitely not an image"), 320)
	require.Error(t, err)
}

func TestThumbnailerMatchesEngineHook(t *testing.T) {
	fn := Thumbnailer(64)
	thumb, err := fn(encodePNG(t, 640, 640))
	require.NoError(t, err)

	w, h := decodeSize(t, thumb)
	require.Equal(t, 64, w)
	require.Equal(t, 64, h)
}
