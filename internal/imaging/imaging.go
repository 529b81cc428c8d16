// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

// Package imaging generates small JPEG previews for offline draft listings.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
)

// DefaultThumbnailWidth is the bounding width of generated previews.
const DefaultThumbnailWidth = 320

// Thumbnail decodes a photo and returns a JPEG preview no wider than
// maxWidth. Smaller images are re-encoded without upscaling.
func Thumbnail(photo []byte, maxWidth uint) ([]byte, error) {
	if maxWidth == 0 {
		maxWidth = DefaultThumbnailWidth
	}

	img, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("failed to decode photo: %w", err)
	}

	if uint(img.Bounds().Dx()) > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnailer returns a preview generator with a fixed bounding width,
// matching the hook signature the sync engine expects.
func Thumbnailer(maxWidth uint) func([]byte) ([]byte, error) {
	return func(photo []byte) ([]byte, error) {
		return Thumbnail(photo, maxWidth)
	}
}
