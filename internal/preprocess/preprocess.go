// Package preprocess is the boundary to the external image preprocessor.
// Normalization (resizing, EXIF orientation) happens upstream; the guard here
// only enforces the limits the recognition capability would reject anyway, so
// failures surface with a clear reason before any network call.
package preprocess

import (
	"bytes"
	"context"
	"fmt"
)

// Preprocessor prepares an image for the recognition capability.
type Preprocessor interface {
	Process(ctx context.Context, image []byte, name string) ([]byte, error)
}

const (
	maxImageBytes = 15 * 1024 * 1024
	minImageBytes = 64
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
)

// Guard validates size and format without touching pixels.
type Guard struct{}

func NewGuard() *Guard {
	return &Guard{}
}

func (g *Guard) Process(_ context.Context, image []byte, name string) ([]byte, error) {
	if len(image) < minImageBytes {
		return nil, fmt.Errorf("image %s too small: %d bytes", name, len(image))
	}
	if len(image) > maxImageBytes {
		return nil, fmt.Errorf("image %s too large: %.1fMB (max 15MB)", name, float64(len(image))/1024/1024)
	}
	if !bytes.HasPrefix(image, jpegMagic) && !bytes.HasPrefix(image, pngMagic) {
		return nil, fmt.Errorf("image %s has unsupported format: only JPEG and PNG are accepted", name)
	}
	return image, nil
}
