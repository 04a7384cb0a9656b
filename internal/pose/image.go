package pose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels caps the size of a submitted frame at 4096x4096.
const DefaultMaxPixels = 4096 * 4096

// RawImage is a frame as it arrives from the host: either an encoded still
// (JPEG, PNG, GIF, WebP, BMP, TIFF) or tightly packed RGBA pixels of
// Width x Height.
type RawImage struct {
	Data   []byte
	Width  int
	Height int
}

func (r RawImage) Decode() (image.Image, error) {
	return r.DecodeLimit(DefaultMaxPixels)
}

// DecodeLimit decodes the frame, rejecting anything larger than maxPixels
// before the pixel buffer is allocated. A maxPixels <= 0 means
// DefaultMaxPixels.
func (r RawImage) DecodeLimit(maxPixels int) (image.Image, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if len(r.Data) == 0 {
		return nil, errors.New("empty image data")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(r.Data))
	if err != nil {
		return r.decodeRGBA(maxPixels, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("decoded %s image has no pixels", format)
	}
	if !fits(cfg.Width, cfg.Height, maxPixels) {
		return nil, fmt.Errorf("%s image %dx%d exceeds %d pixels", format, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(r.Data))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decoded %s image has no pixels", format)
	}
	return img, nil
}

// decodeRGBA treats the data as packed RGBA pixels when the declared size
// matches it exactly. formatErr is returned when it does not.
func (r RawImage) decodeRGBA(maxPixels int, formatErr error) (image.Image, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, formatErr
	}
	if !fits(r.Width, r.Height, maxPixels) {
		return nil, fmt.Errorf("raw image %dx%d exceeds %d pixels", r.Width, r.Height, maxPixels)
	}
	if len(r.Data) != r.Width*r.Height*4 {
		return nil, formatErr
	}

	rgba := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	copy(rgba.Pix, r.Data)
	return rgba, nil
}

// fits reports whether width*height <= maxPixels without overflowing.
func fits(width, height, maxPixels int) bool {
	return width <= maxPixels/height
}
