package colorizer

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageSize is the square resolution the generator works at. Inputs are
// stretched to it regardless of aspect ratio.
const ImageSize = 256

var ErrDecode = errors.New("colorizer: cannot decode image")

// Decode reads any registered image format, applying EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, nil
}

// Resize drops alpha and resamples to ImageSize x ImageSize with bicubic
// interpolation.
func Resize(img image.Image) *image.RGBA {
	opaque := imaging.Clone(img)
	setOpaque(opaque.Pix)

	resized := imaging.Clone(resize.Resize(ImageSize, ImageSize, opaque, resize.Bicubic))
	out := image.NewRGBA(image.Rect(0, 0, ImageSize, ImageSize))
	copy(out.Pix, resized.Pix)
	setOpaque(out.Pix)
	return out
}

// setOpaque sets the alpha byte of 4-byte pixels.
func setOpaque(pix []uint8) {
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 0xff
	}
}
