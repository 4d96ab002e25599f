// Package colorspace converts between 8-bit sRGB images and CIE L*a*b* planes.
//
// Conversion uses the D65 white point and sRGB companding, the conventions the
// generator was trained with. Planes are returned in native units: L in [0,100],
// a and b roughly in [-128,127].
package colorspace

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

var ErrShapeMismatch = errors.New("colorspace: channel shape mismatch")

// go-colorful reports L*a*b* divided by 100.
const labScale = 100.0

// ToPerceptual splits img into L, a and b planes of shape [H, W].
// Grayscale and paletted images are read through their RGB model.
func ToPerceptual(img image.Image) (l, a, b *tensor.Tensor, err error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, nil, nil, fmt.Errorf("%w: empty image", ErrShapeMismatch)
	}
	l, a, b = tensor.New(h, w), tensor.New(h, w), tensor.New(h, w)

	for y := range h {
		for x := range w {
			c := rgbAt(img, bounds.Min.X+x, bounds.Min.Y+y)
			lv, av, bv := c.Lab()
			i := y*w + x
			l.Data[i] = float32(lv * labScale)
			a.Data[i] = float32(av * labScale)
			b.Data[i] = float32(bv * labScale)
		}
	}
	return l, a, b, nil
}

func rgbAt(img image.Image, x, y int) colorful.Color {
	switch src := img.(type) {
	case *image.RGBA:
		off := src.PixOffset(x, y)
		return fromBytes(src.Pix[off], src.Pix[off+1], src.Pix[off+2])
	case *image.NRGBA:
		off := src.PixOffset(x, y)
		return fromBytes(src.Pix[off], src.Pix[off+1], src.Pix[off+2])
	case *image.Gray:
		v := src.Pix[src.PixOffset(x, y)]
		return fromBytes(v, v, v)
	}
	// Alpha is ignored, as when an upload is converted to RGB.
	n := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	return fromBytes(n.R, n.G, n.B)
}

func fromBytes(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// FromPerceptual rebuilds an RGB image from native-range L, a and b planes.
// Out-of-gamut colors are clamped; channels are truncated to 8 bits.
func FromPerceptual(l, a, b *tensor.Tensor) (*image.RGBA, error) {
	if l.Dims() != 2 {
		return nil, fmt.Errorf("%w: L has shape %v, want [H W]", ErrShapeMismatch, l.Shape())
	}
	h, w := l.Dim(0), l.Dim(1)
	if !a.HasShape(h, w) || !b.HasShape(h, w) {
		return nil, fmt.Errorf("%w: L %v, a %v, b %v", ErrShapeMismatch, l.Shape(), a.Shape(), b.Shape())
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range l.Data {
		c := colorful.Xyz(labToXyz(float64(l.Data[i]), float64(a.Data[i]), float64(b.Data[i]))).Clamped()
		px := out.Pix[i*4 : i*4+4]
		px[0] = toByte(c.R)
		px[1] = toByte(c.G)
		px[2] = toByte(c.B)
		px[3] = 0xff
	}
	return out, nil
}

// labToXyz inverts native-range L*a*b* under D65. fz is clipped at zero
// before the inverse companding, as skimage's lab2xyz does.
func labToXyz(l, a, b float64) (x, y, z float64) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := max(fy-b/200, 0)
	return colorful.D65[0] * labFinv(fx), colorful.D65[1] * labFinv(fy), colorful.D65[2] * labFinv(fz)
}

func labFinv(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29.0)
}

func toByte(v float64) uint8 {
	// the small epsilon keeps exact channel values such as 1.0 from
	// truncating to 254 after the float round trip
	return uint8(min(max(v*255+1e-6, 0), 255))
}
