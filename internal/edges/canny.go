// Package edges computes the binary edge map fed to the generator as its
// second input channel.
package edges

import (
	"errors"
	"fmt"
	"image"

	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

// Hysteresis thresholds on the 0-255 scale. The generator was trained on edge
// maps produced with exactly these values.
const (
	LowThreshold  = 50
	HighThreshold = 150
)

var ErrInput = errors.New("edges: invalid lightness plane")

// Extract takes L normalized to [0,1] with shape [H, W] and returns a plane of
// the same shape holding 1 on edge pixels and 0 elsewhere.
func Extract(l *tensor.Tensor) (*tensor.Tensor, error) {
	if l.Dims() != 2 {
		return nil, fmt.Errorf("%w: shape %v, want [H W]", ErrInput, l.Shape())
	}
	h, w := l.Dim(0), l.Dim(1)

	gray := ToGray(l)
	edgeMap := detect(gray, LowThreshold, HighThreshold)

	out := tensor.New(h, w)
	for i, v := range edgeMap.Pix {
		out.Data[i] = float32(v) / 255
	}
	return out, nil
}

// ToGray rescales a [0,1] plane to 8 bits, truncating like an integer cast.
func ToGray(l *tensor.Tensor) *image.Gray {
	h, w := l.Dim(0), l.Dim(1)
	gray := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range l.Data {
		gray.Pix[i] = uint8(min(max(v*255, 0), 255))
	}
	return gray
}

// Canny runs the detector on an 8-bit image: 3x3 Sobel gradients with a
// replicated border, L1 magnitude, non-maximum suppression and 8-connected
// hysteresis. No smoothing is applied beforehand. Edge pixels are 255.
func Canny(src *image.Gray, low, high int) *image.Gray {
	b := src.Bounds()
	gray := src
	if b.Min != (image.Point{}) || src.Stride != b.Dx() {
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := range b.Dy() {
			copy(gray.Pix[y*gray.Stride:], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):][:b.Dx()])
		}
	}
	return canny(gray, low, high)
}

func canny(gray *image.Gray, low, high int) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	dx, dy := sobel(gray.Pix, w, h)

	// mag carries a one pixel frame of zeros so neighbours never go out of range
	mw := w + 2
	mag := make([]int32, mw*(h+2))
	for y := range h {
		for x := range w {
			i := y*w + x
			mag[(y+1)*mw+x+1] = abs32(dx[i]) + abs32(dy[i])
		}
	}

	const (
		unknown = iota
		notEdge
		edge
	)
	state := make([]uint8, w*h)
	stack := make([]int, 0, w*h/8)

	for y := range h {
		for x := range w {
			i := y*w + x
			m := mag[(y+1)*mw+x+1]
			if m <= int32(low) || !isLocalMax(mag, mw, x+1, y+1, dx[i], dy[i]) {
				state[i] = notEdge
				continue
			}
			if m > int32(high) {
				state[i] = edge
				stack = append(stack, i)
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for ny := y - 1; ny <= y+1; ny++ {
			if ny < 0 || ny >= h {
				continue
			}
			for nx := x - 1; nx <= x+1; nx++ {
				if nx < 0 || nx >= w {
					continue
				}
				j := ny*w + nx
				if state[j] == unknown {
					state[j] = edge
					stack = append(stack, j)
				}
			}
		}
	}

	for i, s := range state {
		if s == edge {
			out.Pix[i] = 255
		}
	}
	return out
}

// tg22 is tan(22.5°) in Q15 fixed point, truncated as OpenCV does.
const (
	cannyShift = 15
	tg22       = 13573
)

// isLocalMax checks the gradient direction sector of (x, y) in framed
// coordinates. Ties are broken towards the earlier neighbour so that a
// plateau two pixels wide keeps exactly one edge.
func isLocalMax(mag []int32, mw, x, y int, gx, gy int16) bool {
	i := y*mw + x
	m := mag[i]
	ax := int64(abs32(gx))
	ay := int64(abs32(gy)) << cannyShift

	tg22x := ax * tg22
	if ay < tg22x {
		return m > mag[i-1] && m >= mag[i+1]
	}
	tg67x := tg22x + ax<<(cannyShift+1)
	if ay > tg67x {
		return m > mag[i-mw] && m >= mag[i+mw]
	}
	s := 1
	if (gx < 0) != (gy < 0) {
		s = -1
	}
	return m > mag[i-mw-s] && m > mag[i+mw+s]
}

func sobel(pix []uint8, w, h int) (dx, dy []int16) {
	dx = make([]int16, w*h)
	dy = make([]int16, w*h)
	at := func(x, y int) int16 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int16(pix[y*w+x])
	}
	for y := range h {
		for x := range w {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, b, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)
			dx[y*w+x] = (tr + 2*r + br) - (tl + 2*l + bl)
			dy[y*w+x] = (bl + 2*b + br) - (tl + 2*t + tr)
		}
	}
	return dx, dy
}

func abs32(v int16) int32 {
	if v < 0 {
		return -int32(v)
	}
	return int32(v)
}
