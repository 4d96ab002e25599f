package colorizer

import (
	"fmt"
	"image"

	"github.com/Brownie44l1/edge-colorizer/internal/colorspace"
	"github.com/Brownie44l1/edge-colorizer/internal/edges"
	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

// Sample is one preprocessed image: the resized RGB input, its lightness
// normalized to [0,1] and its edge map, both [ImageSize, ImageSize].
type Sample struct {
	Image *image.RGBA
	L     *tensor.Tensor
	Edges *tensor.Tensor
}

// Preprocess resizes img and derives the two generator input planes.
func Preprocess(img image.Image) (*Sample, error) {
	rgb := Resize(img)

	l, _, _, err := colorspace.ToPerceptual(rgb)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to Lab: %w", err)
	}
	for i, v := range l.Data {
		l.Data[i] = v / 100
	}

	e, err := edges.Extract(l)
	if err != nil {
		return nil, fmt.Errorf("failed to extract edges: %w", err)
	}
	return &Sample{Image: rgb, L: l, Edges: e}, nil
}

// AssembleInput stacks L and edges, in that order, into a [1, 2, H, W] batch.
func AssembleInput(l, e *tensor.Tensor) (*tensor.Tensor, error) {
	if l.Dims() != 2 || !e.HasShape(l.Shape()...) {
		return nil, fmt.Errorf("%w: lightness %v, edges %v", tensor.ErrShape, l.Shape(), e.Shape())
	}
	x, err := tensor.Stack(l, e)
	if err != nil {
		return nil, err
	}
	return x.Reshape(1, 2, l.Dim(0), l.Dim(1))
}

// AssembleOutput combines normalized lightness [H, W] with predicted
// chrominance [1, 2, H, W] in [-1,1] and converts back to RGB. The
// chrominance is mapped to Lab units as ab*255-128.
func AssembleOutput(l, ab *tensor.Tensor) (*image.RGBA, error) {
	if l.Dims() != 2 || !ab.HasShape(1, 2, l.Dim(0), l.Dim(1)) {
		return nil, fmt.Errorf("%w: lightness %v, chrominance %v", tensor.ErrShape, l.Shape(), ab.Shape())
	}
	h, w := l.Dim(0), l.Dim(1)

	lab := tensor.New(h, w)
	for i, v := range l.Data {
		lab.Data[i] = v * 100
	}
	a, b := tensor.New(h, w), tensor.New(h, w)
	for i, v := range ab.Plane(0, 0) {
		a.Data[i] = v*255 - 128
	}
	for i, v := range ab.Plane(0, 1) {
		b.Data[i] = v*255 - 128
	}

	rgb, err := colorspace.FromPerceptual(lab, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to convert from Lab: %w", err)
	}
	return rgb, nil
}
