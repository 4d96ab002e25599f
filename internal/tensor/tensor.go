// Package tensor holds the dense float32 arrays passed between the
// preprocessing steps and the generator. Data is row-major; 4-D tensors are NCHW.
package tensor

import (
	"errors"
	"fmt"
	"slices"
)

var ErrShape = errors.New("tensor: shape mismatch")

type Tensor struct {
	shape []int
	Data  []float32
}

func New(shape ...int) *Tensor {
	return &Tensor{shape: slices.Clone(shape), Data: make([]float32, volume(shape))}
}

func FromData(data []float32, shape ...int) (*Tensor, error) {
	if len(data) != volume(shape) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	return &Tensor{shape: slices.Clone(shape), Data: data}, nil
}

func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

func (t *Tensor) Dims() int { return len(t.shape) }

func (t *Tensor) Dim(i int) int { return t.shape[i] }

func (t *Tensor) Len() int { return len(t.Data) }

func (t *Tensor) HasShape(shape ...int) bool { return slices.Equal(t.shape, shape) }

func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: slices.Clone(t.shape), Data: slices.Clone(t.Data)}
}

// Reshape returns a view sharing Data.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if volume(shape) != len(t.Data) {
		return nil, fmt.Errorf("%w: cannot reshape %v to %v", ErrShape, t.shape, shape)
	}
	return &Tensor{shape: slices.Clone(shape), Data: t.Data}, nil
}

// Plane returns a view of channel c of batch item n of an NCHW tensor.
func (t *Tensor) Plane(n, c int) []float32 {
	h, w := t.shape[2], t.shape[3]
	off := (n*t.shape[1] + c) * h * w
	return t.Data[off : off+h*w]
}

// Stack joins equally shaped 2-D planes into a [len(planes), H, W] tensor.
func Stack(planes ...*Tensor) (*Tensor, error) {
	if len(planes) == 0 {
		return nil, fmt.Errorf("%w: nothing to stack", ErrShape)
	}
	first := planes[0]
	if first.Dims() != 2 {
		return nil, fmt.Errorf("%w: stack expects 2-D planes, got %v", ErrShape, first.shape)
	}
	out := New(len(planes), first.shape[0], first.shape[1])
	size := first.Len()
	for i, p := range planes {
		if !slices.Equal(p.shape, first.shape) {
			return nil, fmt.Errorf("%w: plane %d has shape %v, want %v", ErrShape, i, p.shape, first.shape)
		}
		copy(out.Data[i*size:], p.Data)
	}
	return out, nil
}

func (t *Tensor) Min() float32 {
	m := t.Data[0]
	for _, v := range t.Data[1:] {
		m = min(m, v)
	}
	return m
}

func (t *Tensor) Max() float32 {
	m := t.Data[0]
	for _, v := range t.Data[1:] {
		m = max(m, v)
	}
	return m
}
