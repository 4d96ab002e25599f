package model

import (
	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

// Backend runs the generator forward pass. Implementations must be safe for
// concurrent use and deterministic for a fixed set of weights.
type Backend interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
	Info() Metadata
	Close() error
}

type Metadata struct {
	Backend     string  `json:"backend"`
	InputShape  []int64 `json:"input_shape"`
	OutputShape []int64 `json:"output_shape"`
	InputName   string  `json:"input_name,omitempty"`
	OutputName  string  `json:"output_name,omitempty"`
	ImageSize   int     `json:"image_size"`
	Parameters  int     `json:"parameters,omitempty"`
}

var (
	_ Backend = (*Generator)(nil)
	_ Backend = (*ONNXBackend)(nil)
)
