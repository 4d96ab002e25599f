package model

import (
	"maps"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
	"github.com/Brownie44l1/edge-colorizer/internal/weights"
)

// RandomBundle initializes every parameter of arch the way the network is
// initialized before training: convolution weights from N(0, std), batch norm
// scale from N(1, std), zero shift and bias, and identity running statistics.
// Parameters draw from rng in name order, so a seed fixes the bundle.
func RandomBundle(arch Architecture, rng *rand.Rand, std float64) *weights.Bundle {
	params := arch.Params()
	m := make(map[string]*tensor.Tensor, len(params))
	for _, name := range slices.Sorted(maps.Keys(params)) {
		t := tensor.New(params[name]...)
		switch {
		case strings.HasSuffix(name, ".running_var"):
			fill(t.Data, 1)
		case strings.HasSuffix(name, ".running_mean"), strings.HasSuffix(name, ".bias"):
		case strings.Contains(name, ".block.1."):
			for i := range t.Data {
				t.Data[i] = float32(1 + rng.NormFloat64()*std)
			}
		default:
			for i := range t.Data {
				t.Data[i] = float32(rng.NormFloat64() * std)
			}
		}
		m[name] = t
	}
	return weights.FromTensors(m)
}

func fill(x []float32, v float32) {
	for i := range x {
		x[i] = v
	}
}
