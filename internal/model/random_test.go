package model

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/edge-colorizer/internal/weights"
)

func bundleData(t *testing.T, b *weights.Bundle) map[string][]float32 {
	t.Helper()
	out := map[string][]float32{}
	for _, name := range b.Names() {
		shape, ok := b.Shape(name)
		require.True(t, ok)
		x, err := b.Tensor(name, shape...)
		require.NoError(t, err)
		out[name] = x.Data
	}
	return out
}

func TestRandomBundleIsReproducibleFromSeed(t *testing.T) {
	arch := testArch()
	first := bundleData(t, RandomBundle(arch, rand.New(rand.NewPCG(1, 1)), 0.02))

	for range 5 {
		again := bundleData(t, RandomBundle(arch, rand.New(rand.NewPCG(1, 1)), 0.02))
		require.Equal(t, len(first), len(again))
		for name, data := range first {
			require.Equal(t, data, again[name], "%s differs under the same seed", name)
		}
	}

	other := bundleData(t, RandomBundle(arch, rand.New(rand.NewPCG(2, 1)), 0.02))
	assert.NotEqual(t, first["down1.block.0.weight"], other["down1.block.0.weight"])
}

func TestRandomBundleInitialization(t *testing.T) {
	arch := testArch()
	b := RandomBundle(arch, rand.New(rand.NewPCG(3, 4)), 0.02)
	data := bundleData(t, b)
	assert.Len(t, data, len(arch.Params()))

	for _, v := range data["down2.block.1.running_var"] {
		assert.Equal(t, float32(1), v)
	}
	for _, v := range data["down2.block.1.running_mean"] {
		assert.Zero(t, v)
	}
	for _, v := range data["final.0.bias"] {
		assert.Zero(t, v)
	}
	for _, v := range data["down2.block.1.weight"] {
		assert.InDelta(t, 1, v, 0.2)
	}
}
