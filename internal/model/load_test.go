package model

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/edge-colorizer/internal/weights"
)

func TestLoadNative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generator.safetensors")
	bundle := RandomBundle(NewArchitecture(2, 2, 4), rand.New(rand.NewPCG(1, 2)), 0.02)
	require.NoError(t, weights.Save(path, bundle))

	b, err := Load(LoadOptions{Backend: "native", WeightsPath: path, Workers: 1, BaseWidth: 4})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, "native", b.Info().Backend)
	assert.Equal(t, 256, b.Info().ImageSize)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(LoadOptions{Backend: "native", WeightsPath: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	// weights for a narrower network do not bind to the default one
	path := filepath.Join(t.TempDir(), "narrow.safetensors")
	require.NoError(t, weights.Save(path, RandomBundle(NewArchitecture(2, 2, 2), rand.New(rand.NewPCG(1, 2)), 0.02)))
	_, err = Load(LoadOptions{WeightsPath: path})
	assert.ErrorIs(t, err, weights.ErrWeightMismatch)

	_, err = Load(LoadOptions{Backend: "tflite"})
	assert.Error(t, err)
}
