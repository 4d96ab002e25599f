package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultArchitectureWidths(t *testing.T) {
	a := DefaultArchitecture()
	require.Len(t, a.Encoder, 8)
	require.Len(t, a.Decoder, 7)
	assert.Equal(t, 256, a.Size)

	var outs []int
	for _, s := range a.Encoder {
		outs = append(outs, s.Out)
	}
	assert.Equal(t, []int{64, 128, 256, 512, 512, 512, 512, 512}, outs)
	assert.Equal(t, 2, a.Encoder[0].In)

	var ins []int
	outs = outs[:0]
	for _, s := range a.Decoder {
		ins = append(ins, s.In)
		outs = append(outs, s.Out)
	}
	assert.Equal(t, []int{512, 1024, 1024, 1024, 1024, 512, 256}, ins)
	assert.Equal(t, []int{512, 512, 512, 512, 256, 128, 64}, outs)

	assert.Equal(t, 128, a.Final.In)
	assert.Equal(t, 2, a.Final.Out)
	assert.Equal(t, 0, a.Final.Skip)
}

func TestArchitectureNormAndDropout(t *testing.T) {
	a := DefaultArchitecture()
	for i, s := range a.Encoder {
		assert.Equal(t, i != 0 && i != 7, s.Norm, s.Name)
		assert.False(t, s.Dropout, s.Name)
	}
	for i, s := range a.Decoder {
		assert.True(t, s.Norm, s.Name)
		assert.Equal(t, i < 3, s.Dropout, s.Name)
	}
	assert.False(t, a.Final.Norm)
	assert.False(t, a.Final.Dropout)
}

func TestSkipConnectionsPairEqualResolutions(t *testing.T) {
	a := DefaultArchitecture()
	assert.Equal(t, -1, a.Decoder[0].Skip)
	// up_k (k >= 2) consumes down_{9-k}, the encoder output at its input resolution
	for k := 2; k <= 7; k++ {
		assert.Equal(t, 8-k, a.Decoder[k-1].Skip, a.Decoder[k-1].Name)
	}
}

func TestParamsUseCheckpointNames(t *testing.T) {
	p := DefaultArchitecture().Params()

	assert.Equal(t, []int{64, 2, 4, 4}, p["down1.block.0.weight"])
	assert.Equal(t, []int{64}, p["down1.block.0.bias"])
	assert.NotContains(t, p, "down1.block.1.weight")

	assert.NotContains(t, p, "down2.block.0.bias")
	assert.Equal(t, []int{128}, p["down2.block.1.running_mean"])

	assert.Equal(t, []int{512}, p["down8.block.0.bias"])
	assert.NotContains(t, p, "down8.block.1.weight")

	assert.Equal(t, []int{512, 512, 4, 4}, p["up1.block.0.weight"])
	assert.NotContains(t, p, "up1.block.0.bias")
	assert.Equal(t, []int{512}, p["up1.block.1.running_var"])
	assert.Equal(t, []int{256, 64, 4, 4}, p["up7.block.0.weight"])

	assert.Equal(t, []int{128, 2, 4, 4}, p["final.0.weight"])
	assert.Equal(t, []int{2}, p["final.0.bias"])
}

func TestStageKindString(t *testing.T) {
	assert.Equal(t, "down", Down.String())
	assert.Equal(t, "up", Up.String())
	assert.Equal(t, "final", Final.String())
}
