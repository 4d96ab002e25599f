package edges

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

func plane(w, h int, fill func(x, y int) float32) *tensor.Tensor {
	p := tensor.New(h, w)
	for y := range h {
		for x := range w {
			p.Data[y*w+x] = fill(x, y)
		}
	}
	return p
}

func TestExtractVerticalStep(t *testing.T) {
	const size = 256
	l := plane(size, size, func(x, _ int) float32 {
		if x < size/2 {
			return 0
		}
		return 1
	})

	e, err := Extract(l)
	require.NoError(t, err)
	assert.Equal(t, []int{size, size}, e.Shape())

	for y := range size {
		row := e.Data[y*size : (y+1)*size]
		count := 0
		for x, v := range row {
			if v == 0 {
				continue
			}
			assert.Equal(t, float32(1), v)
			assert.InDelta(t, size/2, x, 2, "edge at row %d col %d is off the step", y, x)
			count++
		}
		assert.Equal(t, 1, count, "row %d", y)
	}
}

func TestExtractUniformHasNoEdges(t *testing.T) {
	l := plane(256, 256, func(int, int) float32 { return 0.536 })

	e, err := Extract(l)
	require.NoError(t, err)
	for _, v := range e.Data {
		require.Zero(t, v)
	}
}

func TestExtractIsBinary(t *testing.T) {
	l := plane(64, 64, func(x, y int) float32 {
		return float32((x*7+y*13)%64) / 63
	})

	e, err := Extract(l)
	require.NoError(t, err)
	for _, v := range e.Data {
		assert.True(t, v == 0 || v == 1, "value %v", v)
	}
}

func TestExtractRejectsNon2D(t *testing.T) {
	_, err := Extract(tensor.New(1, 8, 8))
	assert.ErrorIs(t, err, ErrInput)
}

func TestCannyThresholds(t *testing.T) {
	// A horizontal step of height d gives an L1 magnitude of 4*d on the rows
	// either side of it.
	tests := []struct {
		name  string
		step  uint8
		edges bool
	}{
		{name: "below low threshold", step: 12, edges: false},
		{name: "between thresholds without a strong seed", step: 30, edges: false},
		{name: "above high threshold", step: 40, edges: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewGray(image.Rect(0, 0, 32, 32))
			for y := 16; y < 32; y++ {
				for x := range 32 {
					img.Pix[y*32+x] = tt.step
				}
			}

			out := Canny(img, LowThreshold, HighThreshold)
			found := false
			for _, v := range out.Pix {
				if v == 255 {
					found = true
				}
			}
			assert.Equal(t, tt.edges, found)
		})
	}
}

func TestCannyHysteresisFollowsWeakEdges(t *testing.T) {
	// Left half of the step is strong (4*40=160), right half is weak (4*20=80).
	// The weak run only touches a strong pixel near the seam and must still be
	// kept along its whole length.
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 16; y < 32; y++ {
		for x := range 32 {
			if x < 16 {
				img.Pix[y*32+x] = 40
			} else {
				img.Pix[y*32+x] = 20
			}
		}
	}

	out := Canny(img, LowThreshold, HighThreshold)
	row := out.Pix[15*32 : 16*32]
	for x := 20; x < 30; x++ {
		assert.Equal(t, uint8(255), row[x], "col %d", x)
	}
}

func TestToGrayTruncates(t *testing.T) {
	l, _ := tensor.FromData([]float32{0, 0.5, 1, 1.2, -0.1}, 1, 5)
	g := ToGray(l)
	assert.Equal(t, []uint8{0, 127, 255, 255, 0}, g.Pix)
}

func TestDirectionSectorSplitsAtTan22(t *testing.T) {
	// the horizontal neighbours beat the centre, every other neighbour loses
	mag := []int32{
		0, 0, 0,
		9, 5, 9,
		0, 0, 0,
	}
	tests := []struct {
		name   string
		gx, gy int16
		want   bool
	}{
		{name: "just below 22.5 degrees is horizontal", gx: 10000, gy: 4142, want: false},
		{name: "just above 22.5 degrees is diagonal", gx: 10000, gy: 4143, want: true},
		{name: "vertical", gx: 0, gy: 100, want: true},
		{name: "horizontal", gx: 100, gy: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLocalMax(mag, 3, 1, 1, tt.gx, tt.gy))
		})
	}
}
