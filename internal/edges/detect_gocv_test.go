//go:build gocv

package edges

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCannyMatchesOpenCV(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 96, 80))
	for y := range 80 {
		for x := range 96 {
			v := (x*x + 3*y*y) % 251
			if (x/12+y/10)%2 == 0 {
				v = v / 4
			}
			img.Pix[y*96+x] = uint8(v)
		}
	}

	want, err := CannyCV(img, LowThreshold, HighThreshold)
	require.NoError(t, err)
	got := Canny(img, LowThreshold, HighThreshold)

	diff := 0
	for i := range got.Pix {
		if got.Pix[i] != want.Pix[i] {
			diff++
		}
	}
	assert.Zero(t, diff, "%d of %d pixels differ from OpenCV", diff, len(got.Pix))
}
