package colorizer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func halves(a, b color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			if x < 32 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

func TestColorfulness(t *testing.T) {
	assert.InDelta(t, 0, Colorfulness(uniform(16, 16, color.Gray{90})), 1e-9)

	vivid := Colorfulness(halves(color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255}))
	muted := Colorfulness(halves(color.RGBA{140, 120, 120, 255}, color.RGBA{120, 120, 140, 255}))
	assert.Greater(t, vivid, 100.0)
	assert.Greater(t, vivid, muted)
	assert.Positive(t, muted)
}

func TestPalette(t *testing.T) {
	img := halves(color.RGBA{255, 0, 0, 255}, color.RGBA{0, 0, 255, 255})

	for _, method := range []PaletteMethod{PaletteDominant, PaletteKMeans} {
		t.Run(method.String(), func(t *testing.T) {
			p := Palette(img, 2, method)
			assert.NotEmpty(t, p)
			assert.LessOrEqual(t, len(p), 2)
			for _, s := range p {
				assert.Len(t, s.Hex, 7)
				assert.Positive(t, s.Weight)
			}
		})
	}

	assert.Nil(t, Palette(img, 0, PaletteDominant))
}

func TestParsePaletteMethod(t *testing.T) {
	assert.Equal(t, PaletteKMeans, ParsePaletteMethod("kmeans"))
	assert.Equal(t, PaletteDominant, ParsePaletteMethod("dominant"))
	assert.Equal(t, PaletteDominant, ParsePaletteMethod("other"))
}
