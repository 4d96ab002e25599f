package colorizer

import (
	"image"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

type PaletteMethod int

const (
	PaletteDominant PaletteMethod = iota
	PaletteKMeans
)

func (m PaletteMethod) String() string {
	if m == PaletteKMeans {
		return "kmeans"
	}
	return "dominant"
}

// ParsePaletteMethod maps a config value to a method; unknown names fall
// back to PaletteDominant.
func ParsePaletteMethod(s string) PaletteMethod {
	if s == "kmeans" {
		return PaletteKMeans
	}
	return PaletteDominant
}

// Swatch is one palette color with its share of the image.
type Swatch struct {
	Hex    string  `json:"hex"`
	Weight float64 `json:"weight"`
}

// maxPaletteSamples bounds the pixels fed to k-means.
const maxPaletteSamples = 8192

// Palette summarizes img with at most k colors, most prominent first.
func Palette(img image.Image, k int, method PaletteMethod) []Swatch {
	if k <= 0 {
		return nil
	}
	if method == PaletteKMeans {
		if p := kmeansPalette(img, k); len(p) > 0 {
			return p
		}
		logrus.Warn("kmeans palette empty, falling back to dominant colors")
	}
	return dominantPalette(img, k)
}

func dominantPalette(img image.Image, k int) []Swatch {
	var out []Swatch
	for _, c := range dominantcolor.FindWeight(img, k) {
		col, _ := colorful.MakeColor(c.RGBA)
		out = append(out, Swatch{Hex: col.Clamped().Hex(), Weight: c.Weight})
	}
	return out
}

func kmeansPalette(img image.Image, k int) []Swatch {
	b := img.Bounds()
	step := 1
	if n := b.Dx() * b.Dy(); n > maxPaletteSamples {
		step = int(math.Sqrt(float64(n)/maxPaletteSamples)) + 1
	}

	var obs clusters.Observations
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			col, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			obs = append(obs, clusters.Coordinates{col.R, col.G, col.B})
		}
	}
	if len(obs) == 0 {
		return nil
	}

	cc, err := kmeans.New().Partition(obs, min(k, len(obs)))
	if err != nil {
		logrus.WithError(err).Warn("kmeans palette failed")
		return nil
	}
	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	var out []Swatch
	for _, c := range cc {
		if len(c.Observations) == 0 || len(c.Center) < 3 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		out = append(out, Swatch{Hex: col.Hex(), Weight: float64(len(c.Observations)) / float64(len(obs))})
	}
	return out
}

// Colorfulness is the Hasler-Süsstrunk metric of img on the 0-255 scale:
// about 0 for gray images, above 100 for very saturated ones.
func Colorfulness(img image.Image) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	rg := make([]float64, 0, n)
	yb := make([]float64, 0, n)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			rf, gf, bf := float64(r>>8), float64(g>>8), float64(bl>>8)
			rg = append(rg, rf-gf)
			yb = append(yb, 0.5*(rf+gf)-bf)
		}
	}
	rgMean, rgStd := stat.PopMeanStdDev(rg, nil)
	ybMean, ybStd := stat.PopMeanStdDev(yb, nil)
	return math.Hypot(rgStd, ybStd) + 0.3*math.Hypot(rgMean, ybMean)
}
