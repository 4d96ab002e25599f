// Package colorizer turns image bytes into a colorized image: it decodes and
// resizes the input, derives lightness and edges, runs the generator and maps
// the predicted chrominance back to RGB.
package colorizer

import (
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/edge-colorizer/internal/edges"
	"github.com/Brownie44l1/edge-colorizer/internal/model"
	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

// Result holds the four images returned to clients plus the raw prediction.
type Result struct {
	Original    *image.RGBA
	Grayscale   *image.Gray
	Edges       *image.Gray
	Colorized   *image.RGBA
	Chrominance *tensor.Tensor
}

// Colorizer is safe for concurrent use as long as its backend is.
type Colorizer struct {
	backend model.Backend
}

func New(backend model.Backend) *Colorizer {
	return &Colorizer{backend: backend}
}

func (c *Colorizer) Backend() model.Backend { return c.backend }

// Colorize decodes data and colorizes it. Undecodable input yields ErrDecode.
func (c *Colorizer) Colorize(data []byte) (*Result, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return c.ColorizeImage(img)
}

func (c *Colorizer) ColorizeImage(img image.Image) (*Result, error) {
	start := time.Now()

	sample, err := Preprocess(img)
	if err != nil {
		return nil, err
	}
	x, err := AssembleInput(sample.L, sample.Edges)
	if err != nil {
		return nil, err
	}
	prepared := time.Now()

	ab, err := c.backend.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	inferred := time.Now()

	rgb, err := AssembleOutput(sample.L, ab)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"backend":    c.backend.Info().Backend,
		"ab_min":     ab.Min(),
		"ab_max":     ab.Max(),
		"preprocess": prepared.Sub(start),
		"inference":  inferred.Sub(prepared),
		"total":      time.Since(start),
	}).Debug("image colorized")

	return &Result{
		Original:    sample.Image,
		Grayscale:   edges.ToGray(sample.L),
		Edges:       edges.ToGray(sample.Edges),
		Colorized:   rgb,
		Chrominance: ab,
	}, nil
}
