// Package model implements the edge-aware U-Net generator that predicts a/b
// chrominance from lightness and an edge map.
package model

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
	"github.com/Brownie44l1/edge-colorizer/internal/weights"
)

var (
	ErrShape = errors.New("model: input shape violates network contract")
	ErrMode  = errors.New("model: invalid run mode")
)

// Mode selects whether dropout is active. BatchNorm always uses the running
// statistics from training.
type Mode int

const (
	ModeInference Mode = iota
	ModeTrain
)

// Generator owns the folded, immutable parameters. It is safe for
// concurrent use.
type Generator struct {
	arch     Architecture
	encoder  []*layer
	decoder  []*layer
	final    *layer
	pool     *workerpool.Pool
	ownsPool bool
	params   int
}

type Option func(*Generator)

// WithPool shares an existing worker pool; the caller keeps ownership.
func WithPool(pool *workerpool.Pool) Option {
	return func(g *Generator) {
		g.pool = pool
		g.ownsPool = false
	}
}

// WithWorkers sizes the generator's own pool; 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		g.pool = workerpool.New(n)
		g.ownsPool = true
	}
}

// NewGenerator binds a weight bundle to arch. Every parameter must be present
// with the expected shape and no unknown parameters may remain.
func NewGenerator(arch Architecture, bundle *weights.Bundle, opts ...Option) (*Generator, error) {
	expected := arch.Params()
	var unknown []string
	for _, name := range bundle.Names() {
		if _, ok := expected[name]; !ok && !strings.HasSuffix(name, ".num_batches_tracked") {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unexpected parameters %v", weights.ErrWeightMismatch, unknown)
	}

	g := &Generator{arch: arch}
	for _, s := range arch.Stages() {
		l, err := bind(s, bundle)
		if err != nil {
			return nil, err
		}
		switch s.Kind {
		case Down:
			g.encoder = append(g.encoder, l)
		case Up:
			g.decoder = append(g.decoder, l)
		case Final:
			g.final = l
		}
	}
	for _, shape := range expected {
		g.params += volume(shape)
	}

	for _, opt := range opts {
		opt(g)
	}
	if g.pool == nil {
		g.pool = workerpool.New(0)
		g.ownsPool = true
	}
	return g, nil
}

func bind(s Stage, bundle *weights.Bundle) (*layer, error) {
	prefix := s.Name + ".block.0"
	if s.Kind == Final {
		prefix = s.Name + ".0"
	}
	shape := []int{s.In, s.Out, kernel, kernel}
	if s.Kind == Down {
		shape = []int{s.Out, s.In, kernel, kernel}
	}

	w, err := bundle.Tensor(prefix+".weight", shape...)
	if err != nil {
		return nil, err
	}
	l := &layer{stage: s}
	if s.Kind == Down {
		l.weight = slices.Clone(w.Data)
	} else {
		l.weight = transposeKernel(w.Data, s.In, s.Out)
	}

	if s.hasBias() {
		b, err := bundle.Tensor(prefix+".bias", s.Out)
		if err != nil {
			return nil, err
		}
		l.bias = slices.Clone(b.Data)
	}

	if s.Norm {
		bn := make([][]float32, 4)
		for i, n := range []string{"weight", "bias", "running_mean", "running_var"} {
			t, err := bundle.Tensor(s.Name+".block.1."+n, s.Out)
			if err != nil {
				return nil, err
			}
			bn[i] = t.Data
		}
		l.fold(bn[0], bn[1], bn[2], bn[3])
	}
	return l, nil
}

// transposeKernel turns a transposed-convolution weight [in, out, 4, 4] into
// the [out*16, in] GEMM operand.
func transposeKernel(w []float32, in, out int) []float32 {
	taps := out * kernel * kernel
	t := make([]float32, len(w))
	for c := range in {
		for r := range taps {
			t[r*in+c] = w[c*taps+r]
		}
	}
	return t
}

func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func (g *Generator) Architecture() Architecture { return g.arch }

func (g *Generator) Close() error {
	if g.ownsPool {
		g.pool.Close()
	}
	return nil
}

func (g *Generator) Info() Metadata {
	s := int64(g.arch.Size)
	return Metadata{
		Backend:     "native",
		InputShape:  []int64{1, int64(g.arch.InChannels), s, s},
		OutputShape: []int64{1, int64(g.arch.OutChannels), s, s},
		ImageSize:   g.arch.Size,
		Parameters:  g.params,
	}
}

// Forward runs the network in inference mode.
func (g *Generator) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return g.Run(x, ModeInference, nil)
}

// Run maps [N, InChannels, Size, Size] to [N, OutChannels, Size, Size].
// ModeTrain enables dropout and needs rng.
func (g *Generator) Run(x *tensor.Tensor, mode Mode, rng *rand.Rand) (*tensor.Tensor, error) {
	return g.run(x, mode, rng, -1)
}

// run can zero the skip taken from encoder stage cut, to probe the wiring.
func (g *Generator) run(x *tensor.Tensor, mode Mode, rng *rand.Rand, cut int) (*tensor.Tensor, error) {
	switch mode {
	case ModeInference:
	case ModeTrain:
		if rng == nil {
			return nil, fmt.Errorf("%w: training mode needs a random source", ErrMode)
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrMode, mode)
	}

	size := g.arch.Size
	if x.Dims() != 4 || x.Dim(0) < 1 || x.Dim(1) != g.arch.InChannels || x.Dim(2) != size || x.Dim(3) != size {
		return nil, fmt.Errorf("%w: got %v, want [N %d %d %d]", ErrShape, x.Shape(), g.arch.InChannels, size, size)
	}

	batch := x.Dim(0)
	inSize := g.arch.InChannels * size * size
	outSize := g.arch.OutChannels * size * size
	out := tensor.New(batch, g.arch.OutChannels, size, size)

	for b := range batch {
		y := g.forwardItem(x.Data[b*inSize:(b+1)*inSize], mode, rng, cut)
		copy(out.Data[b*outSize:], y)
	}
	return out, nil
}

func (g *Generator) forwardItem(x []float32, mode Mode, rng *rand.Rand, cut int) []float32 {
	h, w := g.arch.Size, g.arch.Size
	skips := make([][]float32, len(g.encoder))

	cur := x
	for i, l := range g.encoder {
		cur = l.conv(g.pool, cur, h, w)
		h, w = h/2, w/2
		l.activate(g.pool, cur, h*w)
		skips[i] = cur
	}

	for _, l := range append(slices.Clone(g.decoder), g.final) {
		in := cur
		if s := l.stage.Skip; s >= 0 {
			skip := skips[s]
			if s == cut {
				skip = make([]float32, len(skip))
			}
			// decoder output first, encoder skip second
			in = slices.Concat(cur, skip)
		}
		cur = l.convTranspose(g.pool, in, h, w)
		h, w = h*2, w*2
		l.activate(g.pool, cur, h*w)
		if l.stage.Dropout && mode == ModeTrain {
			dropout(cur, rng)
		}
	}
	return cur
}
