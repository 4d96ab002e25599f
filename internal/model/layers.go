package model

import (
	"math"
	"math/rand/v2"

	"github.com/ajroetker/go-highway/hwy/contrib/activation"
	"github.com/ajroetker/go-highway/hwy/contrib/matmul"
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
)

// layer is one stage with batch norm folded into its convolution, so the
// forward pass is conv + bias + activation.
type layer struct {
	stage Stage
	// down: [out, in*16]; up/final: [out*16, in]
	weight []float32
	bias   []float32
}

// fold merges running-statistics batch norm into the convolution:
// y = gamma*(conv(x)-mean)/sqrt(var+eps) + beta.
func (l *layer) fold(gamma, beta, mean, variance []float32) {
	taps := len(l.weight) / l.stage.Out
	if l.bias == nil {
		l.bias = make([]float32, l.stage.Out)
	}
	for o := range l.stage.Out {
		scale := gamma[o] / float32(math.Sqrt(float64(variance[o])+batchNormEpsilon))
		l.bias[o] = beta[o] + (l.bias[o]-mean[o])*scale
		if l.stage.Kind == Down {
			row := l.weight[o*taps : (o+1)*taps]
			for i := range row {
				row[i] *= scale
			}
			continue
		}
		// rows o*16 .. o*16+15 of the transposed layout belong to channel o
		rows := l.weight[o*kernel*kernel*l.stage.In : (o+1)*kernel*kernel*l.stage.In]
		for i := range rows {
			rows[i] *= scale
		}
	}
}

// conv applies a stride 2, padding 1, 4x4 convolution to one [in, h, w]
// item via im2col and a GEMM. Output is [out, h/2, w/2].
func (l *layer) conv(pool *workerpool.Pool, x []float32, h, w int) []float32 {
	in, out := l.stage.In, l.stage.Out
	oh, ow := h/2, w/2
	n := oh * ow
	k := in * kernel * kernel

	cols := make([]float32, k*n)
	parallelFor(pool, in, func(c0, c1 int) {
		for c := c0; c < c1; c++ {
			src := x[c*h*w : (c+1)*h*w]
			for ky := range kernel {
				for kx := range kernel {
					row := cols[((c*kernel+ky)*kernel+kx)*n:][:n]
					for oy := range oh {
						iy := oy*2 - 1 + ky
						if iy < 0 || iy >= h {
							clear(row[oy*ow : (oy+1)*ow])
							continue
						}
						for ox := range ow {
							ix := ox*2 - 1 + kx
							if ix < 0 || ix >= w {
								row[oy*ow+ox] = 0
								continue
							}
							row[oy*ow+ox] = src[iy*w+ix]
						}
					}
				}
			}
		}
	})

	y := make([]float32, out*n)
	matmul.MatMulAuto(pool, l.weight, cols, y, out, n, k)
	l.addBias(y, n)
	return y
}

// convTranspose applies a stride 2, padding 1, 4x4 transposed convolution to
// one [in, h, w] item: a GEMM produces every kernel tap, col2im scatters
// them. Output is [out, 2h, 2w].
func (l *layer) convTranspose(pool *workerpool.Pool, x []float32, h, w int) []float32 {
	in, out := l.stage.In, l.stage.Out
	n := h * w
	m := out * kernel * kernel

	cols := make([]float32, m*n)
	matmul.MatMulAuto(pool, l.weight, x, cols, m, n, in)

	oh, ow := h*2, w*2
	y := make([]float32, out*oh*ow)
	parallelFor(pool, out, func(o0, o1 int) {
		for o := o0; o < o1; o++ {
			dst := y[o*oh*ow : (o+1)*oh*ow]
			for ky := range kernel {
				for kx := range kernel {
					row := cols[((o*kernel+ky)*kernel+kx)*n:][:n]
					for iy := range h {
						oy := iy*2 - 1 + ky
						if oy < 0 || oy >= oh {
							continue
						}
						for ix := range w {
							ox := ix*2 - 1 + kx
							if ox < 0 || ox >= ow {
								continue
							}
							dst[oy*ow+ox] += row[iy*w+ix]
						}
					}
				}
			}
		}
	})
	l.addBias(y, oh*ow)
	return y
}

func (l *layer) addBias(y []float32, plane int) {
	if l.bias == nil {
		return
	}
	for o, b := range l.bias {
		p := y[o*plane : (o+1)*plane]
		for i := range p {
			p[i] += b
		}
	}
}

// activate applies the stage's nonlinearity in place on [channels, plane].
func (l *layer) activate(pool *workerpool.Pool, y []float32, plane int) {
	rows := l.stage.Out
	switch l.stage.Kind {
	case Down:
		activation.ParallelLeakyReLU(pool, y, y, rows, plane, float32(leakySlope))
	case Up:
		activation.ParallelReLU(pool, y, y, rows, plane)
	case Final:
		activation.ParallelTanh(pool, y, y, rows, plane)
		// the vectorized tanh is an approximation; keep the contract exact
		for i, v := range y {
			y[i] = min(max(v, -1), 1)
		}
	}
}

// dropout zeroes each value with probability dropoutRate and rescales the
// survivors, as during training.
func dropout(y []float32, rng *rand.Rand) {
	keep := float32(1 / (1 - dropoutRate))
	for i := range y {
		if rng.Float64() < dropoutRate {
			y[i] = 0
		} else {
			y[i] *= keep
		}
	}
}

func parallelFor(pool *workerpool.Pool, n int, fn func(start, end int)) {
	if pool == nil {
		fn(0, n)
		return
	}
	pool.ParallelFor(n, fn)
}
