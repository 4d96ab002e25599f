package model

import "fmt"

type StageKind int

const (
	Down StageKind = iota
	Up
	Final
)

func (k StageKind) String() string {
	switch k {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return "final"
	}
}

// Stage describes one layer block of the U-Net. In counts the channels the
// block's convolution sees, including any concatenated skip.
type Stage struct {
	Name    string
	Kind    StageKind
	In, Out int
	Norm    bool
	Dropout bool
	// Skip is the encoder stage whose output is appended after the previous
	// decoder output to form this stage's input, or -1.
	Skip int
}

// Architecture is the static layer list of the generator.
type Architecture struct {
	InChannels  int
	OutChannels int
	Size        int
	Encoder     []Stage
	Decoder     []Stage
	Final       Stage
}

const (
	depth            = 8
	dropoutStages    = 3
	leakySlope       = 0.2
	dropoutRate      = 0.5
	batchNormEpsilon = 1e-5
	kernel           = 4
)

// DefaultArchitecture is the trained colorizer: 2 input channels (L, edges),
// 2 output channels (a, b), base width 64 at 256x256.
func DefaultArchitecture() Architecture {
	return NewArchitecture(2, 2, 64)
}

// NewArchitecture lays out the eight down / seven up stage U-Net with the
// given base width. Encoder widths double up to eight times the base width.
func NewArchitecture(in, out, base int) Architecture {
	a := Architecture{InChannels: in, OutChannels: out, Size: 1 << depth}

	widths := make([]int, depth)
	for i := range depth {
		widths[i] = base << min(i, 3)
	}

	prev := in
	for i, w := range widths {
		a.Encoder = append(a.Encoder, Stage{
			Name: fmt.Sprintf("down%d", i+1),
			Kind: Down,
			In:   prev,
			Out:  w,
			Norm: i != 0 && i != depth-1,
			Skip: -1,
		})
		prev = w
	}

	for k := 1; k < depth; k++ {
		st := Stage{
			Name:    fmt.Sprintf("up%d", k),
			Kind:    Up,
			In:      prev,
			Out:     widths[depth-1-k],
			Norm:    true,
			Dropout: k <= dropoutStages,
			Skip:    -1,
		}
		if k > 1 {
			st.Skip = depth - k
			st.In += widths[st.Skip]
		}
		a.Decoder = append(a.Decoder, st)
		prev = st.Out
	}

	a.Final = Stage{Name: "final", Kind: Final, In: prev + widths[0], Out: out, Skip: 0}
	return a
}

// Stages lists every stage in execution order.
func (a Architecture) Stages() []Stage {
	out := make([]Stage, 0, len(a.Encoder)+len(a.Decoder)+1)
	out = append(out, a.Encoder...)
	out = append(out, a.Decoder...)
	return append(out, a.Final)
}

// Params lists the parameter names and shapes the stages expect, using the
// module names of the trained checkpoint.
func (a Architecture) Params() map[string][]int {
	p := map[string][]int{}
	for _, s := range a.Stages() {
		conv := s.Name + ".block.0"
		if s.Kind == Final {
			conv = s.Name + ".0"
		}
		if s.Kind == Down {
			p[conv+".weight"] = []int{s.Out, s.In, kernel, kernel}
		} else {
			p[conv+".weight"] = []int{s.In, s.Out, kernel, kernel}
		}
		if s.hasBias() {
			p[conv+".bias"] = []int{s.Out}
		}
		if s.Norm {
			bn := s.Name + ".block.1"
			for _, n := range []string{"weight", "bias", "running_mean", "running_var"} {
				p[bn+"."+n] = []int{s.Out}
			}
		}
	}
	return p
}

// Encoder convolutions carry a bias only when no normalization follows;
// decoder convolutions never do; the final one always does.
func (s Stage) hasBias() bool {
	switch s.Kind {
	case Down:
		return !s.Norm
	case Final:
		return true
	}
	return false
}
