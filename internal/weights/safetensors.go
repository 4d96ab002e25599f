// Package weights reads pretrained parameter bundles keyed by layer name.
//
// Bundles use the safetensors layout: an 8-byte little-endian header length,
// a JSON header mapping names to dtype, shape and byte range, then the raw
// little-endian data. Checkpoints saved as {"G": state_dict} or from a
// DataParallel module carry a common "G." or "module." prefix, which is
// stripped on load.
package weights

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/ajroetker/go-highway/hwy"

	"github.com/Brownie44l1/edge-colorizer/internal/tensor"
)

var (
	ErrFormat         = errors.New("weights: malformed bundle")
	ErrWeightMismatch = errors.New("weights: parameters do not match network")
)

// maxHeaderSize bounds the JSON header so a corrupt length can't exhaust memory.
const maxHeaderSize = 100 << 20

var wrapperPrefixes = []string{"G.", "module."}

type entry struct {
	DType   string   `json:"dtype"`
	Shape   []int    `json:"shape"`
	Offsets [2]int64 `json:"data_offsets"`
}

// Bundle is an immutable name -> tensor mapping.
type Bundle struct {
	tensors  map[string]*tensor.Tensor
	Metadata map[string]string
}

func Open(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open weights: %w", err)
	}
	defer f.Close()

	b, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}

func Read(r io.Reader) (*Bundle, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: header length: %v", ErrFormat, err)
	}
	if n == 0 || n > maxHeaderSize {
		return nil, fmt.Errorf("%w: header length %d", ErrFormat, n)
	}

	header := make([]byte, n)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(header, &raw); err != nil {
		return nil, fmt.Errorf("%w: header json: %v", ErrFormat, err)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrFormat, err)
	}

	b := &Bundle{tensors: make(map[string]*tensor.Tensor, len(raw))}
	for name, msg := range raw {
		if name == "__metadata__" {
			if err := json.Unmarshal(msg, &b.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrFormat, err)
			}
			continue
		}
		var e entry
		if err := json.Unmarshal(msg, &e); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrFormat, name, err)
		}
		t, err := decode(e, body)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrFormat, name, err)
		}
		b.tensors[name] = t
	}

	b.unwrap()
	return b, nil
}

func decode(e entry, body []byte) (*tensor.Tensor, error) {
	start, end := e.Offsets[0], e.Offsets[1]
	if start < 0 || end < start || end > int64(len(body)) {
		return nil, fmt.Errorf("data offsets %v outside %d bytes", e.Offsets, len(body))
	}
	data := body[start:end]

	width, ok := map[string]int{"F32": 4, "F64": 8, "F16": 2, "BF16": 2, "I64": 8}[e.DType]
	if !ok {
		return nil, fmt.Errorf("unsupported dtype %s", e.DType)
	}

	// count never exceeds the values the byte range can hold, so it can't overflow
	limit := len(data) / width
	count := 1
	for _, d := range e.Shape {
		if d < 0 {
			return nil, fmt.Errorf("negative dimension in shape %v", e.Shape)
		}
		if d > 0 && count > limit/d {
			return nil, fmt.Errorf("shape %v exceeds %d bytes", e.Shape, len(data))
		}
		count *= d
	}
	if len(data) != count*width {
		return nil, fmt.Errorf("%d bytes for %d %s values", len(data), count, e.DType)
	}

	out := make([]float32, count)
	for i := range out {
		chunk := data[i*width : (i+1)*width]
		switch e.DType {
		case "F32":
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk))
		case "F64":
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(chunk)))
		case "F16":
			out[i] = hwy.Float16ToFloat32(hwy.Float16(binary.LittleEndian.Uint16(chunk)))
		case "BF16":
			out[i] = hwy.BFloat16ToFloat32(hwy.BFloat16(binary.LittleEndian.Uint16(chunk)))
		case "I64":
			out[i] = float32(int64(binary.LittleEndian.Uint64(chunk)))
		}
	}
	// scalars (num_batches_tracked) have an empty shape
	return tensor.FromData(out, e.Shape...)
}

// unwrap strips a wrapper prefix shared by every key.
func (b *Bundle) unwrap() {
	for _, prefix := range wrapperPrefixes {
		if len(b.tensors) == 0 {
			return
		}
		all := true
		for name := range b.tensors {
			if !strings.HasPrefix(name, prefix) {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		stripped := make(map[string]*tensor.Tensor, len(b.tensors))
		for name, t := range b.tensors {
			stripped[strings.TrimPrefix(name, prefix)] = t
		}
		b.tensors = stripped
	}
}

func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.tensors))
	for name := range b.tensors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (b *Bundle) Len() int { return len(b.tensors) }

func (b *Bundle) Shape(name string) ([]int, bool) {
	t, ok := b.tensors[name]
	if !ok {
		return nil, false
	}
	return t.Shape(), true
}

// Tensor returns the named parameter, checking its shape.
func (b *Bundle) Tensor(name string, shape ...int) (*tensor.Tensor, error) {
	t, ok := b.tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrWeightMismatch, name)
	}
	if !t.HasShape(shape...) {
		return nil, fmt.Errorf("%w: %q has shape %v, want %v", ErrWeightMismatch, name, t.Shape(), shape)
	}
	return t, nil
}
